package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"roomchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// maxRoomNameRunes matches the width of the room name column.
const maxRoomNameRunes = 64

// defaultCountries is what an empty deployment starts with.
var defaultCountries = []models.Country{
	{Code: "ID", Name: "Indonesia"},
	{Code: "US", Name: "United States"},
	{Code: "MY", Name: "Malaysia"},
	{Code: "SG", Name: "Singapore"},
}

type roomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListCountries seeds the defaults on first use and returns countries by name.
func (h *Handler) ListCountries(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.Store.SeedCountries(ctx, defaultCountries); err != nil {
		respondError(c, err)
		return
	}
	countries, err := h.Store.ListCountries(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, countries)
}

func (h *Handler) ListRooms(c *gin.Context) {
	code, ok := countryCode(c.Query("code"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code must be a two letter country code"})
		return
	}
	rooms, err := h.Store.ListRoomsByCountry(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomResponse{ID: r.ID, Name: r.Name})
	}
	c.JSON(http.StatusOK, out)
}

// CreateRoom adds a named room to a country. Names are unique per country.
func (h *Handler) CreateRoom(c *gin.Context) {
	code, ok := countryCode(c.Query("code"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code must be a two letter country code"})
		return
	}
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room name required"})
		return
	}
	if utf8.RuneCountInString(name) > maxRoomNameRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room name is too long"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Store.GetCountry(ctx, code); err != nil {
		respondError(c, err)
		return
	}

	room := &models.Room{Name: name, CountryCode: code, CreatedBy: currentUser(c).ID}
	if err := h.Store.CreateRoom(ctx, room); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roomResponse{ID: room.ID, Name: room.Name})
}

func countryCode(raw string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return "", false
	}
	return code, true
}
