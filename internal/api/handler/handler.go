package handler

import (
	"errors"
	"log"
	"net/http"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/storage"
	"roomchat/backend/internal/upload"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP and socket surface to the chat core.
type Handler struct {
	Hub     *chathub.ManagerService
	Store   storage.Storage
	Tokens  *auth.TokenManager
	Uploads *upload.Pipeline
	Files   filestore.Store
	Config  config.Config
}

func NewHandler(hub *chathub.ManagerService, store storage.Storage, tokens *auth.TokenManager,
	uploads *upload.Pipeline, files filestore.Store, cfg config.Config) *Handler {
	return &Handler{
		Hub:     hub,
		Store:   store,
		Tokens:  tokens,
		Uploads: uploads,
		Files:   files,
		Config:  cfg,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/files/*path", h.ServeFile)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.requireUser, h.Me)

	rooms := r.Group("/rooms")
	rooms.GET("", h.ListRooms)
	rooms.GET("/countries", h.ListCountries)
	rooms.POST("/create", h.requireUser, h.CreateRoom)

	chat := r.Group("/chat")
	chat.GET("/messages", h.ListMessages)
	chat.POST("/message", h.requireUser, h.PostMessage)
	chat.POST("/upload", h.requireUser, h.Upload)
	chat.GET("/attachments", h.ListAttachments)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "app": h.Config.AppName})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case chathub.IsValidation(err),
		errors.Is(err, upload.ErrInvalidRoomID),
		errors.Is(err, upload.ErrNoFiles),
		errors.Is(err, upload.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, chathub.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, filestore.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, upload.ErrEntityTooLarge), errors.As(err, new(*http.MaxBytesError)):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
