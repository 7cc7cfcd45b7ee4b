package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/upload"

	"github.com/gin-gonic/gin"
)

const maxFieldBytes = 1024

type uploadResult struct {
	File       string                      `json:"file"`
	Attachment *models.FileUploadedPayload `json:"attachment,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

// parseLimit reads ?limit= within [1, max], defaulting when absent.
func parseLimit(c *gin.Context, max int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return config.DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return n, nil
}

// ListMessages returns the newest messages of a room in ascending id order.
func (h *Handler) ListMessages(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("room_id"))
	if roomID == "" {
		respondError(c, chathub.ErrMissingRoom)
		return
	}
	limit, err := parseLimit(c, config.MaxMessageHistory)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.Store.ListMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]models.ChatMessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].Payload())
	}
	c.JSON(http.StatusOK, out)
}

// PostMessage persists and broadcasts a message on behalf of the bearer.
func (h *Handler) PostMessage(c *gin.Context) {
	user := currentUser(c)
	msg, err := h.Hub.Messages.Submit(c.Request.Context(), c.PostForm("room_id"),
		chathub.Author{ID: user.ID, Name: user.Name}, c.PostForm("text"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg.Payload())
}

// Upload streams the file parts of a multipart request straight into the
// upload pipeline, one part at a time. Form fields must come before the first
// file. Each processed file reports its own outcome.
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadBodyLimit())
	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form", "details": err.Error()})
		return
	}

	src := &multipartFiles{mr: mr}
	fields, err := src.readFields()
	if err != nil && statusFor(err) == http.StatusRequestEntityTooLarge {
		respondError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form", "details": err.Error()})
		return
	}

	user := currentUser(c)
	results, err := h.Uploads.Upload(c.Request.Context(), fields["room_id"],
		chathub.Author{ID: user.ID, Name: user.Name}, src)
	if err != nil {
		if len(results) == 0 {
			respondError(c, err)
			return
		}
		log.Printf("WARNING: upload request to room %s ended early: %v", fields["room_id"], err)
	}

	out := make([]uploadResult, 0, len(results))
	tooLarge := 0
	for _, r := range results {
		item := uploadResult{File: r.File}
		if r.Err != nil {
			switch statusFor(r.Err) {
			case http.StatusRequestEntityTooLarge:
				tooLarge++
				item.Error = fmt.Sprintf("File too large (> %d bytes)", h.Uploads.MaxBytes())
			case http.StatusInternalServerError:
				item.Error = "upload failed"
			default:
				item.Error = r.Err.Error()
			}
		} else {
			payload := r.Attachment.Payload()
			item.Attachment = &payload
		}
		out = append(out, item)
	}

	status := http.StatusOK
	if tooLarge == len(results) {
		status = http.StatusRequestEntityTooLarge
	}
	c.JSON(status, out)
}

// uploadBodyLimit caps a whole upload request.
func (h *Handler) uploadBodyLimit() int64 {
	return config.MaxUploadFiles * (h.Uploads.MaxBytes() + config.UploadPartOverhead)
}

// multipartFiles is an upload.Source over the file parts of a multipart body.
// A part the pipeline stopped reading early (over budget or failed) ends the
// stream, because reaching the next part would mean reading the rest of it.
type multipartFiles struct {
	mr      *multipart.Reader
	pending *multipart.Part
	current *partReader
}

// readFields collects the plain form fields that precede the first file part.
func (m *multipartFiles) readFields() (map[string]string, error) {
	fields := make(map[string]string)
	for {
		part, err := m.mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" {
			m.pending = part
			return fields, nil
		}
		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		if err != nil {
			return nil, err
		}
		fields[part.FormName()] = strings.TrimSpace(string(value))
	}
}

func (m *multipartFiles) Next() (upload.File, error) {
	if m.current != nil && !m.current.done {
		return upload.File{}, io.EOF
	}

	part := m.pending
	m.pending = nil
	for part == nil {
		next, err := m.mr.NextPart()
		if err != nil {
			return upload.File{}, err
		}
		if next.FileName() != "" {
			part = next
		}
	}

	m.current = &partReader{part: part}
	return upload.File{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Reader:      m.current,
	}, nil
}

// partReader remembers whether its part was read to the end.
type partReader struct {
	part *multipart.Part
	done bool
}

func (r *partReader) Read(p []byte) (int, error) {
	n, err := r.part.Read(p)
	if errors.Is(err, io.EOF) {
		r.done = true
	}
	return n, err
}

func (h *Handler) ListAttachments(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("room_id"))
	if roomID == "" {
		respondError(c, chathub.ErrMissingRoom)
		return
	}
	limit, err := parseLimit(c, config.MaxAttachmentHistory)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	atts, err := h.Store.ListAttachments(c.Request.Context(), roomID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]models.FileUploadedPayload, 0, len(atts))
	for i := range atts {
		out = append(out, atts[i].Payload())
	}
	c.JSON(http.StatusOK, out)
}

// ServeFile streams stored attachment bytes.
func (h *Handler) ServeFile(c *gin.Context) {
	name, err := filestore.CleanPath(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rc, size, err := h.Files.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, filestore.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, size, contentType, rc, nil)
}
