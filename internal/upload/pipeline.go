// Package upload streams attachment files into the file store under a per-file
// byte budget, records their metadata and announces them to the room.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"strings"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrEntityTooLarge means the file went over the byte budget. Nothing of it
	// is left in the store.
	ErrEntityTooLarge = errors.New("file exceeds upload limit")
	// ErrInvalidRoomID is returned when no room id was supplied.
	ErrInvalidRoomID = errors.New("invalid room id")
	// ErrNoFiles is returned for an upload request without files.
	ErrNoFiles = errors.New("no files provided")
	// ErrMalformedRequest is returned when the file source cannot be read.
	ErrMalformedRequest = errors.New("malformed upload request")
)

const defaultContentType = "application/octet-stream"

// AttachmentStore is the metadata side of the pipeline.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, att *models.Attachment) error
}

// File is one incoming stream. Name is only ever used for display.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Result is the outcome for one file of a request.
type Result struct {
	File       string
	Attachment *models.Attachment
	Err        error
}

// Pipeline is write-then-record: the metadata record exists only once every
// byte of the file is committed to the store.
type Pipeline struct {
	files     filestore.Store
	store     AttachmentStore
	emitter   chathub.Emitter
	sequencer chathub.Sequencer
	maxBytes  int64
	chunkSize int
}

func NewPipeline(files filestore.Store, store AttachmentStore, emitter chathub.Emitter, sequencer chathub.Sequencer, maxBytes int64) *Pipeline {
	return &Pipeline{
		files:     files,
		store:     store,
		emitter:   emitter,
		sequencer: sequencer,
		maxBytes:  maxBytes,
		chunkSize: config.UploadChunkSize,
	}
}

// MaxBytes is the per-file budget.
func (p *Pipeline) MaxBytes() int64 { return p.maxBytes }

// Source yields the files of one request in order. Next returns io.EOF once
// there are no more files.
type Source interface {
	Next() (File, error)
}

type fileList struct {
	files []File
}

// FileList is a Source over files that are already open.
func FileList(files ...File) Source {
	return &fileList{files: files}
}

func (l *fileList) Next() (File, error) {
	if len(l.files) == 0 {
		return File{}, io.EOF
	}
	f := l.files[0]
	l.files = l.files[1:]
	return f, nil
}

// Upload processes the files of src one at a time. A failed file leaves the
// files before it intact and does not stop the ones after it. If src itself
// fails, the results so far are returned together with the error.
func (p *Pipeline) Upload(ctx context.Context, roomID string, author chathub.Author, src Source) ([]Result, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrInvalidRoomID
	}
	if author.ID == 0 {
		return nil, chathub.ErrUnauthenticated
	}

	var results []Result
	for {
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return results, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}

		att, err := p.uploadOne(ctx, roomID, author, f)
		if err != nil {
			log.Printf("WARNING: upload of %q to room %s failed: %v", f.Name, roomID, err)
		}
		results = append(results, Result{File: f.Name, Attachment: att, Err: err})
	}

	if len(results) == 0 {
		return nil, ErrNoFiles
	}
	return results, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, roomID string, author chathub.Author, f File) (*models.Attachment, error) {
	storedPath, err := filestore.CleanPath(roomID + "/" + storedName(f.Name))
	if err != nil || !strings.HasPrefix(storedPath, roomID+"/") {
		return nil, ErrInvalidRoomID
	}

	w, err := p.files.Create(ctx, storedPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", storedPath, err)
	}

	size, err := p.copyWithBudget(w, f.Reader)
	if err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			log.Printf("ERROR: could not remove partial upload %s: %v", storedPath, abortErr)
		}
		return nil, err
	}
	if err := w.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", storedPath, err)
	}

	att := &models.Attachment{
		RoomID:       roomID,
		AuthorID:     author.ID,
		AuthorName:   author.DisplayName(),
		OriginalName: displayName(f.Name),
		StoredPath:   storedPath,
		MimeType:     contentType(f),
		SizeBytes:    size,
	}

	err = p.sequencer.InRoom(roomID, func() error {
		if err := p.store.CreateAttachment(ctx, att); err != nil {
			return fmt.Errorf("persist attachment: %w", err)
		}
		p.emitter.Emit(roomID, models.EventFileUploaded, att.Payload(), "")
		return nil
	})
	if err != nil {
		if delErr := p.files.Delete(context.WithoutCancel(ctx), storedPath); delErr != nil {
			log.Printf("ERROR: orphan file %s left after failed record: %v", storedPath, delErr)
		}
		return nil, err
	}
	return att, nil
}

// copyWithBudget moves src into w chunk by chunk and stops as soon as the
// running count passes the budget.
func (p *Pipeline) copyWithBudget(w io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, p.chunkSize)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if p.maxBytes > 0 && total > p.maxBytes {
				return total, ErrEntityTooLarge
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write chunk: %w", werr)
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read upload: %w", err)
		}
	}
}

// storedName is a random identifier plus the original extension.
func storedName(original string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + extension(original)
}

func extension(name string) string {
	ext := strings.ToLower(path.Ext(displayName(name)))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

// displayName strips any directory part a client sent along.
func displayName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "file"
	}
	return name
}

func contentType(f File) string {
	if ct := strings.TrimSpace(f.ContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(extension(f.Name)); ct != "" {
		return ct
	}
	return defaultContentType
}
