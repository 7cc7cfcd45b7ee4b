package models

import "time"

// FilesURLPrefix is where stored attachments are served from.
const FilesURLPrefix = "/files/"

// Attachment is the metadata of an uploaded file. StoredPath is relative to the
// file store root and is unique per attachment.
type Attachment struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       string    `gorm:"size:36;not null;index"`
	AuthorID     uint      `gorm:"not null"`
	AuthorName   string    `gorm:"size:64;not null"`
	OriginalName string    `gorm:"size:512;not null"`
	StoredPath   string    `gorm:"size:1024;not null;uniqueIndex"`
	MimeType     string    `gorm:"size:128;not null"`
	SizeBytes    int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index"`
}

// URL is the public download location derived from the stored path.
func (a *Attachment) URL() string {
	return FilesURLPrefix + a.StoredPath
}

// Payload is the canonical file_uploaded body clients receive.
func (a *Attachment) Payload() FileUploadedPayload {
	return FileUploadedPayload{
		ID:           a.ID,
		RoomID:       a.RoomID,
		Username:     a.AuthorName,
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		URL:          a.URL(),
		CreatedAt:    a.CreatedAt.UTC(),
	}
}
