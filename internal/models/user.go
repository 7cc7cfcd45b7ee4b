package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Sockets may also run anonymously without one.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:80;not null" json:"name"`
	Gender       string    `gorm:"size:16;default:unspecified" json:"gender"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeSave normalizes the email so lookups are case-insensitive.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Gender == "" {
		u.Gender = "unspecified"
	}
	return nil
}
