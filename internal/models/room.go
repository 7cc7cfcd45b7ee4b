package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Country groups rooms. Code is an ISO 3166 alpha-2 code.
type Country struct {
	Code string `gorm:"primaryKey;size:2" json:"code"`
	Name string `gorm:"size:80;uniqueIndex" json:"name"`
}

// Room is a named broadcast group. It carries no live state; membership is
// tracked per connection by the chat hub.
type Room struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:64;not null;uniqueIndex:uq_room_country_name" json:"name"`
	CountryCode string    `gorm:"size:2;not null;uniqueIndex:uq_room_country_name" json:"country_code"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller has not set one.
func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
