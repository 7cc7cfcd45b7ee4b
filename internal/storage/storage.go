package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"roomchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("record already exists")
)

// Storage is the durable store used by the chat core and the HTTP surface.
type Storage interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)

	CreateAttachment(ctx context.Context, att *models.Attachment) error
	ListAttachments(ctx context.Context, roomID string, limit int) ([]models.Attachment, error)
	ListAttachmentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Attachment, error)
	DeleteAttachment(ctx context.Context, id uint) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	SeedCountries(ctx context.Context, countries []models.Country) error
	ListCountries(ctx context.Context) ([]models.Country, error)
	GetCountry(ctx context.Context, code string) (*models.Country, error)
	ListRoomsByCountry(ctx context.Context, code string) ([]models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error

	Stats(ctx context.Context) (Stats, error)
}

// Stats is a row count summary for operators.
type Stats struct {
	Users       int64
	Rooms       int64
	Messages    int64
	Attachments int64
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil when no relay is configured.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates or updates every table the backend owns.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Country{},
		&models.Room{},
		&models.Message{},
		&models.Attachment{},
	)
}

// translate folds gorm errors into the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// CreateMessage inserts msg; on return msg.ID and msg.CreatedAt hold the
// values assigned by the database.
func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = 0
	msg.CreatedAt = time.Time{}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return translate(err)
	}
	return nil
}

// ListMessages returns the newest limit messages of a room, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to get chat history for room %s: %v", roomID, err)
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (s *Service) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	att.ID = 0
	att.CreatedAt = time.Time{}
	if err := s.DB.WithContext(ctx).Create(att).Error; err != nil {
		log.Printf("ERROR: Failed to save attachment %s for room %s: %v", att.StoredPath, att.RoomID, err)
		return translate(err)
	}
	return nil
}

// ListAttachments returns the newest limit attachments of a room, oldest first.
func (s *Service) ListAttachments(ctx context.Context, roomID string, limit int) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id desc").
		Limit(limit).
		Find(&atts).Error
	if err != nil {
		return nil, err
	}
	reverse(atts)
	return atts, nil
}

// ListAttachmentsCreatedBefore selects every attachment strictly older than cutoff.
func (s *Service) ListAttachmentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := s.DB.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("id asc").
		Find(&atts).Error
	return atts, err
}

func (s *Service) DeleteAttachment(ctx context.Context, id uint) error {
	result := s.DB.WithContext(ctx).Delete(&models.Attachment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.DB.WithContext(ctx).Create(user).Error)
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// SeedCountries inserts the given countries only when the table is empty.
func (s *Service) SeedCountries(ctx context.Context, countries []models.Country) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Country{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 || len(countries) == 0 {
			return nil
		}
		return tx.Create(&countries).Error
	})
}

func (s *Service) ListCountries(ctx context.Context) ([]models.Country, error) {
	var countries []models.Country
	err := s.DB.WithContext(ctx).Order("name asc").Find(&countries).Error
	return countries, err
}

func (s *Service) GetCountry(ctx context.Context, code string) (*models.Country, error) {
	var country models.Country
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&country).Error; err != nil {
		return nil, translate(err)
	}
	return &country, nil
}

func (s *Service) ListRoomsByCountry(ctx context.Context, code string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("country_code = ?", code).
		Order("name asc").
		Find(&rooms).Error
	return rooms, err
}

func (s *Service) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := s.DB.WithContext(ctx).Create(room).Error; err != nil {
		log.Printf("ERROR: Failed to create room %q in %s: %v", room.Name, room.CountryCode, err)
		return translate(err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.DB.WithContext(ctx)
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.User{}, &st.Users},
		{&models.Room{}, &st.Rooms},
		{&models.Message{}, &st.Messages},
		{&models.Attachment{}, &st.Attachments},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dst).Error; err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
