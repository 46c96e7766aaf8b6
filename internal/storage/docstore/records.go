package docstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
)

// Document is embedded in every collection row. DocID is the opaque
// backend reference; NumericID is the public id handed to callers.
type Document struct {
	DocID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	NumericID int64     `gorm:"uniqueIndex;not null"`
}

func newDocument(id int64) Document {
	return Document{DocID: uuid.New(), NumericID: id}
}

// idSequence holds the last numeric id handed out for one collection.
type idSequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null"`
}

func (idSequence) TableName() string { return "id_sequences" }

type userRecord struct {
	Document
	UID             string  `gorm:"size:128;index"`
	Username        string  `gorm:"size:64;uniqueIndex;not null"`
	DisplayName     string  `gorm:"size:128"`
	Email           string  `gorm:"size:255;uniqueIndex;not null"`
	Bio             *string `gorm:"type:text"`
	ProfileImageURL *string `gorm:"type:text"`
	Location        *string `gorm:"size:128"`
}

func (userRecord) TableName() string { return "users" }

func (r userRecord) toModel() models.User {
	return models.User{
		ID:              r.NumericID,
		UID:             r.UID,
		Username:        r.Username,
		DisplayName:     r.DisplayName,
		Email:           r.Email,
		Bio:             r.Bio,
		ProfileImageURL: r.ProfileImageURL,
		Location:        r.Location,
	}
}

func (r *userRecord) set(u models.User) {
	r.UID = u.UID
	r.Username = u.Username
	r.DisplayName = u.DisplayName
	r.Email = u.Email
	r.Bio = u.Bio
	r.ProfileImageURL = u.ProfileImageURL
	r.Location = u.Location
}

type eventRecord struct {
	Document
	Title       string  `gorm:"size:255;not null"`
	Description string  `gorm:"type:text"`
	ImageURL    string  `gorm:"type:text"`
	Category    string  `gorm:"size:64;index"`
	Venue       string  `gorm:"size:255"`
	Location    string  `gorm:"size:255"`
	Date        string  `gorm:"size:64"`
	Time        string  `gorm:"size:64"`
	PriceRange  *string `gorm:"size:64"`
	Featured    bool    `gorm:"index"`
}

func (eventRecord) TableName() string { return "events" }

func (r eventRecord) toModel() models.Event {
	return models.Event{
		ID:          r.NumericID,
		Title:       r.Title,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		Category:    r.Category,
		Venue:       r.Venue,
		Location:    r.Location,
		Date:        r.Date,
		Time:        r.Time,
		PriceRange:  r.PriceRange,
		Featured:    r.Featured,
	}
}

type interestRecord struct {
	Document
	Name string `gorm:"size:128;uniqueIndex;not null"`
}

func (interestRecord) TableName() string { return "interests" }

func (r interestRecord) toModel() models.Interest {
	return models.Interest{ID: r.NumericID, Name: r.Name}
}

type userInterestRecord struct {
	UserID     int64 `gorm:"primaryKey;autoIncrement:false"`
	InterestID int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (userInterestRecord) TableName() string { return "user_interests" }

type buddyRequestRecord struct {
	Document
	RequesterID int64     `gorm:"not null;index"`
	ReceiverID  int64     `gorm:"not null;index"`
	EventID     int64     `gorm:"not null;index"`
	Status      string    `gorm:"size:16;not null"`
	Message     *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (buddyRequestRecord) TableName() string { return "buddy_requests" }

func (r buddyRequestRecord) toModel() models.BuddyRequest {
	return models.BuddyRequest{
		ID:          r.NumericID,
		RequesterID: r.RequesterID,
		ReceiverID:  r.ReceiverID,
		EventID:     r.EventID,
		Status:      models.BuddyRequestStatus(r.Status),
		Message:     r.Message,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type messageRecord struct {
	Document
	SenderID   int64     `gorm:"not null;index:idx_messages_pair,priority:1"`
	ReceiverID int64     `gorm:"not null;index:idx_messages_pair,priority:2"`
	Content    string    `gorm:"type:text"`
	Read       bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (messageRecord) TableName() string { return "messages" }

func (r messageRecord) toModel() models.Message {
	return models.Message{
		ID:         r.NumericID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
