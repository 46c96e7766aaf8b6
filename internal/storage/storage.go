// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid buddy request status transition")
)

// Storage is implemented by the memory, document and cloud backends.
// Single-entity reads return ErrNotFound for a missing row; every other error
// is a transport failure. Usernames, emails and interest names are unique;
// violating that yields ErrDuplicate. List operations never return a nil slice.
type Storage interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	CreateUser(ctx context.Context, in models.InsertUser) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)

	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	// GetEvents filters on exact category equality; an empty category matches all.
	GetEvents(ctx context.Context, category string) ([]models.Event, error)
	GetFeaturedEvents(ctx context.Context) ([]models.Event, error)
	CreateEvent(ctx context.Context, in models.InsertEvent) (*models.Event, error)

	GetInterests(ctx context.Context) ([]models.Interest, error)
	CreateInterest(ctx context.Context, in models.InsertInterest) (*models.Interest, error)
	GetUserInterests(ctx context.Context, userID int64) ([]models.Interest, error)
	AddUserInterest(ctx context.Context, userID, interestID int64) error
	RemoveUserInterest(ctx context.Context, userID, interestID int64) error

	GetBuddyRequest(ctx context.Context, id int64) (*models.BuddyRequest, error)
	// GetBuddyRequests returns the requests received by userID, newest first.
	GetBuddyRequests(ctx context.Context, userID int64) ([]models.BuddyRequest, error)
	CreateBuddyRequest(ctx context.Context, in models.InsertBuddyRequest) (*models.BuddyRequest, error)
	UpdateBuddyRequestStatus(ctx context.Context, id int64, status models.BuddyRequestStatus) (*models.BuddyRequest, error)

	// GetMessages returns the conversation between a and b in either direction,
	// oldest first.
	GetMessages(ctx context.Context, a, b int64) ([]models.Message, error)
	CreateMessage(ctx context.Context, in models.InsertMessage) (*models.Message, error)
	MarkMessagesAsRead(ctx context.Context, ids []int64) error

	Ping(ctx context.Context) error
	Close() error
}

// NormalizeCategory treats the catch-all UI label as "no filter".
func NormalizeCategory(category string) string {
	if category == AllEventsCategory {
		return ""
	}
	return category
}

const AllEventsCategory = "All Events"
