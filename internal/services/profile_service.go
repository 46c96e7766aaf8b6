package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/storage"
)

var ErrIncompleteIdentity = errors.New("identity requires uid and email")

// Identity is who the external provider says the caller is.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Username    string
	PhotoURL    string
	Location    string
}

// ProfileService mirrors provider identities into local user profiles.
type ProfileService struct {
	store storage.Storage
}

func NewProfileService(store storage.Storage) *ProfileService {
	return &ProfileService{store: store}
}

const maxUsernameAttempts = 5

// Sync returns the local profile for id, creating it on first sign-in.
// created reports whether a new profile was written.
func (s *ProfileService) Sync(ctx context.Context, id Identity) (user *models.User, created bool, err error) {
	if id.UID == "" || id.Email == "" {
		return nil, false, ErrIncompleteIdentity
	}

	existing, err := s.store.GetUserByUID(ctx, id.UID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	base := usernameFor(id)
	in := models.InsertUser{
		UID:         id.UID,
		Username:    base,
		DisplayName: id.DisplayName,
		Email:       id.Email,
	}
	if in.DisplayName == "" {
		in.DisplayName = base
	}
	if id.PhotoURL != "" {
		in.ProfileImageURL = &id.PhotoURL
	}
	if id.Location != "" {
		in.Location = &id.Location
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		if attempt > 0 {
			in.Username = fmt.Sprintf("%s%d", base, attempt+1)
		}
		user, err = s.store.CreateUser(ctx, in)
		if err == nil {
			return user, true, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, false, err
		}
		// The email may be the clash rather than the username; no suffix fixes that.
		if _, lookupErr := s.store.GetUserByUsername(ctx, in.Username); errors.Is(lookupErr, storage.ErrNotFound) {
			return nil, false, err
		}
	}
	return nil, false, err
}

func usernameFor(id Identity) string {
	if id.Username != "" {
		return strings.ToLower(id.Username)
	}
	local, _, _ := strings.Cut(id.Email, "@")
	local, _, _ = strings.Cut(local, "+")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
