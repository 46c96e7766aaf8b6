package dto

import "github.com/ahmetcoskunkizilkaya/eventbuddy-backend/internal/models"

// SyncProfileRequest is used when no verified token carries the identity.
type SyncProfileRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	PhotoURL    string `json:"photoUrl"`
	Location    string `json:"location"`
}

type SyncProfileResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}
