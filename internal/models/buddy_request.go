package models

import "time"

type BuddyRequestStatus string

const (
	BuddyRequestPending  BuddyRequestStatus = "pending"
	BuddyRequestAccepted BuddyRequestStatus = "accepted"
	BuddyRequestRejected BuddyRequestStatus = "rejected"
)

func (s BuddyRequestStatus) Valid() bool {
	switch s {
	case BuddyRequestPending, BuddyRequestAccepted, BuddyRequestRejected:
		return true
	}
	return false
}

// CanTransition reports whether a request in status s may move to next.
// Re-applying the current status is allowed and changes nothing.
func (s BuddyRequestStatus) CanTransition(next BuddyRequestStatus) bool {
	if s == next {
		return true
	}
	return s == BuddyRequestPending && (next == BuddyRequestAccepted || next == BuddyRequestRejected)
}

type BuddyRequest struct {
	ID          int64              `json:"id"`
	RequesterID int64              `json:"requesterId"`
	ReceiverID  int64              `json:"receiverId"`
	EventID     int64              `json:"eventId"`
	Status      BuddyRequestStatus `json:"status"`
	Message     *string            `json:"message"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type InsertBuddyRequest struct {
	RequesterID int64   `json:"requesterId"`
	ReceiverID  int64   `json:"receiverId"`
	EventID     int64   `json:"eventId"`
	Message     *string `json:"message"`
}

func (in InsertBuddyRequest) ToBuddyRequest(id int64, now time.Time) BuddyRequest {
	return BuddyRequest{
		ID:          id,
		RequesterID: in.RequesterID,
		ReceiverID:  in.ReceiverID,
		EventID:     in.EventID,
		Status:      BuddyRequestPending,
		Message:     cloneString(in.Message),
		CreatedAt:   now,
	}
}

func (r BuddyRequest) Clone() BuddyRequest {
	r.Message = cloneString(r.Message)
	return r
}
