package dto

type UpdateBuddyRequestStatusRequest struct {
	Status string `json:"status"`
}

// MarkMessagesReadRequest leaves MessageIDs nil when the field is absent.
type MarkMessagesReadRequest struct {
	MessageIDs *[]int64 `json:"messageIds"`
}

type UserInterestRequest struct {
	UserID     int64 `json:"userId"`
	InterestID int64 `json:"interestId"`
}
