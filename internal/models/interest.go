package models

type Interest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type InsertInterest struct {
	Name string `json:"name"`
}

// UserInterest is a membership row of the user/interest join.
type UserInterest struct {
	UserID     int64 `json:"userId"`
	InterestID int64 `json:"interestId"`
}
