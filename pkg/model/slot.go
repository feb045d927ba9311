package model

import "time"

// Slot is a bookable half-open interval [StartTime, EndTime) on Date.
// BookedBy is set exactly when IsBooked is true.
type Slot struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	Date      string    `json:"date" bson:"date"`
	StartTime string    `json:"startTime" bson:"startTime"`
	EndTime   string    `json:"endTime" bson:"endTime"`
	IsBooked  bool      `json:"isBooked" bson:"isBooked"`
	BookedBy  *string   `json:"bookedBy,omitempty" bson:"bookedBy"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Key identifies the interval a slot covers; it is unique across all slots.
func (s *Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, StartTime: s.StartTime, EndTime: s.EndTime}
}

// OwnedBy reports whether the slot is currently booked by userID.
func (s *Slot) OwnedBy(userID string) bool {
	return s.IsBooked && s.BookedBy != nil && *s.BookedBy == userID
}

type SlotKey struct {
	Date      string
	StartTime string
	EndTime   string
}

// UserSummary is the display identity of a slot owner, read from the users
// collection maintained by the identity service.
type UserSummary struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

type BookedSlot struct {
	Slot `bson:",inline"`
	User *UserSummary `json:"user,omitempty" bson:"-"`
}

// SlotCreationInput is the admin request for generating slots on one date.
// IntervalMinutes keeps whatever JSON value the caller sent so the policy, not
// the decoder, reports strings, booleans and fractions as bad intervals.
type SlotCreationInput struct {
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"startTime" validate:"required"`
	EndTime         string `json:"endTime" validate:"required"`
	IntervalMinutes any    `json:"intervalMinutes"`
}

type SlotCreationResult struct {
	Date           string `json:"date"`
	TotalRequested int    `json:"totalRequested"`
	Created        int    `json:"created"`
	Skipped        int    `json:"skipped"`
}
