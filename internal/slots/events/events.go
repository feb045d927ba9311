package events

import (
	"context"
	"sync"
	"time"

	"slotify/pkg/model"
)

type Type string

const (
	SlotsCreated  Type = "slots.created"
	SlotBooked    Type = "slot.booked"
	SlotCancelled Type = "slot.cancelled"
	SlotDeleted   Type = "slot.deleted"
)

const SchemaVersion = "1"

// Event describes one committed change to slot state.
type Event struct {
	Type       Type      `json:"type"`
	SlotID     string    `json:"slotId,omitempty"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime,omitempty"`
	EndTime    string    `json:"endTime,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Created    int       `json:"created,omitempty"`
	Skipped    int       `json:"skipped,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Key is the partition key: the slot id, or the date for bulk events.
func (e Event) Key() string {
	if e.SlotID != "" {
		return e.SlotID
	}
	return e.Date
}

func ForSlot(t Type, slot *model.Slot, userID string, at time.Time) Event {
	return Event{
		Type:       t,
		SlotID:     slot.ID,
		Date:       slot.Date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		UserID:     userID,
		OccurredAt: at.UTC(),
	}
}

func ForCreation(result *model.SlotCreationResult, at time.Time) Event {
	return Event{
		Type:       SlotsCreated,
		Date:       result.Date,
		Created:    result.Created,
		Skipped:    result.Skipped,
		OccurredAt: at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event. Used when KAFKA_ENABLED is false.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
