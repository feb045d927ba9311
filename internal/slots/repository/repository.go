package repository

import (
	"context"
	"time"

	"slotify/pkg/model"
)

const (
	CollectionName      = "Slots"
	UsersCollectionName = "users"
)

// SlotRepository is the persistence boundary for slots. Every booking state
// change goes through ConditionalReserve or ConditionalRelease, each a single
// atomic conditional update in the backing store.
type SlotRepository interface {
	// InsertNew stores the candidates that do not exist yet. Candidates whose
	// (date, startTime) is already taken are skipped, and so are the ones the
	// unique index rejects during the write.
	InsertNew(ctx context.Context, candidates []model.Slot) (inserted int, skipped int, err error)
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindAvailable(ctx context.Context, date string) ([]*model.Slot, error)
	FindBookedByUser(ctx context.Context, userID string) ([]*model.Slot, error)
	// FindAllBooked lists booked slots, optionally for one date, with the
	// owner's identity attached when the users store knows it.
	FindAllBooked(ctx context.Context, date string) ([]*model.BookedSlot, error)
	DeleteUnbooked(ctx context.Context, id string) error
	// ConditionalReserve books the slot for userID only if it is unbooked and
	// starts at or after notBefore. A zero notBefore disables the time check.
	ConditionalReserve(ctx context.Context, id string, userID string, notBefore time.Time) (*model.Slot, error)
	// ConditionalRelease unbooks the slot only if userID currently owns it.
	ConditionalRelease(ctx context.Context, id string, userID string) (*model.Slot, error)
	Ping(ctx context.Context) error
}

// withTimeout bounds ctx by timeout without extending an earlier deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type dateStart struct {
	date  string
	start string
}

// remainingCandidates drops candidates whose (date, startTime) is taken,
// including repeats within the batch itself.
func remainingCandidates(candidates []model.Slot, taken map[dateStart]bool) []model.Slot {
	seen := make(map[dateStart]bool, len(taken)+len(candidates))
	for k := range taken {
		seen[k] = true
	}

	fresh := make([]model.Slot, 0, len(candidates))
	for _, c := range candidates {
		k := dateStart{date: c.Date, start: c.StartTime}
		if seen[k] {
			continue
		}
		seen[k] = true
		fresh = append(fresh, c)
	}
	return fresh
}
