package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/model"

	"github.com/google/uuid"
)

// MemorySlotRepository keeps slots in process. Its mutex stands in for the
// single-document atomicity of the database drivers, so each conditional
// update is one critical section.
type MemorySlotRepository struct {
	mu    sync.Mutex
	slots map[string]*model.Slot
	keys  map[model.SlotKey]string
	users map[string]model.UserSummary
}

func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{
		slots: make(map[string]*model.Slot),
		keys:  make(map[model.SlotKey]string),
		users: make(map[string]model.UserSummary),
	}
}

// PutUser registers an owner identity used to enrich booked listings.
func (r *MemorySlotRepository) PutUser(user model.UserSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *MemorySlotRepository) InsertNew(ctx context.Context, candidates []model.Slot) (int, int, error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	taken := make(map[dateStart]bool)
	for _, s := range r.slots {
		taken[dateStart{date: s.Date, start: s.StartTime}] = true
	}
	r.mu.Unlock()

	fresh := remainingCandidates(candidates, taken)
	if len(fresh) == 0 {
		return 0, len(candidates), slotserrors.ErrAllDuplicate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := now()
	inserted := 0
	for _, c := range fresh {
		key := c.Key()
		if _, exists := r.keys[key]; exists {
			continue
		}
		slot := &model.Slot{
			ID:        uuid.NewString(),
			Date:      c.Date,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		r.slots[slot.ID] = slot
		r.keys[key] = slot.ID
		inserted++
	}

	skipped := len(candidates) - inserted
	if inserted == 0 {
		return 0, skipped, slotserrors.ErrDuplicate
	}
	return inserted, skipped, nil
}

func (r *MemorySlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	return cloneSlot(slot), nil
}

func (r *MemorySlotRepository) FindAvailable(ctx context.Context, date string) ([]*model.Slot, error) {
	return r.filter(func(s *model.Slot) bool {
		return s.Date == date && !s.IsBooked
	}), nil
}

func (r *MemorySlotRepository) FindBookedByUser(ctx context.Context, userID string) ([]*model.Slot, error) {
	return r.filter(func(s *model.Slot) bool {
		return s.OwnedBy(userID)
	}), nil
}

func (r *MemorySlotRepository) FindAllBooked(ctx context.Context, date string) ([]*model.BookedSlot, error) {
	slots := r.filter(func(s *model.Slot) bool {
		return s.IsBooked && (date == "" || s.Date == date)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	booked := make([]*model.BookedSlot, 0, len(slots))
	for _, s := range slots {
		b := &model.BookedSlot{Slot: *s}
		if s.BookedBy != nil {
			if u, ok := r.users[*s.BookedBy]; ok {
				b.User = &u
			}
		}
		booked = append(booked, b)
	}
	return booked, nil
}

// filter returns copies of the matching slots ordered by (date, startTime).
func (r *MemorySlotRepository) filter(match func(*model.Slot) bool) []*model.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*model.Slot{}
	for _, s := range r.slots {
		if match(s) {
			out = append(out, cloneSlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r *MemorySlotRepository) DeleteUnbooked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return slotserrors.ErrNotFound
	}
	if slot.IsBooked {
		return slotserrors.ErrAlreadyBooked
	}
	delete(r.slots, id)
	delete(r.keys, slot.Key())
	return nil
}

func (r *MemorySlotRepository) ConditionalReserve(ctx context.Context, id string, userID string, notBefore time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || slot.IsBooked {
		return nil, slotserrors.ErrConflict
	}
	if !notBefore.IsZero() {
		date, clock := timewindow.SplitCeil(notBefore)
		if slot.Date < date || (slot.Date == date && slot.StartTime < clock) {
			return nil, slotserrors.ErrConflict
		}
	}

	owner := userID
	slot.IsBooked = true
	slot.BookedBy = &owner
	slot.UpdatedAt = now()
	return cloneSlot(slot), nil
}

func (r *MemorySlotRepository) ConditionalRelease(ctx context.Context, id string, userID string) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || !slot.OwnedBy(userID) {
		return nil, slotserrors.ErrConflict
	}

	slot.IsBooked = false
	slot.BookedBy = nil
	slot.UpdatedAt = now()
	return cloneSlot(slot), nil
}

func (r *MemorySlotRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of stored slots.
func (r *MemorySlotRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func cloneSlot(s *model.Slot) *model.Slot {
	cp := *s
	if s.BookedBy != nil {
		owner := *s.BookedBy
		cp.BookedBy = &owner
	}
	return &cp
}
