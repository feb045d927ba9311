package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/generator"
	"slotify/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ SlotRepository = (*MemorySlotRepository)(nil)

func seed(t *testing.T, repo *MemorySlotRepository, date, start, end string, interval int) []*model.Slot {
	t.Helper()
	ctx := context.Background()

	candidates := generator.Generate(date, start, end, interval)
	inserted, skipped, err := repo.InsertNew(ctx, candidates)
	require.NoError(t, err)
	require.Equal(t, len(candidates), inserted)
	require.Zero(t, skipped)

	slots, err := repo.FindAvailable(ctx, date)
	require.NoError(t, err)
	return slots
}

func TestInsertNew_SkipsExisting(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()

	seed(t, repo, "2030-01-01", "09:00", "10:00", 30)

	candidates := generator.Generate("2030-01-01", "09:00", "11:00", 30)
	inserted, skipped, err := repo.InsertNew(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 4, repo.Count())
}

func TestInsertNew_AllDuplicate(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()

	seed(t, repo, "2030-01-01", "09:00", "12:00", 60)

	inserted, skipped, err := repo.InsertNew(ctx, generator.Generate("2030-01-01", "09:00", "12:00", 60))
	assert.ErrorIs(t, err, slotserrors.ErrAllDuplicate)
	assert.Zero(t, inserted)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, 3, repo.Count())
}

func TestInsertNew_ConcurrentIdenticalBatches(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	candidates := generator.Generate("2030-01-01", "08:00", "18:00", 15)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, _, err := repo.InsertNew(ctx, candidates)
			if err != nil && !errors.Is(err, slotserrors.ErrAllDuplicate) && !errors.Is(err, slotserrors.ErrDuplicate) {
				t.Errorf("worker %d: unexpected error: %v", i, err)
			}
			results[i] = inserted
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	assert.Equal(t, len(candidates), total)
	assert.Equal(t, len(candidates), repo.Count())
}

func TestConditionalReserve_ExactlyOneWinner(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	slot := seed(t, repo, "2030-01-01", "09:00", "09:30", 30)[0]

	const users = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	conflicts := 0

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := repo.ConditionalReserve(ctx, slot.ID, user, time.Time{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, user)
			case errors.Is(err, slotserrors.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, users-1, conflicts)

	stored, err := repo.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBooked)
	require.NotNil(t, stored.BookedBy)
	assert.Equal(t, winners[0], *stored.BookedBy)
}

func TestConditionalReserve_NotBefore(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	slots := seed(t, repo, "2030-01-01", "09:00", "10:00", 30)

	loc := time.FixedZone("IST", 5*3600+1800)
	notBefore := time.Date(2030, 1, 1, 9, 15, 0, 0, loc)

	_, err := repo.ConditionalReserve(ctx, slots[0].ID, "alice", notBefore)
	assert.ErrorIs(t, err, slotserrors.ErrConflict)

	booked, err := repo.ConditionalReserve(ctx, slots[1].ID, "alice", notBefore)
	require.NoError(t, err)
	assert.Equal(t, "09:30", booked.StartTime)
}

func TestConditionalReserve_UnknownID(t *testing.T) {
	repo := NewMemorySlotRepository()

	_, err := repo.ConditionalReserve(context.Background(), "does-not-exist", "alice", time.Time{})
	assert.ErrorIs(t, err, slotserrors.ErrConflict)
}

func TestConditionalRelease(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	slot := seed(t, repo, "2030-01-01", "09:00", "09:30", 30)[0]

	_, err := repo.ConditionalReserve(ctx, slot.ID, "alice", time.Time{})
	require.NoError(t, err)

	_, err = repo.ConditionalRelease(ctx, slot.ID, "bob")
	assert.ErrorIs(t, err, slotserrors.ErrConflict)

	stored, err := repo.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.OwnedBy("alice"))

	released, err := repo.ConditionalRelease(ctx, slot.ID, "alice")
	require.NoError(t, err)
	assert.False(t, released.IsBooked)
	assert.Nil(t, released.BookedBy)

	_, err = repo.ConditionalRelease(ctx, slot.ID, "alice")
	assert.ErrorIs(t, err, slotserrors.ErrConflict)
}

func TestConditionalRelease_ConcurrentOwnerCancels(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	slot := seed(t, repo, "2030-01-01", "09:00", "09:30", 30)[0]

	_, err := repo.ConditionalReserve(ctx, slot.ID, "alice", time.Time{})
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	released := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConditionalRelease(ctx, slot.ID, "alice"); err == nil {
				mu.Lock()
				released++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, released)
}

func TestDeleteUnbooked(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	slots := seed(t, repo, "2030-01-01", "09:00", "10:00", 30)

	_, err := repo.ConditionalReserve(ctx, slots[0].ID, "alice", time.Time{})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteUnbooked(ctx, slots[0].ID), slotserrors.ErrAlreadyBooked)
	_, err = repo.FindByID(ctx, slots[0].ID)
	assert.NoError(t, err)

	assert.NoError(t, repo.DeleteUnbooked(ctx, slots[1].ID))
	assert.ErrorIs(t, repo.DeleteUnbooked(ctx, slots[1].ID), slotserrors.ErrNotFound)
	assert.Equal(t, 1, repo.Count())

	// The freed interval can be created again.
	inserted, _, err := repo.InsertNew(ctx, generator.Generate("2030-01-01", "09:30", "10:00", 30))
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestFindAllBooked_AttachesUsers(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()
	repo.PutUser(model.UserSummary{ID: "alice", Name: "Alice", Email: "alice@example.com"})

	day1 := seed(t, repo, "2030-01-02", "09:00", "10:00", 60)
	day2 := seed(t, repo, "2030-01-01", "09:00", "10:00", 60)

	_, err := repo.ConditionalReserve(ctx, day1[0].ID, "alice", time.Time{})
	require.NoError(t, err)
	_, err = repo.ConditionalReserve(ctx, day2[0].ID, "ghost", time.Time{})
	require.NoError(t, err)

	all, err := repo.FindAllBooked(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2030-01-01", all[0].Date)
	assert.Nil(t, all[0].User)
	require.NotNil(t, all[1].User)
	assert.Equal(t, "Alice", all[1].User.Name)

	one, err := repo.FindAllBooked(ctx, "2030-01-02")
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestFindBookedByUser_Ordered(t *testing.T) {
	repo := NewMemorySlotRepository()
	ctx := context.Background()

	later := seed(t, repo, "2030-01-02", "09:00", "11:00", 60)
	earlier := seed(t, repo, "2030-01-01", "09:00", "11:00", 60)

	for _, s := range []*model.Slot{later[1], earlier[1], later[0]} {
		_, err := repo.ConditionalReserve(ctx, s.ID, "alice", time.Time{})
		require.NoError(t, err)
	}

	mine, err := repo.FindBookedByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "2030-01-01", mine[0].Date)
	assert.Equal(t, "09:00", mine[1].StartTime)
	assert.Equal(t, "10:00", mine[2].StartTime)

	available, err := repo.FindAvailable(ctx, "2030-01-01")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "09:00", available[0].StartTime)
}

func TestRemainingCandidates(t *testing.T) {
	candidates := []model.Slot{
		{Date: "2030-01-01", StartTime: "09:00", EndTime: "09:30"},
		{Date: "2030-01-01", StartTime: "09:00", EndTime: "09:30"},
		{Date: "2030-01-01", StartTime: "09:30", EndTime: "10:00"},
	}
	taken := map[dateStart]bool{{date: "2030-01-01", start: "09:30"}: true}

	fresh := remainingCandidates(candidates, taken)
	require.Len(t, fresh, 1)
	assert.Equal(t, "09:00", fresh[0].StartTime)
}
