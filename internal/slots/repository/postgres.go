package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/config"
	"slotify/pkg/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, date, start_time, end_time, is_booked, booked_by, created_at, updated_at`

type postgresSlotRepository struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

func NewPostgresSlotRepository(cfg *config.Config) SlotRepository {
	return &postgresSlotRepository{
		cfg:  cfg,
		pool: cfg.Client.Postgres,
	}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	var id uuid.UUID
	err := row.Scan(
		&id,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsBooked,
		&slot.BookedBy,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.ID = id.String()
	return &slot, nil
}

func (r *postgresSlotRepository) InsertNew(ctx context.Context, candidates []model.Slot) (int, int, error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	taken, err := r.takenStarts(ctx, candidates)
	if err != nil {
		return 0, 0, err
	}

	fresh := remainingCandidates(candidates, taken)
	if len(fresh) == 0 {
		return 0, len(candidates), slotserrors.ErrAllDuplicate
	}

	query := `
		INSERT INTO slots (id, date, start_time, end_time, is_booked, booked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, NULL, $5, $5)
		ON CONFLICT (date, start_time, end_time) DO NOTHING
	`

	ts := now()
	batch := &pgx.Batch{}
	for _, c := range fresh {
		batch.Queue(query, uuid.New(), c.Date, c.StartTime, c.EndTime, ts)
	}

	results := r.pool.SendBatch(ctx, batch)
	inserted := 0
	for range fresh {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, 0, fmt.Errorf("failed to insert slots: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, 0, fmt.Errorf("failed to insert slots: %w", err)
	}

	skipped := len(candidates) - inserted
	if inserted == 0 {
		return 0, skipped, slotserrors.ErrDuplicate
	}
	return inserted, skipped, nil
}

func (r *postgresSlotRepository) takenStarts(ctx context.Context, candidates []model.Slot) (map[dateStart]bool, error) {
	dates := make([]string, len(candidates))
	starts := make([]string, len(candidates))
	for i, c := range candidates {
		dates[i] = c.Date
		starts[i] = c.StartTime
	}

	query := `
		SELECT s.date, s.start_time
		FROM slots s
		JOIN unnest($1::text[], $2::text[]) AS c(date, start_time)
		  ON s.date = c.date AND s.start_time = c.start_time
	`

	rows, err := r.pool.Query(ctx, query, dates, starts)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing slots: %w", err)
	}
	defer rows.Close()

	taken := make(map[dateStart]bool)
	for rows.Next() {
		var k dateStart
		if err := rows.Scan(&k.date, &k.start); err != nil {
			return nil, fmt.Errorf("failed to scan existing slot: %w", err)
		}
		taken[k] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing slots: %w", err)
	}
	return taken, nil
}

func (r *postgresSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	slotID, err := uuid.Parse(id)
	if err != nil {
		return nil, slotserrors.ErrNotFound
	}

	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	slot, err := scanSlot(r.pool.QueryRow(ctx, query, slotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return slot, nil
}

func (r *postgresSlotRepository) FindAvailable(ctx context.Context, date string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE date = $1 AND is_booked = false
		ORDER BY start_time
	`
	return r.query(ctx, query, date)
}

func (r *postgresSlotRepository) FindBookedByUser(ctx context.Context, userID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE is_booked = true AND booked_by = $1
		ORDER BY date, start_time
	`
	return r.query(ctx, query, userID)
}

func (r *postgresSlotRepository) query(ctx context.Context, query string, args ...any) ([]*model.Slot, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer rows.Close()

	slots := []*model.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read slots: %w", err)
	}
	return slots, nil
}

func (r *postgresSlotRepository) FindAllBooked(ctx context.Context, date string) ([]*model.BookedSlot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := `
		SELECT s.id, s.date, s.start_time, s.end_time, s.is_booked, s.booked_by, s.created_at, s.updated_at,
		       u.id, u.name, u.email
		FROM slots s
		LEFT JOIN users u ON u.id = s.booked_by
		WHERE s.is_booked = true AND ($1 = '' OR s.date = $1)
		ORDER BY s.date, s.start_time
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to find booked slots: %w", err)
	}
	defer rows.Close()

	booked := []*model.BookedSlot{}
	for rows.Next() {
		var b model.BookedSlot
		var id uuid.UUID
		var userID, name, email *string
		err := rows.Scan(
			&id,
			&b.Date,
			&b.StartTime,
			&b.EndTime,
			&b.IsBooked,
			&b.BookedBy,
			&b.CreatedAt,
			&b.UpdatedAt,
			&userID,
			&name,
			&email,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		b.ID = id.String()
		if userID != nil {
			b.User = &model.UserSummary{ID: *userID, Name: deref(name), Email: deref(email)}
		}
		booked = append(booked, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booked slots: %w", err)
	}
	return booked, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *postgresSlotRepository) DeleteUnbooked(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID, err := uuid.Parse(id)
	if err != nil {
		return slotserrors.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1 AND is_booked = false`, slotID)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if exists {
		return slotserrors.ErrAlreadyBooked
	}
	return slotserrors.ErrNotFound
}

func (r *postgresSlotRepository) ConditionalReserve(ctx context.Context, id string, userID string, notBefore time.Time) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID, err := uuid.Parse(id)
	if err != nil {
		return nil, slotserrors.ErrConflict
	}

	var date, clock string
	if !notBefore.IsZero() {
		date, clock = timewindow.SplitCeil(notBefore)
	}

	query := `
		UPDATE slots
		SET is_booked = true, booked_by = $2, updated_at = $3
		WHERE id = $1
		  AND is_booked = false
		  AND ($4 = '' OR date > $4 OR (date = $4 AND start_time >= $5))
		RETURNING ` + slotColumns

	return r.updateReturning(ctx, query, slotID, userID, now(), date, clock)
}

func (r *postgresSlotRepository) ConditionalRelease(ctx context.Context, id string, userID string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID, err := uuid.Parse(id)
	if err != nil {
		return nil, slotserrors.ErrConflict
	}

	query := `
		UPDATE slots
		SET is_booked = false, booked_by = NULL, updated_at = $3
		WHERE id = $1 AND is_booked = true AND booked_by = $2
		RETURNING ` + slotColumns

	return r.updateReturning(ctx, query, slotID, userID, now())
}

func (r *postgresSlotRepository) updateReturning(ctx context.Context, query string, args ...any) (*model.Slot, error) {
	slot, err := scanSlot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slotserrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to update slot: %w", err)
	}
	return slot, nil
}

func (r *postgresSlotRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.pool.Ping(ctx)
}
