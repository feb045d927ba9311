package service

import (
	"context"
	"errors"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/events"
	"slotify/internal/slots/policy"
	"slotify/internal/slots/repository"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/config"
	apperrors "slotify/pkg/errors"
	"slotify/pkg/model"
	otelx "slotify/pkg/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BookingService changes the owner of single slots. Both mutations end in a
// conditional update, so concurrent callers racing for one slot see exactly
// one success.
type BookingService interface {
	Reserve(ctx context.Context, slotID string, userID string) (*model.Slot, error)
	Cancel(ctx context.Context, slotID string, userID string) (*model.Slot, error)
	MyBookings(ctx context.Context, userID string) ([]*model.Slot, error)
}

type bookingService struct {
	repo      repository.SlotRepository
	policy    *policy.Policy
	publisher events.Publisher
	clock     timewindow.Clock
	cfg       *config.Config
}

func NewBookingService(
	repo repository.SlotRepository,
	policy *policy.Policy,
	publisher events.Publisher,
	clock timewindow.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
	}
}

func (s *bookingService) Reserve(ctx context.Context, slotID string, userID string) (slot *model.Slot, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Reserve",
		trace.WithAttributes(attribute.String("slot.id", slotID)))
	defer func() { otelx.EndSpan(span, err) }()

	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if slotID == "" {
		return nil, slotserrors.Conflict.Err()
	}

	now := s.clock.Now()
	existing, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			s.cfg.Log.Info("Reserve on unknown slot", "slot_id", slotID, "user_id", userID)
			return nil, slotserrors.Conflict.Err()
		}
		s.cfg.Log.Error("Failed to read slot for reservation", "slot_id", slotID, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}
	if existing.IsBooked {
		s.cfg.Log.Info("Reserve on booked slot", "slot_id", slotID, "user_id", userID)
		return nil, slotserrors.Conflict.Err()
	}
	if err := s.policy.CanBook(existing, now); err != nil {
		s.cfg.Log.Warn("Reservation outside booking window",
			"slot_id", slotID,
			"user_id", userID,
			"date", existing.Date,
			"start_time", existing.StartTime,
		)
		return nil, err
	}

	slot, err = s.repo.ConditionalReserve(ctx, slotID, userID, s.policy.ReserveNotBefore(now))
	if err != nil {
		if errors.Is(err, slotserrors.ErrConflict) {
			s.cfg.Log.Info("Reservation lost race", "slot_id", slotID, "user_id", userID)
			return nil, slotserrors.Conflict.Err()
		}
		s.cfg.Log.Error("Failed to reserve slot", "slot_id", slotID, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}

	s.cfg.Log.Info("Slot booked successfully",
		"slot_id", slot.ID,
		"user_id", userID,
		"date", slot.Date,
		"start_time", slot.StartTime,
	)
	publish(ctx, s.cfg.Log, s.publisher, events.ForSlot(events.SlotBooked, slot, userID, now))
	return slot, nil
}

func (s *bookingService) Cancel(ctx context.Context, slotID string, userID string) (slot *model.Slot, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Cancel",
		trace.WithAttributes(attribute.String("slot.id", slotID)))
	defer func() { otelx.EndSpan(span, err) }()

	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if slotID == "" {
		return nil, slotserrors.CancelNotAllowed.Err()
	}

	now := s.clock.Now()
	existing, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			s.cfg.Log.Info("Cancel on unknown slot", "slot_id", slotID, "user_id", userID)
			return nil, slotserrors.CancelNotAllowed.Err()
		}
		s.cfg.Log.Error("Failed to read slot for cancellation", "slot_id", slotID, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}
	if err := s.policy.CanCancel(existing, userID, now); err != nil {
		s.cfg.Log.Warn("Cancellation not allowed", "slot_id", slotID, "user_id", userID, "error", err)
		return nil, err
	}

	slot, err = s.repo.ConditionalRelease(ctx, slotID, userID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrConflict) {
			s.cfg.Log.Info("Cancellation lost race", "slot_id", slotID, "user_id", userID)
			return nil, slotserrors.CancelNotAllowed.Err()
		}
		s.cfg.Log.Error("Failed to cancel booking", "slot_id", slotID, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}

	s.cfg.Log.Info("Booking cancelled successfully", "slot_id", slot.ID, "user_id", userID)
	publish(ctx, s.cfg.Log, s.publisher, events.ForSlot(events.SlotCancelled, slot, userID, now))
	return slot, nil
}

func (s *bookingService) MyBookings(ctx context.Context, userID string) (slots []*model.Slot, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.MyBookings")
	defer func() { otelx.EndSpan(span, err) }()

	if userID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	slots, err = s.repo.FindBookedByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}
	return slots, nil
}
