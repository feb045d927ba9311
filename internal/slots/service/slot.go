package service

import (
	"context"
	"errors"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/events"
	"slotify/internal/slots/generator"
	"slotify/internal/slots/policy"
	"slotify/internal/slots/repository"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/config"
	"slotify/pkg/model"
	otelx "slotify/pkg/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SlotService interface {
	CreateSlots(ctx context.Context, input *model.SlotCreationInput) (*model.SlotCreationResult, error)
	ListAvailable(ctx context.Context, date string) ([]*model.Slot, error)
	ListBooked(ctx context.Context, date string) ([]*model.BookedSlot, error)
	DeleteSlot(ctx context.Context, id string) error
}

type slotService struct {
	repo      repository.SlotRepository
	policy    *policy.Policy
	publisher events.Publisher
	clock     timewindow.Clock
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	policy *policy.Policy,
	publisher events.Publisher,
	clock timewindow.Clock,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
	}
}

func (s *slotService) CreateSlots(ctx context.Context, input *model.SlotCreationInput) (result *model.SlotCreationResult, err error) {
	ctx, span := tracer.Start(ctx, "SlotService.CreateSlots",
		trace.WithAttributes(attribute.String("slot.date", input.Date)))
	defer func() { otelx.EndSpan(span, err) }()

	interval, err := s.policy.ValidateSlotCreation(input, s.clock.Now())
	if err != nil {
		s.cfg.Log.Warn("Slot creation validation failed", "date", input.Date, "error", err)
		return nil, err
	}

	candidates := generator.Generate(input.Date, input.StartTime, input.EndTime, interval)
	if len(candidates) == 0 {
		s.cfg.Log.Warn("Slot creation produced no slots",
			"date", input.Date,
			"start_time", input.StartTime,
			"end_time", input.EndTime,
			"interval_minutes", interval,
		)
		return nil, slotserrors.NoSlots.Err()
	}

	inserted, skipped, err := s.repo.InsertNew(ctx, candidates)
	result = &model.SlotCreationResult{
		Date:           input.Date,
		TotalRequested: len(candidates),
		Created:        inserted,
		Skipped:        skipped,
	}
	details := map[string]any{
		"totalRequested": result.TotalRequested,
		"created":        result.Created,
		"skipped":        result.Skipped,
	}

	switch {
	case errors.Is(err, slotserrors.ErrAllDuplicate):
		s.cfg.Log.Info("All requested slots already exist", "date", input.Date, "skipped", skipped)
		return nil, slotserrors.AllDuplicate.Err().WithDetails(details)
	case errors.Is(err, slotserrors.ErrDuplicate):
		s.cfg.Log.Info("Slot insert rejected by unique index", "date", input.Date, "skipped", skipped)
		return nil, slotserrors.Duplicate.Err().WithDetails(details)
	case err != nil:
		s.cfg.Log.Error("Failed to create slots", "date", input.Date, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}

	s.cfg.Log.Info("Slots created successfully",
		"date", input.Date,
		"created", inserted,
		"skipped", skipped,
		"total_requested", len(candidates),
	)
	publish(ctx, s.cfg.Log, s.publisher, events.ForCreation(result, s.clock.Now()))
	return result, nil
}

func (s *slotService) ListAvailable(ctx context.Context, date string) (slots []*model.Slot, err error) {
	ctx, span := tracer.Start(ctx, "SlotService.ListAvailable",
		trace.WithAttributes(attribute.String("slot.date", date)))
	defer func() { otelx.EndSpan(span, err) }()

	now := s.clock.Now()
	if err := s.policy.ValidateSlotDate(date, now); err != nil {
		s.cfg.Log.Warn("Invalid date for slot listing", "date", date, "error", err)
		return nil, err
	}

	slots, err = s.repo.FindAvailable(ctx, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list available slots", "date", date, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}

	return s.policy.FilterBookable(date, slots, now), nil
}

func (s *slotService) ListBooked(ctx context.Context, date string) (booked []*model.BookedSlot, err error) {
	ctx, span := tracer.Start(ctx, "SlotService.ListBooked")
	defer func() { otelx.EndSpan(span, err) }()

	if err := s.policy.ValidateDateFilter(date); err != nil {
		s.cfg.Log.Warn("Invalid date filter for booked slots", "date", date, "error", err)
		return nil, err
	}

	booked, err = s.repo.FindAllBooked(ctx, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list booked slots", "date", date, "error", err)
		return nil, slotserrors.StoreFailure.Wrap(err)
	}
	return booked, nil
}

func (s *slotService) DeleteSlot(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "SlotService.DeleteSlot",
		trace.WithAttributes(attribute.String("slot.id", id)))
	defer func() { otelx.EndSpan(span, err) }()

	if id == "" {
		return slotserrors.NotFound.Err()
	}

	err = s.repo.DeleteUnbooked(ctx, id)
	switch {
	case errors.Is(err, slotserrors.ErrNotFound):
		s.cfg.Log.Info("Slot to delete not found", "id", id)
		return slotserrors.NotFound.Err()
	case errors.Is(err, slotserrors.ErrAlreadyBooked):
		s.cfg.Log.Info("Refused to delete booked slot", "id", id)
		return slotserrors.AlreadyBooked.Err()
	case err != nil:
		s.cfg.Log.Error("Failed to delete slot", "id", id, "error", err)
		return slotserrors.StoreFailure.Wrap(err)
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	publish(ctx, s.cfg.Log, s.publisher, events.Event{
		Type:       events.SlotDeleted,
		SlotID:     id,
		OccurredAt: s.clock.Now().UTC(),
	})
	return nil
}
