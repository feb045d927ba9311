// Package policy decides whether slot input is acceptable and whether a slot
// may be booked, cancelled or listed at a given moment.
package policy

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/logger"
	"slotify/pkg/model"

	"github.com/go-playground/validator/v10"
)

// Validation tags checked one at a time so the first failing rule decides
// the reason code.
const (
	tagDateFormat   = "slot_date"
	tagCalendarDate = "datetime=" + timewindow.DateLayout
	tagTimeFormat   = "slot_time"
)

const (
	DefaultBookingLead        = 30 * time.Minute
	DefaultCancelLead         = 24 * time.Hour
	DefaultMaxIntervalMinutes = 120
)

type Config struct {
	BookingLead        time.Duration
	CancelLead         time.Duration
	MaxIntervalMinutes int
	Location           *time.Location
}

type Policy struct {
	cfg      Config
	validate *validator.Validate
}

func New(cfg Config, log *logger.Logger) *Policy {
	if cfg.BookingLead <= 0 {
		cfg.BookingLead = DefaultBookingLead
	}
	if cfg.CancelLead <= 0 {
		cfg.CancelLead = DefaultCancelLead
	}
	if cfg.MaxIntervalMinutes <= 0 {
		cfg.MaxIntervalMinutes = DefaultMaxIntervalMinutes
	}
	if cfg.Location == nil {
		loc, err := timewindow.LoadZone(timewindow.DefaultZone)
		if err != nil {
			log.Fatal("Failed to load default operating zone", "error", err)
		}
		cfg.Location = loc
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation(tagDateFormat, validateDateFormat); err != nil {
		log.Fatal("Failed to register 'slot_date' validator", "error", err)
	}
	if err := v.RegisterValidation(tagTimeFormat, validateTimeFormat); err != nil {
		log.Fatal("Failed to register 'slot_time' validator", "error", err)
	}

	log.Info("Slot policy initialized",
		"booking_lead", cfg.BookingLead,
		"cancel_lead", cfg.CancelLead,
		"max_interval_min", cfg.MaxIntervalMinutes,
		"zone", cfg.Location.String(),
	)

	return &Policy{
		cfg:      cfg,
		validate: v,
	}
}

func (p *Policy) Location() *time.Location {
	return p.cfg.Location
}

func (p *Policy) BookingLead() time.Duration {
	return p.cfg.BookingLead
}

// ValidateSlotCreation runs the creation checks in order and stops at the
// first failure. On success it returns the parsed interval in minutes.
func (p *Policy) ValidateSlotCreation(input *model.SlotCreationInput, now time.Time) (int, error) {
	if err := p.validate.Struct(input); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return 0, slotserrors.AllFieldsRequired.Err()
		}
		return 0, slotserrors.AllFieldsRequired.Wrap(err)
	}
	if intervalMissing(input.IntervalMinutes) {
		return 0, slotserrors.AllFieldsRequired.Err()
	}

	if err := p.checkDate(input.Date, now); err != nil {
		return 0, err
	}

	if !p.satisfies(input.StartTime, tagTimeFormat) || !p.satisfies(input.EndTime, tagTimeFormat) {
		return 0, slotserrors.InvalidTimeFormat.Err()
	}
	if timewindow.ToMinutes(input.StartTime) >= timewindow.ToMinutes(input.EndTime) {
		return 0, slotserrors.InvalidTimeRange.Err()
	}

	interval, ok := parseInterval(input.IntervalMinutes)
	if !ok {
		return 0, slotserrors.InvalidInterval.Err()
	}
	if interval > p.cfg.MaxIntervalMinutes {
		return 0, slotserrors.IntervalTooLarge.Err().WithDetails(map[string]any{
			"max": p.cfg.MaxIntervalMinutes,
		})
	}

	return interval, nil
}

// ValidateSlotDate applies the date checks used by read paths.
func (p *Policy) ValidateSlotDate(date string, now time.Time) error {
	if date == "" {
		return slotserrors.DateRequired.Err()
	}
	return p.checkDate(date, now)
}

// ValidateDateFilter checks an optional date filter for shape only; past
// dates are allowed.
func (p *Policy) ValidateDateFilter(date string) error {
	if date == "" {
		return nil
	}
	if !p.satisfies(date, tagDateFormat) {
		return slotserrors.InvalidDateFormat.Err()
	}
	if !p.satisfies(date, tagCalendarDate) {
		return slotserrors.InvalidDate.Err()
	}
	return nil
}

func (p *Policy) checkDate(date string, now time.Time) error {
	if err := p.ValidateDateFilter(date); err != nil {
		return err
	}
	if date < p.Today(now) {
		return slotserrors.PastDate.Err()
	}
	return nil
}

// Today returns now's date in the operating zone.
func (p *Policy) Today(now time.Time) string {
	return now.In(p.cfg.Location).Format(timewindow.DateLayout)
}

// IsAtLeastNMinutesAhead reports whether date+startTime is n minutes or more
// after now. Unparseable slots are never ahead.
func (p *Policy) IsAtLeastNMinutesAhead(date, startTime string, now time.Time, n int) bool {
	start, err := timewindow.Instant(date, startTime, p.cfg.Location)
	if err != nil {
		return false
	}
	return !start.Before(now.Add(time.Duration(n) * time.Minute))
}

func (p *Policy) startsAfter(slot *model.Slot, now time.Time, lead time.Duration) bool {
	start, err := timewindow.Instant(slot.Date, slot.StartTime, p.cfg.Location)
	if err != nil {
		return false
	}
	return !start.Before(now.Add(lead))
}

// CanBook requires the slot to start at least the booking lead after now.
func (p *Policy) CanBook(slot *model.Slot, now time.Time) error {
	if !p.startsAfter(slot, now, p.cfg.BookingLead) {
		return slotserrors.BookingWindowClosed.Err()
	}
	return nil
}

// CanCancel allows the owner to release a slot that starts at least the
// cancel lead after now. A caller who does not own the slot gets no rule
// detail so the slot's state is not revealed.
func (p *Policy) CanCancel(slot *model.Slot, userID string, now time.Time) error {
	if slot == nil || !slot.OwnedBy(userID) {
		return slotserrors.CancelNotAllowed.Err()
	}
	start, err := timewindow.Instant(slot.Date, slot.StartTime, p.cfg.Location)
	if err != nil {
		return slotserrors.CancelNotAllowed.Err()
	}
	if start.Before(now) {
		return slotserrors.CancelNotAllowed.WithRule(slotserrors.RulePastSlot)
	}
	if start.Before(now.Add(p.cfg.CancelLead)) {
		return slotserrors.CancelNotAllowed.WithRule(slotserrors.RuleCancelWindowClosed)
	}
	return nil
}

// ReserveNotBefore is the earliest slot start a reservation made at now may
// claim.
func (p *Policy) ReserveNotBefore(now time.Time) time.Time {
	return now.Add(p.cfg.BookingLead).In(p.cfg.Location)
}

// FilterBookable drops today's slots that start inside the booking lead.
// Slots on other dates are returned as they are.
func (p *Policy) FilterBookable(date string, slots []*model.Slot, now time.Time) []*model.Slot {
	if date != p.Today(now) {
		return slots
	}
	visible := make([]*model.Slot, 0, len(slots))
	for _, s := range slots {
		if p.startsAfter(s, now, p.cfg.BookingLead) {
			visible = append(visible, s)
		}
	}
	return visible
}

func (p *Policy) satisfies(value, tag string) bool {
	return p.validate.Var(value, tag) == nil
}

func validateDateFormat(fl validator.FieldLevel) bool {
	return timewindow.IsValidDateFormat(fl.Field().String())
}

func validateTimeFormat(fl validator.FieldLevel) bool {
	return timewindow.IsValidTime(fl.Field().String())
}

func intervalMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case json.Number:
		return t == ""
	}
	return false
}

// parseInterval accepts JSON numbers and numeric strings holding a positive
// whole number of minutes. Booleans, objects and arrays are never intervals.
func parseInterval(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
