package errors

import (
	"errors"
	"net/http"

	apperrors "slotify/pkg/errors"
)

// Store-level sentinels. Drivers return these; the services translate them
// into Reasons.
var (
	ErrNotFound = errors.New("slot not found")

	ErrConflict = errors.New("slot precondition failed")

	ErrAlreadyBooked = errors.New("slot is booked")

	ErrAllDuplicate = errors.New("all candidate slots already exist")

	ErrDuplicate = errors.New("duplicate slot")
)

type Kind int

const (
	KindInput Kind = iota
	KindConflict
	KindNotFound
	KindPolicy
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Reason is the closed set of outcomes a slot operation can fail with.
type Reason int

const (
	AllFieldsRequired Reason = iota
	InvalidDateFormat
	InvalidDate
	PastDate
	InvalidTimeFormat
	InvalidTimeRange
	InvalidInterval
	IntervalTooLarge
	DateRequired
	NoSlots
	AllDuplicate
	Duplicate
	Conflict
	AlreadyBooked
	NotFound
	BookingWindowClosed
	CancelNotAllowed
	StoreFailure

	reasonCount
)

// Rule codes attached to CancelNotAllowed details.
const (
	RulePastSlot           = "PAST_SLOT"
	RuleCancelWindowClosed = "CANCEL_WINDOW_CLOSED"
)

type entry struct {
	code    string
	message string
	status  int
	kind    Kind
}

var table = [reasonCount]entry{
	AllFieldsRequired:   {"ALL_FIELDS_REQUIRED", "date, startTime, endTime and intervalMinutes are required", http.StatusBadRequest, KindInput},
	InvalidDateFormat:   {"INVALID_DATE_FORMAT", "date must be in YYYY-MM-DD format", http.StatusBadRequest, KindInput},
	InvalidDate:         {"INVALID_DATE", "date is not a valid calendar date", http.StatusBadRequest, KindInput},
	PastDate:            {"PAST_DATE", "date cannot be in the past", http.StatusBadRequest, KindPolicy},
	InvalidTimeFormat:   {"INVALID_TIME_FORMAT", "times must be in HH:mm 24-hour format", http.StatusBadRequest, KindInput},
	InvalidTimeRange:    {"INVALID_TIME_RANGE", "startTime must be earlier than endTime", http.StatusBadRequest, KindInput},
	InvalidInterval:     {"INVALID_INTERVAL", "intervalMinutes must be a positive integer", http.StatusBadRequest, KindInput},
	IntervalTooLarge:    {"INTERVAL_TOO_LARGE", "intervalMinutes exceeds the allowed maximum", http.StatusBadRequest, KindInput},
	DateRequired:        {"DATE_REQUIRED", "date is required", http.StatusBadRequest, KindInput},
	NoSlots:             {"NO_SLOTS", "no valid slots generated", http.StatusBadRequest, KindInput},
	AllDuplicate:        {"ALL_DUPLICATE", "all slots already exist", http.StatusConflict, KindConflict},
	Duplicate:           {"DUPLICATE", "slot already exists", http.StatusConflict, KindConflict},
	Conflict:            {"CONFLICT", "this slot is no longer available", http.StatusConflict, KindConflict},
	AlreadyBooked:       {"ALREADY_BOOKED", "booked slots cannot be deleted", http.StatusConflict, KindConflict},
	NotFound:            {"NOT_FOUND", "slot not found", http.StatusNotFound, KindNotFound},
	BookingWindowClosed: {"BOOKING_WINDOW_CLOSED", "slot starts too soon to be booked", http.StatusForbidden, KindPolicy},
	CancelNotAllowed:    {"CANCEL_NOT_ALLOWED", "this booking cannot be cancelled", http.StatusForbidden, KindPolicy},
	StoreFailure:        {"INTERNAL_ERROR", "slot store is unavailable", http.StatusInternalServerError, KindStore},
}

func (r Reason) valid() bool {
	return r >= 0 && r < reasonCount
}

func (r Reason) lookup() entry {
	if !r.valid() {
		return table[StoreFailure]
	}
	return table[r]
}

func (r Reason) Code() string    { return r.lookup().code }
func (r Reason) Message() string { return r.lookup().message }
func (r Reason) Status() int     { return r.lookup().status }
func (r Reason) Kind() Kind      { return r.lookup().kind }

func (r Reason) String() string {
	return r.Code()
}

// Err builds a fresh AppError for r.
func (r Reason) Err() *apperrors.AppError {
	e := r.lookup()
	return apperrors.New(e.code, e.message, e.status)
}

// Wrap builds an AppError for r carrying cause for logs.
func (r Reason) Wrap(cause error) *apperrors.AppError {
	e := r.lookup()
	return apperrors.Wrap(cause, e.code, e.message, e.status)
}

// WithRule builds an AppError for r whose details name the violated rule.
func (r Reason) WithRule(rule string) *apperrors.AppError {
	return r.Err().WithDetails(map[string]any{"rule": rule})
}

// Is reports whether err carries the code of r.
func Is(err error, r Reason) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == r.Code()
}

// ReasonOf maps an AppError code back to its Reason.
func ReasonOf(err error) (Reason, bool) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return 0, false
	}
	for r := Reason(0); r < reasonCount; r++ {
		if table[r].code == appErr.Code {
			return r, true
		}
	}
	return 0, false
}
