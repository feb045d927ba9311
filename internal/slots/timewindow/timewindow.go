// Package timewindow converts the wall-clock strings stored on slots into
// comparable values and instants in the service's operating time zone.
package timewindow

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	DefaultZone = "Asia/Kolkata"

	minutesPerDay = 24 * 60
)

var (
	dateFormatRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeFormatRegex = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// Clock is the only source of "now" for the policy and the services.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and reports it in Location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

// LoadZone resolves an IANA zone name, falling back to DefaultZone when empty.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

func IsValidDateFormat(date string) bool {
	return dateFormatRegex.MatchString(date)
}

func IsValidTime(clock string) bool {
	return timeFormatRegex.MatchString(clock)
}

// ToMinutes converts a validated HH:mm string to minutes after midnight.
func ToMinutes(clock string) int {
	m := timeFormatRegex.FindStringSubmatch(clock)
	if m == nil {
		return -1
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min
}

// FormatMinutes renders minutes after midnight as zero padded HH:mm, clamped
// to a single day.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > minutesPerDay {
		minutes = minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Instant builds the moment date+clock occurs in loc.
func Instant(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot instant %s %s: %w", date, clock, err)
	}
	return t, nil
}

// Today returns the current date in the clock's zone as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// SplitCeil returns the date and HH:mm of t in its own location, rounding up
// to the next whole minute. Both parts are zero padded, so (date, clock) pairs
// compare lexicographically the same way as the instants they name.
func SplitCeil(t time.Time) (string, string) {
	if trunc := t.Truncate(time.Minute); !trunc.Equal(t) {
		t = trunc.Add(time.Minute)
	}
	return t.Format(DateLayout), t.Format(TimeLayout)
}
