package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinutes(t *testing.T) {
	assert.Equal(t, 0, ToMinutes("00:00"))
	assert.Equal(t, 9*60+30, ToMinutes("09:30"))
	assert.Equal(t, 23*60+59, ToMinutes("23:59"))
	assert.Equal(t, -1, ToMinutes("24:00"))
	assert.Equal(t, -1, ToMinutes("9:30"))
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinutes(0))
	assert.Equal(t, "09:05", FormatMinutes(9*60+5))
	assert.Equal(t, "23:59", FormatMinutes(23*60+59))
	assert.Equal(t, "00:00", FormatMinutes(-10))
}

func TestToMinutesFormatMinutesRoundTrip(t *testing.T) {
	for m := 0; m < 24*60; m += 7 {
		assert.Equal(t, m, ToMinutes(FormatMinutes(m)))
	}
}

func TestIsValidDateFormat(t *testing.T) {
	tests := []struct {
		date  string
		valid bool
	}{
		{"2025-01-01", true},
		{"2025-13-01", true},
		{"2025-1-01", false},
		{"01-01-2025", false},
		{"2025/01/01", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidDateFormat(tt.date))
		})
	}
}

func TestIsValidTime(t *testing.T) {
	for _, ok := range []string{"00:00", "09:30", "19:59", "23:59"} {
		assert.True(t, IsValidTime(ok), ok)
	}
	for _, bad := range []string{"24:00", "9:30", "09:60", "0930", "09:30:00", ""} {
		assert.False(t, IsValidTime(bad), bad)
	}
}

func TestInstant_UsesLocation(t *testing.T) {
	loc, err := LoadZone("Asia/Kolkata")
	require.NoError(t, err)

	at, err := Instant("2025-01-01", "09:00", loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 1, 3, 30, 0, 0, time.UTC), at.UTC())
}

func TestInstant_RejectsGarbage(t *testing.T) {
	_, err := Instant("2025-13-01", "09:00", time.UTC)
	assert.Error(t, err)
}

func TestLoadZone_DefaultsWhenEmpty(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, DefaultZone, loc.String())

	_, err = LoadZone("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestSplitCeil(t *testing.T) {
	loc := time.UTC

	date, clock := SplitCeil(time.Date(2025, 1, 1, 10, 0, 0, 0, loc))
	assert.Equal(t, "2025-01-01", date)
	assert.Equal(t, "10:00", clock)

	date, clock = SplitCeil(time.Date(2025, 1, 1, 10, 0, 30, 0, loc))
	assert.Equal(t, "2025-01-01", date)
	assert.Equal(t, "10:01", clock)

	date, clock = SplitCeil(time.Date(2025, 1, 1, 23, 59, 1, 0, loc))
	assert.Equal(t, "2025-01-02", date)
	assert.Equal(t, "00:00", clock)
}

func TestClocks(t *testing.T) {
	loc, err := LoadZone("Asia/Kolkata")
	require.NoError(t, err)

	fixed := FixedClock{At: time.Date(2025, 6, 1, 23, 50, 0, 0, loc)}
	assert.Equal(t, "2025-06-01", Today(fixed))

	sys := SystemClock{Location: loc}
	assert.Equal(t, loc, sys.Now().Location())
}
