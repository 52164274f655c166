package dates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/dates"
)

func TestParseISO(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-01-15", "2025-01-15T00:00:00Z"},
		{"2025-01-15T08:30:00Z", "2025-01-15T08:30:00Z"},
		{"2025-01-15T08:30:00.000Z", "2025-01-15T08:30:00Z"},
		{"2025-01-15T23:30:00-05:00", "2025-01-15T23:30:00-05:00"},
		{"2025-01-15T08:30", "2025-01-15T08:30:00Z"},
		{"2025-01-15 08:30", "2025-01-15T08:30:00Z"},
		{"  2025-01-15  ", "2025-01-15T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := dates.ParseISO(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.Format(time.RFC3339))
		})
	}
}

func TestParseISO_Rejects(t *testing.T) {
	for _, in := range []string{"", "01/15/2025", "tomorrow", "2025-13-01"} {
		_, ok := dates.ParseISO(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseLoose_Fallbacks(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-1-5", "2025-01-05T00:00:00Z"},
		{"01/15/2025", "2025-01-15T00:00:00Z"},
		{"1-15-2025", "2025-01-15T00:00:00Z"},
		{"01/15/2025 14:05", "2025-01-15T14:05:00Z"},
		{"01/15/2025 2:05 PM", "2025-01-15T14:05:00Z"},
		{"01/15/2025 12:10 am", "2025-01-15T00:10:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := dates.ParseLoose(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.Format(time.RFC3339))
		})
	}
}

func TestParseLoose_RejectsImpossibleDates(t *testing.T) {
	for _, in := range []string{"02/30/2025", "13/01/2025", "2025-2-30", "01/15/2025 25:00", "next week"} {
		_, ok := dates.ParseLoose(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestDay_UsesWrittenOffset(t *testing.T) {
	// 23:30 in New York is already the 16th in UTC; the booking says the 15th.
	d, ok := dates.Day("2025-01-15T23:30:00-05:00")
	require.True(t, ok)
	assert.Equal(t, "2025-01-15", dates.Format(d))
}

func TestBetween(t *testing.T) {
	first := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)

	got := dates.Between(first, last)

	require.Len(t, got, 4)
	assert.Equal(t, "2025-01-30", dates.Format(got[0]))
	assert.Equal(t, "2025-02-02", dates.Format(got[3]))
	assert.Nil(t, dates.Between(last, first))
}
