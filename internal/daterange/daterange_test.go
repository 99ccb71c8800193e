package daterange

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2025-03-15")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 15, 18, 29, 59, 999_000_000, time.UTC), end)

	_, _, err = DayBounds("15/03/2025")
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		in   string
		want Preset
	}{
		{"today", PresetToday},
		{"Yesterday", PresetYesterday},
		{"This Week", PresetThisWeek},
		{"this-month", PresetThisMonth},
		{"THIS_YEAR", PresetThisYear},
		{"Life Time", PresetLifetime},
		{"", PresetLifetime},
	}
	for _, tt := range tests {
		got, err := ParsePreset(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParsePreset("fortnight")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestForPreset(t *testing.T) {
	// Wednesday 2025-03-19 01:00 IST is still Tuesday in UTC.
	now := time.Date(2025, 3, 18, 19, 30, 0, 0, time.UTC)

	day := func(s string) (time.Time, time.Time) {
		start, end, err := DayBounds(s)
		require.NoError(t, err)
		return start, end
	}

	tests := []struct {
		preset   Preset
		from, to string
	}{
		{PresetToday, "2025-03-19", "2025-03-19"},
		{PresetYesterday, "2025-03-18", "2025-03-18"},
		{PresetThisWeek, "2025-03-16", "2025-03-19"},
		{PresetThisMonth, "2025-03-01", "2025-03-19"},
		{PresetThisYear, "2025-01-01", "2025-03-19"},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			r, err := ForPreset(tt.preset, now)
			require.NoError(t, err)
			require.NotNil(t, r.From)
			require.NotNil(t, r.To)

			wantFrom, _ := day(tt.from)
			_, wantTo := day(tt.to)
			assert.Equal(t, wantFrom, *r.From)
			assert.Equal(t, wantTo, *r.To)
		})
	}

	t.Run("Lifetime", func(t *testing.T) {
		r, err := ForPreset(PresetLifetime, now)
		require.NoError(t, err)
		assert.True(t, r.IsZero())
	})
}

func TestFromDates(t *testing.T) {
	r, err := FromDates("2025-03-01", "")
	require.NoError(t, err)
	assert.NotNil(t, r.From)
	assert.Nil(t, r.To)

	_, err = FromDates("2025-03-02", "2025-03-01")
	assert.ErrorIs(t, err, ErrInverted)

	_, err = FromDates("", "garbage")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestRangeFilter(t *testing.T) {
	at := func(s string) *time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return &ts
	}

	orders := []domain.OrderRecord{
		{OrderID: "1", OrderDate: at("2025-03-14T18:29:59Z")}, // 23:59 IST on the 14th
		{OrderID: "2", OrderDate: at("2025-03-14T18:30:00Z")}, // 00:00 IST on the 15th
		{OrderID: "3", OrderDate: at("2025-03-15T18:29:59Z")},
		{OrderID: "4", OrderDate: at("2025-03-15T18:30:00Z")},
		{OrderID: "5"},
	}

	t.Run("SingleDay", func(t *testing.T) {
		r, err := FromDates("2025-03-15", "2025-03-15")
		require.NoError(t, err)

		got := r.Filter(orders)
		require.Len(t, got, 2)
		assert.Equal(t, "2", got[0].OrderID)
		assert.Equal(t, "3", got[1].OrderID)
	})

	t.Run("UnboundedKeepsUndated", func(t *testing.T) {
		assert.Len(t, Range{}.Filter(orders), len(orders))
	})

	t.Run("BoundedDropsUndated", func(t *testing.T) {
		r, err := FromDates("2025-01-01", "")
		require.NoError(t, err)
		assert.Len(t, r.Filter(orders), 4)
	})
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 3, 18, 6, 0, 0, 0, time.UTC)

	r, err := Resolve("today", "2025-01-01", "", now)
	require.NoError(t, err)
	assert.Nil(t, r.To, "explicit dates win over the preset")

	r, err = Resolve("", "", "", now)
	require.NoError(t, err)
	assert.True(t, r.IsZero())

	_, err = Resolve("someday", "", "", now)
	assert.Error(t, err)
}
