// Package daterange narrows the displayed order list to a span of IST
// calendar days.
package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// IST is India Standard Time, the calendar merchants pick dates in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// DateLayout is the layout of explicit from/to dates.
const DateLayout = "2006-01-02"

// Errors
var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrUnknownPreset = errors.New("unknown date preset")
	ErrInverted      = errors.New("from date is after to date")
)

// Preset names a relative date range.
type Preset string

const (
	PresetToday     Preset = "today"
	PresetYesterday Preset = "yesterday"
	PresetThisWeek  Preset = "this_week"
	PresetThisMonth Preset = "this_month"
	PresetThisYear  Preset = "this_year"
	PresetLifetime  Preset = "lifetime"
)

// ParsePreset accepts a preset name, case-insensitively, with spaces or
// dashes in place of underscores ("This Week" is this_week).
func ParsePreset(s string) (Preset, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch p := Preset(norm); p {
	case PresetToday, PresetYesterday, PresetThisWeek, PresetThisMonth, PresetThisYear, PresetLifetime:
		return p, nil
	case "life_time", "":
		return PresetLifetime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
}

// Range is an inclusive span of instants. A nil bound is open.
type Range struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether the range places no bound at all.
func (r Range) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Contains reports whether t lies within the range. When the range is
// bounded, a nil t is outside it.
func (r Range) Contains(t *time.Time) bool {
	if r.IsZero() {
		return true
	}
	if t == nil {
		return false
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Filter returns the orders whose OrderDate lies within the range,
// preserving their order.
func (r Range) Filter(orders []domain.OrderRecord) []domain.OrderRecord {
	if r.IsZero() {
		return orders
	}
	out := make([]domain.OrderRecord, 0, len(orders))
	for i := range orders {
		if r.Contains(orders[i].OrderDate) {
			out = append(out, orders[i])
		}
	}
	return out
}

// DayBounds returns the first and last instant of the IST day named by date
// (yyyy-mm-dd), in UTC.
func DayBounds(date string) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), IST)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	start = day.UTC()
	end = day.AddDate(0, 0, 1).Add(-time.Millisecond).UTC()
	return start, end, nil
}

// FromDates builds a range from explicit IST dates. Either may be empty.
func FromDates(from, to string) (Range, error) {
	var r Range
	if from != "" {
		start, _, err := DayBounds(from)
		if err != nil {
			return Range{}, err
		}
		r.From = &start
	}
	if to != "" {
		_, end, err := DayBounds(to)
		if err != nil {
			return Range{}, err
		}
		r.To = &end
	}
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return Range{}, ErrInverted
	}
	return r, nil
}

// ForPreset resolves p relative to now.
func ForPreset(p Preset, now time.Time) (Range, error) {
	today := now.In(IST)
	y, m, d := today.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, IST)

	var from, to time.Time
	switch p {
	case PresetLifetime:
		return Range{}, nil
	case PresetToday:
		from, to = midnight, midnight
	case PresetYesterday:
		from = midnight.AddDate(0, 0, -1)
		to = from
	case PresetThisWeek:
		// Weeks start on Sunday.
		from = midnight.AddDate(0, 0, -int(midnight.Weekday()))
		to = midnight
	case PresetThisMonth:
		from = time.Date(y, m, 1, 0, 0, 0, 0, IST)
		to = midnight
	case PresetThisYear:
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, IST)
		to = midnight
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownPreset, p)
	}

	return FromDates(from.Format(DateLayout), to.Format(DateLayout))
}

// Resolve picks the range for a request: explicit dates win over a preset.
func Resolve(preset, from, to string, now time.Time) (Range, error) {
	if from != "" || to != "" {
		return FromDates(from, to)
	}
	p, err := ParsePreset(preset)
	if err != nil {
		return Range{}, err
	}
	return ForPreset(p, now)
}
