// Package window holds the time-window helpers shared by the uptime
// aggregator and the daily history.
package window

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidWindow is returned for zero, inverted or out-of-range windows.
var ErrInvalidWindow = errors.New("invalid time window")

// Bounds must fit in int64 Unix nanoseconds (1677-09-21 to 2262-04-11),
// the encoding stores use for event times.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// Window is a closed interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	return w, w.Validate()
}

func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: missing bound", ErrInvalidWindow)
	}
	if w.Start.Before(MinTime) || w.End.After(MaxTime) {
		return fmt.Errorf("%w: bounds must lie between %s and %s", ErrInvalidWindow,
			MinTime.Format(time.RFC3339), MaxTime.Format(time.RFC3339))
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow,
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Clamp pins t into the window.
func (w Window) Clamp(t time.Time) time.Time {
	if t.Before(w.Start) {
		return w.Start
	}
	if t.After(w.End) {
		return w.End
	}
	return t
}

// Truncate caps the window end at limit. The result may be empty (End == Start)
// but never inverted.
func (w Window) Truncate(limit time.Time) Window {
	if limit.Before(w.End) {
		w.End = limit
	}
	if w.End.Before(w.Start) {
		w.End = w.Start
	}
	return w
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Days splits [start, end] into calendar days in loc. The first and last
// day are full days, not cut to start/end; DST days are 23 or 25 hours long.
func Days(start, end time.Time, loc *time.Location) []Window {
	if end.Before(start) {
		return nil
	}
	var out []Window
	last := StartOfDay(end, loc)
	for d := StartOfDay(start, loc); !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, Window{Start: d, End: d.AddDate(0, 0, 1)})
	}
	return out
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent clamps v into [0, 100].
func Percent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
