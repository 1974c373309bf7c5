// Package ranking derives best-per-player leaderboards, ranks and win counts
// from session records.
package ranking

import (
	"fmt"
	"time"
)

// Window scopes a leaderboard to sessions played after a cutoff.
type Window string

const (
	Day     Window = "day"
	Week    Window = "week"
	Month   Window = "month"
	AllTime Window = "allTime"
)

// ParseWindow accepts exactly day, week, month, all and allTime.
func ParseWindow(s string) (Window, error) {
	switch s {
	case "day":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	case "all", "allTime":
		return AllTime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// Cutoff returns the earliest playedAt included in the window. Month uses
// calendar subtraction, so the span varies between 28 and 31 days.
func (w Window) Cutoff(now time.Time) time.Time {
	switch w {
	case Day:
		return now.Add(-24 * time.Hour)
	case Week:
		return now.Add(-7 * 24 * time.Hour)
	case Month:
		return now.AddDate(0, -1, 0)
	default:
		return time.Unix(0, 0).UTC()
	}
}

// Since is Cutoff as an optional lower bound; AllTime has none.
func (w Window) Since(now time.Time) *time.Time {
	if w == AllTime {
		return nil
	}
	c := w.Cutoff(now)
	return &c
}

func (w Window) String() string { return string(w) }
