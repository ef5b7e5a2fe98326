package calendar

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreachable wraps transport-level failures talking to the external
// calendar. Callers use it to decide between "authoritatively empty" and
// "degraded fallback".
var ErrUnreachable = errors.New("calendar unreachable")

// Block is a half-open [Start, End) window in minutes from midnight.
type Block struct {
	Start int
	End   int
}

// Event is an appointment mirrored into the external calendar.
type Event struct {
	Title       string
	Description string
	Date        string // "2006-01-02"
	StartTime   string // "15:04"
	EndTime     string // "15:04"
}

// Client is the external calendar collaborator. Marker events (title
// contains the configured marker, case-insensitive) denote availability;
// every other timed event is a booked block.
type Client interface {
	MarkerBlocks(ctx context.Context, calendarID, date string) ([]Block, error)
	BookedBlocks(ctx context.Context, calendarID, date string) ([]Block, error)
	CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Unavailable is a Client whose fetches always fail as unreachable. It is
// used when no calendar credentials are configured, so the availability
// engine falls back to local schedules.
type Unavailable struct{}

func (Unavailable) MarkerBlocks(ctx context.Context, calendarID, date string) ([]Block, error) {
	return nil, fmt.Errorf("%w: not configured", ErrUnreachable)
}

func (Unavailable) BookedBlocks(ctx context.Context, calendarID, date string) ([]Block, error) {
	return nil, fmt.Errorf("%w: not configured", ErrUnreachable)
}

func (Unavailable) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	return "", fmt.Errorf("%w: not configured", ErrUnreachable)
}

func (Unavailable) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return fmt.Errorf("%w: not configured", ErrUnreachable)
}

// ClockToMinute parses "15:04" into minutes from midnight.
func ClockToMinute(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", clock)
	}
	return h*60 + m, nil
}

// MinuteToClock formats minutes from midnight as "15:04".
func MinuteToClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
