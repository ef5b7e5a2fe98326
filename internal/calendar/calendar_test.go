package calendar

import (
	"context"
	"errors"
	"testing"
)

func TestClockToMinute(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"morning", 0, true},
	}
	for _, c := range cases {
		got, err := ClockToMinute(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ClockToMinute(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ClockToMinute(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}
}

func TestMinuteToClockRoundTrip(t *testing.T) {
	for _, m := range []int{0, 570, 725, 1439} {
		clock := MinuteToClock(m)
		back, err := ClockToMinute(clock)
		if err != nil || back != m {
			t.Errorf("round trip for %d via %q failed: %d, %v", m, clock, back, err)
		}
	}
}

func TestUnavailableIsUnreachable(t *testing.T) {
	ctx := context.Background()
	var c Client = Unavailable{}

	if _, err := c.MarkerBlocks(ctx, "cal", "2026-09-10"); !errors.Is(err, ErrUnreachable) {
		t.Errorf("MarkerBlocks error must wrap ErrUnreachable, got %v", err)
	}
	if _, err := c.CreateEvent(ctx, "cal", Event{}); !errors.Is(err, ErrUnreachable) {
		t.Errorf("CreateEvent error must wrap ErrUnreachable, got %v", err)
	}
}
