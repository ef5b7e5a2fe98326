package availability

import (
	"context"
	"errors"
	"fmt"
	"log"

	"schedbot/internal/calendar"
	"schedbot/internal/domain"
	"schedbot/internal/storage"
)

// Slots computes bookable start minutes for the given marker blocks,
// booked blocks and service duration. The cursor steps by the requested
// duration, so generated candidates never overlap each other; a candidate
// is accepted iff it overlaps no booked block. Overlapping marker blocks
// are walked independently, not merged; booking re-validates before
// commit anyway.
func Slots(markers, booked []calendar.Block, durationMinutes int) []int {
	if durationMinutes <= 0 {
		return nil
	}
	var out []int
	for _, m := range markers {
		for cur := m.Start; cur+durationMinutes <= m.End; cur += durationMinutes {
			end := cur + durationMinutes
			free := true
			for _, b := range booked {
				if !(end <= b.Start || cur >= b.End) {
					free = false
					break
				}
			}
			if free {
				out = append(out, cur)
			}
		}
	}
	return out
}

// Engine derives bookable slots for a resource and date. The external
// calendar is authoritative: no marker events means the resource is not
// available that day. The locally stored default schedule plus recorded
// appointments serve only as a degraded fallback when the calendar fetch
// itself is unreachable.
type Engine struct {
	cal          calendar.Client
	appointments storage.Appointments
}

func NewEngine(cal calendar.Client, appointments storage.Appointments) *Engine {
	return &Engine{cal: cal, appointments: appointments}
}

// AvailableSlots returns candidate start times ("15:04") in chronological
// order per marker block.
func (e *Engine) AvailableSlots(ctx context.Context, res domain.Resource, date string, durationMinutes int) ([]string, error) {
	markers, booked, err := e.blocks(ctx, res, date)
	if err != nil {
		return nil, err
	}
	starts := Slots(markers, booked, durationMinutes)
	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, calendar.MinuteToClock(s))
	}
	return out, nil
}

func (e *Engine) blocks(ctx context.Context, res domain.Resource, date string) (markers, booked []calendar.Block, err error) {
	if res.ExternalCalendarID != "" {
		markers, err = e.cal.MarkerBlocks(ctx, res.ExternalCalendarID, date)
		if err == nil {
			if len(markers) == 0 {
				// Authoritative answer: not working that day.
				return nil, nil, nil
			}
			booked, err = e.cal.BookedBlocks(ctx, res.ExternalCalendarID, date)
			if err == nil {
				return markers, booked, nil
			}
		}
		if !errors.Is(err, calendar.ErrUnreachable) {
			return nil, nil, err
		}
		log.Printf("⚠️ calendar fetch failed for resource %s, using local fallback: %v", res.ID, err)
	}
	return e.localBlocks(ctx, res, date)
}

// localBlocks builds the degraded view: the resource's default working
// hours as the only marker block and locally recorded scheduled
// appointments as the only known bookings.
func (e *Engine) localBlocks(ctx context.Context, res domain.Resource, date string) ([]calendar.Block, []calendar.Block, error) {
	if res.DefaultStartTime == "" || res.DefaultEndTime == "" {
		return nil, nil, nil
	}
	start, err := calendar.ClockToMinute(res.DefaultStartTime)
	if err != nil {
		return nil, nil, fmt.Errorf("resource %s default start: %w", res.ID, err)
	}
	end, err := calendar.ClockToMinute(res.DefaultEndTime)
	if err != nil {
		return nil, nil, fmt.Errorf("resource %s default end: %w", res.ID, err)
	}
	appts, err := e.appointments.ScheduledByResourceDate(ctx, res.ID, date)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load local appointments: %w", err)
	}
	booked := make([]calendar.Block, 0, len(appts))
	for _, a := range appts {
		bs, err := calendar.ClockToMinute(a.StartTime)
		if err != nil {
			continue
		}
		be, err := calendar.ClockToMinute(a.EndTime)
		if err != nil {
			continue
		}
		booked = append(booked, calendar.Block{Start: bs, End: be})
	}
	return []calendar.Block{{Start: start, End: end}}, booked, nil
}
