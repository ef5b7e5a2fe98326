package calendar

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleClient talks to the Google Calendar API. The marker string
// identifies availability events by case-insensitive substring match on
// the event title.
type GoogleClient struct {
	svc      *gcal.Service
	marker   string
	location *time.Location
}

func NewGoogle(ctx context.Context, credentialsPath, marker, timezone string) (*GoogleClient, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	jwt, err := google.JWTConfigFromJSON(creds, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account credentials: %w", err)
	}
	svc, err := gcal.NewService(ctx, option.WithTokenSource(jwt.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to init calendar service: %w", err)
	}
	return &GoogleClient{svc: svc, marker: strings.ToLower(marker), location: loc}, nil
}

func (c *GoogleClient) isMarker(title string) bool {
	return strings.Contains(strings.ToLower(title), c.marker)
}

func (c *GoogleClient) dayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, c.location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day, day.Add(24 * time.Hour), nil
}

func (c *GoogleClient) listEvents(ctx context.Context, calendarID, date, query string) ([]*gcal.Event, error) {
	from, to, err := c.dayRange(date)
	if err != nil {
		return nil, err
	}
	call := c.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list events for %s: %v", ErrUnreachable, calendarID, err)
	}
	return res.Items, nil
}

// eventBlock converts a timed event into a minutes-of-day block. All-day
// events (date only, no dateTime) yield ok=false.
func (c *GoogleClient) eventBlock(ev *gcal.Event) (Block, bool) {
	if ev.Start == nil || ev.End == nil || ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return Block{}, false
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return Block{}, false
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return Block{}, false
	}
	start = start.In(c.location)
	end = end.In(c.location)
	return Block{
		Start: start.Hour()*60 + start.Minute(),
		End:   end.Hour()*60 + end.Minute(),
	}, true
}

func (c *GoogleClient) MarkerBlocks(ctx context.Context, calendarID, date string) ([]Block, error) {
	events, err := c.listEvents(ctx, calendarID, date, c.marker)
	if err != nil {
		return nil, err
	}
	var blocks []Block
	for _, ev := range events {
		if !c.isMarker(ev.Summary) {
			continue
		}
		if b, ok := c.eventBlock(ev); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func (c *GoogleClient) BookedBlocks(ctx context.Context, calendarID, date string) ([]Block, error) {
	events, err := c.listEvents(ctx, calendarID, date, "")
	if err != nil {
		return nil, err
	}
	var blocks []Block
	for _, ev := range events {
		if c.isMarker(ev.Summary) {
			continue
		}
		if b, ok := c.eventBlock(ev); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func (c *GoogleClient) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", ev.Date+" "+ev.StartTime, c.location)
	if err != nil {
		return "", fmt.Errorf("invalid event start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", ev.Date+" "+ev.EndTime, c.location)
	if err != nil {
		return "", fmt.Errorf("invalid event end: %w", err)
	}
	created, err := c.svc.Events.Insert(calendarID, &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.location.String()},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.location.String()},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: insert event: %v", ErrUnreachable, err)
	}
	return created.Id, nil
}

func (c *GoogleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: delete event %s: %v", ErrUnreachable, eventID, err)
	}
	return nil
}
