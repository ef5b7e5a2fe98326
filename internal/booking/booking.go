package booking

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedbot/internal/availability"
	"schedbot/internal/calendar"
	"schedbot/internal/domain"
	"schedbot/internal/storage"
)

// ConflictError reports that the requested time is no longer in the
// freshly computed slot list. Alternatives carry up to a few other start
// times the user can be offered.
type ConflictError struct {
	Date         string
	Time         string
	Alternatives []string
}

func (e *ConflictError) Error() string {
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("no available times on %s", e.Date)
	}
	return fmt.Sprintf("%s on %s is not available; alternatives: %s",
		e.Time, e.Date, strings.Join(e.Alternatives, ", "))
}

// NotFoundError names the entity that could not be resolved, with
// suggestions the caller can relay conversationally.
type NotFoundError struct {
	What        string
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s %q not found", e.What, e.Name)
	}
	return fmt.Sprintf("%s %q not found; known: %s", e.What, e.Name, strings.Join(e.Suggestions, ", "))
}

type Config struct {
	BookingWindowDays int
	// MaxAlternatives caps how many other start times a conflict offers.
	MaxAlternatives int
	Timezone        *time.Location
}

// Engine creates, cancels and reschedules appointments. The external
// calendar write is best effort; the local record is authoritative.
type Engine struct {
	store *storage.Store
	cal   calendar.Client
	avail *availability.Engine
	cfg   Config
}

func NewEngine(store *storage.Store, cal calendar.Client, avail *availability.Engine, cfg Config) *Engine {
	if cfg.BookingWindowDays <= 0 {
		cfg.BookingWindowDays = 30
	}
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = 5
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Engine{store: store, cal: cal, avail: avail, cfg: cfg}
}

type CreateRequest struct {
	UserID       string
	BranchID     string
	ServiceName  string
	ResourceName string
	Date         string // "2006-01-02"
	Time         string // "15:04"
}

// Confirmation describes a committed booking for the tool layer.
type Confirmation struct {
	Appointment domain.Appointment
	Service     domain.Service
	Resource    domain.Resource
	Branch      *domain.Branch
}

// Today returns the current date in the business timezone.
func (e *Engine) Today() string {
	return time.Now().In(e.cfg.Timezone).Format("2006-01-02")
}

// ValidateDate rejects malformed, past, and beyond-window dates.
func (e *Engine) ValidateDate(date string) error {
	day, err := time.ParseInLocation("2006-01-02", date, e.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	today, _ := time.ParseInLocation("2006-01-02", e.Today(), e.cfg.Timezone)
	if day.Before(today) {
		return fmt.Errorf("cannot book past date %s", date)
	}
	if day.After(today.AddDate(0, 0, e.cfg.BookingWindowDays)) {
		return fmt.Errorf("can only book within the next %d days", e.cfg.BookingWindowDays)
	}
	return nil
}

// Create books an appointment. Availability is re-computed synchronously
// at commit time; this recheck is the system's only double-booking guard,
// so it always runs even when the caller just queried availability.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Confirmation, error) {
	user, err := e.store.Users.Get(ctx, req.UserID)
	if err != nil {
		return nil, &NotFoundError{What: "user", Name: req.UserID}
	}

	service, err := e.store.Services.FindByName(ctx, req.BranchID, req.ServiceName)
	if err != nil {
		return nil, e.serviceMiss(ctx, req.BranchID, req.ServiceName)
	}
	resource, err := e.store.Resources.FindByName(ctx, req.BranchID, req.ResourceName)
	if err != nil {
		return nil, e.resourceMiss(ctx, req.BranchID, req.ResourceName)
	}

	if err := e.ValidateDate(req.Date); err != nil {
		return nil, err
	}
	startMin, err := calendar.ClockToMinute(req.Time)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q, expected HH:MM", req.Time)
	}
	endTime := calendar.MinuteToClock(startMin + service.DurationMinutes)

	if err := e.revalidate(ctx, *resource, req.Date, req.Time, service.DurationMinutes); err != nil {
		return nil, err
	}

	eventID := e.mirrorCreate(ctx, *resource, *service, *user, req.Date, req.Time, endTime, false)

	appt, err := e.store.Appointments.Create(ctx, domain.Appointment{
		ID:                      uuid.NewString(),
		UserID:                  user.ID,
		ResourceID:              resource.ID,
		ServiceID:               service.ID,
		BranchID:                req.BranchID,
		ServiceNameSnapshot:     service.Name,
		ServicePriceSnapshot:    service.Price,
		ServiceDurationSnapshot: service.DurationMinutes,
		ResourceNameSnapshot:    resource.Name,
		Date:                    req.Date,
		StartTime:               req.Time,
		EndTime:                 endTime,
		ExternalEventID:         eventID,
		Status:                  domain.AppointmentScheduled,
	})
	if err != nil {
		return nil, err
	}

	branch, err := e.store.Branches.Get(ctx, req.BranchID)
	if err != nil {
		branch = nil
	}
	return &Confirmation{Appointment: appt, Service: *service, Resource: *resource, Branch: branch}, nil
}

// revalidate re-runs the availability engine and checks the requested
// start against the fresh slot list.
func (e *Engine) revalidate(ctx context.Context, res domain.Resource, date, startTime string, durationMinutes int) error {
	slots, err := e.avail.AvailableSlots(ctx, res, date, durationMinutes)
	if err != nil {
		return fmt.Errorf("failed to verify availability: %w", err)
	}
	for _, s := range slots {
		if s == startTime {
			return nil
		}
	}
	alt := slots
	if len(alt) > e.cfg.MaxAlternatives {
		alt = alt[:e.cfg.MaxAlternatives]
	}
	return &ConflictError{Date: date, Time: startTime, Alternatives: alt}
}

// mirrorCreate writes the external calendar event. Failure is logged and
// tolerated; the local appointment record stays authoritative.
func (e *Engine) mirrorCreate(ctx context.Context, res domain.Resource, svc domain.Service, user domain.User, date, startTime, endTime string, rescheduled bool) string {
	if res.ExternalCalendarID == "" {
		return ""
	}
	title := fmt.Sprintf("%s - %s (%s)", svc.Name, user.FullName, user.IdentificationNumber)
	if rescheduled {
		title += " [rescheduled]"
	}
	eventID, err := e.cal.CreateEvent(ctx, res.ExternalCalendarID, calendar.Event{
		Title: title,
		Description: fmt.Sprintf("Booked via assistant\nCustomer: %s\nID: %s\nPhone: %s",
			user.FullName, user.IdentificationNumber, user.PhoneNumber),
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
	})
	if err != nil {
		log.Printf("⚠️ could not create calendar event for resource %s: %v", res.ID, err)
		return ""
	}
	return eventID
}

// CancelResult reports a cancel outcome. AlreadyCancelled marks the
// idempotent no-op path.
type CancelResult struct {
	Appointment      domain.Appointment
	AlreadyCancelled bool
}

func (e *Engine) Cancel(ctx context.Context, appointmentID, reason, by string) (*CancelResult, error) {
	appt, err := e.store.Appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, &NotFoundError{What: "appointment", Name: appointmentID}
	}
	if appt.Status == domain.AppointmentCancelled {
		return &CancelResult{Appointment: *appt, AlreadyCancelled: true}, nil
	}

	if appt.ExternalEventID != "" {
		if res, rerr := e.store.Resources.Get(ctx, appt.ResourceID); rerr == nil && res.ExternalCalendarID != "" {
			if derr := e.cal.DeleteEvent(ctx, res.ExternalCalendarID, appt.ExternalEventID); derr != nil {
				log.Printf("⚠️ could not delete calendar event %s: %v", appt.ExternalEventID, derr)
			}
		}
	}

	if err := e.store.Appointments.Cancel(ctx, appointmentID, reason, by); err != nil {
		return nil, err
	}
	appt.Status = domain.AppointmentCancelled
	appt.CancellationReason = reason
	appt.CancelledBy = by
	return &CancelResult{Appointment: *appt}, nil
}

// Reschedule moves a scheduled appointment to a new date/time, re-running
// availability first. The external event is deleted and recreated best
// effort; status stays scheduled.
func (e *Engine) Reschedule(ctx context.Context, appointmentID, newDate, newTime string) (*Confirmation, error) {
	appt, err := e.store.Appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, &NotFoundError{What: "appointment", Name: appointmentID}
	}
	if appt.Status != domain.AppointmentScheduled {
		return nil, fmt.Errorf("only scheduled appointments can be rescheduled (status is %s)", appt.Status)
	}

	resource, err := e.store.Resources.Get(ctx, appt.ResourceID)
	if err != nil {
		return nil, &NotFoundError{What: "resource", Name: appt.ResourceID}
	}

	if err := e.ValidateDate(newDate); err != nil {
		return nil, err
	}
	startMin, err := calendar.ClockToMinute(newTime)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q, expected HH:MM", newTime)
	}
	endTime := calendar.MinuteToClock(startMin + appt.ServiceDurationSnapshot)

	if err := e.revalidate(ctx, *resource, newDate, newTime, appt.ServiceDurationSnapshot); err != nil {
		return nil, err
	}

	newEventID := ""
	if appt.ExternalEventID != "" && resource.ExternalCalendarID != "" {
		if derr := e.cal.DeleteEvent(ctx, resource.ExternalCalendarID, appt.ExternalEventID); derr != nil {
			log.Printf("⚠️ could not delete calendar event %s: %v", appt.ExternalEventID, derr)
		}
	}
	if user, uerr := e.store.Users.Get(ctx, appt.UserID); uerr == nil {
		svc := domain.Service{Name: appt.ServiceNameSnapshot, DurationMinutes: appt.ServiceDurationSnapshot}
		newEventID = e.mirrorCreate(ctx, *resource, svc, *user, newDate, newTime, endTime, true)
	}

	if err := e.store.Appointments.Reschedule(ctx, appointmentID, newDate, newTime, endTime, newEventID); err != nil {
		return nil, err
	}
	appt.Date = newDate
	appt.StartTime = newTime
	appt.EndTime = endTime
	appt.ExternalEventID = newEventID

	service := domain.Service{
		ID:              appt.ServiceID,
		Name:            appt.ServiceNameSnapshot,
		Price:           appt.ServicePriceSnapshot,
		DurationMinutes: appt.ServiceDurationSnapshot,
	}
	branch, err := e.store.Branches.Get(ctx, appt.BranchID)
	if err != nil {
		branch = nil
	}
	return &Confirmation{Appointment: *appt, Service: service, Resource: *resource, Branch: branch}, nil
}

// ListUpcoming returns the user's scheduled appointments from today on.
func (e *Engine) ListUpcoming(ctx context.Context, userID string) ([]domain.Appointment, error) {
	return e.store.Appointments.UpcomingByUser(ctx, userID, e.Today())
}

func (e *Engine) serviceMiss(ctx context.Context, branchID, name string) error {
	all, err := e.store.Services.ByBranch(ctx, branchID)
	if err != nil || len(all) == 0 {
		return &NotFoundError{What: "service", Name: name}
	}
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	return &NotFoundError{What: "service", Name: name, Suggestions: names}
}

func (e *Engine) resourceMiss(ctx context.Context, branchID, name string) error {
	all, err := e.store.Resources.ByBranch(ctx, branchID)
	if err != nil || len(all) == 0 {
		return &NotFoundError{What: "resource", Name: name}
	}
	names := make([]string, 0, len(all))
	for _, r := range all {
		names = append(names, r.Name)
	}
	return &NotFoundError{What: "resource", Name: name, Suggestions: names}
}
