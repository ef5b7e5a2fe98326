package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"schedbot/internal/availability"
	"schedbot/internal/calendar"
	"schedbot/internal/domain"
	"schedbot/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	return store
}

type fixture struct {
	store  *storage.Store
	engine *Engine
	user   domain.User
	branch domain.Branch
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := testStore(t)
	db := store

	branch := domain.Branch{ID: "branch-1", BusinessID: "biz-1", Name: "Centro"}
	seed(t, db, &domain.Business{ID: "biz-1", Name: "Salon Bella", InboundAddress: "inbox-1", BookingWindowDays: 30, IsActive: true})
	seed(t, db, &branch)
	seed(t, db, &domain.Service{ID: "svc-1", BranchID: branch.ID, Name: "Corte de cabello", Price: 15, DurationMinutes: 60, IsActive: true})
	seed(t, db, &domain.Resource{
		ID: "res-1", BranchID: branch.ID, Name: "Maria",
		DefaultStartTime: "09:00", DefaultEndTime: "12:00", IsActive: true,
	})
	seed(t, db, &domain.ResourceService{ResourceID: "res-1", ServiceID: "svc-1"})

	user, err := db.Users.Create(ctx, domain.User{
		ID: "user-1", BusinessID: "biz-1", FullName: "Ana Torres",
		IdentificationNumber: "0912345678", PhoneNumber: "tg:42",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	avail := availability.NewEngine(calendar.Unavailable{}, db.Appointments)
	engine := NewEngine(db, calendar.Unavailable{}, avail, Config{BookingWindowDays: 30, Timezone: time.UTC})
	return &fixture{store: db, engine: engine, user: user, branch: branch}
}

func seed(t *testing.T, store *storage.Store, v interface{}) {
	t.Helper()
	if err := store.Seed(v); err != nil {
		t.Fatalf("failed to seed %T: %v", v, err)
	}
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

func TestCreateBooksAFreeSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	conf, err := f.engine.Create(ctx, CreateRequest{
		UserID:       f.user.ID,
		BranchID:     f.branch.ID,
		ServiceName:  "corte", // partial, case-insensitive
		ResourceName: "maria",
		Date:         tomorrow(),
		Time:         "09:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	appt := conf.Appointment
	if appt.Status != domain.AppointmentScheduled {
		t.Errorf("expected scheduled status, got %s", appt.Status)
	}
	if appt.EndTime != "10:00" {
		t.Errorf("expected end time 10:00 for a 60min service, got %s", appt.EndTime)
	}
	if appt.ServiceNameSnapshot != "Corte de cabello" || appt.ServicePriceSnapshot != 15 {
		t.Errorf("service snapshot not taken: %+v", appt)
	}
	if appt.ResourceNameSnapshot != "Maria" {
		t.Errorf("resource snapshot not taken: %+v", appt)
	}
}

func TestCreateRejectsTakenSlotWithAlternatives(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	date := tomorrow()

	req := CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "09:00",
	}
	if _, err := f.engine.Create(ctx, req); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	_, err := f.engine.Create(ctx, req)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a ConflictError, got %v", err)
	}
	if len(conflict.Alternatives) == 0 {
		t.Fatal("expected alternative slots in the conflict")
	}
	for _, alt := range conflict.Alternatives {
		if alt == "09:00" {
			t.Error("taken slot offered as an alternative")
		}
	}
}

func TestCreateUnknownServiceSuggestsCatalog(t *testing.T) {
	f := setup(t)

	_, err := f.engine.Create(context.Background(), CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "masaje", ResourceName: "Maria",
		Date: tomorrow(), Time: "09:00",
	})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a NotFoundError, got %v", err)
	}
	if notFound.What != "service" || len(notFound.Suggestions) == 0 {
		t.Fatalf("expected service suggestions, got %+v", notFound)
	}
}

func TestValidateDateWindow(t *testing.T) {
	f := setup(t)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	if err := f.engine.ValidateDate(yesterday); err == nil {
		t.Error("expected rejection of a past date")
	}
	tooFar := time.Now().UTC().AddDate(0, 0, 45).Format("2006-01-02")
	if err := f.engine.ValidateDate(tooFar); err == nil {
		t.Error("expected rejection beyond the booking window")
	}
	if err := f.engine.ValidateDate("not-a-date"); err == nil {
		t.Error("expected rejection of a malformed date")
	}
	if err := f.engine.ValidateDate(tomorrow()); err != nil {
		t.Errorf("tomorrow should be bookable: %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	conf, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: tomorrow(), Time: "09:00",
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	first, err := f.engine.Cancel(ctx, conf.Appointment.ID, "cannot make it", "user")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if first.AlreadyCancelled {
		t.Error("first cancel must not report already cancelled")
	}

	second, err := f.engine.Cancel(ctx, conf.Appointment.ID, "again", "user")
	if err != nil {
		t.Fatalf("repeat cancel failed: %v", err)
	}
	if !second.AlreadyCancelled {
		t.Error("repeat cancel must be an idempotent no-op")
	}
}

func TestCancelFreesTheSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	date := tomorrow()
	req := CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "09:00",
	}

	conf, err := f.engine.Create(ctx, req)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, conf.Appointment.ID, "", "user"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.engine.Create(ctx, req); err != nil {
		t.Fatalf("slot should be free after cancellation: %v", err)
	}
}

func TestRescheduleRequiresScheduledStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	conf, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: tomorrow(), Time: "09:00",
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, conf.Appointment.ID, "", "user"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := f.engine.Reschedule(ctx, conf.Appointment.ID, tomorrow(), "10:00"); err == nil {
		t.Fatal("expected reschedule of a cancelled appointment to fail")
	}
}

func TestRescheduleMovesAppointment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	date := tomorrow()

	conf, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "09:00",
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	moved, err := f.engine.Reschedule(ctx, conf.Appointment.ID, date, "10:00")
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if moved.Appointment.StartTime != "10:00" || moved.Appointment.EndTime != "11:00" {
		t.Errorf("expected 10:00-11:00, got %s-%s", moved.Appointment.StartTime, moved.Appointment.EndTime)
	}
	if moved.Appointment.Status != domain.AppointmentScheduled {
		t.Errorf("status must stay scheduled, got %s", moved.Appointment.Status)
	}

	// The old slot is bookable again.
	if _, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "09:00",
	}); err != nil {
		t.Fatalf("old slot should be free after reschedule: %v", err)
	}
}

func TestListUpcomingSkipsCancelled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	date := tomorrow()

	kept, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "09:00",
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	gone, err := f.engine.Create(ctx, CreateRequest{
		UserID: f.user.ID, BranchID: f.branch.ID,
		ServiceName: "Corte de cabello", ResourceName: "Maria",
		Date: date, Time: "10:00",
	})
	if err != nil {
		t.Fatalf("second booking failed: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, gone.Appointment.ID, "", "user"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	upcoming, err := f.engine.ListUpcoming(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != kept.Appointment.ID {
		t.Fatalf("expected only the kept appointment, got %+v", upcoming)
	}
}
