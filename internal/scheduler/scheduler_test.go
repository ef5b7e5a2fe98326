package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"schedbot/internal/domain"
	"schedbot/internal/storage"
)

func setup(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	return store
}

func TestRunOnceSendsAndMarksReminders(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	user, err := store.Users.Create(ctx, domain.User{
		ID: "u1", BusinessID: "biz-1", FullName: "Ana Torres", PhoneNumber: "tg:42",
	})
	if err != nil {
		t.Fatalf("user create failed: %v", err)
	}
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	if _, err := store.Appointments.Create(ctx, domain.Appointment{
		ID: "a1", UserID: user.ID, ResourceID: "r1", ServiceID: "s1", BranchID: "b1",
		ServiceNameSnapshot: "Corte de cabello", ResourceNameSnapshot: "Maria",
		Date: tomorrow, StartTime: "10:00", EndTime: "11:00",
		Status: domain.AppointmentScheduled,
	}); err != nil {
		t.Fatalf("appointment create failed: %v", err)
	}

	var sentTo, sentText string
	s := New(store, func(address, text string) error {
		sentTo, sentText = address, text
		return nil
	}, "0 18 * * *", time.UTC)

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sentTo != "tg:42" {
		t.Fatalf("reminder sent to %q, want tg:42", sentTo)
	}
	if sentText == "" || sentText[:9] != "Reminder:" {
		t.Fatalf("unexpected reminder text: %q", sentText)
	}

	// A second run finds nothing pending.
	sentTo = ""
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sentTo != "" {
		t.Fatal("reminder must only be sent once")
	}
}

func TestRunOnceRetriesFailedDelivery(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	user, _ := store.Users.Create(ctx, domain.User{
		ID: "u1", BusinessID: "biz-1", FullName: "Ana Torres", PhoneNumber: "tg:42",
	})
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	if _, err := store.Appointments.Create(ctx, domain.Appointment{
		ID: "a1", UserID: user.ID, ResourceID: "r1", ServiceID: "s1", BranchID: "b1",
		ServiceNameSnapshot: "Corte", ResourceNameSnapshot: "Maria",
		Date: tomorrow, StartTime: "10:00", EndTime: "11:00",
		Status: domain.AppointmentScheduled,
	}); err != nil {
		t.Fatalf("appointment create failed: %v", err)
	}

	fail := true
	delivered := 0
	s := New(store, func(address, text string) error {
		if fail {
			return errors.New("network down")
		}
		delivered++
		return nil
	}, "0 18 * * *", time.UTC)

	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// Failed delivery leaves the appointment unmarked for the next run.
	fail = false
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected delivery on retry, got %d", delivered)
	}
}
