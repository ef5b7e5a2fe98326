package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"schedbot/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	return store
}

func TestMessagesAppendBumpsConversation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, err := store.Conversations.Create(ctx, "sess-1")
	if err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}

	if _, err := store.Messages.Append(ctx, conv.ID, domain.RoleUser, "hola"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := store.Messages.Append(ctx, conv.ID, domain.RoleAssistant, "buenas"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	got, err := store.Conversations.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get conversation failed: %v", err)
	}
	if got.MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", got.MessageCount)
	}
	if !got.LastMessageAt.After(conv.LastMessageAt.Add(-time.Second)) {
		t.Error("last_message_at not advanced")
	}
}

func TestMessagesRecentLimitIsChronological(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Conversations.Create(ctx, "sess-1")
	for i := 0; i < 5; i++ {
		if _, err := store.Messages.Append(ctx, conv.ID, domain.RoleUser, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	recent, err := store.Messages.Recent(ctx, conv.ID, 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}
	if recent[0].Content != "m2" || recent[2].Content != "m4" {
		t.Errorf("expected chronological tail [m2 m3 m4], got [%s %s %s]",
			recent[0].Content, recent[1].Content, recent[2].Content)
	}

	all, err := store.Messages.Recent(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("recent(0) failed: %v", err)
	}
	if len(all) != 5 || all[0].Content != "m0" {
		t.Errorf("expected the full history oldest-first, got %d messages", len(all))
	}
}

func TestConversationsActiveHonorsTimeout(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, err := store.Conversations.Create(ctx, "sess-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Conversations.Active(ctx, "sess-1", time.Hour)
	if err != nil {
		t.Fatalf("expected the fresh conversation to be active: %v", err)
	}
	if got.ID != conv.ID {
		t.Errorf("expected conversation %s, got %s", conv.ID, got.ID)
	}

	// A zero-width window puts last_message_at before the cutoff; the
	// stale row is simply never selected, no sweep marks it expired.
	time.Sleep(10 * time.Millisecond)
	if _, err := store.Conversations.Active(ctx, "sess-1", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound past the timeout, got %v", err)
	}
}

func TestSessionsGetOrCreateIsStable(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, err := store.Sessions.GetOrCreate(ctx, "biz-1", "tg:42")
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	second, err := store.Sessions.GetOrCreate(ctx, "biz-1", "tg:42")
	if err != nil {
		t.Fatalf("second get or create failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same business and phone must resolve to the same session: %s vs %s", first.ID, second.ID)
	}

	other, err := store.Sessions.GetOrCreate(ctx, "biz-2", "tg:42")
	if err != nil {
		t.Fatalf("cross-business get or create failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("sessions must be scoped per business")
	}
}

func TestServicesFindByNamePartialCaseInsensitive(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Seed(
		&domain.Service{ID: "svc-1", BranchID: "b1", Name: "Corte de Cabello", Price: 15, DurationMinutes: 45, IsActive: true},
		&domain.Service{ID: "svc-2", BranchID: "b1", Name: "Manicure", Price: 10, DurationMinutes: 30, IsActive: true},
		&domain.Service{ID: "svc-3", BranchID: "b2", Name: "Corte Premium", Price: 25, DurationMinutes: 60, IsActive: true},
	); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	svc, err := store.Services.FindByName(ctx, "b1", "corte")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if svc.ID != "svc-1" {
		t.Errorf("expected svc-1 within branch b1, got %s", svc.ID)
	}

	if _, err := store.Services.FindByName(ctx, "b1", "pedicure"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointmentsLifecycleQueries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	mk := func(id, date, start, status string) domain.Appointment {
		return domain.Appointment{
			ID: id, UserID: "u1", ResourceID: "r1", ServiceID: "s1", BranchID: "b1",
			Date: date, StartTime: start, EndTime: "23:59", Status: status,
		}
	}
	for _, a := range []domain.Appointment{
		mk("a1", "2026-09-10", "09:00", domain.AppointmentScheduled),
		mk("a2", "2026-09-10", "10:00", domain.AppointmentCancelled),
		mk("a3", "2026-09-11", "09:00", domain.AppointmentScheduled),
	} {
		if _, err := store.Appointments.Create(ctx, a); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	sched, err := store.Appointments.ScheduledByResourceDate(ctx, "r1", "2026-09-10")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(sched) != 1 || sched[0].ID != "a1" {
		t.Fatalf("expected only the scheduled appointment for the date, got %+v", sched)
	}

	upcoming, err := store.Appointments.UpcomingByUser(ctx, "u1", "2026-09-11")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != "a3" {
		t.Fatalf("expected only a3 from 2026-09-11 on, got %+v", upcoming)
	}

	pending, err := store.Appointments.PendingReminders(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a1" {
		t.Fatalf("expected a1 pending a reminder, got %+v", pending)
	}
	if err := store.Appointments.MarkReminderSent(ctx, "a1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ = store.Appointments.PendingReminders(ctx, "2026-09-10")
	if len(pending) != 0 {
		t.Fatalf("expected no pending reminders after marking, got %+v", pending)
	}
}
