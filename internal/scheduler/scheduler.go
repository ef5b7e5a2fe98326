package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"schedbot/internal/storage"
)

// NotifyFunc delivers a reminder to a user address. Delivery failures
// are the caller's to report; the scheduler only logs them.
type NotifyFunc func(address, text string) error

// Scheduler sends next-day appointment reminders on a cron schedule.
// Each run scans tomorrow's unreminded appointments; an appointment is
// marked only after its reminder actually went out, so a failed send is
// retried on the next run.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	store  *storage.Store
	notify NotifyFunc
	spec   string
	loc    *time.Location
}

func New(store *storage.Store, notify NotifyFunc, spec string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		store:  store,
		notify: notify,
		spec:   spec,
		loc:    loc,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(s.ctx); err != nil {
			log.Printf("❌ reminder run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("📅 Reminder scheduler started (spec %q, tz %s)", s.spec, s.loc)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Reminder scheduler stopped")
}

// RunOnce sends reminders for tomorrow's scheduled appointments.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	tomorrow := time.Now().In(s.loc).AddDate(0, 0, 1).Format("2006-01-02")
	pending, err := s.store.Appointments.PendingReminders(ctx, tomorrow)
	if err != nil {
		return fmt.Errorf("could not load pending reminders: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	log.Printf("📅 Sending %d reminder(s) for %s", len(pending), tomorrow)

	for _, appt := range pending {
		user, err := s.store.Users.Get(ctx, appt.UserID)
		if err != nil {
			log.Printf("⚠️ reminder %s: could not load user %s: %v", appt.ID, appt.UserID, err)
			continue
		}
		text := fmt.Sprintf("Reminder: %s with %s tomorrow (%s) at %s.",
			appt.ServiceNameSnapshot, appt.ResourceNameSnapshot, appt.Date, appt.StartTime)
		if err := s.notify(user.PhoneNumber, text); err != nil {
			log.Printf("⚠️ reminder %s: delivery to %s failed: %v", appt.ID, user.PhoneNumber, err)
			continue
		}
		if err := s.store.Appointments.MarkReminderSent(ctx, appt.ID); err != nil {
			log.Printf("⚠️ reminder %s: could not mark sent: %v", appt.ID, err)
		}
	}
	return nil
}
