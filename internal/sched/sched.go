// Package sched owns the mapping from pending notifications to one-shot
// timers. The durable store is the source of truth; the in-memory registry
// is re-derived from it on boot and on every sweep, which is what makes
// restart recovery and post-mutation refresh the same code path.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mithrel/tickler/internal/db"
	"github.com/mithrel/tickler/internal/log"
)

// deliveryRetries is the delivery policy: at-most-once. A failed delivery
// is logged and dropped, never retried and never re-marked unsent.
const deliveryRetries = 0

// Sender delivers a reminder to a user. Failures must be tolerated.
type Sender interface {
	SendReminder(ctx context.Context, userID int64, text string) error
}

type Scheduler struct {
	store db.Store
	send  Sender
	now   func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(store db.Store, send Sender) *Scheduler {
	return &Scheduler{
		store:  store,
		send:   send,
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
}

// SetNowFunc overrides the clock source. Test hook.
func (s *Scheduler) SetNowFunc(f func() time.Time) { s.now = f }

// ScheduleAll re-derives the timer registry from the store: every pending
// notification gets a timer at its fire instant, replacing any existing
// timer under the same key, and timers whose notification is no longer
// pending are cancelled. Safe to call repeatedly and after every mutation.
func (s *Scheduler) ScheduleAll(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alive := make(map[string]struct{}, len(pending))
	for _, d := range pending {
		id := d.Notification.ID
		alive[id] = struct{}{}
		delay := d.Notification.FireAt(d.Event.ScheduledAt).Sub(s.now())
		if old, ok := s.timers[id]; ok {
			old.Stop()
		}
		nid := id
		s.timers[id] = time.AfterFunc(delay, func() { s.fire(ctx, nid) })
	}
	for id, t := range s.timers {
		if _, ok := alive[id]; !ok {
			t.Stop()
			delete(s.timers, id)
		}
	}
	log.Debug("schedule sweep", "active_timers", len(s.timers))
	return nil
}

// fire re-reads the notification/event pair at fire time so the reminder
// reflects the latest description and schedule, delivers it, and marks the
// notification sent exactly once. Once a fire starts it cannot be
// cancelled; it completes its send-then-mark sequence or is dropped.
func (s *Scheduler) fire(ctx context.Context, notificationID string) {
	s.Cancel(notificationID)

	d, err := s.store.GetPending(ctx, notificationID)
	if err != nil {
		// Deleted or already handled between scheduling and firing.
		log.Debug("fire skipped", "notification", notificationID, "reason", err)
		return
	}
	if d.Notification.Sent {
		return
	}

	if err := s.send.SendReminder(ctx, d.Event.UserID, d.Event.Description); err != nil {
		log.Error("reminder delivery failed", err,
			"notification", notificationID, "user", d.Event.UserID)
	}
	if err := s.store.MarkSent(ctx, notificationID); err != nil {
		log.Error("mark sent failed", err, "notification", notificationID)
	}
}

// Cancel removes the timer if present; cancelling an already-fired or
// never-scheduled notification is a no-op.
func (s *Scheduler) Cancel(notificationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[notificationID]; ok {
		t.Stop()
		delete(s.timers, notificationID)
	}
}

// Active returns the number of registered timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every registered timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Run performs the boot recovery sweep and then re-sweeps on the given
// cron schedule until ctx is cancelled. A timer lost to a crash or missed
// mutation is restored from durable state within one sweep interval.
func (s *Scheduler) Run(ctx context.Context, cronSpec string) error {
	if err := s.ScheduleAll(ctx); err != nil {
		return err
	}
	c := cron.New()
	_, err := c.AddFunc(cronSpec, func() {
		if err := s.ScheduleAll(ctx); err != nil {
			log.Error("schedule sweep failed", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
		s.Stop()
	}()
	return nil
}
