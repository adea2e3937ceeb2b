package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/tickler/internal/db"
	"github.com/mithrel/tickler/pkg/api"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) SendReminder(ctx context.Context, userID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return r.err
}

func (r *recordingSender) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func setup(t *testing.T) (db.Store, *recordingSender, *Scheduler, context.Context) {
	t.Helper()
	store := db.NewMemStore()
	sender := &recordingSender{}
	s := New(store, sender)
	t.Cleanup(s.Stop)
	return store, sender, s, context.Background()
}

func addEventWithNotification(t *testing.T, store db.Store, at time.Time, lead int) (api.Event, api.Notification) {
	t.Helper()
	e, err := store.CreateEvent(context.Background(), api.Event{
		UserID: 1, Description: "standup", ScheduledAt: at,
	})
	require.NoError(t, err)
	n, err := store.CreateNotification(context.Background(), api.Notification{
		EventID: e.ID, LeadMinutes: lead,
	})
	require.NoError(t, err)
	return e, n
}

func TestScheduleAllIsIdempotent(t *testing.T) {
	store, _, s, ctx := setup(t)
	addEventWithNotification(t, store, time.Now().Add(time.Hour), 15)

	require.NoError(t, s.ScheduleAll(ctx))
	require.NoError(t, s.ScheduleAll(ctx))
	assert.Equal(t, 1, s.Active())
}

func TestScheduleAllDropsStaleTimers(t *testing.T) {
	store, _, s, ctx := setup(t)
	e, _ := addEventWithNotification(t, store, time.Now().Add(time.Hour), 15)

	require.NoError(t, s.ScheduleAll(ctx))
	require.Equal(t, 1, s.Active())

	require.NoError(t, store.DeleteEvent(ctx, e.ID))
	require.NoError(t, s.ScheduleAll(ctx))
	assert.Equal(t, 0, s.Active())
}

func TestFireDeliversAndMarksSentOnce(t *testing.T) {
	store, sender, s, ctx := setup(t)
	// fire instant a few ms in the future
	at := time.Now().Add(50*time.Millisecond + 15*time.Minute)
	_, n := addEventWithNotification(t, store, at, 15)

	require.NoError(t, s.ScheduleAll(ctx))
	require.Eventually(t, func() bool { return len(sender.delivered()) == 1 }, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetPending(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Notification.Sent)
	assert.Equal(t, 0, s.Active())

	// a second sweep must not reschedule a sent notification
	require.NoError(t, s.ScheduleAll(ctx))
	assert.Equal(t, 0, s.Active())
}

func TestFireSwallowsDeliveryFailure(t *testing.T) {
	store, sender, s, ctx := setup(t)
	sender.err = errors.New("blocked by user")
	at := time.Now().Add(50*time.Millisecond + 15*time.Minute)
	_, n := addEventWithNotification(t, store, at, 15)

	require.NoError(t, s.ScheduleAll(ctx))
	require.Eventually(t, func() bool {
		d, err := store.GetPending(ctx, n.ID)
		return err == nil && d.Notification.Sent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelMissingIsNoop(t *testing.T) {
	_, _, s, _ := setup(t)
	s.Cancel("never-scheduled")
	assert.Equal(t, 0, s.Active())
}

func TestRescheduleRegeneratesNotifications(t *testing.T) {
	store, sender, s, ctx := setup(t)
	// old fire instant is ~50ms out
	e, old := addEventWithNotification(t, store, time.Now().Add(time.Minute+50*time.Millisecond), 1)
	require.NoError(t, s.ScheduleAll(ctx))

	// Move the event out and rebuild its notification set, the way the bot
	// layer does on change_time: delete, recreate, re-sweep.
	e.ScheduledAt = time.Now().Add(2 * time.Hour)
	require.NoError(t, store.UpdateEvent(ctx, e))
	require.NoError(t, store.DeleteEventNotifications(ctx, e.ID))
	_, err := store.CreateNotification(ctx, api.Notification{EventID: e.ID, LeadMinutes: 1})
	require.NoError(t, err)
	require.NoError(t, s.ScheduleAll(ctx))

	assert.Equal(t, 1, s.Active())
	_, err = store.GetPending(ctx, old.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// nothing fires at the pre-change offset
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, sender.delivered())
}
