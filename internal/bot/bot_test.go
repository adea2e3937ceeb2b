package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/tickler/internal/db"
	"github.com/mithrel/tickler/internal/extract"
	"github.com/mithrel/tickler/internal/sched"
	"github.com/mithrel/tickler/pkg/api"
)

type sentMsg struct {
	user int64
	text string
	kb   Keyboard
}

type recorder struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (r *recorder) SendMessage(ctx context.Context, userID int64, text string, kb Keyboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sentMsg{user: userID, text: text, kb: kb})
	return nil
}

func (r *recorder) SendReminder(ctx context.Context, userID int64, text string) error {
	return r.SendMessage(ctx, userID, text, nil)
}

func (r *recorder) last(t *testing.T) sentMsg {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs)
	return r.msgs[len(r.msgs)-1]
}

// evening reference; 18:00 has passed so bare times roll to tomorrow
var now = time.Date(2025, 6, 10, 20, 0, 0, 0, time.Local)

func setup(t *testing.T) (*Bot, db.Store, *recorder, context.Context) {
	return setupWith(t, extract.Simple{})
}

func setupWith(t *testing.T, ex extract.Extractor) (*Bot, db.Store, *recorder, context.Context) {
	t.Helper()
	store := db.NewMemStore()
	rec := &recorder{}
	s := sched.New(store, rec)
	s.SetNowFunc(func() time.Time { return now })
	t.Cleanup(s.Stop)
	b := New(store, s, ex, rec, 0.3)
	b.SetNowFunc(func() time.Time { return now })
	return b, store, rec, context.Background()
}

// scripted always yields the same raw payload, standing in for the
// assisted strategy.
type scripted struct {
	raw extract.RawCommand
	err error
}

func (s scripted) Extract(ctx context.Context, text string, at time.Time) (extract.RawCommand, error) {
	return s.raw, s.err
}

func futureEvents(t *testing.T, store db.Store, user int64) []api.Event {
	t.Helper()
	events, err := store.ListFutureEvents(context.Background(), user, now)
	require.NoError(t, err)
	return events
}

func TestCreateFlowEndToEnd(t *testing.T) {
	b, store, rec, ctx := setup(t)

	b.HandleMessage(ctx, 1, "buy groceries tomorrow at 18:00")

	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "buy groceries", events[0].Description)
	assert.Equal(t, time.Date(2025, 6, 11, 18, 0, 0, 0, time.Local), events[0].ScheduledAt)

	// the create reply carries the lead-time keyboard
	msg := rec.last(t)
	require.NotEmpty(t, msg.kb)

	b.HandleCallback(ctx, 1, "lead:"+events[0].ID+":15")
	notifs, err := store.ListEventNotifications(ctx, events[0].ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, 15, notifs[0].LeadMinutes)
	assert.Equal(t,
		time.Date(2025, 6, 11, 17, 45, 0, 0, time.Local),
		notifs[0].FireAt(events[0].ScheduledAt))
	assert.Contains(t, rec.last(t).text, "Saved")
}

func TestNoReminderChoiceCreatesNoRecord(t *testing.T) {
	b, store, _, ctx := setup(t)
	b.HandleMessage(ctx, 1, "standup 09:00")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)

	b.HandleCallback(ctx, 1, "lead:"+events[0].ID+":0")
	notifs, err := store.ListEventNotifications(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Empty(t, notifs)
}

func TestTimeNotRecognized(t *testing.T) {
	b, store, rec, ctx := setup(t)
	b.HandleMessage(ctx, 1, "buy groceries someday")
	assert.Contains(t, rec.last(t).text, "could not find a time")
	assert.Empty(t, futureEvents(t, store, 1))
}

func TestDeleteMatchedEventCancelsNotifications(t *testing.T) {
	b, store, rec, ctx := setup(t)
	b.HandleMessage(ctx, 1, "dentist appointment tomorrow at 09:00")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	b.HandleCallback(ctx, 1, "lead:"+events[0].ID+":15")

	// route a delete through the assisted-shaped raw payload path
	cmd, err := extract.Validate(extract.RawCommand{Action: "delete", Event: "dentist appointment"}, now)
	require.NoError(t, err)
	b.withMatchedEvent(ctx, 1, cmd.Query, func(ev api.Event) { b.deleteEvent(ctx, 1, ev) })

	assert.Empty(t, futureEvents(t, store, 1))
	pend, err := store.ListPending(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, pend)
	assert.Contains(t, rec.last(t).text, "Deleted")
}

func TestDeleteNoMatchLeavesStoreUntouched(t *testing.T) {
	b, store, rec, ctx := setup(t)
	b.HandleMessage(ctx, 1, "dentist appointment tomorrow at 09:00")
	require.Len(t, futureEvents(t, store, 1), 1)

	b.withMatchedEvent(ctx, 1, "xyzzy", func(ev api.Event) { b.deleteEvent(ctx, 1, ev) })

	assert.Len(t, futureEvents(t, store, 1), 1)
	assert.Contains(t, rec.last(t).text, "Nothing matching")
}

func TestAmbiguousMatchPromptsChoice(t *testing.T) {
	b, store, rec, ctx := setup(t)
	b.HandleMessage(ctx, 1, "team sync tomorrow at 10:00")
	b.HandleMessage(ctx, 1, "team retro tomorrow at 11:00")
	require.Len(t, futureEvents(t, store, 1), 2)

	b.withMatchedEvent(ctx, 1, "team", func(ev api.Event) {
		t.Fatal("must not auto-resolve an ambiguous reference")
	})
	assert.Contains(t, rec.last(t).text, "Several events match")
}

func TestRescheduleInvalidatesOldNotifications(t *testing.T) {
	b, store, _, ctx := setup(t)
	b.HandleMessage(ctx, 1, "standup tomorrow at 10:00")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	b.HandleCallback(ctx, 1, "lead:"+events[0].ID+":30")
	before, err := store.ListEventNotifications(ctx, events[0].ID)
	require.NoError(t, err)
	require.Len(t, before, 1)

	newAt := time.Date(2025, 6, 12, 16, 0, 0, 0, time.Local)
	b.rescheduleEvent(ctx, 1, events[0], newAt, events[0].Description)

	after, err := store.ListEventNotifications(ctx, events[0].ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].ID, after[0].ID)
	assert.Equal(t, 30, after[0].LeadMinutes)
	got, err := store.GetEvent(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, newAt, got.ScheduledAt)
}

func TestPendingTaskFlow(t *testing.T) {
	// an assisted-shaped create with no time enters the pending flow
	b, store, rec, ctx := setupWith(t, scripted{raw: extract.RawCommand{Action: "create", Event: "dentist"}})

	b.HandleMessage(ctx, 1, "remind me about the dentist")
	assert.Contains(t, rec.last(t).text, "What date?")

	b.HandleMessage(ctx, 1, "tomorrow")
	assert.Contains(t, rec.last(t).text, "What time?")

	b.HandleMessage(ctx, 1, "09:15")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "dentist", events[0].Description)
	assert.Equal(t, time.Date(2025, 6, 11, 9, 15, 0, 0, time.Local), events[0].ScheduledAt)
	require.NotEmpty(t, rec.last(t).kb)
}

func TestPendingTaskRetriesAfterPastTime(t *testing.T) {
	b, store, rec, ctx := setupWith(t, scripted{raw: extract.RawCommand{Action: "create", Event: "dentist"}})

	b.HandleMessage(ctx, 1, "remind me about the dentist")
	b.HandleMessage(ctx, 1, "today")
	assert.Contains(t, rec.last(t).text, "What time?")

	// 08:00 today is already gone; the task must keep waiting for a time
	b.HandleMessage(ctx, 1, "08:00")
	assert.Contains(t, rec.last(t).text, "already passed")
	assert.Empty(t, futureEvents(t, store, 1))

	b.HandleMessage(ctx, 1, "21:00")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "dentist", events[0].Description)
	assert.Equal(t, time.Date(2025, 6, 10, 21, 0, 0, 0, time.Local), events[0].ScheduledAt)
	require.NotEmpty(t, rec.last(t).kb)
}

func TestCancelClearsPendingTask(t *testing.T) {
	b, _, rec, ctx := setupWith(t, scripted{raw: extract.RawCommand{Action: "create", Event: "dentist"}})
	b.HandleMessage(ctx, 1, "remind me about the dentist")
	assert.Contains(t, rec.last(t).text, "What date?")

	b.HandleMessage(ctx, 1, "/cancel")
	assert.Contains(t, rec.last(t).text, "cancelled")

	// with no pending task the date reply is a fresh top-level command again
	b.HandleMessage(ctx, 1, "tomorrow")
	assert.Contains(t, rec.last(t).text, "What date?")
}

func TestListAndStartHelp(t *testing.T) {
	b, _, rec, ctx := setup(t)

	b.HandleMessage(ctx, 1, "/tasks")
	assert.Contains(t, rec.last(t).text, "no upcoming events")

	b.HandleMessage(ctx, 1, "grocery run tomorrow at 08:00")
	b.HandleMessage(ctx, 1, "/tasks")
	assert.Contains(t, rec.last(t).text, "grocery run")
	assert.Contains(t, rec.last(t).text, "11.06.2025 08:00")

	b.HandleMessage(ctx, 1, "/start")
	assert.Contains(t, rec.last(t).text, "calendar assistant")
	b.HandleMessage(ctx, 1, "/help")
	assert.Contains(t, rec.last(t).text, "tomorrow at 15:30")
}

func TestEmptyDescriptionDefaultsToReminder(t *testing.T) {
	b, store, _, ctx := setup(t)
	b.HandleMessage(ctx, 1, "21:30")
	events := futureEvents(t, store, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "Reminder", events[0].Description)
}
