// Package bot routes inbound chat messages through the extraction pipeline
// and mutates events, pending tasks, and the notification schedule.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mithrel/tickler/internal/convo"
	"github.com/mithrel/tickler/internal/db"
	"github.com/mithrel/tickler/internal/extract"
	"github.com/mithrel/tickler/internal/log"
	"github.com/mithrel/tickler/internal/match"
	"github.com/mithrel/tickler/internal/sched"
	"github.com/mithrel/tickler/pkg/api"
)

// Button is one inline keyboard button; Data comes back via HandleCallback.
type Button struct {
	Text string
	Data string
}

// Keyboard is rendered as rows of inline buttons.
type Keyboard [][]Button

// Messenger is the outbound chat collaborator. Delivery failures are the
// collaborator's problem; the bot logs and carries on.
type Messenger interface {
	SendMessage(ctx context.Context, userID int64, text string, kb Keyboard) error
}

const displayLayout = "02.01.2006 15:04"

type Bot struct {
	store     db.Store
	scheduler *sched.Scheduler
	extractor extract.Extractor
	tracker   *convo.Tracker
	send      Messenger
	threshold float64
	now       func() time.Time
}

func New(store db.Store, scheduler *sched.Scheduler, extractor extract.Extractor, send Messenger, threshold float64) *Bot {
	if threshold <= 0 {
		threshold = match.DefaultThreshold
	}
	return &Bot{
		store:     store,
		scheduler: scheduler,
		extractor: extractor,
		tracker:   convo.NewTracker(),
		send:      send,
		threshold: threshold,
		now:       time.Now,
	}
}

// SetNowFunc overrides the clock source. Test hook.
func (b *Bot) SetNowFunc(f func() time.Time) { b.now = f }

// HandleMessage processes one inbound message for one user to completion.
func (b *Bot) HandleMessage(ctx context.Context, userID int64, text string) {
	text = strings.TrimSpace(text)
	switch {
	case text == "/start":
		b.reply(ctx, userID, startText, nil)
		return
	case text == "/help" || text == "/task":
		b.reply(ctx, userID, helpText, nil)
		return
	case text == "/tasks" || text == "/mytasks":
		b.listEvents(ctx, userID)
		return
	case text == "/cancel":
		b.tracker.Clear(userID)
		b.reply(ctx, userID, "Okay, cancelled.", nil)
		return
	}

	// A date-only or time-only reply is routed to the pending task, but only
	// while the matching need flag is set; anything else is a new command.
	if task, ok := b.tracker.Get(userID); ok {
		if b.advancePending(ctx, userID, task, text) {
			return
		}
	}

	b.handleCommand(ctx, userID, text)
}

// HandleCallback processes an inline-button selection.
// Recognized payloads: "lead:<eventID>:<minutes>".
func (b *Bot) HandleCallback(ctx context.Context, userID int64, data string) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "lead" {
		log.Debug("unknown callback payload", "data", data)
		return
	}
	eventID := parts[1]
	minutes, err := strconv.Atoi(parts[2])
	if err != nil || minutes < 0 {
		log.Debug("bad lead minutes in callback", "data", data)
		return
	}

	ev, err := b.store.GetEvent(ctx, eventID)
	if err != nil || ev.UserID != userID {
		b.reply(ctx, userID, "That event is gone.", nil)
		return
	}

	if minutes == 0 {
		b.reply(ctx, userID, confirmCreated(ev, 0), nil)
		return
	}
	if _, err := b.store.CreateNotification(ctx, api.Notification{EventID: ev.ID, LeadMinutes: minutes}); err != nil {
		log.Error("create notification failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	b.resweep(ctx)
	b.reply(ctx, userID, confirmCreated(ev, minutes), nil)
}

// handleCommand runs the full extract → validate → dispatch pipeline.
func (b *Bot) handleCommand(ctx context.Context, userID int64, text string) {
	now := b.now()
	raw, err := b.extractor.Extract(ctx, text, now)
	if err != nil {
		if errors.Is(err, extract.ErrTimeNotRecognized) {
			b.reply(ctx, userID, timeNotRecognizedText, nil)
			return
		}
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}

	cmd, err := extract.Validate(raw, now)
	if err != nil {
		// A create that only lacks its time becomes a pending task and is
		// completed across further turns.
		if errors.Is(err, extract.ErrTimeNotRecognized) && strings.TrimSpace(raw.Event) != "" {
			b.tracker.Begin(userID, convo.NewTask(strings.TrimSpace(raw.Event)))
			b.reply(ctx, userID, "What date? (DD.MM.YYYY, \"today\" or \"tomorrow\")", nil)
			return
		}
		if errors.Is(err, extract.ErrTimeNotRecognized) {
			b.reply(ctx, userID, timeNotRecognizedText, nil)
			return
		}
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}

	// any accepted top-level command overwrites a pending task
	b.tracker.Clear(userID)

	switch cmd.Kind {
	case api.CommandCreate:
		b.createEvent(ctx, userID, cmd.Query, cmd.At)
	case api.CommandList:
		b.listEvents(ctx, userID)
	case api.CommandDelete:
		b.withMatchedEvent(ctx, userID, cmd.Query, func(ev api.Event) {
			b.deleteEvent(ctx, userID, ev)
		})
	case api.CommandChangeTime, api.CommandChangeDate:
		b.withMatchedEvent(ctx, userID, cmd.Query, func(ev api.Event) {
			b.rescheduleEvent(ctx, userID, ev, cmd.MoveTo, ev.Description)
		})
	case api.CommandChangeDesc:
		b.withMatchedEvent(ctx, userID, cmd.Query, func(ev api.Event) {
			b.renameEvent(ctx, userID, ev, cmd.NewDescription)
		})
	case api.CommandChangeFull:
		b.withMatchedEvent(ctx, userID, cmd.Query, func(ev api.Event) {
			b.rescheduleEvent(ctx, userID, ev, cmd.MoveTo, cmd.NewDescription)
		})
	}
}

// advancePending tries to consume text as the missing date or time of the
// user's pending task. Returns false when the reply does not fit what the
// task is waiting for, so the caller treats it as a new command.
func (b *Bot) advancePending(ctx context.Context, userID int64, task convo.Task, text string) bool {
	switch task.Stage() {
	case convo.StageAwaitDate:
		day, ok := parseDateReply(text, b.now())
		if !ok {
			return false
		}
		task.SetDate(day)
	case convo.StageAwaitTime:
		h, m, ok := parseTimeReply(text)
		if !ok {
			return false
		}
		task.SetClock(h, m)
	default:
		return false
	}

	if task.Stage() != convo.StageAwaitChoice {
		b.tracker.Update(userID, task)
		if task.Stage() == convo.StageAwaitTime {
			b.reply(ctx, userID, "What time? (HH:MM)", nil)
		} else {
			b.reply(ctx, userID, "What date? (DD.MM.YYYY, \"today\" or \"tomorrow\")", nil)
		}
		return true
	}

	at := task.Resolved()
	if !at.After(b.now()) {
		// drop the rejected clock so the next reply is consumed as a time
		task.ClearClock()
		b.tracker.Update(userID, task)
		b.reply(ctx, userID, "That moment has already passed, give me a future one.", nil)
		return true
	}
	b.tracker.Clear(userID)
	b.createEvent(ctx, userID, task.Description, at)
	return true
}

// createEvent persists the event and offers the lead-time keyboard.
func (b *Bot) createEvent(ctx context.Context, userID int64, description string, at time.Time) {
	if description == "" {
		description = "Reminder"
	}
	if !at.After(b.now()) {
		b.reply(ctx, userID, "Time cannot be in the past.", nil)
		return
	}
	ev, err := b.store.CreateEvent(ctx, api.Event{
		UserID:      userID,
		Description: description,
		ScheduledAt: at,
	})
	if err != nil {
		log.Error("create event failed", err, "user", userID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	log.Info("event created", "user", userID, "event", ev.ID, "at", at.Format(displayLayout))
	b.reply(ctx, userID,
		fmt.Sprintf("📝 %s\n⏰ %s\n\nRemind you beforehand?", ev.Description, at.Format(displayLayout)),
		leadKeyboard(ev.ID))
}

// withMatchedEvent resolves a free-text reference and branches on
// cardinality: none and many are surfaced to the user, exactly one runs fn.
func (b *Bot) withMatchedEvent(ctx context.Context, userID int64, query string, fn func(api.Event)) {
	candidates, err := b.store.ListFutureEvents(ctx, userID, b.now())
	if err != nil {
		log.Error("list events failed", err, "user", userID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	matched := match.Match(query, candidates, b.threshold)
	switch len(matched) {
	case 0:
		msg := fmt.Sprintf("Nothing matching %q found.", query)
		if sugg := match.Suggest(query, candidates, 3); len(sugg) > 0 {
			msg += "\nDid you mean: " + strings.Join(sugg, ", ") + "?"
		}
		b.reply(ctx, userID, msg, nil)
	case 1:
		fn(matched[0])
	default:
		var sb strings.Builder
		sb.WriteString("Several events match, be more specific:\n")
		for i, ev := range matched {
			fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, ev.Description, ev.ScheduledAt.Format(displayLayout))
		}
		b.reply(ctx, userID, sb.String(), nil)
	}
}

func (b *Bot) deleteEvent(ctx context.Context, userID int64, ev api.Event) {
	if err := b.store.DeleteEvent(ctx, ev.ID); err != nil {
		log.Error("delete event failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	b.resweep(ctx)
	log.Info("event deleted", "user", userID, "event", ev.ID)
	b.reply(ctx, userID, fmt.Sprintf("Deleted %q.", ev.Description), nil)
}

// rescheduleEvent moves an event and regenerates its notifications from
// scratch against the new instant; the old ones are invalidated wholesale
// rather than recomputed in place.
func (b *Bot) rescheduleEvent(ctx context.Context, userID int64, ev api.Event, to time.Time, description string) {
	old, err := b.store.ListEventNotifications(ctx, ev.ID)
	if err != nil {
		log.Error("list notifications failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	ev.ScheduledAt = to
	ev.Description = description
	if err := b.store.UpdateEvent(ctx, ev); err != nil {
		log.Error("update event failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	if err := b.store.DeleteEventNotifications(ctx, ev.ID); err != nil {
		log.Error("invalidate notifications failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	for _, n := range old {
		if n.Sent {
			continue
		}
		if _, err := b.store.CreateNotification(ctx, api.Notification{EventID: ev.ID, LeadMinutes: n.LeadMinutes}); err != nil {
			log.Error("recreate notification failed", err, "event", ev.ID)
		}
	}
	b.resweep(ctx)
	log.Info("event rescheduled", "user", userID, "event", ev.ID, "to", to.Format(displayLayout))
	b.reply(ctx, userID, fmt.Sprintf("Moved %q to %s.", ev.Description, to.Format(displayLayout)), nil)
}

func (b *Bot) renameEvent(ctx context.Context, userID int64, ev api.Event, description string) {
	oldDesc := ev.Description
	ev.Description = description
	if err := b.store.UpdateEvent(ctx, ev); err != nil {
		log.Error("update event failed", err, "event", ev.ID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	b.reply(ctx, userID, fmt.Sprintf("Renamed %q to %q.", oldDesc, description), nil)
}

func (b *Bot) listEvents(ctx context.Context, userID int64) {
	events, err := b.store.ListFutureEvents(ctx, userID, b.now())
	if err != nil {
		log.Error("list events failed", err, "user", userID)
		b.reply(ctx, userID, tryAgainText, nil)
		return
	}
	if len(events) == 0 {
		b.reply(ctx, userID, "You have no upcoming events.", nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("📋 Your upcoming events:\n\n")
	for i, ev := range events {
		fmt.Fprintf(&sb, "%d. %s\n   ⏱ %s\n", i+1, ev.Description, ev.ScheduledAt.Format(displayLayout))
	}
	b.reply(ctx, userID, sb.String(), nil)
}

// resweep refreshes the timer registry after a mutation. Errors are logged;
// the periodic sweep will retry soon anyway.
func (b *Bot) resweep(ctx context.Context) {
	if b.scheduler == nil {
		return
	}
	if err := b.scheduler.ScheduleAll(ctx); err != nil {
		log.Error("schedule refresh failed", err)
	}
}

func (b *Bot) reply(ctx context.Context, userID int64, text string, kb Keyboard) {
	if err := b.send.SendMessage(ctx, userID, text, kb); err != nil {
		log.Error("send failed", err, "user", userID)
	}
}

func leadKeyboard(eventID string) Keyboard {
	labels := map[int]string{
		0:    "No reminder",
		5:    "5 minutes",
		15:   "15 minutes",
		30:   "30 minutes",
		60:   "1 hour",
		1440: "1 day",
	}
	var row []Button
	var kb Keyboard
	for _, m := range api.LeadOptions {
		row = append(row, Button{Text: labels[m], Data: fmt.Sprintf("lead:%s:%d", eventID, m)})
		if len(row) == 3 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return kb
}

func confirmCreated(ev api.Event, minutes int) string {
	if minutes == 0 {
		return fmt.Sprintf("✅ Saved!\n📝 %s\n⏰ %s\nNo reminder set.",
			ev.Description, ev.ScheduledAt.Format(displayLayout))
	}
	return fmt.Sprintf("✅ Saved!\n📝 %s\n⏰ %s\nI will remind you %s before.",
		ev.Description, ev.ScheduledAt.Format(displayLayout), leadLabel(minutes))
}

func leadLabel(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// parseDateReply accepts "DD.MM.YYYY", "today" or "tomorrow".
func parseDateReply(text string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "today":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	}
	t, err := time.ParseInLocation("02.01.2006", s, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseTimeReply accepts "HH:MM".
func parseTimeReply(text string) (hour, minute int, ok bool) {
	s := strings.TrimSpace(text)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

const startText = `Hi! I am your calendar assistant 📅

Commands:
/task — how to create an event with a reminder
/tasks — show your upcoming events
/cancel — drop a half-finished event

Try creating your first event!`

const helpText = `📝 Send an event and a time, for example:

• meeting tomorrow at 15:30
• call mom in 2 hours
• board review 25.12.2025 14:00
• buy groceries 18:00
• training today at 19:00`

const timeNotRecognizedText = `❌ I could not find a time in your message.

Try one of these formats:
• meeting tomorrow at 15:30
• call mom in 2 hours
• board review 25.12.2025 14:00
• reminder 18:00`

const tryAgainText = "❌ Something went wrong, please try again."
