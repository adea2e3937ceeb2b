// Package convo holds per-user pending tasks: partially specified create
// commands that are completed across multiple turns. At most one pending
// task exists per user; any new top-level command overwrites it.
package convo

import (
	"sync"
	"time"
)

type Stage int

const (
	StageIdle Stage = iota
	StageAwaitDate
	StageAwaitTime
	// StageAwaitChoice means date and time are resolved and the user is
	// picking a notification lead time.
	StageAwaitChoice
)

// Task is one user's partially specified create command.
type Task struct {
	Description string

	day     time.Time // date component at midnight; zero when unknown
	hour    int
	minute  int
	hasDay  bool
	hasTime bool
}

// NewTask starts a pending task from whatever the extraction produced.
func NewTask(description string) Task {
	return Task{Description: description}
}

func (t *Task) SetDate(day time.Time) {
	t.day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	t.hasDay = true
}

func (t *Task) SetClock(hour, minute int) {
	t.hour, t.minute = hour, minute
	t.hasTime = true
}

// ClearClock forgets the time component, returning the task to
// StageAwaitTime so a replacement clock can be consumed.
func (t *Task) ClearClock() {
	t.hour, t.minute = 0, 0
	t.hasTime = false
}

func (t Task) NeedsDate() bool { return !t.hasDay }
func (t Task) NeedsTime() bool { return !t.hasTime }

// Stage derives the conversational state from the need flags.
func (t Task) Stage() Stage {
	switch {
	case t.NeedsDate():
		return StageAwaitDate
	case t.NeedsTime():
		return StageAwaitTime
	default:
		return StageAwaitChoice
	}
}

// Resolved combines date and clock into the scheduled instant. Only valid
// at StageAwaitChoice.
func (t Task) Resolved() time.Time {
	return time.Date(t.day.Year(), t.day.Month(), t.day.Day(), t.hour, t.minute, 0, 0, t.day.Location())
}

// Tracker is the process-wide pending-task map, keyed by user identity.
// Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	tasks map[int64]Task
}

func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[int64]Task)}
}

// Begin installs a pending task for the user, overwriting any previous one.
func (tr *Tracker) Begin(user int64, t Task) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.tasks[user] = t
}

func (tr *Tracker) Get(user int64) (Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.tasks[user]
	return t, ok
}

// Update stores the mutated task back. No-op if the user has no pending task
// (it was cleared concurrently).
func (tr *Tracker) Update(user int64, t Task) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.tasks[user]; ok {
		tr.tasks[user] = t
	}
}

// Clear removes the pending task unconditionally.
func (tr *Tracker) Clear(user int64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.tasks, user)
}
