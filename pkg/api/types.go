package api

import "time"

// Event is one scheduled occurrence for one user.
type Event struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is a reminder attached to exactly one event. It fires at
// ScheduledAt − LeadMinutes and is marked sent at most once.
type Notification struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	LeadMinutes int       `json:"lead_minutes"`
	Sent        bool      `json:"sent"`
	CreatedAt   time.Time `json:"created_at"`
}

// FireAt returns the absolute instant the notification becomes due.
func (n Notification) FireAt(eventAt time.Time) time.Time {
	return eventAt.Add(-time.Duration(n.LeadMinutes) * time.Minute)
}

// CommandKind enumerates the structured commands the extractor can produce.
type CommandKind string

const (
	CommandCreate     CommandKind = "create"
	CommandDelete     CommandKind = "delete"
	CommandChangeTime CommandKind = "change_time"
	CommandChangeDate CommandKind = "change_date"
	CommandChangeDesc CommandKind = "change_description"
	CommandChangeFull CommandKind = "change_full"
	CommandList       CommandKind = "list"
)

// Valid reports whether k is one of the known command kinds.
func (k CommandKind) Valid() bool {
	switch k {
	case CommandCreate, CommandDelete, CommandChangeTime, CommandChangeDate,
		CommandChangeDesc, CommandChangeFull, CommandList:
		return true
	}
	return false
}

// Command is the validated, ephemeral output of the extraction pipeline.
// Query names the target event ("create" uses it as the new description).
// At carries the primary instant, MoveTo the secondary one ("move to"),
// NewDescription the replacement text for description changes.
type Command struct {
	Kind           CommandKind
	Query          string
	At             time.Time
	MoveTo         time.Time
	NewDescription string
}

// LeadOptions is the fixed lead-time choice set offered after a create,
// in minutes before the event. Zero means no reminder.
var LeadOptions = []int{0, 5, 15, 30, 60, 1440}
