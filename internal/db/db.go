package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mithrel/tickler/pkg/api"
)

var ErrNotFound = errors.New("not found")

// DueNotification is a notification joined with its owning event, used by
// the scheduler to compute fire instants.
type DueNotification struct {
	Notification api.Notification
	Event        api.Event
}

// Store is the durable source of truth for events and notifications.
// Deleting an event cascades to its notifications.
type Store interface {
	CreateEvent(ctx context.Context, e api.Event) (api.Event, error)
	GetEvent(ctx context.Context, id string) (api.Event, error)
	UpdateEvent(ctx context.Context, e api.Event) error
	DeleteEvent(ctx context.Context, id string) error
	// ListFutureEvents returns the user's events with scheduled_at > after,
	// ordered ascending by scheduled_at.
	ListFutureEvents(ctx context.Context, userID int64, after time.Time) ([]api.Event, error)

	CreateNotification(ctx context.Context, n api.Notification) (api.Notification, error)
	// ListEventNotifications returns every notification attached to the
	// event, sent and unsent, in creation order.
	ListEventNotifications(ctx context.Context, eventID string) ([]api.Notification, error)
	// DeleteEventNotifications removes every notification attached to the
	// event, sent or not. Used when a reschedule invalidates the old set.
	DeleteEventNotifications(ctx context.Context, eventID string) error
	// ListPending returns unsent notifications whose fire instant is still
	// ahead of now, joined with their events.
	ListPending(ctx context.Context, now time.Time) ([]DueNotification, error)
	GetPending(ctx context.Context, notificationID string) (DueNotification, error)
	// MarkSent flips the sent flag; flipping an already-sent notification
	// is a no-op.
	MarkSent(ctx context.Context, notificationID string) error

	Close() error
}

// Open returns a Store for a URL. sqlite://path is the only durable scheme;
// mem:// backs tests.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return openSQLite(ctx, url)
	case url == "mem://":
		return NewMemStore(), nil
	}
	return nil, errors.New("unsupported store url: " + url)
}
