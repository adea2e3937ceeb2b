package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mithrel/tickler/pkg/api"
)

// memStore mirrors the sqlite semantics in memory, including the cascade
// from events to notifications. Tests use it through NewMemStore.
type memStore struct {
	mu     sync.RWMutex
	events map[string]api.Event
	notifs map[string]api.Notification
}

func NewMemStore() Store {
	return &memStore{
		events: make(map[string]api.Event),
		notifs: make(map[string]api.Notification),
	}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) CreateEvent(ctx context.Context, e api.Event) (api.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = api.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events[e.ID] = e
	return e, nil
}

func (m *memStore) GetEvent(ctx context.Context, id string) (api.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return api.Event{}, ErrNotFound
	}
	return e, nil
}

func (m *memStore) UpdateEvent(ctx context.Context, e api.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Description = e.Description
	cur.ScheduledAt = e.ScheduledAt
	m.events[e.ID] = cur
	return nil
}

func (m *memStore) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	for nid, n := range m.notifs {
		if n.EventID == id {
			delete(m.notifs, nid)
		}
	}
	return nil
}

func (m *memStore) ListFutureEvents(ctx context.Context, userID int64, after time.Time) ([]api.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []api.Event
	for _, e := range m.events {
		if e.UserID == userID && e.ScheduledAt.After(after) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memStore) CreateNotification(ctx context.Context, n api.Notification) (api.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[n.EventID]; !ok {
		return api.Notification{}, ErrNotFound
	}
	if n.ID == "" {
		n.ID = api.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifs[n.ID] = n
	return n, nil
}

func (m *memStore) ListEventNotifications(ctx context.Context, eventID string) ([]api.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []api.Notification
	for _, n := range m.notifs {
		if n.EventID == eventID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) DeleteEventNotifications(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for nid, n := range m.notifs {
		if n.EventID == eventID {
			delete(m.notifs, nid)
		}
	}
	return nil
}

func (m *memStore) ListPending(ctx context.Context, now time.Time) ([]DueNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []DueNotification
	for _, n := range m.notifs {
		e, ok := m.events[n.EventID]
		if !ok || n.Sent {
			continue
		}
		if n.FireAt(e.ScheduledAt).After(now) {
			out = append(out, DueNotification{Notification: n, Event: e})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Event.ScheduledAt.Before(out[j].Event.ScheduledAt)
	})
	return out, nil
}

func (m *memStore) GetPending(ctx context.Context, notificationID string) (DueNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifs[notificationID]
	if !ok {
		return DueNotification{}, ErrNotFound
	}
	e, ok := m.events[n.EventID]
	if !ok {
		return DueNotification{}, ErrNotFound
	}
	return DueNotification{Notification: n, Event: e}, nil
}

func (m *memStore) MarkSent(ctx context.Context, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifs[notificationID]
	if !ok {
		return ErrNotFound
	}
	n.Sent = true
	m.notifs[notificationID] = n
	return nil
}
