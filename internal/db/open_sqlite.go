package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mithrel/tickler/pkg/api"
)

type sqliteStore struct{ db *sql.DB }

func openSQLite(ctx context.Context, dsn string) (*sqliteStore, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// set WAL mode
	if _, err := dbh.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	// cascade from events to notifications relies on this
	if _, err := dbh.ExecContext(ctx, `PRAGMA foreign_keys=ON;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	if err := migrate(ctx, dbh); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	return &sqliteStore{db: dbh}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  description TEXT NOT NULL,
  scheduled_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user_sched ON events(user_id, scheduled_at);
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  lead_minutes INTEGER NOT NULL,
  sent INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_event ON notifications(event_id);
`)
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) CreateEvent(ctx context.Context, e api.Event) (api.Event, error) {
	if e.ID == "" {
		e.ID = api.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events(id, user_id, description, scheduled_at, created_at) VALUES(?,?,?,?,?)`,
		e.ID, e.UserID, e.Description, e.ScheduledAt.UTC(), e.CreatedAt.UTC())
	if err != nil {
		return api.Event{}, err
	}
	return e, nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, id string) (api.Event, error) {
	var e api.Event
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, description, scheduled_at, created_at FROM events WHERE id=?`, id)
	if err := row.Scan(&e.ID, &e.UserID, &e.Description, &e.ScheduledAt, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return api.Event{}, ErrNotFound
		}
		return api.Event{}, err
	}
	return e, nil
}

func (s *sqliteStore) UpdateEvent(ctx context.Context, e api.Event) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET description=?, scheduled_at=? WHERE id=?`,
		e.Description, e.ScheduledAt.UTC(), e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) ListFutureEvents(ctx context.Context, userID int64, after time.Time) ([]api.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, description, scheduled_at, created_at
		 FROM events WHERE user_id=? AND scheduled_at > ?
		 ORDER BY scheduled_at ASC`, userID, after.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []api.Event
	for rows.Next() {
		var e api.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.ScheduledAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateNotification(ctx context.Context, n api.Notification) (api.Notification, error) {
	if n.ID == "" {
		n.ID = api.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, event_id, lead_minutes, sent, created_at) VALUES(?,?,?,?,?)`,
		n.ID, n.EventID, n.LeadMinutes, boolToInt(n.Sent), n.CreatedAt.UTC())
	if err != nil {
		return api.Notification{}, err
	}
	return n, nil
}

func (s *sqliteStore) ListEventNotifications(ctx context.Context, eventID string) ([]api.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, lead_minutes, sent, created_at FROM notifications
		 WHERE event_id=? ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []api.Notification
	for rows.Next() {
		var n api.Notification
		var sent int
		if err := rows.Scan(&n.ID, &n.EventID, &n.LeadMinutes, &sent, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Sent = sent != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteEventNotifications(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE event_id=?`, eventID)
	return err
}

const pendingSelect = `
SELECT n.id, n.event_id, n.lead_minutes, n.sent, n.created_at,
       e.id, e.user_id, e.description, e.scheduled_at, e.created_at
FROM notifications n
JOIN events e ON e.id = n.event_id`

func (s *sqliteStore) ListPending(ctx context.Context, now time.Time) ([]DueNotification, error) {
	// The fire instant (scheduled_at − lead_minutes) is computed in Go; the
	// query only narrows to unsent rows on non-lapsed events.
	rows, err := s.db.QueryContext(ctx, pendingSelect+`
WHERE n.sent = 0
ORDER BY e.scheduled_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DueNotification
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, err
		}
		if d.Notification.FireAt(d.Event.ScheduledAt).After(now) {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetPending(ctx context.Context, notificationID string) (DueNotification, error) {
	row := s.db.QueryRowContext(ctx, pendingSelect+` WHERE n.id=?`, notificationID)
	d, err := scanDue(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return DueNotification{}, ErrNotFound
		}
		return DueNotification{}, err
	}
	return d, nil
}

func (s *sqliteStore) MarkSent(ctx context.Context, notificationID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET sent=1 WHERE id=?`, notificationID)
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanDue(r scanner) (DueNotification, error) {
	var d DueNotification
	var sent int
	err := r.Scan(
		&d.Notification.ID, &d.Notification.EventID, &d.Notification.LeadMinutes,
		&sent, &d.Notification.CreatedAt,
		&d.Event.ID, &d.Event.UserID, &d.Event.Description,
		&d.Event.ScheduledAt, &d.Event.CreatedAt)
	if err != nil {
		return DueNotification{}, err
	}
	d.Notification.Sent = sent != 0
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
