// Package ipc is the admin surface between the tickler CLI and the running
// daemon: one JSON Message per connection over a private Unix socket.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/mithrel/tickler/internal/log"
	"github.com/mithrel/tickler/pkg/api"
)

// Message is a command sent from CLI to daemon.
type Message struct {
	Name   string `json:"name"`
	UserID int64  `json:"user_id,omitempty"`
}

// Response is the daemon reply.
type Response struct {
	OK     bool        `json:"ok"`
	Msg    string      `json:"msg,omitempty"`
	Events []api.Event `json:"events,omitempty"`
	Status *Status     `json:"status,omitempty"`
}

// Status is the daemon health snapshot returned by "status".
type Status struct {
	ActiveTimers int       `json:"active_timers"`
	StartedAt    time.Time `json:"started_at"`
}

// SocketPath returns the preferred Unix domain socket path and ensures
// its parent directory exists with private permissions.
func SocketPath() (string, error) {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		p := filepath.Join(xdg, "tickler.sock")
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return "", err
		}
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(home, ".local", "share", "tickler", "ipc.sock")
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", err
	}
	return p, nil
}

// Serve handles one JSON Message per connection at path until ctx is done.
func Serve(ctx context.Context, path string, handle func(Message) Response) error {
	// Remove stale socket if present
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	defer l.Close()
	_ = os.Chmod(path, 0o600)

	errc := make(chan error, 1)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				errc <- err
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				dec := json.NewDecoder(bufio.NewReader(conn))
				var m Message
				if err := dec.Decode(&m); err != nil {
					_ = json.NewEncoder(conn).Encode(Response{OK: false, Msg: "bad request"})
					return
				}
				resp := handle(m)
				_ = json.NewEncoder(conn).Encode(resp)
			}(c)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		log.Error("ipc server error", err)
		return err
	}
}

// Request sends a Message to the daemon and waits for a Response.
func Request(ctx context.Context, path string, m Message) (Response, error) {
	var r Response
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return r, err
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(m); err != nil {
		return r, err
	}
	dec := json.NewDecoder(bufio.NewReader(conn))
	if err := dec.Decode(&r); err != nil {
		return r, err
	}
	return r, nil
}
