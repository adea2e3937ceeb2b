// Package daemon runs the long-lived process: the update loop, the
// notification sweep, the admin IPC socket, and a health endpoint.
package daemon

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mithrel/tickler/internal/ipc"
	"github.com/mithrel/tickler/internal/log"
	"github.com/mithrel/tickler/internal/wire"
)

// Run starts the daemon using the provided, already-wired App.
// The caller controls the lifecycle via ctx.
func Run(ctx context.Context, app *wire.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// boot recovery sweep plus periodic re-derivation from durable state
	if err := app.Scheduler.Run(ctx, app.Cfg.SweepCron); err != nil {
		return err
	}

	// HTTP health endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	addr := app.Cfg.HTTPAddr
	if strings.TrimSpace(addr) == "" {
		addr = ":7465"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", err, "addr", addr)
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = srv.Shutdown(shutCtx)
	}()

	// Admin IPC socket
	sock, err := ipc.SocketPath()
	if err != nil {
		return err
	}
	go func() {
		if err := ipc.Serve(ctx, sock, func(m ipc.Message) ipc.Response {
			return handleAdmin(ctx, app, m)
		}); err != nil {
			log.Error("ipc serve failed", err, "socket", sock)
		}
	}()

	log.Info("daemon started", "http", addr, "socket", sock)
	return pollLoop(ctx, app)
}

// handleAdmin answers CLI queries against live daemon state.
func handleAdmin(ctx context.Context, app *wire.App, m ipc.Message) ipc.Response {
	switch m.Name {
	case "tasks":
		events, err := app.Store.ListFutureEvents(ctx, m.UserID, time.Now())
		if err != nil {
			return ipc.Response{OK: false, Msg: err.Error()}
		}
		return ipc.Response{OK: true, Events: events}
	case "status":
		return ipc.Response{OK: true, Status: &ipc.Status{
			ActiveTimers: app.Scheduler.Active(),
			StartedAt:    app.StartedAt,
		}}
	}
	return ipc.Response{OK: false, Msg: "unknown command: " + m.Name}
}

// pollLoop pumps updates from the chat transport into the router. One
// user's message is handled to completion before the next update from the
// same batch; transport errors back off and retry, they never kill the
// loop.
func pollLoop(ctx context.Context, app *wire.App) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := app.Client.GetUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("poll failed", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		for _, u := range updates {
			switch {
			case u.Message != nil:
				app.Bot.HandleMessage(ctx, u.Message.From.ID, u.Message.Text)
			case u.CallbackQuery != nil:
				app.Bot.HandleCallback(ctx, u.CallbackQuery.From.ID, u.CallbackQuery.Data)
				if err := app.Client.AnswerCallback(ctx, u.CallbackQuery.ID); err != nil {
					log.Debug("answer callback failed", "err", err)
				}
			}
		}
	}
}
