package wire

import (
	"context"
	"time"

	"github.com/mithrel/tickler/internal/bot"
	"github.com/mithrel/tickler/internal/config"
	"github.com/mithrel/tickler/internal/db"
	"github.com/mithrel/tickler/internal/extract"
	"github.com/mithrel/tickler/internal/llm"
	"github.com/mithrel/tickler/internal/sched"
	"github.com/mithrel/tickler/internal/telegram"
)

// App aggregates the major services for easy injection.
type App struct {
	Cfg       config.Config
	Store     db.Store
	Client    *telegram.Client
	Scheduler *sched.Scheduler
	Bot       *bot.Bot
	StartedAt time.Time
}

// BuildApp wires dependencies with the provided config. The extraction
// strategy is assisted when a completion endpoint is configured, the
// regex-only one otherwise.
func BuildApp(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := db.Open(ctx, "sqlite://"+config.ResolveDBPath(cfg))
	if err != nil {
		return nil, err
	}

	client := telegram.New(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.PollTimeout)
	scheduler := sched.New(store, client)

	var extractor extract.Extractor = extract.Simple{}
	if cfg.LLM.Enabled {
		extractor = extract.Assisted{Completer: llm.New(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.Token)}
	}

	return &App{
		Cfg:       cfg,
		Store:     store,
		Client:    client,
		Scheduler: scheduler,
		Bot:       bot.New(store, scheduler, extractor, client, cfg.MatchThreshold),
		StartedAt: time.Now(),
	}, nil
}

// Close releases the app's durable resources.
func (a *App) Close() error {
	a.Scheduler.Stop()
	return a.Store.Close()
}
