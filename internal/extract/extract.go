// Package extract turns free text into a structured command, either via
// regex heuristics or an assisted completion call, then validates the raw
// payload into an api.Command.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/mithrel/tickler/internal/timeparse"
)

var (
	// ErrNotRecognized means no intent could be extracted; nothing was mutated
	// and the user should rephrase.
	ErrNotRecognized = errors.New("command not recognized")
	// ErrTimeNotRecognized means the simple strategy found no time expression.
	ErrTimeNotRecognized = errors.New("time not recognized")
)

// TextCompleter is the opaque completion collaborator: prompt in, free-form
// text out, fallible. Tests inject a deterministic stub.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RawCommand is the untrusted payload produced by a strategy, shaped like
// the JSON the completion collaborator is asked for. Timestamps are
// "2006-01-02 15:04" strings.
type RawCommand struct {
	Action         string `json:"action"`
	Event          string `json:"event"`
	Datetime       string `json:"datetime,omitempty"`
	NewDatetime    string `json:"new_datetime,omitempty"`
	NewDescription string `json:"new_description,omitempty"`
}

// Extractor produces a raw command payload from inbound text.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) (RawCommand, error)
}

// Simple is the regex-only strategy: every message is a create. When no
// time expression is found the message is rejected before entering the
// pipeline.
type Simple struct{}

func (Simple) Extract(ctx context.Context, text string, now time.Time) (RawCommand, error) {
	desc, at, ok := timeparse.Parse(text, now)
	if !ok {
		return RawCommand{}, ErrTimeNotRecognized
	}
	return RawCommand{
		Action:   "create",
		Event:    desc,
		Datetime: at.Format(TimeLayout),
	}, nil
}

// TimeLayout is the wire format for timestamps in raw payloads.
const TimeLayout = "2006-01-02 15:04"
