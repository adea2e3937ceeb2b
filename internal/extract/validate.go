package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/mithrel/tickler/pkg/api"
)

// Validate normalizes an untrusted raw payload into an api.Command.
// Rejections carry a user-presentable reason and happen before any store
// mutation.
func Validate(raw RawCommand, now time.Time) (api.Command, error) {
	kind := api.CommandKind(strings.TrimSpace(raw.Action))
	if !kind.Valid() {
		return api.Command{}, fmt.Errorf("%w: unknown action %q", ErrNotRecognized, raw.Action)
	}

	cmd := api.Command{Kind: kind, Query: strings.TrimSpace(raw.Event)}
	// list takes no reference; create may have an empty description (the
	// bot defaults it), but every mutation of an existing event needs one.
	if cmd.Query == "" && kind != api.CommandList && kind != api.CommandCreate {
		return api.Command{}, fmt.Errorf("%w: missing event reference", ErrNotRecognized)
	}

	if raw.Datetime != "" {
		t, err := parseFuture(raw.Datetime, now)
		if err != nil {
			return api.Command{}, err
		}
		cmd.At = t
	}
	if raw.NewDatetime != "" {
		t, err := parseFuture(raw.NewDatetime, now)
		if err != nil {
			return api.Command{}, err
		}
		cmd.MoveTo = t
	}
	cmd.NewDescription = strings.TrimSpace(raw.NewDescription)

	switch kind {
	case api.CommandCreate:
		if cmd.At.IsZero() {
			return api.Command{}, fmt.Errorf("%w: create without a time", ErrTimeNotRecognized)
		}
	case api.CommandChangeTime, api.CommandChangeDate:
		if cmd.MoveTo.IsZero() && cmd.At.IsZero() {
			return api.Command{}, fmt.Errorf("%w: move without a target time", ErrTimeNotRecognized)
		}
		// tolerate the collaborator putting the target into "datetime"
		if cmd.MoveTo.IsZero() {
			cmd.MoveTo = cmd.At
		}
	case api.CommandChangeDesc:
		if cmd.NewDescription == "" {
			return api.Command{}, fmt.Errorf("%w: missing replacement description", ErrNotRecognized)
		}
	case api.CommandChangeFull:
		if cmd.MoveTo.IsZero() || cmd.NewDescription == "" {
			return api.Command{}, fmt.Errorf("%w: full change needs both time and description", ErrNotRecognized)
		}
	}
	return cmd, nil
}

// parseFuture parses a wire timestamp and corrects past instants forward.
// The collaborator often omits year disambiguation, so the policy is to
// advance minimally to the nearest future occurrence: a past year moves to
// the current year (next, if still past); otherwise one day forward. This
// can relocate a genuinely mistyped date, which is accepted as a UX risk.
func parseFuture(s string, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrNotRecognized, s)
	}
	if t.After(now) {
		return t, nil
	}
	if t.Year() < now.Year() {
		t = t.AddDate(now.Year()-t.Year(), 0, 0)
		if !t.After(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}
	return t.AddDate(0, 0, 1), nil
}
