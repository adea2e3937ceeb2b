package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mithrel/tickler/internal/log"
)

// Assisted delegates intent extraction to a completion collaborator. The
// collaborator's output is untrusted; anything that does not decode into a
// RawCommand degrades to ErrNotRecognized rather than crashing the pipeline.
type Assisted struct {
	Completer TextCompleter
}

func (a Assisted) Extract(ctx context.Context, text string, now time.Time) (RawCommand, error) {
	out, err := a.Completer.Complete(ctx, BuildPrompt(text, now))
	if err != nil {
		log.Error("completion call failed", err)
		return RawCommand{}, ErrNotRecognized
	}
	raw, err := decodeRaw(out)
	if err != nil {
		log.Error("completion output not decodable", err, "output_len", len(out))
		return RawCommand{}, ErrNotRecognized
	}
	return raw, nil
}

// decodeRaw interprets the collaborator output as fenced or bare JSON.
func decodeRaw(out string) (RawCommand, error) {
	s := strings.TrimSpace(out)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	var raw RawCommand
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return RawCommand{}, err
	}
	return raw, nil
}

// BuildPrompt embeds the current date/time and few-shot examples mapping a
// natural-language instruction to one canonical command payload.
func BuildPrompt(text string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date and time: %s.\n", now.Format(TimeLayout))
	b.WriteString(`You manage a user's reminders. Read the instruction and answer with one JSON object, no prose:
{"action": one of "create","delete","change_time","change_date","change_description","change_full","list",
 "event": text naming the event,
 "datetime": "YYYY-MM-DD HH:MM" when a time is involved,
 "new_datetime": "YYYY-MM-DD HH:MM" for moves,
 "new_description": replacement text for description changes}

Examples:
"buy groceries tomorrow at 18:00" -> {"action":"create","event":"buy groceries","datetime":"`)
	b.WriteString(now.AddDate(0, 0, 1).Format("2006-01-02"))
	b.WriteString(` 18:00"}
"delete the dentist appointment" -> {"action":"delete","event":"dentist appointment"}
"move the standup to 10:30" -> {"action":"change_time","event":"standup","new_datetime":"` + now.Format("2006-01-02") + ` 10:30"}
"move the standup to friday" -> {"action":"change_date","event":"standup","new_datetime":"..."}
"rename gym to swimming" -> {"action":"change_description","event":"gym","new_description":"swimming"}
"reschedule the review to 12.07 14:00 and call it final review" -> {"action":"change_full","event":"review","new_datetime":"...","new_description":"final review"}
"what do I have planned" -> {"action":"list"}

Instruction: `)
	b.WriteString(quote(text))
	return b.String()
}

// quote wraps the instruction so embedded quotes cannot break the prompt.
func quote(s string) string {
	q, _ := json.Marshal(s)
	return string(q)
}
