// Package telegram is a thin Bot API client: long-polled updates in,
// messages with optional inline keyboards out.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mithrel/tickler/internal/bot"
)

type Client struct {
	apiURL      string
	token       string
	pollTimeout int
	httpc       *http.Client
	offset      int64
}

func New(apiURL, token string, pollTimeoutSeconds int) *Client {
	if pollTimeoutSeconds <= 0 {
		pollTimeoutSeconds = 30
	}
	return &Client{
		apiURL:      apiURL,
		token:       token,
		pollTimeout: pollTimeoutSeconds,
		httpc: &http.Client{
			// long poll plus headroom
			Timeout: time.Duration(pollTimeoutSeconds+15) * time.Second,
		},
	}
}

// Update is the subset of the Bot API update payload the router consumes.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"callback_query"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("%s: bad response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s", method, api.Description)
	}
	if result != nil {
		return json.Unmarshal(api.Result, result)
	}
	return nil
}

// GetUpdates long-polls for the next batch of updates and advances the
// acknowledged offset.
func (c *Client) GetUpdates(ctx context.Context) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  c.offset,
		"timeout": c.pollTimeout,
	}, &updates)
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
	}
	return updates, nil
}

// SendMessage implements bot.Messenger.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string, kb bot.Keyboard) error {
	payload := map[string]any{
		"chat_id": userID,
		"text":    text,
	}
	if len(kb) > 0 {
		var rows [][]map[string]string
		for _, row := range kb {
			var r []map[string]string
			for _, btn := range row {
				r = append(r, map[string]string{"text": btn.Text, "callback_data": btn.Data})
			}
			rows = append(rows, r)
		}
		payload["reply_markup"] = map[string]any{"inline_keyboard": rows}
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendReminder implements sched.Sender.
func (c *Client) SendReminder(ctx context.Context, userID int64, text string) error {
	return c.SendMessage(ctx, userID, "⏰ Reminder!\n\n"+text, nil)
}

// AnswerCallback acknowledges an inline-button press so the client stops
// showing a spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, nil)
}
