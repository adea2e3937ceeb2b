package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/tickler/pkg/api"
)

func TestServeRequestRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "t.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = Serve(ctx, sock, func(m Message) Response {
			switch m.Name {
			case "tasks":
				return Response{OK: true, Events: []api.Event{{ID: "e1", UserID: m.UserID, Description: "standup"}}}
			case "status":
				return Response{OK: true, Status: &Status{ActiveTimers: 3, StartedAt: time.Now()}}
			}
			return Response{OK: false, Msg: "unknown command"}
		})
	}()

	// wait for the socket to come up
	var resp Response
	var err error
	require.Eventually(t, func() bool {
		resp, err = Request(ctx, sock, Message{Name: "tasks", UserID: 9})
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	require.True(t, resp.OK)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, int64(9), resp.Events[0].UserID)

	resp, err = Request(ctx, sock, Message{Name: "status"})
	require.NoError(t, err)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 3, resp.Status.ActiveTimers)

	resp, err = Request(ctx, sock, Message{Name: "bogus"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
}
