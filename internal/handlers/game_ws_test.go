// internal/handlers/game_ws_test.go
package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hokm-live/hokm/internal/game"
	"github.com/hokm-live/hokm/internal/models"
)

func TestSessionDestroyClosesConnectionsWithSessionGone(t *testing.T) {
	gs := newTestServer(t)
	srv := httptest.NewServer(GameWSHandler(logrus.New(), gs))
	defer srv.Close()

	session, err := gs.Store.Create("Morteza")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"game"},
	})
	require.NoError(t, err)
	defer c.CloseNow()

	require.NoError(t, wsjson.Write(ctx, c, models.GameAction{
		ActionType: "join-game",
		Payload: map[string]interface{}{
			"teamCode":   session.TeamCodes[0],
			"playerName": "Morteza",
		},
	}))

	// Any first event means the join was processed and the connection is
	// registered for pushes.
	var first game.GameEvent
	require.NoError(t, wsjson.Read(ctx, c, &first))

	session.Destroy()

	// Drain until the server closes the socket; the close must carry the
	// session-gone code.
	var readErr error
	for {
		var ev game.GameEvent
		if readErr = wsjson.Read(ctx, c, &ev); readErr != nil {
			break
		}
	}
	assert.Equal(t, websocket.StatusCode(SessionGoneError), websocket.CloseStatus(readErr))
}
