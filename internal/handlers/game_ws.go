// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hokm-live/hokm/internal/auth"
	"github.com/hokm-live/hokm/internal/game"
	"github.com/hokm-live/hokm/internal/middleware"
	"github.com/hokm-live/hokm/internal/models"
)

// Per-connection rate limit. A client sending more than maxMessages
// inside one window is closed.
const (
	rateLimitMaxMessages = 30
	rateLimitWindow      = time.Minute
)

// messageLimiter implements a fixed-window per-connection rate limit.
type messageLimiter struct {
	max         int
	window      time.Duration
	count       int
	windowStart time.Time
}

func newMessageLimiter(max int, window time.Duration) *messageLimiter {
	return &messageLimiter{max: max, window: window, windowStart: time.Now()}
}

// allow counts one message and reports whether it is within the limit.
func (l *messageLimiter) allow() bool {
	now := time.Now()
	if now.Sub(l.windowStart) > l.window {
		l.windowStart = now
		l.count = 0
	}
	l.count++
	return l.count <= l.max
}

// GameWSHandler upgrades the HTTP connection to WebSocket and serves
// one player connection. Each connection gets a fresh identity; the
// seat binding happens on the first successful join-game (or up front
// via a seat-resume token in the token query parameter).
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

		if c.Subprotocol() != "game" {
			logger.Warnf("Client connected with invalid subprotocol: %s", c.Subprotocol())
			c.Close(websocket.StatusCode(BadSubprotocolError), "client must use the 'game' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		identity := uuid.New().String()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// A valid seat token short-circuits the join handshake: the seat
		// is rebound immediately, before any message arrives.
		var session *game.Session
		if tok := r.URL.Query().Get("token"); tok != "" {
			session = gs.resumeFromToken(ctx, c, logger, tok, identity)
		}

		session = readGameMessages(ctx, c, gs, logger, session, identity)

		if session != nil {
			gs.Engine.Disconnect(session, identity)
		}
		gs.unregisterConn(identity)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// resumeFromToken rebinds the connection to the seat named by a valid
// seat-resume token. An invalid or stale token is not an error: the
// client just falls back to the ordinary join-game message.
func (gs *GameServer) resumeFromToken(ctx context.Context, c *websocket.Conn, logger *logrus.Logger, tok, identity string) *game.Session {
	claims, err := auth.VerifySeatToken(tok)
	if err != nil {
		logger.WithError(err).Debug("seat token rejected")
		return nil
	}
	session, ok := gs.Store.FindByID(claims.SessionID)
	if !ok {
		return nil
	}
	session.Mu.Lock()
	seat := session.Players[claims.SeatIndex]
	name, teamCode := seat.Name, seat.TeamCode
	session.Mu.Unlock()
	if name != claims.Name {
		return nil
	}

	gs.registerConn(identity, session.ID, c)
	if err := gs.Engine.JoinGame(session, teamCode, name, identity); err != nil {
		gs.unregisterConn(identity)
		sendErrorEvent(ctx, c, logger, err)
		return nil
	}
	return session
}

// readGameMessages is the per-connection read loop: it decodes actions,
// enforces the rate limit, and routes each action to the engine. It
// returns the session the connection ended up bound to (nil if none).
func readGameMessages(ctx context.Context, c *websocket.Conn, gs *GameServer, logger *logrus.Logger, session *game.Session, identity string) *game.Session {
	limiter := newMessageLimiter(rateLimitMaxMessages, rateLimitWindow)

	for {
		var action models.GameAction
		if err := wsjson.Read(ctx, c, &action); err != nil {
			logger.WithError(err).Debug("WebSocket read loop ended")
			return session
		}
		if !limiter.allow() {
			logger.WithField("identity", identity).Warn("connection rate limited")
			c.Close(websocket.StatusCode(RateLimitedError), "message rate limit exceeded")
			return session
		}

		switch action.ActionType {
		case "join-game":
			joined, err := gs.handleJoin(ctx, c, action, identity)
			if err != nil {
				sendErrorEvent(ctx, c, logger, err)
				continue
			}
			session = joined

		case "select-trump":
			if session == nil {
				sendErrorEvent(ctx, c, logger, game.ErrSessionNotFound)
				continue
			}
			suit, _ := action.Payload["suit"].(string)
			if err := gs.Engine.SelectTrump(session, identity, models.Suit(suit)); err != nil {
				sendErrorEvent(ctx, c, logger, err)
			}

		case "play-card":
			if session == nil {
				sendErrorEvent(ctx, c, logger, game.ErrSessionNotFound)
				continue
			}
			card, ok := cardFromPayload(action.Payload)
			if !ok {
				sendErrorEvent(ctx, c, logger, game.ErrCardNotInHand)
				continue
			}
			if err := gs.Engine.PlayCard(session, identity, card); err != nil {
				sendErrorEvent(ctx, c, logger, err)
			}

		case "disconnect":
			c.Close(websocket.StatusNormalClosure, "client requested disconnect")
			return session

		default:
			logger.WithField("type", action.ActionType).Debug("unknown action type")
		}
	}
}

// handleJoin resolves the target session by team code, registers the
// connection for pushes, seats (or reseats) the player, and issues a
// seat-resume token on success.
func (gs *GameServer) handleJoin(ctx context.Context, c *websocket.Conn, action models.GameAction, identity string) (*game.Session, error) {
	teamCode, _ := action.Payload["teamCode"].(string)
	name, _ := action.Payload["playerName"].(string)

	session, ok := gs.Store.FindByTeamCode(teamCode)
	if !ok {
		return nil, game.ErrSessionNotFound
	}

	// Register before joining so the join's own broadcast reaches this
	// connection.
	gs.registerConn(identity, session.ID, c)
	session.Mu.Lock()
	if session.BroadcastToSeatFn == nil {
		session.BroadcastToSeatFn = gs.pushToSeat
	}
	session.Mu.Unlock()

	if err := gs.Engine.JoinGame(session, teamCode, name, identity); err != nil {
		gs.unregisterConn(identity)
		return nil, err
	}

	session.Mu.Lock()
	seatIndex := session.SeatIndexByIdentity(identity)
	session.Mu.Unlock()
	if tok, err := auth.CreateSeatToken(session.ID, seatIndex, name); err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_ = wsjson.Write(writeCtx, c, game.GameEvent{
			Type: game.EventGameState,
			Data: map[string]interface{}{"token": tok, "seat": seatIndex},
		})
		cancel()
	}
	return session, nil
}

// sendErrorEvent pushes one typed error event to the client. Errors
// never close the connection; the client may retry.
func sendErrorEvent(ctx context.Context, c *websocket.Conn, logger *logrus.Logger, actionErr error) {
	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := wsjson.Write(writeCtx, c, game.GameEvent{
		Type: game.EventError,
		Data: map[string]interface{}{"message": actionErr.Error()},
	})
	if err != nil {
		logger.WithError(err).Debug("error event write failed")
	}
}

// cardFromPayload extracts a card from a play-card payload of the form
// {"card": {"suit": "...", "rank": "..."}}.
func cardFromPayload(payload map[string]interface{}) (models.Card, bool) {
	raw, ok := payload["card"].(map[string]interface{})
	if !ok {
		return models.Card{}, false
	}
	suit, _ := raw["suit"].(string)
	rank, _ := raw["rank"].(string)
	if suit == "" || rank == "" {
		return models.Card{}, false
	}
	return models.Card{Suit: models.Suit(suit), Rank: rank}, true
}
