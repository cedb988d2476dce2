// internal/handlers/api_server.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hokm-live/hokm/internal/database"
	"github.com/hokm-live/hokm/internal/game"
	"github.com/hokm-live/hokm/internal/state"
)

// Version is the service version reported by /version.
const Version = "1.1.0"

// GameServer owns the session directory, the rule engine, the state
// codec, and the live WebSocket connections. It also implements
// game.DestroyNotifier so destroyed sessions can evict their
// connections.
type GameServer struct {
	Store  *game.SessionStore
	Engine *game.Engine
	Codec  *state.Codec

	mu    sync.Mutex
	conns map[string]*seatConn // connection identity -> live socket
}

// seatConn tracks one live WebSocket bound to a connection identity.
type seatConn struct {
	conn      *websocket.Conn
	sessionID uuid.UUID
}

// NewGameServer wires the store (capacity from MAX_CONCURRENT_SESSIONS,
// default 100), engine and codec together.
func NewGameServer() (*GameServer, error) {
	codec, err := state.NewCodec()
	if err != nil {
		return nil, err
	}
	gs := &GameServer{
		Engine: game.NewEngine(),
		Codec:  codec,
		conns:  make(map[string]*seatConn),
	}
	maxSessions := 0
	if v := os.Getenv("MAX_CONCURRENT_SESSIONS"); v != "" {
		maxSessions, _ = strconv.Atoi(v)
	}
	gs.Store = game.NewSessionStore(maxSessions, gs)
	return gs, nil
}

// OnDestroyed notifies every connection bound to the destroyed session
// and closes it. Implements game.DestroyNotifier.
func (gs *GameServer) OnDestroyed(sessionID uuid.UUID) {
	gs.mu.Lock()
	var victims []*websocket.Conn
	for identity, sc := range gs.conns {
		if sc.sessionID == sessionID {
			victims = append(victims, sc.conn)
			delete(gs.conns, identity)
		}
	}
	gs.mu.Unlock()

	ev := game.GameEvent{Type: game.EventSessionDestroyed}
	for _, c := range victims {
		go func(c *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = wsjson.Write(ctx, c, ev)
			c.Close(websocket.StatusCode(SessionGoneError), "session destroyed")
		}(c)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.DeleteSavedGame(ctx, sessionID); err != nil {
			log.WithError(err).Debug("saved game cleanup failed")
		}
	}()
}

// registerConn binds a connection identity to a live socket once the
// identity has a seat in a session.
func (gs *GameServer) registerConn(identity string, sessionID uuid.UUID, c *websocket.Conn) {
	gs.mu.Lock()
	gs.conns[identity] = &seatConn{conn: c, sessionID: sessionID}
	gs.mu.Unlock()
}

// unregisterConn drops a connection identity.
func (gs *GameServer) unregisterConn(identity string) {
	gs.mu.Lock()
	delete(gs.conns, identity)
	gs.mu.Unlock()
}

// pushToSeat delivers one event to the socket bound to identity. It is
// installed as every session's BroadcastToSeatFn and is called with the
// session lock held, so the actual write happens on a goroutine.
func (gs *GameServer) pushToSeat(identity string, ev game.GameEvent) {
	gs.mu.Lock()
	sc, ok := gs.conns[identity]
	gs.mu.Unlock()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := wsjson.Write(ctx, sc.conn, ev); err != nil {
			log.WithError(err).WithField("identity", identity).Debug("seat push failed")
		}
	}()
}

// CreateGameHandler handles POST /create-game: builds a session for the
// named manager and returns its id plus the two team invite codes.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ManagerName string `json:"managerName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ManagerName == "" {
			http.Error(w, "managerName is required", http.StatusBadRequest)
			return
		}

		session, err := gs.Store.Create(req.ManagerName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		session.Mu.Lock()
		session.BroadcastToSeatFn = gs.pushToSeat
		session.Mu.Unlock()

		writeJSON(w, map[string]interface{}{
			"sessionId":   session.ID,
			"teamCodes":   session.TeamCodes,
			"managerName": req.ManagerName,
		})
	}
}

// ExportStateHandler handles GET /game-state?sessionId=&identity=:
// returns the encrypted save blob for the requesting seat, refusing
// while a trick is mid-flight. A copy of the blob is kept server-side.
func ExportStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionIDStr := r.URL.Query().Get("sessionId")
		identity := r.URL.Query().Get("identity")
		if sessionIDStr == "" || identity == "" {
			http.Error(w, "sessionId and identity are required", http.StatusBadRequest)
			return
		}
		sessionID, err := uuid.Parse(sessionIDStr)
		if err != nil {
			http.Error(w, "invalid sessionId", http.StatusBadRequest)
			return
		}
		session, ok := gs.Store.FindByID(sessionID)
		if !ok {
			http.Error(w, game.ErrSessionNotFound.Error(), http.StatusNotFound)
			return
		}

		blob, err := gs.Codec.Export(session, identity)
		switch {
		case errors.Is(err, game.ErrTrickInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, game.ErrSeatNotFound):
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		session.Mu.Lock()
		ownerName := session.Players[session.SeatIndexByIdentity(identity)].Name
		session.Mu.Unlock()
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := database.UpsertSavedGame(ctx, sessionID, ownerName, blob); err != nil {
			log.WithError(err).Warn("server-side save copy failed")
		}

		writeJSON(w, map[string]interface{}{"gameState": blob})
	}
}

// ImportStateHandler handles POST /game-state: decrypts and registers a
// saved session. Every seat comes back disconnected; the caller learns
// which team code to rejoin with.
func ImportStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			GameState  string `json:"gameState"`
			PlayerName string `json:"playerName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameState == "" || req.PlayerName == "" {
			http.Error(w, "gameState and playerName are required", http.StatusBadRequest)
			return
		}

		session, err := gs.Codec.Import(req.GameState, req.PlayerName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := gs.Store.Add(session); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		session.Mu.Lock()
		session.BroadcastToSeatFn = gs.pushToSeat
		teamCode := ""
		for _, p := range session.Players {
			if p.Name == req.PlayerName {
				teamCode = p.TeamCode
				break
			}
		}
		session.Mu.Unlock()

		writeJSON(w, map[string]interface{}{
			"sessionId": session.ID,
			"teamCodes": session.TeamCodes,
			"teamCode":  teamCode,
		})
	}
}

// HealthHandler responds 200 OK for liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// VersionHandler reports the service version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": Version})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("response encode failed")
	}
}
