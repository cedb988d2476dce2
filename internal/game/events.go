// internal/game/events.go
package game

import (
	"github.com/google/uuid"

	"github.com/hokm-live/hokm/internal/models"
)

// GameEventType is an enum-like type for events pushed to clients.
type GameEventType string

const (
	EventError             GameEventType = "error"
	EventPlayerJoined      GameEventType = "player-joined"
	EventPlayerLeft        GameEventType = "player-left"
	EventHakemSelected     GameEventType = "hakem-selected"
	EventHakemCards        GameEventType = "hakem-cards"
	EventTrumpSuitSelected GameEventType = "trump-suit-selected"
	EventTrickStarted      GameEventType = "trick-started"
	EventTrickEnded        GameEventType = "trick-ended"
	EventRoundStarted      GameEventType = "round-started"
	EventRoundEnded        GameEventType = "round-ended"
	EventCardPlayed        GameEventType = "card-played"
	EventGameState         GameEventType = "game-state"
	EventSessionDestroyed  GameEventType = "session-destroyed"
)

// GameEvent is the envelope pushed to clients. State carries a full
// per-seat snapshot so clients never track deltas; Data holds small
// event-specific extras (the played card, the trick winner, ...).
type GameEvent struct {
	Type  GameEventType          `json:"type"`
	Data  map[string]interface{} `json:"data,omitempty"`
	State *SessionState          `json:"state,omitempty"`
}

// SeatState is one seat as seen by a requesting seat. Hand is only
// populated for the requester's own seat; everyone else just gets a
// card count.
type SeatState struct {
	SeatIndex int           `json:"seatIndex"`
	Name      string        `json:"name"`
	TeamCode  string        `json:"teamCode"`
	Connected bool          `json:"connected"`
	HandSize  int           `json:"handSize"`
	Hand      []models.Card `json:"hand,omitempty"`
}

// SessionState is the broadcast snapshot of a session, scoped to one
// requesting seat.
type SessionState struct {
	SessionID    uuid.UUID             `json:"sessionId"`
	Seats        []SeatState           `json:"seats"`
	HakemSeat    *int                  `json:"hakemSeat,omitempty"`
	TrumpSuit    *models.Suit          `json:"trumpSuit,omitempty"`
	CurrentRound *models.Round         `json:"currentRound,omitempty"`
	CurrentSeat  *int                  `json:"currentSeat,omitempty"`
	Scores       map[string]int        `json:"scores"`
	RoundHistory []models.RoundSummary `json:"roundHistory"`
}

// StateForSeat builds the snapshot visible to the seat bound to
// identity. Pass an empty identity for a fully redacted spectator view.
// Assumes the session lock is held. The snapshot shares nothing mutable
// with the live session: the transport marshals it on a goroutine after
// the lock is released, while the next action mutates hands, counts and
// scores under the lock.
func (s *Session) StateForSeat(identity string) *SessionState {
	state := &SessionState{
		SessionID:    s.ID,
		Seats:        make([]SeatState, len(s.Players)),
		CurrentRound: s.CurrentRound.Clone(),
		Scores:       make(map[string]int, len(s.Scores)),
		RoundHistory: append([]models.RoundSummary(nil), s.RoundHistory...),
	}
	for team, score := range s.Scores {
		state.Scores[team] = score
	}
	if state.CurrentRound != nil {
		state.HakemSeat = state.CurrentRound.LeaderSeat
		state.TrumpSuit = state.CurrentRound.TrumpSuit
	}
	if s.CurrentPlayerIndex >= 0 {
		idx := s.CurrentPlayerIndex
		state.CurrentSeat = &idx
	}
	for i, p := range s.Players {
		seat := SeatState{
			SeatIndex: i,
			Name:      p.Name,
			TeamCode:  p.TeamCode,
			Connected: p.Connected,
			HandSize:  len(p.Hand),
		}
		if identity != "" && p.Identity == identity {
			seat.Hand = append([]models.Card(nil), p.Hand...)
		}
		state.Seats[i] = seat
	}
	return state
}

// emit broadcasts a session-scoped event to every connected seat, each
// with its own redacted state snapshot. Assumes the lock is held.
func (s *Session) emit(evType GameEventType, data map[string]interface{}) {
	if s.BroadcastToSeatFn == nil {
		return
	}
	for _, p := range s.Players {
		if !p.Connected || p.Identity == "" {
			continue
		}
		s.BroadcastToSeatFn(p.Identity, GameEvent{
			Type:  evType,
			Data:  data,
			State: s.StateForSeat(p.Identity),
		})
	}
}

// emitToSeat sends an event to one seat only. Assumes the lock is held.
func (s *Session) emitToSeat(identity string, evType GameEventType, data map[string]interface{}) {
	if s.BroadcastToSeatFn == nil {
		return
	}
	s.BroadcastToSeatFn(identity, GameEvent{
		Type:  evType,
		Data:  data,
		State: s.StateForSeat(identity),
	})
}
