// internal/game/snapshot.go
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hokm-live/hokm/internal/models"
)

// SeatSnapshot is one seat flattened for save/resume. Connection
// identities are deliberately absent: they are meaningless outside the
// process that issued them.
type SeatSnapshot struct {
	Name     string        `json:"name"`
	TeamCode string        `json:"teamCode"`
	Hand     []models.Card `json:"hand"`
}

// Snapshot is the flat serializable record of a full session, hands
// included. It is what the state codec encrypts.
type Snapshot struct {
	SessionID          uuid.UUID             `json:"sessionId"`
	TeamCodes          [2]string             `json:"teamCodes"`
	Seats              [4]SeatSnapshot       `json:"seats"`
	ManagerName        string                `json:"managerName"`
	Deck               []models.Card         `json:"deck,omitempty"`
	CurrentRound       *models.Round         `json:"currentRound,omitempty"`
	Scores             map[string]int        `json:"scores"`
	CurrentPlayerIndex int                   `json:"currentPlayerIndex"`
	RoundHistory       []models.RoundSummary `json:"roundHistory"`
	CreatedAt          time.Time             `json:"createdAt"`
}

// Snapshot flattens the session. Assumes the lock is held.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:          s.ID,
		TeamCodes:          s.TeamCodes,
		ManagerName:        s.Manager.Name,
		Deck:               s.Deck,
		CurrentRound:       s.CurrentRound,
		Scores:             s.Scores,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		RoundHistory:       s.RoundHistory,
		CreatedAt:          s.CreatedAt,
	}
	for i, p := range s.Players {
		snap.Seats[i] = SeatSnapshot{Name: p.Name, TeamCode: p.TeamCode, Hand: p.Hand}
	}
	return snap
}

// RestoreSession rehydrates a session from a snapshot. Every seat comes
// back disconnected (everyone must rejoin with matching name+team), and
// newManagerName becomes the session manager. Lifecycle timers are
// re-armed, except the join-grace timer: all seats are already
// occupied.
func RestoreSession(snap Snapshot, newManagerName string) *Session {
	s := &Session{
		ID:                 snap.SessionID,
		TeamCodes:          snap.TeamCodes,
		Deck:               snap.Deck,
		CurrentRound:       snap.CurrentRound,
		Scores:             snap.Scores,
		CurrentPlayerIndex: snap.CurrentPlayerIndex,
		RoundHistory:       snap.RoundHistory,
		CreatedAt:          snap.CreatedAt,
		LastActivityAt:     time.Now(),
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.joinedPerTeam = map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0}
	managerTeam := s.TeamCodes[0]
	for i := range snap.Seats {
		seat := snap.Seats[i]
		s.Players[i] = &models.Player{
			Name:      seat.Name,
			TeamCode:  seat.TeamCode,
			Hand:      seat.Hand,
			Connected: false,
		}
		if seat.Name != "" {
			s.joinedPerTeam[seat.TeamCode]++
		}
		if seat.Name == newManagerName {
			managerTeam = seat.TeamCode
		}
	}
	s.Manager = models.Player{Name: newManagerName, TeamCode: managerTeam}
	s.Touch()
	return s
}
