// internal/game/session.go
package game

import (
	"context"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hokm-live/hokm/internal/cache"
	"github.com/hokm-live/hokm/internal/models"
)

// Timeouts and limits. Package-level so tests can shorten them.
var (
	// ManagerJoinTimeout destroys a session if no seat fills shortly
	// after creation.
	ManagerJoinTimeout = 5 * time.Second

	// SessionInactivityTimeout destroys a session after a long stretch
	// with no accepted action.
	SessionInactivityTimeout = 30 * time.Minute
)

var playerNamePattern = regexp.MustCompile(`^[a-zA-Z].{2,}$`)

// Session holds the entire state of one play-through: four fixed seats,
// two team invite codes, the deck, the active round and cumulative
// scores. It enforces structural invariants only; game rules live in
// the Engine. All mutation happens under Mu, one in-flight action at a
// time per session.
type Session struct {
	ID        uuid.UUID
	TeamCodes [2]string

	// Players are the four fixed seats. Seats 0 and 2 belong to team 1,
	// seats 1 and 3 to team 2, so seat index doubles as turn order and
	// partner lookup.
	Players [4]*models.Player

	// Manager records the name+team the session creator must join with.
	// Its Identity is bound when the manager actually joins.
	Manager models.Player

	Deck         []models.Card
	CurrentRound *models.Round
	Scores       map[string]int

	// CurrentPlayerIndex is -1 whenever no round is active.
	CurrentPlayerIndex int

	RoundHistory   []models.RoundSummary
	CreatedAt      time.Time
	LastActivityAt time.Time

	Mu sync.Mutex

	// BroadcastToSeatFn sends an event to the connection bound to one
	// seat. Left nil in tests that don't care about pushes.
	BroadcastToSeatFn func(identity string, ev GameEvent)

	// OnDestroyed is invoked exactly once when a lifecycle timer fires
	// or the session is torn down. The directory uses it to deregister.
	OnDestroyed func(sessionID uuid.UUID)

	joinedPerTeam   map[string]int
	graceTimer      *time.Timer
	inactivityTimer *time.Timer
	destroyed       bool

	rng *rand.Rand
}

// NewSession creates a session with four empty seats, two derived team
// codes and an armed grace timer. The manager is expected to join team
// 1 under managerName before anyone else.
func NewSession(managerName string) *Session {
	id := uuid.New()
	s := &Session{
		ID: id,
		TeamCodes: [2]string{
			DeriveTeamCode(id.String() + "team1"),
			DeriveTeamCode(id.String() + "team2"),
		},
		CurrentPlayerIndex: -1,
		CreatedAt:          time.Now(),
		LastActivityAt:     time.Now(),
		rng:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.Manager = models.Player{Name: managerName, TeamCode: s.TeamCodes[0]}
	s.Scores = map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0}
	s.joinedPerTeam = map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0}
	for i := range s.Players {
		s.Players[i] = &models.Player{}
	}

	s.graceTimer = time.AfterFunc(ManagerJoinTimeout, func() {
		s.Mu.Lock()
		empty := true
		for _, p := range s.Players {
			if p.Occupied() {
				empty = false
				break
			}
		}
		s.Mu.Unlock()
		if empty {
			s.fireDestroyed()
		}
	})
	s.Touch()
	return s
}

// Join fills the next open seat on the requested team. Team 1 fills
// seats 0 then 2, team 2 fills 1 then 3. The very first occupant must
// be the recorded manager joining team 1. Returns the seat and its
// index.
func (s *Session) Join(name, teamCode, identity string) (*models.Player, int, error) {
	if !playerNamePattern.MatchString(name) {
		return nil, -1, ErrInvalidName
	}
	for _, p := range s.Players {
		if p.Occupied() && p.Name == name {
			return nil, -1, ErrDuplicateName
		}
		if p.Identity != "" && p.Identity == identity {
			return nil, -1, ErrDuplicateIdentity
		}
	}
	if teamCode != s.TeamCodes[0] && teamCode != s.TeamCodes[1] {
		return nil, -1, ErrInvalidTeamCode
	}

	// Nobody may take a seat before the manager claims the first team-1
	// slot under the recorded name.
	if s.joinedPerTeam[s.TeamCodes[0]] == 0 {
		if s.Manager.Name != name || s.Manager.TeamCode != teamCode {
			return nil, -1, ErrManagerMustJoin
		}
		s.Manager.Identity = identity
	}

	var seatIndex int
	joined := s.joinedPerTeam[teamCode]
	if joined >= 2 {
		return nil, -1, ErrTeamFull
	}
	if teamCode == s.TeamCodes[0] {
		seatIndex = joined * 2
	} else {
		seatIndex = joined*2 + 1
	}

	seat := s.Players[seatIndex]
	seat.Identity = identity
	seat.Name = name
	seat.TeamCode = teamCode
	seat.Connected = true
	s.joinedPerTeam[teamCode]++

	log.WithFields(log.Fields{
		"session": s.ID,
		"seat":    seatIndex,
		"name":    name,
	}).Info("player joined")
	return seat, seatIndex, nil
}

// Reconnect rebinds a fresh connection identity onto a previously
// joined seat and marks it connected. It never creates a seat.
func (s *Session) Reconnect(seatIndex int, identity string) *models.Player {
	seat := s.Players[seatIndex]
	seat.Identity = identity
	seat.Connected = true
	if seat.Name == s.Manager.Name {
		s.Manager.Identity = identity
	}
	log.WithFields(log.Fields{"session": s.ID, "seat": seatIndex}).Info("player reconnected")
	return seat
}

// MarkDisconnected flips the owning seat's connected flag. The seat and
// its cards stay put so the player can resume.
func (s *Session) MarkDisconnected(identity string) *models.Player {
	for i, p := range s.Players {
		if p.Identity == identity && p.Occupied() {
			p.Connected = false
			log.WithFields(log.Fields{"session": s.ID, "seat": i}).Info("player disconnected")
			return p
		}
	}
	return nil
}

// SeatIndexByIdentity returns the seat index bound to identity, or -1.
func (s *Session) SeatIndexByIdentity(identity string) int {
	for i, p := range s.Players {
		if p.Occupied() && p.Identity == identity {
			return i
		}
	}
	return -1
}

// DisconnectedSeatIndex finds a previously joined, currently
// disconnected seat matching name+team, or -1. Used to route a join as
// a reconnect.
func (s *Session) DisconnectedSeatIndex(name, teamCode string) int {
	for i, p := range s.Players {
		if p.Occupied() && p.Name == name && p.TeamCode == teamCode && !p.Connected {
			return i
		}
	}
	return -1
}

// AllSeatsReady reports whether all four seats are occupied and
// connected.
func (s *Session) AllSeatsReady() bool {
	for _, p := range s.Players {
		if !p.Occupied() || !p.Connected {
			return false
		}
	}
	return true
}

// StartRound allocates a fresh empty round. The hakem, deck and deal
// all come later via the engine.
func (s *Session) StartRound() error {
	if s.CurrentRound != nil {
		return ErrRoundAlreadyActive
	}
	if !s.AllSeatsReady() {
		return ErrNotAllSeatsReady
	}
	s.CurrentRound = &models.Round{
		TrickCounts: map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0},
	}
	return nil
}

// EndRound archives the active round into history, clears every hand
// and drops the round.
func (s *Session) EndRound() {
	if s.CurrentRound == nil {
		return
	}
	s.RoundHistory = append(s.RoundHistory, models.RoundSummary{
		LeaderSeat:  s.CurrentRound.LeaderSeat,
		TrumpSuit:   s.CurrentRound.TrumpSuit,
		TrickCounts: s.CurrentRound.TrickCounts,
		WinnerTeam:  s.CurrentRound.WinnerTeam,
	})
	for _, p := range s.Players {
		p.RemoveAllCards()
	}
	s.CurrentRound = nil
	s.CurrentPlayerIndex = -1
	s.Deck = nil
}

// IsTrickInProgress reports whether the current trick holds 1-3 cards.
// State may not be exported mid-trick.
func (s *Session) IsTrickInProgress() bool {
	if s.CurrentRound == nil || len(s.CurrentRound.Tricks) == 0 {
		return false
	}
	last := s.CurrentRound.Tricks[len(s.CurrentRound.Tricks)-1]
	return len(last.Items) > 0 && len(last.Items) < len(s.Players)
}

// Touch re-arms the inactivity timer. Called on every accepted action.
// The timer is recreated rather than reset; a fired-but-not-yet-run
// AfterFunc can't be reliably rearmed.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now()
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
	}
	s.inactivityTimer = time.AfterFunc(SessionInactivityTimeout, s.expireIfIdle)
}

// expireIfIdle tears the session down only if no action arrived since
// the inactivity timer was armed. The timer can fire and then block on
// the lock behind the very action that re-arms it; in that case Stop
// returns false but LastActivityAt is fresh and the session lives on.
func (s *Session) expireIfIdle() {
	s.Mu.Lock()
	fresh := time.Since(s.LastActivityAt) < SessionInactivityTimeout
	s.Mu.Unlock()
	if fresh {
		return
	}
	s.fireDestroyed()
}

// Destroy cancels pending timers and fires the destroyed notification.
// Safe to call more than once.
func (s *Session) Destroy() {
	s.fireDestroyed()
}

// fireDestroyed stops the lifecycle timers and invokes OnDestroyed
// exactly once. The callback runs without the session lock held.
func (s *Session) fireDestroyed() {
	s.Mu.Lock()
	if s.destroyed {
		s.Mu.Unlock()
		return
	}
	s.destroyed = true
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
	}
	cb := s.OnDestroyed
	s.Mu.Unlock()

	log.WithField("session", s.ID).Info("session destroyed")
	if cb != nil {
		cb(s.ID)
	}
}

// logAction enqueues a telemetry record for an accepted action. Fire
// and forget; the queue is nil-safe when Redis is not configured.
func (s *Session) logAction(identity, actionType string, payload map[string]interface{}) {
	record := cache.ActionRecord{
		SessionID:  s.ID,
		Identity:   identity,
		ActionType: actionType,
		Payload:    payload,
		Timestamp:  time.Now().Unix(),
	}
	go func() {
		if err := cache.PublishActionRecord(context.Background(), record); err != nil {
			log.WithError(err).Debug("action telemetry publish failed")
		}
	}()
}
