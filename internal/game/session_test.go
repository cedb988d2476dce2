// internal/game/session_test.go
package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hokm-live/hokm/internal/models"
)

func TestJoinFillsSeatsInTeamOrder(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()

	_, idx, err := s.Join("Morteza", s.TeamCodes[0], "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, idx, err = s.Join("Sara", s.TeamCodes[1], "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, idx, err = s.Join("Reza", s.TeamCodes[0], "c2")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, idx, err = s.Join("Nika", s.TeamCodes[1], "c3")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	assert.True(t, s.AllSeatsReady())
}

func TestJoinRejections(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()

	_, _, err := s.Join("ab", s.TeamCodes[0], "c0")
	assert.ErrorIs(t, err, ErrInvalidName, "two characters is too short")
	_, _, err = s.Join("1morteza", s.TeamCodes[0], "c0")
	assert.ErrorIs(t, err, ErrInvalidName, "names must start with a letter")

	_, _, err = s.Join("Sara", s.TeamCodes[1], "c1")
	assert.ErrorIs(t, err, ErrManagerMustJoin, "no seat before the manager's")

	_, _, err = s.Join("Morteza", "ZZZZZZ", "c0")
	assert.ErrorIs(t, err, ErrInvalidTeamCode)

	_, _, err = s.Join("Morteza", s.TeamCodes[0], "c0")
	require.NoError(t, err)

	_, _, err = s.Join("Morteza", s.TeamCodes[1], "c1")
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, _, err = s.Join("Sara", s.TeamCodes[1], "c0")
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	_, _, err = s.Join("Reza", s.TeamCodes[0], "c2")
	require.NoError(t, err)
	_, _, err = s.Join("Kian", s.TeamCodes[0], "c3")
	assert.ErrorIs(t, err, ErrTeamFull)
}

func TestDisconnectAndReconnectBinding(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()

	_, idx, err := s.Join("Morteza", s.TeamCodes[0], "c0")
	require.NoError(t, err)

	require.NotNil(t, s.MarkDisconnected("c0"))
	assert.False(t, s.Players[idx].Connected)
	assert.Equal(t, idx, s.DisconnectedSeatIndex("Morteza", s.TeamCodes[0]))
	assert.Equal(t, -1, s.DisconnectedSeatIndex("Sara", s.TeamCodes[0]))

	seat := s.Reconnect(idx, "c0-bis")
	assert.True(t, seat.Connected)
	assert.Equal(t, "c0-bis", seat.Identity)
	assert.Equal(t, "c0-bis", s.Manager.Identity, "manager identity follows the manager's seat")
}

func TestStartRoundGuards(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()

	assert.ErrorIs(t, s.StartRound(), ErrNotAllSeatsReady)

	names := []string{"Morteza", "Sara", "Reza", "Nika"}
	for i, name := range names {
		_, _, err := s.Join(name, s.TeamCodes[i%2], "c"+name)
		require.NoError(t, err)
	}

	require.NoError(t, s.StartRound())
	assert.ErrorIs(t, s.StartRound(), ErrRoundAlreadyActive)
}

func TestEndRoundArchivesAndClears(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()
	seatFour(s)
	require.NoError(t, s.StartRound())

	leader := 2
	trump := models.Hearts
	s.CurrentRound.LeaderSeat = &leader
	s.CurrentRound.TrumpSuit = &trump
	s.CurrentPlayerIndex = leader
	s.Players[0].Hand = []models.Card{{Suit: models.Clubs, Rank: "4"}}

	s.EndRound()

	assert.Nil(t, s.CurrentRound)
	assert.Equal(t, -1, s.CurrentPlayerIndex)
	assert.Empty(t, s.Players[0].Hand)
	require.Len(t, s.RoundHistory, 1)
	assert.Equal(t, 2, *s.RoundHistory[0].LeaderSeat)
	assert.Equal(t, models.Hearts, *s.RoundHistory[0].TrumpSuit)
}

func TestIsTrickInProgress(t *testing.T) {
	s := NewSession("Morteza")
	defer s.Destroy()
	seatFour(s)
	require.NoError(t, s.StartRound())

	assert.False(t, s.IsTrickInProgress(), "no tricks yet")

	s.CurrentRound.Tricks = append(s.CurrentRound.Tricks, models.Trick{
		Items: []models.TrickItem{{SeatIndex: 0, Card: models.Card{Suit: models.Hearts, Rank: "2"}}},
	})
	assert.True(t, s.IsTrickInProgress())

	for i := 1; i < 4; i++ {
		s.CurrentRound.Tricks[0].Items = append(s.CurrentRound.Tricks[0].Items,
			models.TrickItem{SeatIndex: i, Card: models.Card{Suit: models.Hearts, Rank: models.Ranks[i]}})
	}
	assert.False(t, s.IsTrickInProgress(), "a complete trick is not in progress")
}

func TestEmptySessionDestroyedAfterGracePeriod(t *testing.T) {
	old := ManagerJoinTimeout
	ManagerJoinTimeout = 30 * time.Millisecond
	defer func() { ManagerJoinTimeout = old }()

	destroyed := make(chan uuid.UUID, 1)
	s := NewSession("Morteza")
	s.Mu.Lock()
	s.OnDestroyed = func(id uuid.UUID) { destroyed <- id }
	s.Mu.Unlock()

	select {
	case id := <-destroyed:
		assert.Equal(t, s.ID, id)
	case <-time.After(time.Second):
		t.Fatal("empty session was not destroyed after the grace period")
	}
}

func TestOccupiedSessionSurvivesGracePeriod(t *testing.T) {
	old := ManagerJoinTimeout
	ManagerJoinTimeout = 30 * time.Millisecond
	defer func() { ManagerJoinTimeout = old }()

	destroyed := make(chan uuid.UUID, 1)
	s := NewSession("Morteza")
	defer s.Destroy()
	s.Mu.Lock()
	s.OnDestroyed = func(id uuid.UUID) { destroyed <- id }
	_, _, err := s.Join("Morteza", s.TeamCodes[0], "c0")
	s.Mu.Unlock()
	require.NoError(t, err)

	select {
	case <-destroyed:
		t.Fatal("session with an occupied seat must survive the grace period")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLateInactivityFiringSparesActiveSession(t *testing.T) {
	old := SessionInactivityTimeout
	SessionInactivityTimeout = time.Hour
	defer func() { SessionInactivityTimeout = old }()

	destroyed := make(chan uuid.UUID, 1)
	s := NewSession("Morteza")
	defer s.Destroy()
	s.Mu.Lock()
	s.OnDestroyed = func(id uuid.UUID) { destroyed <- id }
	s.Mu.Unlock()

	// A timer callback that was already in flight when Touch re-armed
	// the timer must spare the session: activity is fresh.
	s.Touch()
	s.expireIfIdle()
	select {
	case <-destroyed:
		t.Fatal("fresh activity must survive a late timer firing")
	default:
	}

	// A genuinely idle session still goes down.
	s.Mu.Lock()
	s.LastActivityAt = time.Now().Add(-2 * time.Hour)
	s.Mu.Unlock()
	s.expireIfIdle()
	select {
	case id := <-destroyed:
		assert.Equal(t, s.ID, id)
	case <-time.After(time.Second):
		t.Fatal("idle session was not destroyed")
	}
}

func TestDestroyFiresOnce(t *testing.T) {
	s := NewSession("Morteza")
	calls := 0
	s.Mu.Lock()
	s.OnDestroyed = func(uuid.UUID) { calls++ }
	s.Mu.Unlock()

	s.Destroy()
	s.Destroy()
	assert.Equal(t, 1, calls)
}

func TestDeriveTeamCode(t *testing.T) {
	code := DeriveTeamCode("some-session-team1")
	assert.Len(t, code, 6)
	assert.Equal(t, code, DeriveTeamCode("some-session-team1"), "codes are deterministic")
	assert.NotEqual(t, code, DeriveTeamCode("some-session-team2"))
	for _, r := range code {
		assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(r))
	}
}
