// internal/game/engine_test.go
package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hokm-live/hokm/internal/models"
)

var testNames = [4]string{"Morteza", "Sara", "Reza", "Nika"}

// joinFour fills all four seats through the engine: seat 0 and 2 on
// team 1, seat 1 and 3 on team 2. Returns identities indexed by seat.
func joinFour(t *testing.T, e *Engine, s *Session) [4]string {
	t.Helper()
	var ids [4]string
	for i := range ids {
		ids[i] = fmt.Sprintf("conn-%d", i)
	}
	require.NoError(t, e.JoinGame(s, s.TeamCodes[0], testNames[0], ids[0]))
	require.NoError(t, e.JoinGame(s, s.TeamCodes[1], testNames[1], ids[1]))
	require.NoError(t, e.JoinGame(s, s.TeamCodes[0], testNames[2], ids[2]))
	require.NoError(t, e.JoinGame(s, s.TeamCodes[1], testNames[3], ids[3]))
	return ids
}

// seatFour fills the seats directly, bypassing the engine, so tests can
// rig rounds without the auto-start kicking in.
func seatFour(s *Session) [4]string {
	var ids [4]string
	for i := range s.Players {
		ids[i] = fmt.Sprintf("conn-%d", i)
		p := s.Players[i]
		p.Name = testNames[i]
		p.TeamCode = s.TeamCodes[i%2]
		p.Identity = ids[i]
		p.Connected = true
	}
	s.joinedPerTeam[s.TeamCodes[0]] = 2
	s.joinedPerTeam[s.TeamCodes[1]] = 2
	s.Manager.Identity = ids[0]
	return ids
}

// completedTricks fabricates n already-resolved tricks so the round-win
// arithmetic sees a realistic trick count.
func completedTricks(n int) []models.Trick {
	tricks := make([]models.Trick, n)
	for i := range tricks {
		winner := 0
		for j := 0; j < 4; j++ {
			tricks[i].Items = append(tricks[i].Items, models.TrickItem{
				SeatIndex: j,
				Card:      models.Card{Suit: models.Clubs, Rank: "2"},
			})
		}
		tricks[i].WinnerSeat = &winner
	}
	return tricks
}

// rigRound installs an in-flight round with a known hakem, trump and
// trick tally.
func rigRound(s *Session, leader int, trump models.Suit, priorTricks int, counts map[string]int) {
	seat := leader
	s.CurrentRound = &models.Round{
		LeaderSeat:  &seat,
		TrumpSuit:   &trump,
		Tricks:      completedTricks(priorTricks),
		TrickCounts: counts,
	}
	s.CurrentPlayerIndex = leader
	s.Deck = nil
}

func TestFourthJoinStartsRound(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()

	ids := joinFour(t, e, s)

	require.NotNil(t, s.CurrentRound)
	require.NotNil(t, s.CurrentRound.LeaderSeat)
	hakemSeat := *s.CurrentRound.LeaderSeat
	assert.Equal(t, hakemSeat, s.CurrentPlayerIndex)
	assert.Nil(t, s.CurrentRound.TrumpSuit)
	assert.Len(t, s.Players[hakemSeat].Hand, 5)
	for i, p := range s.Players {
		if i != hakemSeat {
			assert.Empty(t, p.Hand, "only the hakem is dealt before trump selection")
		}
		assert.Equal(t, ids[i], p.Identity)
	}
	assert.Len(t, s.Deck, models.DeckSize-5)
}

func TestSelectTrumpDealsFullHands(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()

	ids := joinFour(t, e, s)
	hakemSeat := *s.CurrentRound.LeaderSeat

	require.NoError(t, e.SelectTrump(s, ids[hakemSeat], models.Hearts))

	require.NotNil(t, s.CurrentRound.TrumpSuit)
	assert.Equal(t, models.Hearts, *s.CurrentRound.TrumpSuit)
	for _, p := range s.Players {
		assert.Len(t, p.Hand, 13)
	}
	assert.Empty(t, s.Deck)

	// The four hands together must be exactly one full deck.
	seen := make(map[models.Card]bool, models.DeckSize)
	for _, p := range s.Players {
		for _, c := range p.Hand {
			assert.False(t, seen[c], "card %v dealt twice", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, models.DeckSize)
}

func TestSelectTrumpRejections(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()

	ids := joinFour(t, e, s)
	hakemSeat := *s.CurrentRound.LeaderSeat
	notHakem := ids[(hakemSeat+1)%4]

	assert.ErrorIs(t, e.SelectTrump(s, notHakem, models.Hearts), ErrNotLeader)
	assert.ErrorIs(t, e.SelectTrump(s, ids[hakemSeat], models.Suit("stars")), ErrInvalidSuit)

	require.NoError(t, e.SelectTrump(s, ids[hakemSeat], models.Spades))
	assert.ErrorIs(t, e.SelectTrump(s, ids[hakemSeat], models.Hearts), ErrTrumpAlreadySet)
}

func TestSelectTrumpBeforeRound(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	seatFour(s)

	assert.ErrorIs(t, e.SelectTrump(s, "conn-0", models.Hearts), ErrRoundNotStarted)
}

func TestPlayCardBeforeTrumpSet(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()

	ids := joinFour(t, e, s)
	// Round is active but trump is still open: no card may be played.
	err := e.PlayCard(s, ids[*s.CurrentRound.LeaderSeat], models.Card{Suit: models.Hearts, Rank: "A"})
	assert.ErrorIs(t, err, ErrRoundNotStarted)
}

func TestPlayCardTurnAndHandChecks(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	rigRound(s, 0, models.Spades, 0, map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0})

	s.Players[0].Hand = []models.Card{{Suit: models.Hearts, Rank: "K"}}
	s.Players[1].Hand = []models.Card{{Suit: models.Hearts, Rank: "2"}, {Suit: models.Clubs, Rank: "9"}}

	assert.ErrorIs(t, e.PlayCard(s, ids[1], models.Card{Suit: models.Hearts, Rank: "2"}), ErrNotYourTurn)
	assert.ErrorIs(t, e.PlayCard(s, "unknown-conn", models.Card{Suit: models.Hearts, Rank: "2"}), ErrNotYourTurn)
	assert.ErrorIs(t, e.PlayCard(s, ids[0], models.Card{Suit: models.Clubs, Rank: "3"}), ErrCardNotInHand)

	require.NoError(t, e.PlayCard(s, ids[0], models.Card{Suit: models.Hearts, Rank: "K"}))
	assert.Equal(t, 1, s.CurrentPlayerIndex)

	// Seat 1 still holds hearts, so it may not discard the club.
	assert.ErrorIs(t, e.PlayCard(s, ids[1], models.Card{Suit: models.Clubs, Rank: "9"}), ErrMustFollowSuit)
	require.NoError(t, e.PlayCard(s, ids[1], models.Card{Suit: models.Hearts, Rank: "2"}))
}

func TestTrickWonByHighestOfLedSuit(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	rigRound(s, 0, models.Spades, 0, map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0})

	plays := []models.Card{
		{Suit: models.Hearts, Rank: "9"},
		{Suit: models.Hearts, Rank: "Q"},
		{Suit: models.Hearts, Rank: "J"},
		{Suit: models.Clubs, Rank: "A"}, // off-suit, cannot win
	}
	for i, card := range plays {
		s.Players[i].Hand = []models.Card{card}
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, e.PlayCard(s, ids[i], plays[i]))
	}

	trick := s.CurrentRound.Tricks[0]
	require.NotNil(t, trick.WinnerSeat)
	assert.Equal(t, 1, *trick.WinnerSeat)
	assert.Equal(t, 1, s.CurrentRound.TrickCounts[s.TeamCodes[1]])
	assert.Equal(t, 0, s.CurrentRound.TrickCounts[s.TeamCodes[0]])
	assert.Equal(t, 1, s.CurrentPlayerIndex, "trick winner leads the next trick")
}

func TestTrumpBeatsLedSuit(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	rigRound(s, 0, models.Spades, 0, map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 0})

	plays := []models.Card{
		{Suit: models.Hearts, Rank: "A"},
		{Suit: models.Spades, Rank: "2"}, // lowest trump still wins
		{Suit: models.Hearts, Rank: "K"},
		{Suit: models.Hearts, Rank: "Q"},
	}
	for i, card := range plays {
		s.Players[i].Hand = []models.Card{card}
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, e.PlayCard(s, ids[i], plays[i]))
	}

	require.NotNil(t, s.CurrentRound.Tricks[0].WinnerSeat)
	assert.Equal(t, 1, *s.CurrentRound.Tricks[0].WinnerSeat)
}

// playFinalTrick gives every seat one heart and plays out a single
// trick led by seat 0, with winnerSeat holding the ace.
func playFinalTrick(t *testing.T, e *Engine, s *Session, ids [4]string, winnerSeat int) {
	t.Helper()
	ranks := []string{"2", "3", "4", "5"}
	var plays [4]models.Card
	for i := range plays {
		plays[i] = models.Card{Suit: models.Hearts, Rank: ranks[i]}
	}
	plays[winnerSeat] = models.Card{Suit: models.Hearts, Rank: "A"}
	for i := range plays {
		s.Players[i].Hand = []models.Card{plays[i]}
	}
	for i := 0; i < 4; i++ {
		seat := (s.CurrentPlayerIndex) % 4
		require.NoError(t, e.PlayCard(s, ids[seat], plays[seat]))
	}
}

func TestOrdinaryRoundWin(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	// Hakem team at 6 tricks, opponents at 3: the next trick decides.
	rigRound(s, 0, models.Spades, 9, map[string]int{s.TeamCodes[0]: 6, s.TeamCodes[1]: 3})

	playFinalTrick(t, e, s, ids, 0)

	assert.Equal(t, 1, s.Scores[s.TeamCodes[0]])
	assert.Equal(t, 0, s.Scores[s.TeamCodes[1]])
	require.Len(t, s.RoundHistory, 1)
	require.NotNil(t, s.RoundHistory[0].WinnerTeam)
	assert.Equal(t, s.TeamCodes[0], *s.RoundHistory[0].WinnerTeam)

	// Winner's hakem keeps the seat and a new round begins immediately.
	require.NotNil(t, s.CurrentRound)
	require.NotNil(t, s.CurrentRound.LeaderSeat)
	assert.Equal(t, 0, *s.CurrentRound.LeaderSeat)
	assert.Len(t, s.Players[0].Hand, 5)
}

func TestKotAwardsTwoPoints(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	rigRound(s, 0, models.Spades, 12, map[string]int{s.TeamCodes[0]: 12, s.TeamCodes[1]: 0})

	playFinalTrick(t, e, s, ids, 0)

	assert.Equal(t, 2, s.Scores[s.TeamCodes[0]])
	require.NotNil(t, s.CurrentRound)
	assert.Equal(t, 0, *s.CurrentRound.LeaderSeat, "hakem keeps the seat after a win")
}

func TestHakemKotAwardsThreePointsAndRotates(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	// Opponents of the hakem one trick away from sweeping.
	rigRound(s, 0, models.Spades, 12, map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 12})

	playFinalTrick(t, e, s, ids, 1)

	assert.Equal(t, 3, s.Scores[s.TeamCodes[1]])
	require.NotNil(t, s.CurrentRound)
	assert.Equal(t, 1, *s.CurrentRound.LeaderSeat, "hakem passes one seat along after a loss")
}

func TestRoundWinDeferredWhileSweepOpen(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	// 8-0 after 8 tricks; a ninth hakem trick still doesn't settle the
	// round while the opponents sit at zero.
	rigRound(s, 0, models.Spades, 8, map[string]int{s.TeamCodes[0]: 8, s.TeamCodes[1]: 0})

	playFinalTrick(t, e, s, ids, 0)

	require.NotNil(t, s.CurrentRound)
	assert.Nil(t, s.CurrentRound.WinnerTeam)
	assert.Len(t, s.CurrentRound.Tricks, 9)
	assert.Equal(t, 0, s.Scores[s.TeamCodes[0]])
	assert.Empty(t, s.RoundHistory)
}

func TestRoundWinDeferredWhileHakemScoreless(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	// The opponents already passed 7 but the hakem team sits at zero:
	// the decision still waits for a reachable sweep.
	rigRound(s, 0, models.Spades, 7, map[string]int{s.TeamCodes[0]: 0, s.TeamCodes[1]: 7})

	playFinalTrick(t, e, s, ids, 1)

	require.NotNil(t, s.CurrentRound)
	assert.Nil(t, s.CurrentRound.WinnerTeam)
	assert.Equal(t, 0, s.Scores[s.TeamCodes[1]])
	assert.Empty(t, s.RoundHistory)
}

func TestDisconnectAndRejoinKeepsSeat(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()

	ids := joinFour(t, e, s)
	hakemSeat := *s.CurrentRound.LeaderSeat
	require.NoError(t, e.SelectTrump(s, ids[hakemSeat], models.Hearts))

	e.Disconnect(s, ids[2])
	assert.False(t, s.Players[2].Connected)
	assert.Len(t, s.Players[2].Hand, 13, "a disconnected seat keeps its cards")

	// Same name and team, brand new connection.
	require.NoError(t, e.JoinGame(s, s.TeamCodes[0], testNames[2], "conn-2-bis"))
	assert.True(t, s.Players[2].Connected)
	assert.Equal(t, "conn-2-bis", s.Players[2].Identity)
	assert.Len(t, s.Players[2].Hand, 13)
	require.NotNil(t, s.CurrentRound, "the round survives a reconnect")
}

func TestRoundEndWaitsForDisconnectedSeat(t *testing.T) {
	e := NewEngine()
	s := NewSession(testNames[0])
	defer s.Destroy()
	ids := seatFour(s)
	rigRound(s, 0, models.Spades, 9, map[string]int{s.TeamCodes[0]: 6, s.TeamCodes[1]: 3})

	// Seat 3 drops mid-trick; its seat (and turn) stay bound, so the
	// trick still resolves once the card comes in.
	e.Disconnect(s, ids[3])
	ranks := []string{"A", "3", "4", "5"}
	for i := range s.Players {
		s.Players[i].Hand = []models.Card{{Suit: models.Hearts, Rank: ranks[i]}}
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, e.PlayCard(s, ids[i], models.Card{Suit: models.Hearts, Rank: ranks[i]}))
	}

	// Round ended, but the follow-up round cannot start three-handed.
	assert.Len(t, s.RoundHistory, 1)
	assert.Nil(t, s.CurrentRound)

	require.NoError(t, e.JoinGame(s, s.TeamCodes[1], testNames[3], "conn-3-bis"))
	require.NotNil(t, s.CurrentRound, "rejoin of the last seat starts the deferred round")
}
