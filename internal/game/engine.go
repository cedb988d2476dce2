// internal/game/engine.go
package game

import (
	log "github.com/sirupsen/logrus"

	"github.com/hokm-live/hokm/internal/models"
)

const (
	maxTricksPerRound = models.DeckSize / 4

	// Kot: the hakem's team sweeps all 13 tricks.
	kotScore = 2
	// Hakem Kot: sweeping against the hakem is worth more.
	hakemKotScore = 3

	hakemFirstDeal = 5
	hakemRestDeal  = 8
	fullHandSize   = 13
)

// Engine implements the rules of Hokm on top of a Session. It holds no
// state of its own: every method takes the session, acquires its lock,
// validates fully before mutating, and either applies the action or
// returns one typed error.
type Engine struct{}

// NewEngine returns the stateless rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// JoinGame seats a player, or rebinds a disconnected seat when name and
// team match a previous occupant. When the fourth seat fills, the first
// round starts immediately and a hakem is selected.
func (e *Engine) JoinGame(s *Session, teamCode, name, identity string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if idx := s.DisconnectedSeatIndex(name, teamCode); idx != -1 {
		s.Reconnect(idx, identity)
		s.Touch()
		s.logAction(identity, "player_reconnect", map[string]interface{}{"seat": idx})
		s.emitToSeat(identity, EventGameState, nil)
		s.emit(EventPlayerJoined, map[string]interface{}{"name": name, "seat": idx})
		// A round that could not start while this seat was away (or a
		// freshly imported save) starts now that everyone is back.
		if s.AllSeatsReady() && s.CurrentRound == nil {
			if err := e.startRound(s); err != nil {
				log.WithError(err).WithField("session", s.ID).Error("round restart failed")
			}
		}
		return nil
	}

	seat, idx, err := s.Join(name, teamCode, identity)
	if err != nil {
		return err
	}
	s.Touch()
	s.logAction(identity, "player_join", map[string]interface{}{"seat": idx, "name": seat.Name})
	s.emit(EventPlayerJoined, map[string]interface{}{"name": name, "seat": idx})

	if s.AllSeatsReady() && s.CurrentRound == nil {
		if err := e.startRound(s); err != nil {
			// All seats just became ready, so this is unreachable short
			// of a programming error.
			log.WithError(err).WithField("session", s.ID).Error("auto-start failed")
		}
	}
	return nil
}

// SelectTrump lets the hakem fix the trump suit, then deals out the
// rest of the deck: the hakem receives 8 more cards for 13 total, the
// other three seats 13 each.
func (e *Engine) SelectTrump(s *Session, identity string, suit models.Suit) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	round := s.CurrentRound
	if round == nil || round.LeaderSeat == nil {
		return ErrRoundNotStarted
	}
	if s.Players[*round.LeaderSeat].Identity != identity {
		return ErrNotLeader
	}
	if round.TrumpSuit != nil {
		return ErrTrumpAlreadySet
	}
	if !models.ValidSuit(suit) {
		return ErrInvalidSuit
	}

	round.TrumpSuit = &suit
	s.Touch()
	s.logAction(identity, "select_trump", map[string]interface{}{"suit": string(suit)})
	s.emit(EventTrumpSuitSelected, map[string]interface{}{"suit": string(suit)})

	hakem := s.Players[*round.LeaderSeat]
	hakem.AddCards(s.Deck[:hakemRestDeal])
	s.Deck = s.Deck[hakemRestDeal:]
	for _, p := range s.Players {
		if p == hakem {
			continue
		}
		p.AddCards(s.Deck[:fullHandSize])
		s.Deck = s.Deck[fullHandSize:]
	}
	s.emit(EventRoundStarted, nil)
	s.emit(EventTrickStarted, nil)
	return nil
}

// PlayCard validates and applies one play: round active, actor on turn,
// card held, led suit followed when possible. A fourth card completes
// the trick and resolves it; otherwise the turn advances one seat.
func (e *Engine) PlayCard(s *Session, identity string, card models.Card) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	round := s.CurrentRound
	// The hand has not begun until trump is fixed and cards are dealt.
	if round == nil || round.TrumpSuit == nil {
		return ErrRoundNotStarted
	}
	seatIndex := s.SeatIndexByIdentity(identity)
	if seatIndex == -1 || seatIndex != s.CurrentPlayerIndex {
		return ErrNotYourTurn
	}
	seat := s.Players[seatIndex]
	if !seat.HasCard(card) {
		return ErrCardNotInHand
	}
	if trick := round.CurrentTrick(); trick != nil && len(trick.Items) > 0 {
		led := trick.LedSuit()
		if card.Suit != led && seat.HasSuit(led) {
			return ErrMustFollowSuit
		}
	}

	seat.RemoveCard(card)
	trick := round.CurrentTrick()
	if trick == nil {
		round.Tricks = append(round.Tricks, models.Trick{})
		trick = &round.Tricks[len(round.Tricks)-1]
	}
	trick.Items = append(trick.Items, models.TrickItem{SeatIndex: seatIndex, Card: card})

	s.Touch()
	s.logAction(identity, "play_card", map[string]interface{}{
		"suit": string(card.Suit), "rank": card.Rank, "seat": seatIndex,
	})
	s.emit(EventCardPlayed, map[string]interface{}{
		"seat": seatIndex, "card": card,
	})

	if trick.Complete() {
		e.endTrick(s)
	} else {
		s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
	}
	return nil
}

// Disconnect flips the actor's seat to disconnected. The seat keeps its
// cards; if it is that seat's turn, the round stalls until reconnect.
func (e *Engine) Disconnect(s *Session, identity string) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	seat := s.MarkDisconnected(identity)
	if seat == nil {
		return
	}
	s.logAction(identity, "player_disconnect", nil)
	s.emit(EventPlayerLeft, map[string]interface{}{"name": seat.Name})
}

// startRound opens a new round and selects the hakem. Assumes the lock
// is held.
func (e *Engine) startRound(s *Session) error {
	if err := s.StartRound(); err != nil {
		return err
	}
	s.emit(EventRoundStarted, nil)
	e.selectLeader(s, nil)
	return nil
}

// selectLeader sets the hakem for the active round, shuffles a fresh
// deck and deals the hakem their first five cards. With no explicit
// seat, leadership follows the rotation rule: the hakem keeps the seat
// if their team won the prior round, otherwise it passes one seat along
// (to the opposing team). The first round draws at random. Assumes the
// lock is held.
func (e *Engine) selectLeader(s *Session, explicitSeat *int) {
	round := s.CurrentRound
	if round == nil || round.LeaderSeat != nil {
		return
	}

	var seat int
	switch {
	case explicitSeat != nil:
		seat = *explicitSeat
	case len(s.RoundHistory) > 0 && s.RoundHistory[len(s.RoundHistory)-1].WinnerTeam != nil:
		prior := s.RoundHistory[len(s.RoundHistory)-1]
		priorSeat := *prior.LeaderSeat
		if s.Players[priorSeat].TeamCode == *prior.WinnerTeam {
			seat = priorSeat
		} else {
			seat = (priorSeat + 1) % len(s.Players)
		}
	default:
		seat = s.rng.Intn(len(s.Players))
	}

	round.LeaderSeat = &seat
	s.CurrentPlayerIndex = seat
	s.Deck = models.NewShuffledDeck(s.rng)

	hakem := s.Players[seat]
	hakem.AddCards(s.Deck[:hakemFirstDeal])
	s.Deck = s.Deck[hakemFirstDeal:]

	log.WithFields(log.Fields{"session": s.ID, "hakem": seat}).Info("hakem selected")
	s.emit(EventHakemSelected, map[string]interface{}{"seat": seat, "name": hakem.Name})
	s.emitToSeat(hakem.Identity, EventHakemCards, nil)
}

// endTrick resolves a completed trick, credits the winning team, and
// either ends the round or opens the next trick with the winner
// leading. Assumes the lock is held.
func (e *Engine) endTrick(s *Session) {
	round := s.CurrentRound
	trick := &round.Tricks[len(round.Tricks)-1]

	winner := resolveTrickWinner(trick, *round.TrumpSuit)
	trick.WinnerSeat = &winner
	round.TrickCounts[s.Players[winner].TeamCode]++
	s.CurrentPlayerIndex = winner

	s.emit(EventTrickEnded, map[string]interface{}{
		"winnerSeat": winner,
		"winnerName": s.Players[winner].Name,
	})

	if winnerTeam, won := e.checkRoundWinner(s); won {
		round.WinnerTeam = &winnerTeam
		e.endRound(s)
		return
	}
	s.emit(EventTrickStarted, nil)
}

// resolveTrickWinner picks the winning seat of a complete trick: the
// highest trump if any trump was played, else the highest card of the
// suit that was led.
func resolveTrickWinner(trick *models.Trick, trump models.Suit) int {
	winning := trick.Items[0]
	for _, item := range trick.Items[1:] {
		if item.Card.Beats(winning.Card, trump) {
			winning = item
		}
	}
	return winning.SeatIndex
}

// checkRoundWinner applies the round-win arithmetic after a resolved
// trick. While fewer than 13 tricks have been played and either team's
// tally is still zero the decision is deferred, because a 13-0 sweep
// (Kot) is treated as still reachable. This deferral is deliberately
// conservative: at tallies like (6,0) a sweep is already impossible for
// the zero side, but the observed scoring waits anyway. Returns the
// winning team and whether the round just ended; cumulative scores are
// updated on a win. Assumes the lock is held.
func (e *Engine) checkRoundWinner(s *Session) (string, bool) {
	round := s.CurrentRound
	hakemTeam := s.Players[*round.LeaderSeat].TeamCode
	otherTeam := s.TeamCodes[0]
	if hakemTeam == otherTeam {
		otherTeam = s.TeamCodes[1]
	}
	hakemTricks := round.TrickCounts[hakemTeam]
	otherTricks := round.TrickCounts[otherTeam]

	if len(round.Tricks) < maxTricksPerRound && (hakemTricks == 0 || otherTricks == 0) {
		return "", false
	}

	switch {
	case hakemTricks == maxTricksPerRound:
		s.Scores[hakemTeam] += kotScore
		return hakemTeam, true
	case otherTricks == maxTricksPerRound:
		s.Scores[otherTeam] += hakemKotScore
		return otherTeam, true
	case hakemTricks >= 7:
		s.Scores[hakemTeam]++
		return hakemTeam, true
	case otherTricks >= 7:
		s.Scores[otherTeam]++
		return otherTeam, true
	}
	return "", false
}

// endRound archives the finished round and immediately starts the next
// one, rotating the hakem. Assumes the lock is held.
func (e *Engine) endRound(s *Session) {
	winner := ""
	if s.CurrentRound.WinnerTeam != nil {
		winner = *s.CurrentRound.WinnerTeam
	}
	s.EndRound()
	s.emit(EventRoundEnded, map[string]interface{}{"winnerTeam": winner})

	if err := e.startRound(s); err != nil {
		// A seat may have disconnected mid-round; the next round starts
		// when everyone is back (JoinGame re-checks readiness).
		log.WithError(err).WithField("session", s.ID).Info("next round deferred")
	}
}
