// internal/models/round.go
package models

// TrickItem is a single play within a trick.
type TrickItem struct {
	SeatIndex int  `json:"seatIndex"`
	Card      Card `json:"card"`
}

// Trick is one exchange of exactly four cards. WinnerSeat is nil until
// the trick is complete and resolved.
type Trick struct {
	Items      []TrickItem `json:"items"`
	WinnerSeat *int        `json:"winnerSeat,omitempty"`
}

// Complete reports whether all four seats have played into the trick.
func (t *Trick) Complete() bool {
	return len(t.Items) == 4
}

// LedSuit returns the suit of the first card played, valid only for a
// non-empty trick.
func (t *Trick) LedSuit() Suit {
	return t.Items[0].Card.Suit
}

// Round is one hand, from hakem selection through the round-win
// decision. LeaderSeat is the hakem's seat index; TrickCounts tracks
// per-team tricks won this round only (not the cumulative match score).
type Round struct {
	LeaderSeat  *int           `json:"leaderSeat,omitempty"`
	TrumpSuit   *Suit          `json:"trumpSuit,omitempty"`
	Tricks      []Trick        `json:"tricks"`
	TrickCounts map[string]int `json:"trickCounts"`
	WinnerTeam  *string        `json:"winnerTeam,omitempty"`
}

// CurrentTrick returns the trick currently accepting plays, or nil if
// no trick is in progress (none started yet, or the last one resolved).
func (r *Round) CurrentTrick() *Trick {
	if len(r.Tricks) == 0 {
		return nil
	}
	last := &r.Tricks[len(r.Tricks)-1]
	if last.Complete() {
		return nil
	}
	return last
}

// Clone deep-copies the trick, including the plays made so far.
func (t Trick) Clone() Trick {
	out := Trick{Items: append([]TrickItem(nil), t.Items...)}
	if t.WinnerSeat != nil {
		v := *t.WinnerSeat
		out.WinnerSeat = &v
	}
	return out
}

// Clone deep-copies the round. Snapshots handed outside the owning
// session's lock must not share tricks or counts with the live round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	out := &Round{
		Tricks:      make([]Trick, len(r.Tricks)),
		TrickCounts: make(map[string]int, len(r.TrickCounts)),
	}
	if r.LeaderSeat != nil {
		v := *r.LeaderSeat
		out.LeaderSeat = &v
	}
	if r.TrumpSuit != nil {
		v := *r.TrumpSuit
		out.TrumpSuit = &v
	}
	if r.WinnerTeam != nil {
		v := *r.WinnerTeam
		out.WinnerTeam = &v
	}
	for i, trick := range r.Tricks {
		out.Tricks[i] = trick.Clone()
	}
	for team, n := range r.TrickCounts {
		out.TrickCounts[team] = n
	}
	return out
}

// RoundSummary is the immutable record of a finished round kept in the
// session history.
type RoundSummary struct {
	LeaderSeat  *int           `json:"leaderSeat,omitempty"`
	TrumpSuit   *Suit          `json:"trumpSuit,omitempty"`
	TrickCounts map[string]int `json:"trickCounts"`
	WinnerTeam  *string        `json:"winnerTeam,omitempty"`
}
