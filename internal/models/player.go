// internal/models/player.go
package models

// Player is one of the four fixed seats in a session. A seat is created
// empty (no name, no identity) and filled by a join; the seat itself is
// never removed. Identity is the opaque connection id currently bound
// to the seat and changes across reconnects; Name and TeamCode are
// stable once joined.
type Player struct {
	Identity  string `json:"identity"`
	Name      string `json:"name"`
	TeamCode  string `json:"teamCode"`
	Connected bool   `json:"connected"`
	Hand      []Card `json:"hand"`
}

// Occupied reports whether the seat has been joined at least once.
func (p *Player) Occupied() bool {
	return p.Name != ""
}

// HasCard reports whether the seat holds the exact card.
func (p *Player) HasCard(card Card) bool {
	for _, c := range p.Hand {
		if c == card {
			return true
		}
	}
	return false
}

// HasSuit reports whether the seat holds any card of the given suit.
func (p *Player) HasSuit(suit Suit) bool {
	for _, c := range p.Hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// AddCards appends dealt cards to the hand.
func (p *Player) AddCards(cards []Card) {
	p.Hand = append(p.Hand, cards...)
}

// RemoveCard removes one instance of card from the hand. Returns false
// if the card was not held.
func (p *Player) RemoveCard(card Card) bool {
	for i, c := range p.Hand {
		if c == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAllCards empties the hand at round end.
func (p *Player) RemoveAllCards() {
	p.Hand = nil
}
