// internal/models/card.go
package models

import "math/rand"

// Suit is one of the four French suits, lowercase ("hearts", ...).
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Suits lists the four valid suits.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Ranks lists card ranks in ascending strength order. The index of a
// rank in this slice is its strength: 2 is weakest, A is strongest.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// DeckSize is the number of cards in a full deck.
const DeckSize = 52

// Card is an immutable suit/rank pair. Two cards are equal iff both
// fields are equal, so Card works as a map key and comparable value.
type Card struct {
	Suit Suit   `json:"suit"`
	Rank string `json:"rank"`
}

// ValidSuit reports whether s is one of the four suits.
func ValidSuit(s Suit) bool {
	for _, suit := range Suits {
		if s == suit {
			return true
		}
	}
	return false
}

// RankStrength returns the ordering index of rank (2 => 0 ... A => 12),
// or -1 for an unknown rank.
func RankStrength(rank string) int {
	for i, r := range Ranks {
		if r == rank {
			return i
		}
	}
	return -1
}

// Beats reports whether c wins over other given the trump suit and the
// suit that led the trick. A trump beats any non-trump; otherwise a card
// only competes if it matches other's suit.
func (c Card) Beats(other Card, trump Suit) bool {
	if c.Suit == trump && other.Suit != trump {
		return true
	}
	if c.Suit != other.Suit {
		return false
	}
	return RankStrength(c.Rank) > RankStrength(other.Rank)
}

// NewShuffledDeck builds a full 52-card deck and shuffles it with the
// given source via Fisher-Yates.
func NewShuffledDeck(r *rand.Rand) []Card {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
