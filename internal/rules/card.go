package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidCard = errors.New("invalid card")

type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

type Rank string

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

var Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// Order is the sequential position of the rank, ace low (A=1 ... K=13).
// Returns 0 for an unknown rank.
func (r Rank) Order() int {
	for i, rank := range Ranks {
		if rank == r {
			return i + 1
		}
	}
	return 0
}

// Value is the Pok Deng point value: A=1, 10/J/Q/K=10, else face value.
func (r Rank) Value() int {
	o := r.Order()
	if o >= 10 {
		return 10
	}
	return o
}

func (s Suit) Valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	}
	return false
}

func (s Suit) Red() bool { return s == Hearts || s == Diamonds }

// Card is a playing card. Its point value is always derived from the rank,
// so there is no way to build a card whose value disagrees with it.
type Card struct {
	suit Suit
	rank Rank
}

func NewCard(suit Suit, rank Rank) (Card, error) {
	if !suit.Valid() || rank.Order() == 0 {
		return Card{}, fmt.Errorf("%w: %q of %q", ErrInvalidCard, rank, suit)
	}
	return Card{suit: suit, rank: rank}, nil
}

// MustCard is NewCard for card literals known to be valid.
func MustCard(suit Suit, rank Rank) Card {
	c, err := NewCard(suit, rank)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Card) Suit() Suit { return c.suit }
func (c Card) Rank() Rank { return c.rank }
func (c Card) Value() int { return c.rank.Value() }

// IsZero reports whether c is the zero Card rather than a dealt one.
func (c Card) IsZero() bool { return c.rank == "" }

func (c Card) String() string {
	var sym string
	switch c.suit {
	case Hearts:
		sym = "♥"
	case Diamonds:
		sym = "♦"
	case Clubs:
		sym = "♣"
	case Spades:
		sym = "♠"
	default:
		sym = "?"
	}
	return string(c.rank) + sym
}

type wireCard struct {
	Suit  Suit `json:"suit"`
	Rank  Rank `json:"rank"`
	Value int  `json:"value"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCard{Suit: c.suit, Rank: c.rank, Value: c.Value()})
}

// UnmarshalJSON rejects cards whose value field disagrees with the rank.
func (c *Card) UnmarshalJSON(data []byte) error {
	var w wireCard
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	card, err := NewCard(w.Suit, w.Rank)
	if err != nil {
		return err
	}
	if w.Value != card.Value() {
		return fmt.Errorf("%w: %s carries value %d", ErrInvalidCard, card, w.Value)
	}
	*c = card
	return nil
}
