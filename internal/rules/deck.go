package rules

import (
	"math/rand/v2"
)

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

// NewDeck returns the 52 cards in suit-major order, unshuffled.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{suit: s, rank: r})
		}
	}
	return deck
}

// Shuffle permutes deck in place with a Fisher–Yates pass.
// A nil rng uses the runtime's global source.
func Shuffle(deck []Card, rng *rand.Rand) {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := intN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// ShuffledDeck is NewDeck followed by Shuffle.
func ShuffledDeck(rng *rand.Rand) []Card {
	deck := NewDeck()
	Shuffle(deck, rng)
	return deck
}

// IsFullSet reports whether the given piles together hold every card of one
// deck exactly once.
func IsFullSet(piles ...[]Card) bool {
	seen := make(map[Card]bool, DeckSize)
	n := 0
	for _, pile := range piles {
		for _, c := range pile {
			if c.IsZero() || seen[c] {
				return false
			}
			seen[c] = true
			n++
		}
	}
	return n == DeckSize
}

// Draw pops the top card (the last element) off the deck.
func Draw(deck []Card) (Card, []Card, bool) {
	if len(deck) == 0 {
		return Card{}, deck, false
	}
	top := deck[len(deck)-1]
	return top, deck[:len(deck)-1], true
}

// StackDeck returns a full deck arranged so that top[0] is dealt first,
// top[1] second, and so on. Cards not named keep NewDeck order underneath.
func StackDeck(top ...Card) []Card {
	named := make(map[Card]bool, len(top))
	for _, c := range top {
		named[c] = true
	}
	deck := make([]Card, 0, DeckSize)
	for _, c := range NewDeck() {
		if !named[c] {
			deck = append(deck, c)
		}
	}
	for i := len(top) - 1; i >= 0; i-- {
		deck = append(deck, top[i])
	}
	return deck
}
