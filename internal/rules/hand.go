package rules

import "slices"

type HandType string

const (
	Pok9     HandType = "pok9"
	Pok8     HandType = "pok8"
	Triple   HandType = "triple"
	Straight HandType = "straight"
	SamColor HandType = "samColor"
	Normal   HandType = "normal"
)

// Strength orders hand classes for comparison. Straight and samColor share a
// rank. Unknown or empty types count as normal.
func (h HandType) Strength() int {
	switch h {
	case Pok9:
		return 5
	case Pok8:
		return 4
	case Triple:
		return 3
	case Straight, SamColor:
		return 2
	default:
		return 1
	}
}

// Multiplier is the deng payout factor for a winning hand of this type.
func (h HandType) Multiplier() int {
	switch h {
	case Pok9, Pok8:
		return 2
	case Triple:
		return 5
	case Straight, SamColor:
		return 3
	default:
		return 1
	}
}

// Points is the hand's score: the sum of card values mod 10.
func Points(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Value()
	}
	return total % 10
}

// Classify returns the hand type. Only two-card hands can be pok; only
// three-card hands can be triple, straight or samColor.
func Classify(cards []Card) HandType {
	switch len(cards) {
	case 2:
		switch Points(cards) {
		case 9:
			return Pok9
		case 8:
			return Pok8
		}
	case 3:
		if cards[0].rank == cards[1].rank && cards[1].rank == cards[2].rank {
			return Triple
		}
		if isRun(cards) {
			return Straight
		}
		if cards[0].suit == cards[1].suit && cards[1].suit == cards[2].suit {
			return SamColor
		}
	}
	return Normal
}

// isRun reports three consecutive ranks, ace low, with Q-K-A as the one
// run where the ace plays high.
func isRun(cards []Card) bool {
	orders := []int{cards[0].rank.Order(), cards[1].rank.Order(), cards[2].rank.Order()}
	slices.Sort(orders)
	if orders[1]-orders[0] == 1 && orders[2]-orders[1] == 1 {
		return true
	}
	return orders[0] == 1 && orders[1] == 12 && orders[2] == 13
}

// IsPok reports a two-card pok8/pok9 hand, which may not draw.
func IsPok(cards []Card) bool {
	t := Classify(cards)
	return t == Pok8 || t == Pok9
}

// Hand is the evaluated strength of a set of cards.
type Hand struct {
	Type  HandType
	Score int
}

func Evaluate(cards []Card) Hand {
	return Hand{Type: Classify(cards), Score: Points(cards)}
}

// Compare returns >0 if a beats b, <0 if b beats a and 0 on a draw.
func Compare(a, b Hand) int {
	if d := a.Type.Strength() - b.Type.Strength(); d != 0 {
		return d
	}
	return a.Score - b.Score
}
