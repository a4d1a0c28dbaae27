package rules

// Seat is a non-dealer's stake at showdown.
type Seat struct {
	PlayerID string
	Bet      int
	Hand     Hand
}

// Settlement is one transfer between the dealer and a player. Draws produce
// no settlement.
type Settlement struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
	Amount   int    `json:"amount"`
}

// Settle compares every seat against the dealer's hand. It returns the
// transfers and the net balance change per player id, dealer included. The
// deltas always sum to zero.
func Settle(dealerID string, dealer Hand, seats []Seat, multipliers bool) ([]Settlement, map[string]int) {
	var out []Settlement
	deltas := make(map[string]int, len(seats)+1)
	deltas[dealerID] = 0
	for _, seat := range seats {
		if _, ok := deltas[seat.PlayerID]; !ok {
			deltas[seat.PlayerID] = 0
		}
		c := Compare(seat.Hand, dealer)
		if c == 0 || seat.Bet <= 0 {
			continue
		}
		amount := seat.Bet
		if c > 0 {
			if multipliers {
				amount *= seat.Hand.Type.Multiplier()
			}
			deltas[seat.PlayerID] += amount
			deltas[dealerID] -= amount
			out = append(out, Settlement{WinnerID: seat.PlayerID, LoserID: dealerID, Amount: amount})
			continue
		}
		if multipliers {
			amount *= dealer.Type.Multiplier()
		}
		deltas[seat.PlayerID] -= amount
		deltas[dealerID] += amount
		out = append(out, Settlement{WinnerID: dealerID, LoserID: seat.PlayerID, Amount: amount})
	}
	return out, deltas
}
