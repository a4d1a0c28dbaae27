package engine

import (
	"slices"

	"github.com/DoyleJ11/pokdeng/internal/rules"
)

// deal replaces the game with a fresh round over the current roster. The
// roster's first entry is the host and sits as dealer.
func deal(s *State, deck []rules.Card, round int) error {
	if deck == nil {
		deck = rules.ShuffledDeck(nil)
	} else {
		deck = slices.Clone(deck)
	}
	if !rules.IsFullSet(deck) {
		return ErrInvalidDeck
	}

	players := clonePlayers(s.Players)
	for i := range players {
		p := &players[i]
		p.IsDealer = i == 0
		p.IsOnline = true
		if p.IsDealer {
			p.Bet = 0
		} else if p.Bet <= 0 {
			p.Bet = s.Rules.DefaultBet
		}
		var first, second rules.Card
		first, deck, _ = rules.Draw(deck)
		second, deck, _ = rules.Draw(deck)
		p.Cards = []rules.Card{first, second}
		score(p)
	}

	s.Game = &GameState{
		Phase:              PhasePlaying,
		Players:            players,
		DealerIndex:        0,
		CurrentBet:         s.Rules.DefaultBet,
		Deck:               deck,
		Round:              round,
		CurrentPlayerIndex: 1,
	}
	syncRoster(s)
	return nil
}

func score(p *Player) {
	points := rules.Points(p.Cards)
	p.Score = &points
	p.HandType = rules.Classify(p.Cards)
}

// advanceTurn moves play on from the seat that just acted. Offline seats
// stand automatically. Once the dealer has acted the round goes to
// showdown.
func advanceTurn(s *State) []Event {
	g := s.Game
	n := len(g.Players)
	acted := g.CurrentPlayerIndex
	for {
		if acted == g.DealerIndex {
			return []Event{showdown(s)}
		}
		next := (acted + 1) % n
		if next == g.DealerIndex || g.Players[next].IsOnline {
			g.CurrentPlayerIndex = next
			return []Event{{Type: EvtTurnAdvanced, PlayerID: g.Players[next].ID}}
		}
		acted = next
	}
}

// showdown settles every seat against the dealer and applies the balance
// changes to both the seats and the roster.
func showdown(s *State) Event {
	g := s.Game
	g.Phase = PhaseShowdown
	g.CurrentPlayerIndex = NoPlayer

	dealer := g.Players[g.DealerIndex]
	seats := make([]rules.Seat, 0, len(g.Players)-1)
	for i, p := range g.Players {
		if i == g.DealerIndex {
			continue
		}
		seats = append(seats, rules.Seat{PlayerID: p.ID, Bet: p.Bet, Hand: p.Hand()})
	}
	settlements, deltas := rules.Settle(dealer.ID, dealer.Hand(), seats, s.Rules.Multipliers)
	for i := range g.Players {
		g.Players[i].Balance += deltas[g.Players[i].ID]
	}
	g.Settlements = settlements
	syncRoster(s)
	return Event{Type: EvtShowdown, Settlements: settlements}
}

// syncRoster copies the per-round fields of every seat onto the matching
// roster entry. Bets are only copied while the round is in play: at
// showdown the roster holds the bets for the next round.
func syncRoster(s *State) {
	if s.Game == nil {
		return
	}
	for i := range s.Players {
		j := s.Game.seat(s.Players[i].ID)
		if j < 0 {
			continue
		}
		seat := s.Game.Players[j]
		p := &s.Players[i]
		p.Cards = slices.Clone(seat.Cards)
		p.Score = nil
		if seat.Score != nil {
			points := *seat.Score
			p.Score = &points
		}
		p.HandType = seat.HandType
		if s.Game.Phase == PhasePlaying {
			p.Bet = seat.Bet
		}
		p.IsDealer = seat.IsDealer
		p.Balance = seat.Balance
	}
}
