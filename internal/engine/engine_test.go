package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/pokdeng/internal/rules"
)

func card(s rules.Suit, r rules.Rank) rules.Card { return rules.MustCard(s, r) }

func newRoom(t *testing.T, guests ...string) State {
	t.Helper()
	s := NewState("ABC234", Profile{ID: "host", Name: "Host"}, DefaultRules())
	for _, id := range guests {
		s = mustApply(t, s, Command{Type: CmdJoin, ActorID: id, Player: Player{ID: id, Name: id}})
	}
	return s
}

func readyAll(t *testing.T, s State) State {
	t.Helper()
	for _, p := range s.Players {
		s = mustApply(t, s, Command{Type: CmdReady, ActorID: p.ID, TargetID: p.ID, Ready: true})
	}
	return s
}

func mustApply(t *testing.T, s State, cmd Command) State {
	t.Helper()
	_, next, err := Apply(s, cmd)
	require.NoError(t, err, "command %s", cmd.Type)
	return next
}

func assertFullDeck(t *testing.T, s State) {
	t.Helper()
	piles := [][]rules.Card{s.Game.Deck}
	for _, p := range s.Game.Players {
		piles = append(piles, p.Cards)
	}
	require.True(t, rules.IsFullSet(piles...), "deck and hands are not one 52-card set")
}

// scripted deals host 2♣ 3♣ (normal 5), g1 4♥ 2♥ (normal 6) and g2 10♦ 2♠
// (normal 2); g1's first draw is 7♦.
func scripted() []rules.Card {
	return rules.StackDeck(
		card(rules.Clubs, rules.Two), card(rules.Clubs, rules.Three),
		card(rules.Hearts, rules.Four), card(rules.Hearts, rules.Two),
		card(rules.Diamonds, rules.Ten), card(rules.Spades, rules.Two),
		card(rules.Diamonds, rules.Seven),
	)
}

func TestNewState_HostIsDealer(t *testing.T) {
	s := newRoom(t)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "host", s.HostID)
	assert.True(t, s.Players[0].IsDealer)
	assert.Equal(t, 1000, s.Players[0].Balance)
	assert.Equal(t, SessionOpen, DerivePhase(s))
}

func TestJoin(t *testing.T) {
	cases := []struct {
		name    string
		setup   State
		cmd     Command
		wantErr error
		players int
	}{
		{
			name:    "new player appended",
			setup:   newRoom(t),
			cmd:     Command{Type: CmdJoin, ActorID: "g1", Player: Player{ID: "g1", Name: "One", Cards: []rules.Card{card(rules.Hearts, rules.Ace)}, IsReady: true}},
			players: 2,
		},
		{
			name:    "duplicate join is a no-op",
			setup:   newRoom(t, "g1"),
			cmd:     Command{Type: CmdJoin, ActorID: "g1", Player: Player{ID: "g1", Name: "Renamed"}},
			players: 2,
		},
		{
			name:    "seventh player rejected",
			setup:   newRoom(t, "g1", "g2", "g3", "g4", "g5"),
			cmd:     Command{Type: CmdJoin, ActorID: "g6", Player: Player{ID: "g6"}},
			wantErr: ErrRoomFull,
			players: 6,
		},
		{
			name:    "joining as someone else rejected",
			setup:   newRoom(t),
			cmd:     Command{Type: CmdJoin, ActorID: "g1", Player: Player{ID: "g2"}},
			wantErr: ErrNotPermitted,
			players: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(tc.setup, tc.cmd)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.ErrorIs(t, err, ErrRuleViolation)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, next.Players, tc.players)
			if tc.wantErr != nil || len(events) == 0 {
				assert.Equal(t, tc.setup, next)
			}
		})
	}
}

func TestJoin_IgnoresClientSuppliedGameFields(t *testing.T) {
	s := newRoom(t, "g1")
	p, ok := s.Player("g1")
	require.True(t, ok)
	assert.Empty(t, p.Cards)
	assert.False(t, p.IsReady)
	assert.False(t, p.IsDealer)
	assert.True(t, p.IsOnline)
	assert.Equal(t, s.Rules.StartingBalance, p.Balance)
}

func TestReady_StagesRoom(t *testing.T) {
	s := newRoom(t, "g1")
	assert.False(t, CanStart(s))
	s = readyAll(t, s)
	assert.Equal(t, SessionStaged, DerivePhase(s))

	s = mustApply(t, s, Command{Type: CmdReady, ActorID: "g1", TargetID: "g1", Ready: false})
	assert.Equal(t, SessionOpen, DerivePhase(s))

	_, _, err := Apply(s, Command{Type: CmdReady, ActorID: "g1", TargetID: "host", Ready: false})
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestStart_Guards(t *testing.T) {
	s := newRoom(t, "g1")

	_, _, err := Apply(s, Command{Type: CmdStart, ActorID: "host"})
	assert.ErrorIs(t, err, ErrNoQuorum)

	s = readyAll(t, s)
	_, _, err = Apply(s, Command{Type: CmdStart, ActorID: "g1"})
	assert.ErrorIs(t, err, ErrNotHost)

	alone := readyAll(t, newRoom(t))
	_, _, err = Apply(alone, Command{Type: CmdStart, ActorID: "host"})
	assert.ErrorIs(t, err, ErrNoQuorum)

	started := mustApply(t, s, Command{Type: CmdStart, ActorID: "host"})
	_, _, err = Apply(started, Command{Type: CmdStart, ActorID: "host"})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestStart_DealsTwoCardsEach(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1", "g2"))
	events, next, err := Apply(s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtGameStarted))

	g := next.Game
	require.NotNil(t, g)
	assert.Equal(t, PhasePlaying, g.Phase)
	assert.Equal(t, 0, g.DealerIndex)
	assert.Equal(t, 1, g.CurrentPlayerIndex)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, 10, g.CurrentBet)
	assert.Len(t, g.Deck, 52-6)
	for i, p := range g.Players {
		assert.Len(t, p.Cards, 2)
		assert.Equal(t, i == 0, p.IsDealer)
		require.NotNil(t, p.Score)
	}
	assert.Equal(t, []rules.Card{card(rules.Clubs, rules.Two), card(rules.Clubs, rules.Three)}, g.Players[0].Cards)
	assert.Equal(t, 5, *g.Players[0].Score)
	assert.Equal(t, 0, g.Players[0].Bet)
	assert.Equal(t, 10, g.Players[1].Bet)
	assertFullDeck(t, next)

	// the roster carries the same hands
	assert.Equal(t, g.Players[1].Cards, next.Players[1].Cards)
	assert.Equal(t, SessionInRound, DerivePhase(next))
	assert.Nil(t, s.Game, "input state must not change")
}

func TestStart_RejectsBrokenDeck(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1"))
	deck := rules.NewDeck()[:51]
	_, _, err := Apply(s, Command{Type: CmdStart, ActorID: "host", Deck: deck})
	assert.ErrorIs(t, err, ErrInvalidDeck)
}

func TestTurnOrder_RejectsOutOfOrderAction(t *testing.T) {
	s := mustApply(t, readyAll(t, newRoom(t, "g1", "g2")), Command{Type: CmdStart, ActorID: "host", Deck: scripted()})

	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{"second guest acting first", Command{Type: CmdDraw, ActorID: "g2", TargetID: "g2"}, ErrWrongTurn},
		{"dealer acting first", Command{Type: CmdStand, ActorID: "host", TargetID: "host"}, ErrWrongTurn},
		{"acting for the current player", Command{Type: CmdStand, ActorID: "g2", TargetID: "g1"}, ErrNotPermitted},
		{"new round before showdown", Command{Type: CmdNewRound, ActorID: "host"}, ErrWrongPhase},
		{"bet during a round", Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 20}, ErrWrongPhase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, next, err := Apply(s, tc.cmd)
			require.ErrorIs(t, err, tc.want)
			assert.Nil(t, events)
			assert.Equal(t, s, next)
		})
	}
}

func TestDraw_PokCannotDraw(t *testing.T) {
	deck := rules.StackDeck(
		card(rules.Clubs, rules.Two), card(rules.Clubs, rules.Three),
		card(rules.Hearts, rules.Nine), card(rules.Hearts, rules.King),
	)
	s := mustApply(t, readyAll(t, newRoom(t, "g1")), Command{Type: CmdStart, ActorID: "host", Deck: deck})
	require.Equal(t, rules.Pok9, s.Game.Players[1].HandType)

	_, _, err := Apply(s, Command{Type: CmdDraw, ActorID: "g1", TargetID: "g1"})
	assert.ErrorIs(t, err, ErrPokNoDraw)

	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g1", TargetID: "g1"})
	assert.Equal(t, 0, s.Game.CurrentPlayerIndex)
}

func TestDraw_DealerDrawEndsRound(t *testing.T) {
	s := mustApply(t, readyAll(t, newRoom(t, "g1")), Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	s = mustApply(t, s, Command{Type: CmdDraw, ActorID: "g1", TargetID: "g1"})
	// dealer's turn now; the dealer draws too and that ends the round
	s = mustApply(t, s, Command{Type: CmdDraw, ActorID: "host", TargetID: "host"})
	assert.Equal(t, PhaseShowdown, s.Game.Phase)
	assert.Len(t, s.Game.Players[0].Cards, 3)
	assertFullDeck(t, s)
}

func TestScenario_ThreePlayersToShowdown(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1", "g2"))
	s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	require.Equal(t, PhasePlaying, s.Game.Phase)
	require.Len(t, s.Game.Players[0].Cards, 2)
	require.Equal(t, 1, s.Game.CurrentPlayerIndex)

	s = mustApply(t, s, Command{Type: CmdDraw, ActorID: "g1", TargetID: "g1"})
	require.Len(t, s.Game.Players[1].Cards, 3)
	require.Equal(t, 2, s.Game.CurrentPlayerIndex)
	assertFullDeck(t, s)

	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g2", TargetID: "g2"})
	require.Equal(t, 0, s.Game.CurrentPlayerIndex)

	events, s, err := Apply(s, Command{Type: CmdStand, ActorID: "host", TargetID: "host"})
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtShowdown))
	assert.Equal(t, PhaseShowdown, s.Game.Phase)
	assert.Equal(t, NoPlayer, s.Game.CurrentPlayerIndex)
	assert.Equal(t, SessionShowdown, DerivePhase(s))

	// dealer 5 beats g1 (4+2+7 = 3) and g2 (10+2 = 2)
	balances := map[string]int{}
	for _, p := range s.Players {
		balances[p.ID] = p.Balance
	}
	assert.Equal(t, map[string]int{"host": 1020, "g1": 990, "g2": 990}, balances)
	assert.ElementsMatch(t, []rules.Settlement{
		{WinnerID: "host", LoserID: "g1", Amount: 10},
		{WinnerID: "host", LoserID: "g2", Amount: 10},
	}, s.Game.Settlements)

	_, _, err = Apply(s, Command{Type: CmdStand, ActorID: "host", TargetID: "host"})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestNewRound(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1"))
	s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g1", TargetID: "g1"})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "host", TargetID: "host"})
	require.Equal(t, PhaseShowdown, s.Game.Phase)
	before := s.Players[1].Balance

	_, _, err := Apply(s, Command{Type: CmdNewRound, ActorID: "g1"})
	assert.ErrorIs(t, err, ErrNotHost)

	s = mustApply(t, s, Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 50})
	events, next, err := Apply(s, Command{Type: CmdNewRound, ActorID: "host"})
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtRoundStarted))
	assert.Equal(t, s.Game.Round+1, next.Game.Round)
	assert.Equal(t, PhasePlaying, next.Game.Phase)
	assert.Equal(t, 1, next.Game.CurrentPlayerIndex)
	assert.Empty(t, next.Game.Settlements)
	for _, p := range next.Game.Players {
		assert.Len(t, p.Cards, 2)
	}
	assert.Equal(t, before, next.Game.Players[1].Balance)
	assert.Equal(t, 50, next.Game.Players[1].Bet)
	assertFullDeck(t, next)
}

func TestNewRound_BetSurvivesJoinAtShowdown(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1", "g2"))
	s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g1", TargetID: "g1"})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g2", TargetID: "g2"})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "host", TargetID: "host"})
	require.Equal(t, PhaseShowdown, s.Game.Phase)

	s = mustApply(t, s, Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 50})
	s = mustApply(t, s, Command{Type: CmdJoin, ActorID: "g3", Player: Player{ID: "g3", Name: "g3"}})
	p, ok := s.Player("g1")
	require.True(t, ok)
	assert.Equal(t, 50, p.Bet)

	s = mustApply(t, s, Command{Type: CmdNewRound, ActorID: "host"})
	require.Equal(t, PhasePlaying, s.Game.Phase)
	assert.Equal(t, 50, s.Game.Players[s.Game.seat("g1")].Bet)
	assert.Equal(t, s.Rules.DefaultBet, s.Game.Players[s.Game.seat("g2")].Bet)
}

func TestLeave_OnTurnStandsAndKeepsCards(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1", "g2"))
	s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})

	events, s, err := Apply(s, Command{Type: CmdLeave, ActorID: "g1", TargetID: "g1"})
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtPlayerLeft))
	require.True(t, ContainsEvent(events, EvtTurnAdvanced))
	assert.Equal(t, 2, s.Game.CurrentPlayerIndex)
	assert.Len(t, s.Players, 2)
	assert.False(t, s.Game.Players[1].IsOnline)
	assertFullDeck(t, s)

	// g2 leaving hands the turn to the dealer
	s = mustApply(t, s, Command{Type: CmdLeave, ActorID: "g2", TargetID: "g2"})
	assert.Equal(t, 0, s.Game.CurrentPlayerIndex)

	// a rejoin marks the seat online and restores the roster entry
	s = mustApply(t, s, Command{Type: CmdJoin, ActorID: "g1", Player: Player{ID: "g1", Name: "g1"}})
	assert.True(t, s.Game.Players[1].IsOnline)
	p, ok := s.Player("g1")
	require.True(t, ok)
	assert.Len(t, p.Cards, 2)

	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "host", TargetID: "host"})
	assert.Equal(t, PhaseShowdown, s.Game.Phase)
}

func TestLeave_OfflineSeatsAreSkipped(t *testing.T) {
	s := readyAll(t, newRoom(t, "g1", "g2", "g3"))
	s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	s = mustApply(t, s, Command{Type: CmdLeave, ActorID: "g2", TargetID: "g2"})
	s = mustApply(t, s, Command{Type: CmdStand, ActorID: "g1", TargetID: "g1"})
	assert.Equal(t, 3, s.Game.CurrentPlayerIndex)
}

func TestLeave_HostClosesRoom(t *testing.T) {
	s := newRoom(t, "g1")
	events, next, err := Apply(s, Command{Type: CmdLeave, ActorID: "host", TargetID: "host"})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtRoomClosed))
	assert.True(t, next.IsEmpty())
	assert.Equal(t, SessionEmpty, DerivePhase(next))

	_, _, err = Apply(next, Command{Type: CmdJoin, ActorID: "g2", Player: Player{ID: "g2"}})
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestLeave_UnknownIsNoop(t *testing.T) {
	s := newRoom(t, "g1")
	events, next, err := Apply(s, Command{Type: CmdLeave, ActorID: "ghost", TargetID: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, s, next)
}

func TestKick(t *testing.T) {
	s := newRoom(t, "g1", "g2")

	_, _, err := Apply(s, Command{Type: CmdKick, ActorID: "g1", TargetID: "g2"})
	assert.ErrorIs(t, err, ErrNotHost)
	_, _, err = Apply(s, Command{Type: CmdKick, ActorID: "host", TargetID: "host"})
	assert.ErrorIs(t, err, ErrNotPermitted)
	_, _, err = Apply(s, Command{Type: CmdKick, ActorID: "host", TargetID: "nobody"})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	events, next, err := Apply(s, Command{Type: CmdKick, ActorID: "host", TargetID: "g2"})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtPlayerKicked))
	_, ok := next.Player("g2")
	assert.False(t, ok)
}

func TestBet(t *testing.T) {
	s := newRoom(t, "g1")
	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{"within limits", Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 25}, nil},
		{"below minimum", Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 0}, ErrBetOutOfRange},
		{"above maximum", Command{Type: CmdBet, ActorID: "g1", TargetID: "g1", Amount: 5000}, ErrBetOutOfRange},
		{"dealer", Command{Type: CmdBet, ActorID: "host", TargetID: "host", Amount: 25}, ErrDealerBet},
		{"for someone else", Command{Type: CmdBet, ActorID: "host", TargetID: "g1", Amount: 25}, ErrNotPermitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, next, err := Apply(s, tc.cmd)
			if tc.want != nil {
				require.ErrorIs(t, err, tc.want)
				return
			}
			require.NoError(t, err)
			p, _ := next.Player("g1")
			assert.Equal(t, 25, p.Bet)
		})
	}
}

func TestChat(t *testing.T) {
	s := newRoom(t, "g1")
	post := func(s State, id, text string, ts int64) ([]Event, State, error) {
		return Apply(s, Command{Type: CmdChat, ActorID: "g1", Chat: ChatMessage{ID: id, PlayerName: "spoofed", Message: text, Timestamp: ts}})
	}

	_, s, err := post(s, "m1", "  hello  ", 100)
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, ChatMessage{ID: "m1", PlayerID: "g1", PlayerName: "g1", Message: "hello", Timestamp: 100}, s.Messages[0])

	events, same, err := post(s, "m1", "again", 200)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, s, same)

	_, s, err = post(s, "m2", "earlier", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Messages[1].Timestamp)

	_, _, err = post(s, "m3", "   ", 300)
	assert.ErrorIs(t, err, ErrEmptyChat)
	_, _, err = post(s, "", "no id", 300)
	assert.ErrorIs(t, err, ErrInvalidChat)

	_, _, err = Apply(s, Command{Type: CmdChat, ActorID: "stranger", Chat: ChatMessage{ID: "m4", Message: "hi"}})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	long := make([]rune, 400)
	for i := range long {
		long[i] = 'ก'
	}
	_, s, err = post(s, "m5", string(long), 400)
	require.NoError(t, err)
	assert.Len(t, []rune(s.Messages[2].Message), s.Rules.MaxChatLength)
}

func TestApply_UnsupportedCommand(t *testing.T) {
	_, _, err := Apply(newRoom(t), Command{Type: "Fold"})
	assert.True(t, errors.Is(err, ErrUnsupportedCommand))
	assert.False(t, errors.Is(err, ErrRuleViolation))
}

func TestApply_DoesNotAliasPreviousSnapshot(t *testing.T) {
	s := mustApply(t, readyAll(t, newRoom(t, "g1")), Command{Type: CmdStart, ActorID: "host", Deck: scripted()})
	deckLen := len(s.Game.Deck)
	next := mustApply(t, s, Command{Type: CmdDraw, ActorID: "g1", TargetID: "g1"})

	assert.Len(t, s.Game.Deck, deckLen)
	assert.Len(t, s.Game.Players[1].Cards, 2)
	assert.Len(t, next.Game.Players[1].Cards, 3)
	assert.Equal(t, 1, s.Game.CurrentPlayerIndex)
}

// Random rounds with random draw/stand choices keep the card set whole and
// the balances zero-sum.
func TestRandomRounds_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 99))
	for game := 0; game < 100; game++ {
		guests := make([]string, 1+rng.IntN(5))
		for i := range guests {
			guests[i] = fmt.Sprintf("g%d", i)
		}
		s := readyAll(t, newRoom(t, guests...))
		total := 0
		for _, p := range s.Players {
			total += p.Balance
		}

		s = mustApply(t, s, Command{Type: CmdStart, ActorID: "host", Deck: rules.ShuffledDeck(rng)})
		for round := 0; round < 3; round++ {
			for s.Game.Phase == PhasePlaying {
				assertFullDeck(t, s)
				cur, ok := s.Game.CurrentPlayer()
				require.True(t, ok)
				cmd := Command{Type: CmdStand, ActorID: cur.ID, TargetID: cur.ID}
				if rng.IntN(2) == 0 && len(cur.Cards) == 2 && !rules.IsPok(cur.Cards) {
					cmd.Type = CmdDraw
				}
				s = mustApply(t, s, cmd)
			}
			assertFullDeck(t, s)

			sum := 0
			for _, p := range s.Game.Players {
				sum += p.Balance
			}
			require.Equal(t, total, sum, "balances must be zero-sum")
			s = mustApply(t, s, Command{Type: CmdNewRound, ActorID: "host", Deck: rules.ShuffledDeck(rng)})
		}
	}
}
