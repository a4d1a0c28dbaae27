package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/pokdeng/internal/rules"
)

// ErrRuleViolation is wrapped by every rejection caused by the game rules.
var ErrRuleViolation = errors.New("game rule violation")

func violation(msg string) error { return fmt.Errorf("%w: %s", ErrRuleViolation, msg) }

var (
	ErrNotHost       = violation("only the host may do that")
	ErrNotPermitted  = violation("cannot act for another player")
	ErrUnknownPlayer = violation("player not in room")
	ErrRoomFull      = violation("room is full")
	ErrNoQuorum      = violation("need at least two players, all ready")
	ErrWrongPhase    = violation("not allowed in the current phase")
	ErrWrongTurn     = violation("invalid turn")
	ErrPokNoDraw     = violation("a pok hand cannot draw")
	ErrHandFull      = violation("hand already holds three cards")
	ErrDealerBet     = violation("the dealer does not bet")
	ErrBetOutOfRange = violation("bet outside table limits")
	ErrEmptyChat     = violation("empty chat message")
)

var (
	ErrUnsupportedCommand = errors.New("unsupported command")
	ErrRoomClosed         = errors.New("room closed")
	ErrInvalidDeck        = errors.New("deck is not one full 52-card set")
	ErrInvalidChat        = errors.New("chat message without id")
	ErrDeckEmpty          = errors.New("deck is empty")
)

type CommandType string

const (
	CmdJoin     CommandType = "Join"
	CmdLeave    CommandType = "Leave"
	CmdKick     CommandType = "Kick"
	CmdReady    CommandType = "Ready"
	CmdBet      CommandType = "Bet"
	CmdChat     CommandType = "Chat"
	CmdStart    CommandType = "Start"
	CmdDraw     CommandType = "Draw"
	CmdStand    CommandType = "Stand"
	CmdNewRound CommandType = "NewRound"
)

/*
	CmdJoin     -> EvtPlayerJoined
	CmdLeave    -> EvtPlayerLeft (+ EvtTurnAdvanced | EvtShowdown if it was their turn) | EvtRoomClosed for the host
	CmdKick     -> EvtPlayerKicked (+ turn events as for leave)
	CmdReady    -> EvtReadyChanged
	CmdBet      -> EvtBetPlaced
	CmdChat     -> EvtChatPosted
	CmdStart    -> EvtGameStarted
	CmdDraw     -> EvtCardDrawn -> EvtTurnAdvanced | EvtShowdown
	CmdStand    -> EvtStood -> EvtTurnAdvanced | EvtShowdown
	CmdNewRound -> EvtRoundStarted
*/

// Command is a requested mutation. ActorID is the identity the request
// arrived from; TargetID is the player the request is about.
type Command struct {
	Type     CommandType
	ActorID  string
	TargetID string
	Player   Player
	Ready    bool
	Amount   int
	Chat     ChatMessage
	Deck     []rules.Card // start/new round: shuffled deck, nil to shuffle here
}

type EventType string

const (
	EvtPlayerJoined EventType = "PlayerJoined"
	EvtPlayerLeft   EventType = "PlayerLeft"
	EvtPlayerKicked EventType = "PlayerKicked"
	EvtReadyChanged EventType = "ReadyChanged"
	EvtBetPlaced    EventType = "BetPlaced"
	EvtChatPosted   EventType = "ChatPosted"
	EvtGameStarted  EventType = "GameStarted"
	EvtCardDrawn    EventType = "CardDrawn"
	EvtStood        EventType = "Stood"
	EvtTurnAdvanced EventType = "TurnAdvanced"
	EvtShowdown     EventType = "Showdown"
	EvtRoundStarted EventType = "RoundStarted"
	EvtRoomClosed   EventType = "RoomClosed"
)

type Event struct {
	Type        EventType
	PlayerID    string
	Settlements []rules.Settlement
}

// Apply validates cmd against s and returns the resulting state. s itself is
// never modified. A rejected command returns s unchanged with the error; a
// command that changes nothing returns no events and s unchanged.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.IsEmpty() {
		return nil, s, ErrRoomClosed
	}

	next := s.Clone()
	var (
		events []Event
		err    error
	)
	switch cmd.Type {
	case CmdJoin:
		events, err = join(&next, cmd)
	case CmdLeave:
		events, err = leave(&next, cmd)
	case CmdKick:
		events, err = kick(&next, cmd)
	case CmdReady:
		events, err = ready(&next, cmd)
	case CmdBet:
		events, err = bet(&next, cmd)
	case CmdChat:
		events, err = chat(&next, cmd)
	case CmdStart:
		events, err = start(&next, cmd)
	case CmdDraw, CmdStand:
		events, err = act(&next, cmd)
	case CmdNewRound:
		events, err = newRound(&next, cmd)
	default:
		err = ErrUnsupportedCommand
	}
	if err != nil || len(events) == 0 {
		return nil, s, err
	}
	return events, next, nil
}

func join(s *State, cmd Command) ([]Event, error) {
	p := cmd.Player
	if p.ID == "" || p.ID != cmd.ActorID {
		return nil, ErrNotPermitted
	}
	if s.playerIndex(p.ID) >= 0 {
		return nil, nil
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return nil, ErrRoomFull
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.ID
	}
	joined := Player{
		ID:       p.ID,
		Name:     name,
		Avatar:   p.Avatar,
		Cards:    []rules.Card{},
		IsOnline: true,
		Balance:  s.Rules.StartingBalance,
	}
	if s.Game != nil {
		// Back for a round they were dealt into.
		if i := s.Game.seat(p.ID); i >= 0 {
			s.Game.Players[i].IsOnline = true
		}
	}
	s.Players = append(s.Players, joined)
	syncRoster(s)
	return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, nil
}

func leave(s *State, cmd Command) ([]Event, error) {
	if cmd.TargetID != cmd.ActorID {
		return nil, ErrNotPermitted
	}
	if cmd.TargetID == s.HostID {
		*s = State{}
		return []Event{{Type: EvtRoomClosed, PlayerID: cmd.TargetID}}, nil
	}
	if s.playerIndex(cmd.TargetID) < 0 {
		return nil, nil
	}
	events := []Event{{Type: EvtPlayerLeft, PlayerID: cmd.TargetID}}
	return append(events, removePlayer(s, cmd.TargetID)...), nil
}

func kick(s *State, cmd Command) ([]Event, error) {
	if cmd.ActorID != s.HostID {
		return nil, ErrNotHost
	}
	if cmd.TargetID == s.HostID {
		return nil, ErrNotPermitted
	}
	if s.playerIndex(cmd.TargetID) < 0 {
		return nil, ErrUnknownPlayer
	}
	events := []Event{{Type: EvtPlayerKicked, PlayerID: cmd.TargetID}}
	return append(events, removePlayer(s, cmd.TargetID)...), nil
}

// removePlayer drops id from the roster. A seat in a running round stays
// (its cards are still out of the deck) but goes offline, and is stood for
// if it was the one to act.
func removePlayer(s *State, id string) []Event {
	if i := s.playerIndex(id); i >= 0 {
		s.Players = slices.Delete(s.Players, i, i+1)
	}
	g := s.Game
	if g == nil {
		return nil
	}
	i := g.seat(id)
	if i < 0 {
		return nil
	}
	g.Players[i].IsOnline = false
	if g.Phase == PhasePlaying && g.CurrentPlayerIndex == i {
		return advanceTurn(s)
	}
	return nil
}

func ready(s *State, cmd Command) ([]Event, error) {
	if cmd.TargetID != cmd.ActorID {
		return nil, ErrNotPermitted
	}
	i := s.playerIndex(cmd.TargetID)
	if i < 0 {
		return nil, ErrUnknownPlayer
	}
	s.Players[i].IsReady = cmd.Ready
	return []Event{{Type: EvtReadyChanged, PlayerID: cmd.TargetID}}, nil
}

func bet(s *State, cmd Command) ([]Event, error) {
	if cmd.TargetID != cmd.ActorID {
		return nil, ErrNotPermitted
	}
	i := s.playerIndex(cmd.TargetID)
	if i < 0 {
		return nil, ErrUnknownPlayer
	}
	if cmd.TargetID == s.HostID {
		return nil, ErrDealerBet
	}
	if s.Game != nil && s.Game.Phase != PhaseShowdown {
		return nil, ErrWrongPhase
	}
	if cmd.Amount < s.Rules.MinBet || cmd.Amount > s.Rules.MaxBet {
		return nil, ErrBetOutOfRange
	}
	s.Players[i].Bet = cmd.Amount
	return []Event{{Type: EvtBetPlaced, PlayerID: cmd.TargetID}}, nil
}

func chat(s *State, cmd Command) ([]Event, error) {
	sender, ok := s.Player(cmd.ActorID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	msg := cmd.Chat
	if msg.ID == "" {
		return nil, ErrInvalidChat
	}
	for _, m := range s.Messages {
		if m.ID == msg.ID {
			return nil, nil
		}
	}
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return nil, ErrEmptyChat
	}
	if limit := s.Rules.MaxChatLength; limit > 0 && utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
	}

	ts := msg.Timestamp
	for _, m := range s.Messages {
		if m.PlayerID == sender.ID && m.Timestamp > ts {
			ts = m.Timestamp
		}
	}
	s.Messages = append(s.Messages, ChatMessage{
		ID:         msg.ID,
		PlayerID:   sender.ID,
		PlayerName: sender.Name,
		Message:    text,
		Timestamp:  ts,
	})
	return []Event{{Type: EvtChatPosted, PlayerID: sender.ID}}, nil
}

func start(s *State, cmd Command) ([]Event, error) {
	if cmd.ActorID != s.HostID {
		return nil, ErrNotHost
	}
	if s.Game != nil {
		return nil, ErrWrongPhase
	}
	if !CanStart(*s) {
		return nil, ErrNoQuorum
	}
	if err := deal(s, cmd.Deck, 1); err != nil {
		return nil, err
	}
	return []Event{{Type: EvtGameStarted}}, nil
}

func newRound(s *State, cmd Command) ([]Event, error) {
	if cmd.ActorID != s.HostID {
		return nil, ErrNotHost
	}
	if s.Game == nil || s.Game.Phase != PhaseShowdown {
		return nil, ErrWrongPhase
	}
	if len(s.Players) < 2 {
		return nil, ErrNoQuorum
	}
	if err := deal(s, cmd.Deck, s.Game.Round+1); err != nil {
		return nil, err
	}
	return []Event{{Type: EvtRoundStarted}}, nil
}

func act(s *State, cmd Command) ([]Event, error) {
	g := s.Game
	if g == nil || g.Phase != PhasePlaying {
		return nil, ErrWrongPhase
	}
	if cmd.TargetID != cmd.ActorID {
		return nil, ErrNotPermitted
	}
	cur, ok := g.CurrentPlayer()
	if !ok || cur.ID != cmd.TargetID {
		return nil, ErrWrongTurn
	}

	var events []Event
	if cmd.Type == CmdDraw {
		if len(cur.Cards) >= 3 {
			return nil, ErrHandFull
		}
		if rules.IsPok(cur.Cards) {
			return nil, ErrPokNoDraw
		}
		card, deck, ok := rules.Draw(g.Deck)
		if !ok {
			return nil, ErrDeckEmpty
		}
		g.Deck = deck
		seat := &g.Players[g.CurrentPlayerIndex]
		seat.Cards = append(seat.Cards, card)
		score(seat)
		events = append(events, Event{Type: EvtCardDrawn, PlayerID: cur.ID})
	} else {
		events = append(events, Event{Type: EvtStood, PlayerID: cur.ID})
	}
	events = append(events, advanceTurn(s)...)
	syncRoster(s)
	return events, nil
}
