package engine

import (
	"slices"

	"github.com/DoyleJ11/pokdeng/internal/rules"
)

type Phase string

const (
	// PhaseDealing is part of the wire vocabulary. Dealing completes within
	// one mutation, so this host never publishes it.
	PhaseDealing  Phase = "dealing"
	PhasePlaying  Phase = "playing"
	PhaseShowdown Phase = "showdown"
)

// NoPlayer is the CurrentPlayerIndex once nobody is left to act.
const NoPlayer = -1

// Profile is the local identity a participant brings into a room.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Player struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Avatar   string         `json:"avatar"`
	Cards    []rules.Card   `json:"cards"`
	Bet      int            `json:"bet"`
	IsDealer bool           `json:"isDealer"`
	IsReady  bool           `json:"isReady"`
	IsOnline bool           `json:"isOnline"`
	Score    *int           `json:"score,omitempty"`
	HandType rules.HandType `json:"handType,omitempty"`
	Balance  int            `json:"balance"`
}

func (p Player) Hand() rules.Hand { return rules.Evaluate(p.Cards) }

type GameState struct {
	Phase              Phase              `json:"phase"`
	Players            []Player           `json:"players"`
	DealerIndex        int                `json:"dealerIndex"`
	CurrentBet         int                `json:"currentBet"`
	Deck               []rules.Card       `json:"deck"`
	Round              int                `json:"round"`
	CurrentPlayerIndex int                `json:"currentPlayerIndex"`
	Settlements        []rules.Settlement `json:"settlements,omitempty"` // last showdown
}

// CurrentPlayer returns the seat whose turn it is.
func (g *GameState) CurrentPlayer() (Player, bool) {
	if g == nil || g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(g.Players) {
		return Player{}, false
	}
	return g.Players[g.CurrentPlayerIndex], true
}

func (g *GameState) seat(id string) int {
	return slices.IndexFunc(g.Players, func(p Player) bool { return p.ID == id })
}

type ChatMessage struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"` // unix millis
}

// Rules are the table settings fixed when the room is created.
type Rules struct {
	MaxPlayers      int  `json:"maxPlayers"`
	MinBet          int  `json:"minBet"`
	MaxBet          int  `json:"maxBet"`
	DefaultBet      int  `json:"defaultBet"`
	StartingBalance int  `json:"startingBalance"`
	Multipliers     bool `json:"multipliers"`
	MaxChatLength   int  `json:"maxChatLength"`
}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:      6,
		MinBet:          1,
		MaxBet:          1000,
		DefaultBet:      10,
		StartingBalance: 1000,
		MaxChatLength:   280,
	}
}

// State is the canonical room. The zero State is the Empty room.
type State struct {
	RoomCode string        `json:"roomCode"`
	HostID   string        `json:"hostId"`
	Players  []Player      `json:"players"`
	Game     *GameState    `json:"gameState"`
	Messages []ChatMessage `json:"messages"`
	Rules    Rules         `json:"rules"`
}

// NewState opens a room with the host seated as dealer.
func NewState(code string, host Profile, r Rules) State {
	return State{
		RoomCode: code,
		HostID:   host.ID,
		Players: []Player{{
			ID:       host.ID,
			Name:     host.Name,
			Avatar:   host.Avatar,
			Cards:    []rules.Card{},
			IsDealer: true,
			IsOnline: true,
			Balance:  r.StartingBalance,
		}},
		Messages: []ChatMessage{},
		Rules:    r,
	}
}

func (s State) IsEmpty() bool { return s.RoomCode == "" }

func (s State) Player(id string) (Player, bool) {
	i := s.playerIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return s.Players[i], true
}

func (s State) playerIndex(id string) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

// Clone deep-copies the state so a new snapshot never aliases an old one.
func (s State) Clone() State {
	out := s
	out.Players = clonePlayers(s.Players)
	out.Messages = slices.Clone(s.Messages)
	if s.Game != nil {
		g := *s.Game
		g.Players = clonePlayers(s.Game.Players)
		g.Deck = slices.Clone(s.Game.Deck)
		g.Settlements = slices.Clone(s.Game.Settlements)
		out.Game = &g
	}
	return out
}

func clonePlayers(in []Player) []Player {
	if in == nil {
		return nil
	}
	out := make([]Player, len(in))
	for i, p := range in {
		p.Cards = slices.Clone(p.Cards)
		if p.Score != nil {
			score := *p.Score
			p.Score = &score
		}
		out[i] = p
	}
	return out
}
