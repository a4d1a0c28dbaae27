package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/rules"
)

// ErrProtocol marks a message that is dropped without touching state.
var ErrProtocol = errors.New("protocol error")

func protocolErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

type MessageType string

const (
	MsgJoin       MessageType = "join"
	MsgLeave      MessageType = "leave"
	MsgReady      MessageType = "ready"
	MsgStart      MessageType = "start"
	MsgChat       MessageType = "chat"
	MsgSync       MessageType = "sync"
	MsgGameAction MessageType = "game_action"
	MsgRoundEnd   MessageType = "round_end"
	MsgNewRound   MessageType = "new_round"
	MsgBet        MessageType = "bet"
	MsgKick       MessageType = "kick"
	MsgReject     MessageType = "reject"
)

// Who may put each type on the wire.
var (
	guestTypes = map[MessageType]bool{
		MsgJoin: true, MsgLeave: true, MsgReady: true, MsgChat: true,
		MsgGameAction: true, MsgBet: true,
	}
	hostTypes = map[MessageType]bool{
		MsgSync: true, MsgStart: true, MsgRoundEnd: true, MsgNewRound: true,
		MsgKick: true, MsgReject: true, MsgChat: true, MsgLeave: true,
	}
)

func (t MessageType) Known() bool { return guestTypes[t] || hostTypes[t] }

// PeerMessage is the envelope every channel carries, one JSON object per
// transport message.
type PeerMessage struct {
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	SenderID   string          `json:"senderId"`
	SenderName string          `json:"senderName"`
}

type ReadyPayload struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type ActionType string

const (
	ActionDraw  ActionType = "draw"
	ActionStand ActionType = "stand"
)

// GameActionPayload may carry the card a guest expects to receive. The host
// deals from its own deck and ignores it.
type GameActionPayload struct {
	Type     ActionType  `json:"type"`
	PlayerID string      `json:"playerId"`
	Card     *rules.Card `json:"card,omitempty"`
}

type BetPayload struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

type RejectPayload struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

// Encode builds and serializes an envelope.
func Encode(t MessageType, senderID, senderName string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return json.Marshal(PeerMessage{Type: t, Payload: raw, SenderID: senderID, SenderName: senderName})
}

// Decode parses an envelope and checks that every field is present and the
// type is one this protocol knows.
func Decode(data []byte) (PeerMessage, error) {
	var wire struct {
		Type       MessageType     `json:"type"`
		Payload    json.RawMessage `json:"payload"`
		SenderID   string          `json:"senderId"`
		SenderName *string         `json:"senderName"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return PeerMessage{}, protocolErr("malformed envelope: %v", err)
	}
	switch {
	case !wire.Type.Known():
		return PeerMessage{}, protocolErr("unknown message type %q", wire.Type)
	case wire.SenderID == "":
		return PeerMessage{}, protocolErr("%s without senderId", wire.Type)
	case wire.SenderName == nil:
		return PeerMessage{}, protocolErr("%s without senderName", wire.Type)
	case len(wire.Payload) == 0 || bytes.Equal(wire.Payload, []byte("null")):
		return PeerMessage{}, protocolErr("%s without payload", wire.Type)
	}
	return PeerMessage{
		Type:       wire.Type,
		Payload:    wire.Payload,
		SenderID:   wire.SenderID,
		SenderName: *wire.SenderName,
	}, nil
}

// DecodePayload unmarshals the payload of msg into T.
func DecodePayload[T any](msg PeerMessage) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, protocolErr("malformed %s payload: %v", msg.Type, err)
	}
	return v, nil
}

// CheckRole rejects a message whose type the sender's role may not emit.
func CheckRole(msg PeerMessage, fromHost bool) error {
	if fromHost && !hostTypes[msg.Type] {
		return protocolErr("host may not send %s", msg.Type)
	}
	if !fromHost && !guestTypes[msg.Type] {
		return protocolErr("guest may not send %s", msg.Type)
	}
	return nil
}

// ToCommand turns a guest message into the engine command it requests. The
// actor is always the envelope's sender.
func ToCommand(msg PeerMessage) (engine.Command, error) {
	actor := msg.SenderID
	switch msg.Type {
	case MsgJoin:
		p, err := DecodePayload[engine.Player](msg)
		if err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdJoin, ActorID: actor, Player: p}, nil

	case MsgLeave:
		id, err := PlayerIDPayload(msg)
		if err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdLeave, ActorID: actor, TargetID: id}, nil

	case MsgReady:
		p, err := DecodePayload[ReadyPayload](msg)
		if err != nil {
			return engine.Command{}, err
		}
		if p.PlayerID == "" {
			return engine.Command{}, protocolErr("ready without playerId")
		}
		return engine.Command{Type: engine.CmdReady, ActorID: actor, TargetID: p.PlayerID, Ready: p.Ready}, nil

	case MsgChat:
		m, err := DecodePayload[engine.ChatMessage](msg)
		if err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Type: engine.CmdChat, ActorID: actor, Chat: m}, nil

	case MsgGameAction:
		a, err := DecodePayload[GameActionPayload](msg)
		if err != nil {
			return engine.Command{}, err
		}
		cmd := engine.Command{ActorID: actor, TargetID: a.PlayerID}
		switch a.Type {
		case ActionDraw:
			cmd.Type = engine.CmdDraw
		case ActionStand:
			cmd.Type = engine.CmdStand
		default:
			return engine.Command{}, protocolErr("unknown game action %q", a.Type)
		}
		if a.PlayerID == "" {
			return engine.Command{}, protocolErr("game_action without playerId")
		}
		return cmd, nil

	case MsgBet:
		b, err := DecodePayload[BetPayload](msg)
		if err != nil {
			return engine.Command{}, err
		}
		if b.PlayerID == "" {
			return engine.Command{}, protocolErr("bet without playerId")
		}
		return engine.Command{Type: engine.CmdBet, ActorID: actor, TargetID: b.PlayerID, Amount: b.Amount}, nil
	}
	return engine.Command{}, protocolErr("%s is not a request", msg.Type)
}

// PlayerIDPayload decodes the bare player id carried by leave and kick.
func PlayerIDPayload(msg PeerMessage) (string, error) {
	id, err := DecodePayload[string](msg)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", protocolErr("%s without playerId", msg.Type)
	}
	return id, nil
}
