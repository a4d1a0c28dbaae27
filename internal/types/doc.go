// Package types is the wire protocol between a room's host and its guests.
//
// Every transport message is one JSON envelope:
//
//	{ "type": string, "payload": any, "senderId": string, "senderName": string }
//
// Guest -> Host
//
//	join:        Player (the guest's profile, cards empty)
//	leave:       playerId
//	ready:       { playerId, ready }
//	chat:        ChatMessage
//	game_action: { type: "draw" | "stand", playerId, card? }
//	bet:         { playerId, amount }
//
// Host -> Guest
//
//	sync:        RoomState
//	start:       RoomState
//	new_round:   RoomState
//	round_end:   [{ winnerId, loserId, amount }]
//	kick:        playerId
//	leave:       hostId (the room is closed)
//	reject:      { type, reason } (only when reject notices are on)
//	chat:        ChatMessage
//
// RoomState:
//
//	roomCode, hostId, players[], gameState|null, messages[], rules
package types
