package engine

// SessionPhase is the room-level state derived from a snapshot.
type SessionPhase string

const (
	SessionEmpty    SessionPhase = "empty"
	SessionOpen     SessionPhase = "open"
	SessionStaged   SessionPhase = "staged"
	SessionInRound  SessionPhase = "in_round"
	SessionShowdown SessionPhase = "showdown"
)

func DerivePhase(s State) SessionPhase {
	switch {
	case s.IsEmpty():
		return SessionEmpty
	case s.Game == nil:
		if quorum(s) {
			return SessionStaged
		}
		return SessionOpen
	case s.Game.Phase == PhaseShowdown:
		return SessionShowdown
	default:
		return SessionInRound
	}
}

// CanStart reports whether the host may deal the first round.
func CanStart(s State) bool {
	return !s.IsEmpty() && s.Game == nil && quorum(s)
}

func quorum(s State) bool {
	if len(s.Players) < 2 || len(s.Players) > s.Rules.MaxPlayers {
		return false
	}
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
