package mirror

import (
	"slices"
	"sync"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/rules"
	"github.com/DoyleJ11/pokdeng/internal/types"
)

// Outcome says what an applied host message meant for this guest.
type Outcome int

const (
	Ignored Outcome = iota
	Updated
	RoundEnded
	Rejected
	Kicked
	HostLeft
)

// View is what a guest UI renders: the host's latest room with this
// guest's unconfirmed chat lines appended.
type View struct {
	Version int
	State   engine.State
	Results []rules.Settlement // last round_end
	Reject  *types.RejectPayload
}

// Mirror is a guest's read-only copy of the host's room.
type Mirror struct {
	mu       sync.Mutex
	self     string
	version  int
	state    engine.State
	synced   bool
	pending  []engine.ChatMessage
	results  []rules.Settlement
	reject   *types.RejectPayload
	watchers []chan View
	ended    bool
}

func New(selfID string) *Mirror {
	return &Mirror{self: selfID}
}

// Apply folds one host message into the mirror.
func (m *Mirror) Apply(msg types.PeerMessage) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return Ignored, nil
	}

	switch msg.Type {
	case types.MsgSync, types.MsgStart, types.MsgNewRound:
		s, err := types.DecodePayload[engine.State](msg)
		if err != nil {
			return Ignored, err
		}
		m.state = s
		m.synced = true
		if msg.Type != types.MsgSync {
			m.results = nil
		}
		m.pending = slices.DeleteFunc(m.pending, func(p engine.ChatMessage) bool {
			return hasMessage(s.Messages, p.ID)
		})

	case types.MsgRoundEnd:
		results, err := types.DecodePayload[[]rules.Settlement](msg)
		if err != nil {
			return Ignored, err
		}
		m.results = results
		m.publish()
		return RoundEnded, nil

	case types.MsgReject:
		r, err := types.DecodePayload[types.RejectPayload](msg)
		if err != nil {
			return Ignored, err
		}
		m.reject = &r
		m.publish()
		return Rejected, nil

	case types.MsgKick:
		id, err := types.PlayerIDPayload(msg)
		if err != nil {
			return Ignored, err
		}
		if id != m.self {
			return Ignored, nil
		}
		return Kicked, nil

	case types.MsgLeave:
		id, err := types.PlayerIDPayload(msg)
		if err != nil {
			return Ignored, err
		}
		if id != msg.SenderID {
			return Ignored, nil
		}
		return HostLeft, nil

	default:
		// Chat reaches guests through the next sync.
		return Ignored, nil
	}

	m.reject = nil
	m.publish()
	return Updated, nil
}

// AddPending shows a chat line before the host has confirmed it.
func (m *Mirror) AddPending(msg engine.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hasMessage(m.state.Messages, msg.ID) || hasMessage(m.pending, msg.ID) {
		return
	}
	m.pending = append(m.pending, msg)
	m.publish()
}

// Synced reports whether a snapshot has arrived that seats this guest.
func (m *Mirror) Synced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, seated := m.state.Player(m.self)
	return m.synced && seated
}

func (m *Mirror) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view()
}

func (m *Mirror) State() engine.State { return m.View().State }

// Watch returns a channel carrying every new view, starting with the
// current one. A slow reader only misses intermediate views. The channel is
// closed by End.
func (m *Mirror) Watch() <-chan View {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan View, 1)
	if m.ended {
		close(ch)
		return ch
	}
	ch <- m.view()
	m.watchers = append(m.watchers, ch)
	return ch
}

// End stops the mirror and closes every watcher.
func (m *Mirror) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	for _, w := range m.watchers {
		close(w)
	}
	m.watchers = nil
}

func (m *Mirror) view() View {
	s := m.state.Clone()
	s.Messages = append(s.Messages, m.pending...)
	v := View{Version: m.version, State: s, Results: slices.Clone(m.results)}
	if m.reject != nil {
		r := *m.reject
		v.Reject = &r
	}
	return v
}

func (m *Mirror) publish() {
	m.version++
	v := m.view()
	for _, w := range m.watchers {
		select {
		case <-w:
		default:
		}
		w <- v
	}
}

func hasMessage(msgs []engine.ChatMessage, id string) bool {
	return slices.ContainsFunc(msgs, func(m engine.ChatMessage) bool { return m.ID == id })
}
