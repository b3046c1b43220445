package orchestrator

import "sync"

// Notification is the shell-facing event published on every observable
// lifecycle change. The WebSocket layer forwards them verbatim.
type Notification struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Notification types
const (
	NotifySessionRegistered = "session_registered"
	NotifySessionRemoved    = "session_removed"
	NotifySessionActivated  = "session_activated"
	NotifyStatus            = "status"
	NotifyStopped           = "stopped"
	NotifyOutput            = "output"
	NotifyLayout            = "layout"
	NotifyLayoutSave        = "layout_save_requested"
	NotifyConfirmPending    = "confirm_pending"
	NotifyConfirmResolved   = "confirm_resolved"
)

// broadcaster fans notifications out to subscribers. Slow subscribers drop
// notifications rather than stalling lifecycle flows.
type broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Notification
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Notification)}
}

// subscribe returns a notification channel and a cancel function
func (b *broadcaster) subscribe() (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sid := b.nextID
	b.nextID++

	ch := make(chan Notification, 256)
	b.subs[sid] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[sid]; ok {
			delete(b.subs, sid)
			close(existing)
		}
	}
	return ch, cancel
}

// publish delivers a notification to every subscriber without blocking
func (b *broadcaster) publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
