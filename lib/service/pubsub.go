package service

import (
	"sync"

	"github.com/labstack/gommon/random"
)

// Event is a named notification with a JSON-serializable payload.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

// Pubsub fans invoice-state deltas out to connected observers. Delivery is
// best-effort: an observer that cannot keep up misses events instead of
// blocking delivery to the others, and a closed channel never takes down a
// publish.
type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewPubsub() *Pubsub {
	return &Pubsub{subs: make(map[string]chan Event)}
}

// Subscribe registers an observer channel and returns its handle. Buffered
// channels give slow observers headroom before events are dropped.
func (ps *Pubsub) Subscribe(ch chan Event) (subID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subID = random.String(32, random.Hex)
	ps.subs[subID] = ch
	return subID
}

// Unsubscribe removes an observer and closes its channel. Unknown or
// already-removed handles are a no-op.
func (ps *Pubsub) Unsubscribe(subID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ch, ok := ps.subs[subID]
	if !ok {
		return
	}
	close(ch)
	delete(ps.subs, subID)
}

// Publish delivers the event to every registered observer.
func (ps *Pubsub) Publish(name string, payload interface{}) {
	ev := Event{Name: name, Payload: payload}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, ch := range ps.subs {
		deliver(ch, ev)
	}
}

func deliver(ch chan Event, ev Event) {
	// A concurrent Unsubscribe may have closed the channel; sending would
	// panic, and one broken observer must not fail the broadcast.
	defer func() { _ = recover() }()
	select {
	case ch <- ev:
	default:
	}
}
