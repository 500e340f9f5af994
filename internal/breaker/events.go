package breaker

import (
	"sync"
	"time"
)

// Event describes one circuit state transition. Transitions are telemetry,
// not errors; the telemetry subsystem subscribes to them instead of polling
// breaker state.
type Event struct {
	Circuit string
	From    string
	To      string
	At      time.Time
}

// eventBuffer is the per-subscriber channel depth. Transitions are rare, so
// a small buffer absorbs bursts; beyond that, events are dropped in favor of
// never blocking a request.
const eventBuffer = 64

type publisher struct {
	mu   sync.RWMutex
	subs []chan Event
}

func newPublisher() *publisher {
	return &publisher{}
}

func (p *publisher) subscribe() <-chan Event {
	ch := make(chan Event, eventBuffer)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

func (p *publisher) publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
