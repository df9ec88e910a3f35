package testutil

import (
	"sync"

	"github.com/cashapp/redwood-sub006/internal/host"
	"github.com/cashapp/redwood-sub006/internal/protocol"
)

// EventRecorder is a host.EventSink that keeps every event it sees and
// forwards it to Next, if set. An error from Next is returned to the
// widget that raised the event; the event stays recorded.
type EventRecorder struct {
	Next host.EventSink

	mu     sync.Mutex
	events []protocol.Event
}

// NewEventRecorder returns a recorder forwarding to next, which may be nil.
func NewEventRecorder(next host.EventSink) *EventRecorder {
	return &EventRecorder{Next: next}
}

func (r *EventRecorder) SendEvent(e protocol.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.Next == nil {
		return nil
	}
	return r.Next.SendEvent(e)
}

// Events returns a copy of the recorded events in order.
func (r *EventRecorder) Events() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Event(nil), r.events...)
}

// Len returns the number of recorded events.
func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var _ host.EventSink = (*EventRecorder)(nil)
