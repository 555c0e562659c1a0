package events

import "sync"

// Stream merges every event type into one channel for an SSE client.
// Delivery never blocks publishers: a full buffer drops the event.
type Stream struct {
	C <-chan Event

	session string
	ch      chan Event
	unsubs  []func()

	mu      sync.Mutex
	dropped int
	closed  bool
}

// Stream subscribes to every event type. When session is non-empty, events
// carrying a different session id are skipped; relay producer events carry
// no session and always pass.
func (b *Bus) Stream(session string, buffer int) *Stream {
	if buffer <= 0 {
		buffer = 32
	}
	s := &Stream{session: session, ch: make(chan Event, buffer)}
	s.C = s.ch
	s.unsubs = []func(){
		forward(b, s, func(e SessionStateChangedEvent) string { return e.SessionID }),
		forward(b, s, func(e SessionCrashedEvent) string { return e.SessionID }),
		forward(b, s, func(e MotionCommandEvent) string { return e.SessionID }),
		forward(b, s, func(e EncoderMetricsEvent) string { return e.SessionID }),
		forward(b, s, func(StreamProducerEvent) string { return "" }),
	}
	return s
}

func forward[T Event](b *Bus, s *Stream, sessionOf func(T) string) func() {
	return On(b, func(e T) {
		if id := sessionOf(e); s.session != "" && id != "" && id != s.session {
			return
		}
		s.deliver(e)
	})
}

func (s *Stream) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped++
	}
}

// Dropped returns how many events the buffer had no room for.
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes. C is not closed so a pending select stays valid.
func (s *Stream) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
