package events

import (
	"github.com/kelindar/event"
)

// Bus broadcasts session, motion and relay events. Each subscriber gets its
// own goroutine, so a slow handler delays only itself.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to every subscriber of its concrete type. Unknown
// event types are dropped.
func (b *Bus) Publish(ev Event) {
	// dispatch is keyed on the static type, so the interface has to be unwrapped
	switch e := ev.(type) {
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case SessionCrashedEvent:
		event.Publish(b.dispatcher, e)
	case MotionCommandEvent:
		event.Publish(b.dispatcher, e)
	case EncoderMetricsEvent:
		event.Publish(b.dispatcher, e)
	case StreamProducerEvent:
		event.Publish(b.dispatcher, e)
	}
}

// On registers fn for events of type T and returns the unsubscribe func.
func On[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}
