package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionStateChangedEvent, 1)

	unsub := On(bus, func(e SessionStateChangedEvent) {
		received <- e
	})
	defer unsub()

	event := SessionStateChangedEvent{
		SessionID: "default",
		State:     "running",
		AssetID:   "42",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.State != event.State || got.AssetID != event.AssetID {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionCrashedEvent, 1)
	received2 := make(chan SessionCrashedEvent, 1)

	unsub1 := On(bus, func(e SessionCrashedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := On(bus, func(e SessionCrashedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(SessionCrashedEvent{SessionID: "default", Process: "renderer"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan MotionCommandEvent, 1)

	unsub := On(bus, func(e MotionCommandEvent) {
		received <- e
	})

	bus.Publish(MotionCommandEvent{Action: "rotate"})
	<-received

	unsub()

	bus.Publish(MotionCommandEvent{Action: "pan"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	stateReceived := make(chan bool, 1)
	crashReceived := make(chan bool, 1)

	unsub1 := On(bus, func(_ SessionStateChangedEvent) {
		stateReceived <- true
	})
	defer unsub1()

	unsub2 := On(bus, func(_ SessionCrashedEvent) {
		crashReceived <- true
	})
	defer unsub2()

	bus.Publish(SessionStateChangedEvent{State: "idle"})
	<-stateReceived

	select {
	case <-crashReceived:
		t.Fatal("Crash subscriber should NOT have received SessionStateChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(SessionCrashedEvent{Process: "encoder"})
	<-crashReceived

	select {
	case <-stateReceived:
		t.Fatal("State subscriber should NOT have received SessionCrashedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := On(bus, func(_ MotionCommandEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(MotionCommandEvent{
					Action:    "zoom",
					Direction: "in",
					Mode:      "start",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"SessionStateChanged", SessionStateChangedEvent{State: "running"}},
		{"SessionCrashed", SessionCrashedEvent{Process: "renderer"}},
		{"MotionCommand", MotionCommandEvent{Action: "rotate"}},
		{"EncoderMetrics", EncoderMetricsEvent{EventType: "encoder_metrics"}},
		{"StreamProducer", StreamProducerEvent{Stream: "live", Action: "connected"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case SessionStateChangedEvent:
				unsub = On(bus, func(e SessionStateChangedEvent) { received <- e })
			case SessionCrashedEvent:
				unsub = On(bus, func(e SessionCrashedEvent) { received <- e })
			case MotionCommandEvent:
				unsub = On(bus, func(e MotionCommandEvent) { received <- e })
			case EncoderMetricsEvent:
				unsub = On(bus, func(e EncoderMetricsEvent) { received <- e })
			case StreamProducerEvent:
				unsub = On(bus, func(e StreamProducerEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(SessionCrashedEvent{
		SessionID: "default",
		Process:   "encoder",
		ExitCode:  137,
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"session_id", "process", "exit_code", "timestamp"} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}

	data, _ = json.Marshal(SessionStateChangedEvent{SessionID: "default", State: "idle"})
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if _, ok := result["endpoint"]; ok {
		t.Error("empty endpoint should be omitted")
	}
}

func receive(t *testing.T, s *Stream) Event {
	t.Helper()
	select {
	case ev := <-s.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event on stream")
		return nil
	}
}

func TestStream_FiltersBySession(t *testing.T) {
	bus := New()
	s := bus.Stream("lab", 10)
	defer s.Close()

	bus.Publish(SessionStateChangedEvent{SessionID: "default", State: "running"})
	bus.Publish(SessionStateChangedEvent{SessionID: "lab", State: "starting"})

	got, ok := receive(t, s).(SessionStateChangedEvent)
	if !ok || got.SessionID != "lab" || got.State != "starting" {
		t.Fatalf("got %+v, want lab/starting", got)
	}

	bus.Publish(StreamProducerEvent{Stream: "live", Action: "connected"})
	if _, ok := receive(t, s).(StreamProducerEvent); !ok {
		t.Error("producer events should pass every session filter")
	}
}

func TestStream_AllSessions(t *testing.T) {
	bus := New()
	s := bus.Stream("", 10)
	defer s.Close()

	bus.Publish(MotionCommandEvent{SessionID: "a", Action: "pan"})
	bus.Publish(SessionCrashedEvent{SessionID: "b", Process: "encoder"})

	seen := map[uint32]bool{}
	for range 2 {
		seen[receive(t, s).Type()] = true
	}
	if !seen[TypeMotionCommand] || !seen[TypeSessionCrashed] {
		t.Errorf("seen = %v", seen)
	}
}

func TestStream_DropsWhenFull(t *testing.T) {
	bus := New()
	s := bus.Stream("", 1)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for range 3 {
			bus.Publish(MotionCommandEvent{Action: "pan"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full stream")
	}

	deadline := time.Now().Add(time.Second)
	for s.Dropped() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", s.Dropped())
	}
}

func TestStream_CloseStopsDelivery(t *testing.T) {
	bus := New()
	s := bus.Stream("", 4)
	s.Close()

	bus.Publish(SessionStateChangedEvent{SessionID: "default"})
	select {
	case ev := <-s.C:
		t.Errorf("event after Close: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOn_TypedSubscription(t *testing.T) {
	bus := New()
	got := make(chan StreamProducerEvent, 1)
	unsub := On(bus, func(e StreamProducerEvent) { got <- e })
	defer unsub()

	bus.Publish(SessionCrashedEvent{SessionID: "default"})
	bus.Publish(StreamProducerEvent{Stream: "live", Action: "connected"})

	select {
	case e := <-got:
		if e.Stream != "live" || e.Action != "connected" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("typed handler not called")
	}
}
