package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter republishes encoder metrics on the event bus so SSE clients
// see them without scraping /metrics. A session's metrics are published
// only when they differ from what was last sent.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   map[string]metrics.EncoderMetrics
}

// SSEOption configures an SSEExporter.
type SSEOption func(*SSEExporter)

// WithInterval sets how often metrics are compared and published.
func WithInterval(d time.Duration) SSEOption {
	return func(s *SSEExporter) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewSSEExporter creates an exporter publishing once per second by default.
func NewSSEExporter(eventBus EventPublisher, opts ...SSEOption) *SSEExporter {
	s := &SSEExporter{
		eventBus: eventBus,
		interval: time.Second,
		last:     make(map[string]metrics.EncoderMetrics),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the export loop. Calling Start on a running exporter is a no-op.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishChanged()
		}
	}
}

func (s *SSEExporter) publishChanged() {
	current := metrics.GetAllEncoderMetrics()

	s.mu.Lock()
	var changed []string
	for id, m := range current {
		if prev, ok := s.last[id]; !ok || prev != *m {
			s.last[id] = *m
			changed = append(changed, id)
		}
	}
	for id := range s.last {
		if _, ok := current[id]; !ok {
			delete(s.last, id)
		}
	}
	s.mu.Unlock()

	for _, id := range changed {
		s.eventBus.Publish(metricsEvent(id, current[id]))
	}
}

func metricsEvent(sessionID string, m *metrics.EncoderMetrics) events.EncoderMetricsEvent {
	return events.EncoderMetricsEvent{
		EventType:       "encoder_metrics",
		SessionID:       sessionID,
		FPS:             strconv.FormatFloat(m.FPS, 'f', 2, 64),
		Speed:           strconv.FormatFloat(m.Speed, 'f', 2, 64),
		DroppedFrames:   strconv.FormatFloat(m.DroppedFrames, 'f', 0, 64),
		DuplicateFrames: strconv.FormatFloat(m.DuplicateFrames, 'f', 0, 64),
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"encoder-metrics": events.EncoderMetricsEvent{},
	}
}
