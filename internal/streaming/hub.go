package streaming

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/rtsp"
	"github.com/AlexxIT/go2rtc/pkg/webrtc"
	"github.com/pion/rtp"

	"github.com/smazurov/viewstream/internal/events"
	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/metrics"
)

// ErrStreamNotFound is returned when no encoder publishes the requested path.
var ErrStreamNotFound = errors.New("stream not found")

// EventPublisher receives producer connect and disconnect notifications.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Hub maps relay paths to the encoder publishing them and wires viewers onto
// their tracks. Each session's encoder ANNOUNCEs its own path.
type Hub struct {
	mu        sync.RWMutex
	producers map[string]*rtsp.Conn
	logger    logging.Logger
	events    EventPublisher

	// onProducerGone fires after a producer is replaced or removed so that
	// viewers bound to the old tracks can be dropped.
	onProducerGone func(stream string)
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(logger logging.Logger, publisher EventPublisher) *Hub {
	return &Hub{
		producers: make(map[string]*rtsp.Conn),
		logger:    logger,
		events:    publisher,
	}
}

// OnProducerGone registers the callback run when a stream loses its producer.
func (h *Hub) OnProducerGone(fn func(stream string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onProducerGone = fn
}

// AddProducer registers conn as the publisher of stream, replacing any
// previous one. A restarted session's encoder lands here.
func (h *Hub) AddProducer(stream string, conn *rtsp.Conn) {
	h.mu.Lock()
	var gone func(string)
	if existing, ok := h.producers[stream]; ok && existing != conn {
		h.logger.Info("Replacing stream producer", "stream", stream)
		_ = existing.Stop()
		gone = h.onProducerGone
	}
	h.producers[stream] = conn
	count := len(h.producers)
	h.mu.Unlock()

	metrics.SetProducers(count)

	codec := videoCodec(conn)
	if codec != nil {
		h.logger.Info("Stream producer added", "stream", stream, "codec", codec.Name,
			"profile", h264ProfileName(h264ProfileFromFmtp(codec.FmtpLine)))
	} else {
		h.logger.Info("Stream producer added", "stream", stream)
	}
	h.publish(stream, "connected", codec)

	if gone != nil {
		go gone(stream)
	}
}

// RemoveProducer drops the publisher of stream if it is still conn.
func (h *Hub) RemoveProducer(stream string, conn *rtsp.Conn) {
	h.mu.Lock()
	current, ok := h.producers[stream]
	if !ok || current != conn {
		h.mu.Unlock()
		return
	}
	_ = current.Stop()
	delete(h.producers, stream)
	count := len(h.producers)
	gone := h.onProducerGone
	h.mu.Unlock()

	metrics.SetProducers(count)
	h.logger.Info("Stream producer removed", "stream", stream)
	h.publish(stream, "disconnected", nil)

	if gone != nil {
		go gone(stream)
	}
}

// HasProducer reports whether an encoder currently publishes stream.
func (h *Hub) HasProducer(stream string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.producers[stream]
	return ok
}

// WireConsumer connects cons to every matching track of the stream's
// producer. RTSP players arrive with no medias and get all tracks; WebRTC
// viewers are matched by kind and codec, with H.264 forwarded as RTP.
func (h *Hub) WireConsumer(stream string, cons core.Consumer) error {
	h.mu.RLock()
	prod := h.producers[stream]
	h.mu.RUnlock()
	if prod == nil {
		return ErrStreamNotFound
	}

	medias := cons.GetMedias()
	if len(medias) == 0 {
		for _, receiver := range prod.Receivers {
			media := &core.Media{
				Kind:      core.GetKind(receiver.Codec.Name),
				Direction: core.DirectionRecvonly,
				Codecs:    []*core.Codec{receiver.Codec},
			}
			if err := cons.AddTrack(media, receiver.Codec, receiver); err != nil {
				h.logger.Warn("Failed to add track", "stream", stream, "error", err)
			}
		}
		return nil
	}

	peer, isWebRTC := cons.(*webrtc.Conn)

	wired := 0
	for _, receiver := range prod.Receivers {
		media, codec := matchMedia(medias, receiver.Codec)
		if media == nil {
			h.logger.Debug("No viewer media for track", "stream", stream, "codec", receiver.Codec.Name)
			continue
		}

		var sendersBefore int
		if isWebRTC {
			sendersBefore = len(peer.Senders)
		}

		if err := cons.AddTrack(media, codec, receiver); err != nil {
			h.logger.Warn("Failed to add track", "stream", stream, "error", err)
			continue
		}
		wired++

		if !isWebRTC || !receiver.Codec.IsRTP() || receiver.Codec.Name != core.CodecH264 ||
			len(peer.Senders) <= sendersBefore {
			continue
		}

		// Forward encoder RTP untouched instead of depacketizing, and let the
		// injector prepend parameter sets for viewers that join mid-GOP.
		sender := peer.Senders[len(peer.Senders)-1]
		track := peer.GetSenderTrack(media.ID)
		if track == nil {
			continue
		}
		payloadType := codec.PayloadType
		injector := newParameterSetInjector(receiver.Codec, func(packet *rtp.Packet) {
			size := packet.MarshalSize()
			peer.Send += size
			metrics.RecordPacketSent(stream, size)
			_ = track.WriteRTP(payloadType, packet)
		})
		sender.Handler = injector.handlePacket
	}

	if wired == 0 {
		return errors.New("no compatible tracks for " + stream)
	}
	return nil
}

func matchMedia(medias []*core.Media, src *core.Codec) (*core.Media, *core.Codec) {
	kind := core.GetKind(src.Name)
	for _, m := range medias {
		if m.Kind != kind || m.Direction != core.DirectionSendonly {
			continue
		}
		for _, c := range m.Codecs {
			if c.Name == src.Name {
				return m, c
			}
		}
	}
	return nil, nil
}

// ListStreams returns the published paths in sorted order.
func (h *Hub) ListStreams() []string {
	h.mu.RLock()
	streams := make([]string, 0, len(h.producers))
	for id := range h.producers {
		streams = append(streams, id)
	}
	h.mu.RUnlock()
	sort.Strings(streams)
	return streams
}

// Stop closes every producer.
func (h *Hub) Stop() {
	h.mu.Lock()
	for id, conn := range h.producers {
		_ = conn.Stop()
		delete(h.producers, id)
	}
	h.mu.Unlock()
	metrics.SetProducers(0)
	h.logger.Info("Stream hub stopped")
}

func (h *Hub) publish(stream, action string, codec *core.Codec) {
	if h.events == nil {
		return
	}
	ev := events.StreamProducerEvent{
		Stream:    stream,
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if codec != nil {
		ev.Codec = codec.Name
	}
	h.events.Publish(ev)
}

func videoCodec(conn *rtsp.Conn) *core.Codec {
	if conn == nil {
		return nil
	}
	for _, receiver := range conn.Receivers {
		if receiver.Codec != nil && core.GetKind(receiver.Codec.Name) == core.KindVideo {
			return receiver.Codec
		}
	}
	return nil
}
