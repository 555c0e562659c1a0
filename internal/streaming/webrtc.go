package streaming

import (
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/webrtc"
	pion "github.com/pion/webrtc/v4"

	"github.com/smazurov/viewstream/internal/logging"
	"github.com/smazurov/viewstream/internal/metrics"
)

// WebRTCConfig configures viewer peer connections.
type WebRTCConfig struct {
	// ICEServers are STUN/TURN URLs; empty keeps viewers LAN-only.
	ICEServers []string
}

func (c WebRTCConfig) iceServers() []pion.ICEServer {
	if len(c.ICEServers) == 0 {
		return nil
	}
	return []pion.ICEServer{{URLs: c.ICEServers}}
}

type viewer struct {
	stream string
	conn   *webrtc.Conn
}

// Viewers manages browser peers watching relay streams.
type Viewers struct {
	hub    *Hub
	config WebRTCConfig
	logger logging.Logger

	mu    sync.Mutex
	peers map[string]viewer
}

// NewViewers creates a viewer manager and subscribes it to producer loss on
// hub, so that viewers of a restarted session reconnect to the new encoder.
func NewViewers(hub *Hub, config WebRTCConfig, logger logging.Logger) *Viewers {
	v := &Viewers{
		hub:    hub,
		config: config,
		logger: logger,
		peers:  make(map[string]viewer),
	}
	hub.OnProducerGone(v.CloseStream)
	return v
}

// Answer accepts a browser SDP offer for stream and returns the SDP answer.
func (v *Viewers) Answer(stream, offer string) (string, error) {
	if !v.hub.HasProducer(stream) {
		return "", ErrStreamNotFound
	}

	api, err := newPeerAPI(stream)
	if err != nil {
		return "", err
	}
	pc, err := api.NewPeerConnection(pion.Configuration{ICEServers: v.config.iceServers()})
	if err != nil {
		return "", err
	}

	conn := webrtc.NewConn(pc)
	conn.Mode = core.ModePassiveConsumer

	if err := conn.SetOffer(offer); err != nil {
		_ = pc.Close()
		return "", err
	}
	if err := v.hub.WireConsumer(stream, conn); err != nil {
		_ = pc.Close()
		return "", err
	}
	answer, err := conn.GetCompleteAnswer(nil, nil)
	if err != nil {
		_ = pc.Close()
		return "", err
	}

	id := core.RandString(8, 10)
	count := v.add(id, stream, conn)
	v.logger.Debug("Viewer joined", "stream", stream, "peer", id, "viewers", count)

	conn.Listen(func(msg any) {
		state, ok := msg.(pion.PeerConnectionState)
		if !ok {
			return
		}
		switch state {
		case pion.PeerConnectionStateConnected:
			// Interceptors only see NACK and PLI if someone drains RTCP.
			for _, sender := range pc.GetSenders() {
				go drainRTCP(sender)
			}
		case pion.PeerConnectionStateDisconnected, pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			_ = conn.Stop()
			remaining := v.remove(id)
			v.logger.Debug("Viewer left", "stream", stream, "peer", id, "state", state.String(), "viewers", remaining)
		}
	})

	return answer, nil
}

func drainRTCP(sender *pion.RTPSender) {
	for {
		if _, _, err := sender.ReadRTCP(); err != nil {
			return
		}
	}
}

func (v *Viewers) add(id, stream string, conn *webrtc.Conn) int {
	v.mu.Lock()
	v.peers[id] = viewer{stream: stream, conn: conn}
	count := v.countLocked(stream)
	v.mu.Unlock()
	metrics.SetViewers(stream, count)
	return count
}

func (v *Viewers) remove(id string) int {
	v.mu.Lock()
	p, ok := v.peers[id]
	if !ok {
		v.mu.Unlock()
		return 0
	}
	delete(v.peers, id)
	count := v.countLocked(p.stream)
	v.mu.Unlock()
	metrics.SetViewers(p.stream, count)
	return count
}

func (v *Viewers) countLocked(stream string) int {
	n := 0
	for _, p := range v.peers {
		if p.stream == stream {
			n++
		}
	}
	return n
}

// Count returns the number of viewers of stream.
func (v *Viewers) Count(stream string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.countLocked(stream)
}

// CloseStream disconnects every viewer of stream. Browsers see the peer
// close and renegotiate against the current producer.
func (v *Viewers) CloseStream(stream string) {
	v.mu.Lock()
	var conns []*webrtc.Conn
	for _, p := range v.peers {
		if p.stream == stream {
			conns = append(conns, p.conn)
		}
	}
	v.mu.Unlock()

	if len(conns) == 0 {
		return
	}
	v.logger.Info("Closing viewers of restarted stream", "stream", stream, "viewers", len(conns))
	for _, c := range conns {
		_ = c.Stop()
	}
}

// Stop disconnects all viewers.
func (v *Viewers) Stop() {
	v.mu.Lock()
	peers := v.peers
	v.peers = make(map[string]viewer)
	v.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Stop()
		metrics.SetViewers(p.stream, 0)
	}
}
