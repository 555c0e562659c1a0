package streaming

import (
	"errors"
	"testing"

	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewPeerAPI(t *testing.T) {
	api, err := newPeerAPI("live")
	if err != nil {
		t.Fatalf("newPeerAPI: %v", err)
	}
	pc, err := api.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	_ = pc.Close()
}

func TestWebRTCConfigICEServers(t *testing.T) {
	if got := (WebRTCConfig{}).iceServers(); got != nil {
		t.Errorf("empty config should be LAN-only, got %v", got)
	}
	got := WebRTCConfig{ICEServers: []string{"stun:stun.l.google.com:19302"}}.iceServers()
	if len(got) != 1 || len(got[0].URLs) != 1 {
		t.Errorf("iceServers = %v", got)
	}
}

func TestViewersRejectUnknownStream(t *testing.T) {
	v := NewViewers(NewHub(testLogger(), nil), WebRTCConfig{}, testLogger())
	if _, err := v.Answer("missing", "v=0"); !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("err = %v, want ErrStreamNotFound", err)
	}
	if v.Count("missing") != 0 {
		t.Error("rejected offer left a viewer behind")
	}
}

func TestRecordRTCPByKind(t *testing.T) {
	const name = "viewstream_webrtc_rtcp_packets_total"
	before, err := testutil.GatherAndCount(prometheus.DefaultGatherer, name)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	recordRTCP("rtcp-test", []rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: 1},
		&rtcp.TransportLayerNack{MediaSSRC: 1, Nacks: []rtcp.NackPair{{PacketID: 10, LostPackets: 0b11}}},
		&rtcp.FullIntraRequest{MediaSSRC: 1},
		&rtcp.ReceiverReport{SSRC: 1},
	})

	after, err := testutil.GatherAndCount(prometheus.DefaultGatherer, name)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if after-before != 4 {
		t.Errorf("new rtcp series = %d, want 4 (one per kind)", after-before)
	}
}
