package streaming

import (
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/interceptor/pkg/twcc"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"

	"github.com/smazurov/viewstream/internal/metrics"
)

// nackBufferSize holds roughly two seconds of a 20 Mbit/s viewport stream
// for retransmission.
const nackBufferSize = 4096

// srtpReplayWindow must cover nackBufferSize.
const srtpReplayWindow = 8192

// h264Profiles are offered to browsers. The encoder emits constrained
// baseline or high depending on the backend, so both are registered.
var h264Profiles = []struct {
	payloadType uint8
	fmtp        string
}{
	{96, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"},
	{97, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f"},
	{98, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=64001f"},
	{99, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=640028"},
	{100, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=640032"},
}

// newPeerAPI builds a pion API for one viewer of stream: H.264 only, NACK
// and PLI feedback, sender reports, TWCC and RTCP metrics.
func newPeerAPI(stream string) (*pion.API, error) {
	m := &pion.MediaEngine{}
	feedback := []pion.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
		{Type: pion.TypeRTCPFBTransportCC},
	}
	for _, p := range h264Profiles {
		err := m.RegisterCodec(pion.RTPCodecParameters{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:     pion.MimeTypeH264,
				ClockRate:    90000,
				SDPFmtpLine:  p.fmtp,
				RTCPFeedback: feedback,
			},
			PayloadType: pion.PayloadType(p.payloadType),
		}, pion.RTPCodecTypeVideo)
		if err != nil {
			return nil, err
		}
	}

	i := &interceptor.Registry{}
	if err := registerInterceptors(i); err != nil {
		return nil, err
	}
	i.Add(&rtcpMetricsFactory{stream: stream})

	s := pion.SettingEngine{}
	s.SetDTLSInsecureSkipHelloVerify(true)
	s.SetSRTPReplayProtectionWindow(srtpReplayWindow)

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(s),
	), nil
}

func registerInterceptors(i *interceptor.Registry) error {
	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(nackBufferSize))
	if err != nil {
		return err
	}
	i.Add(responder)

	receiver, err := report.NewReceiverInterceptor()
	if err != nil {
		return err
	}
	i.Add(receiver)

	sender, err := report.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(sender)

	cc, err := twcc.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(cc)
	return nil
}

type rtcpMetricsFactory struct {
	stream string
}

func (f *rtcpMetricsFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &rtcpMetrics{stream: f.stream}, nil
}

// rtcpMetrics counts viewer feedback as it passes through.
type rtcpMetrics struct {
	interceptor.NoOp
	stream string
}

func (r *rtcpMetrics) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return n, attr, err
		}
		if packets, perr := rtcp.Unmarshal(b[:n]); perr == nil {
			recordRTCP(r.stream, packets)
		}
		return n, attr, nil
	})
}

func recordRTCP(stream string, packets []rtcp.Packet) {
	for _, pkt := range packets {
		switch p := pkt.(type) {
		case *rtcp.TransportLayerNack:
			metrics.RecordRTCP(stream, metrics.RTCPNACK)
			lost := 0
			for _, pair := range p.Nacks {
				lost += len(pair.PacketList())
			}
			metrics.RecordNACKedPackets(stream, lost)
		case *rtcp.PictureLossIndication:
			metrics.RecordRTCP(stream, metrics.RTCPPLI)
		case *rtcp.FullIntraRequest:
			metrics.RecordRTCP(stream, metrics.RTCPFIR)
		default:
			metrics.RecordRTCP(stream, metrics.RTCPOther)
		}
	}
}
