package streaming

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/pion/rtp"
)

// H.264 NAL unit types seen on the wire.
const (
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
	nalSTAPA = 24
	nalFUA   = 28
)

// parameterSetInjector forwards encoder RTP packets as they are and writes
// SPS and PPS from the announced fmtp line ahead of every keyframe that did
// not carry them in-band. The encoder only emits parameter sets at stream
// start, so viewers joining later would otherwise never decode.
type parameterSetInjector struct {
	forward     func(*rtp.Packet)
	sps, pps    []byte
	payloadType uint8
	inBand      bool // parameter sets already seen before the next IDR
}

func newParameterSetInjector(codec *core.Codec, forward func(*rtp.Packet)) *parameterSetInjector {
	sps, pps := parseSpsPps(codec.FmtpLine)
	return &parameterSetInjector{
		forward:     forward,
		sps:         sps,
		pps:         pps,
		payloadType: codec.PayloadType,
	}
}

func (p *parameterSetInjector) handlePacket(packet *rtp.Packet) {
	if len(packet.Payload) == 0 {
		return
	}

	switch packet.Payload[0] & 0x1F {
	case nalSPS, nalPPS:
		p.inBand = true
	case nalSTAPA:
		if stapAContainsPS(packet.Payload) {
			p.inBand = true
		}
	case nalIDR:
		p.beforeKeyframe(packet)
	case nalFUA:
		if isFUAStartOfIDR(packet.Payload) {
			p.beforeKeyframe(packet)
		}
	}

	p.forward(packet)
}

func (p *parameterSetInjector) beforeKeyframe(packet *rtp.Packet) {
	if !p.inBand {
		p.inject(packet)
	}
	p.inBand = false
}

func (p *parameterSetInjector) inject(template *rtp.Packet) {
	for _, nal := range [][]byte{p.sps, p.pps} {
		if len(nal) == 0 {
			continue
		}
		p.forward(&rtp.Packet{
			Header: rtp.Header{
				Version:     2,
				PayloadType: p.payloadType,
				Timestamp:   template.Timestamp,
				SSRC:        template.SSRC,
			},
			Payload: nal,
		})
	}
}

func isFUAStartOfIDR(payload []byte) bool {
	if len(payload) < 2 {
		return false
	}
	header := payload[1]
	return header&0x80 != 0 && header&0x1F == nalIDR
}

// stapAContainsPS walks the aggregation units of a STAP-A payload.
func stapAContainsPS(payload []byte) bool {
	offset := 1
	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 || offset+size > len(payload) {
			return false
		}
		if t := payload[offset] & 0x1F; t == nalSPS || t == nalPPS {
			return true
		}
		offset += size
	}
	return false
}

// fmtpValue returns the value of key in an fmtp parameter list.
func fmtpValue(fmtp, key string) string {
	for _, param := range strings.Split(fmtp, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && strings.EqualFold(name, key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// parseSpsPps decodes sprop-parameter-sets from an fmtp line.
func parseSpsPps(fmtp string) (sps, pps []byte) {
	sets := strings.SplitN(fmtpValue(fmtp, "sprop-parameter-sets"), ",", 2)
	if len(sets) != 2 {
		return nil, nil
	}
	sps, _ = base64.StdEncoding.DecodeString(sets[0])
	pps, _ = base64.StdEncoding.DecodeString(sets[1])
	return sps, pps
}

// h264ProfileFromFmtp returns the profile_idc byte announced by the encoder,
// from profile-level-id or else from the SPS. Zero means unknown.
func h264ProfileFromFmtp(fmtp string) byte {
	if id := fmtpValue(fmtp, "profile-level-id"); len(id) >= 2 {
		if b, err := hex.DecodeString(id[:2]); err == nil {
			return b[0]
		}
	}
	if sps, _ := parseSpsPps(fmtp); len(sps) > 1 {
		return sps[1]
	}
	return 0
}

func h264ProfileName(idc byte) string {
	switch idc {
	case 0x42:
		return "baseline"
	case 0x4D:
		return "main"
	case 0x64:
		return "high"
	case 0:
		return "unknown"
	default:
		return "0x" + hex.EncodeToString([]byte{idc})
	}
}
