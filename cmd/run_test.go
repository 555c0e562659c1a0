package cmd

import "testing"

func TestLocalRelayAddr(t *testing.T) {
	tests := []struct {
		name      string
		publish   string
		relayAddr string
		want      bool
	}{
		{"default publish url", "rtsp://127.0.0.1:8555/live", ":8555", true},
		{"localhost", "rtsp://localhost:8555/live", ":8555", true},
		{"ipv6 loopback", "rtsp://[::1]:8555/live", "127.0.0.1:8555", true},
		{"other port", "rtsp://127.0.0.1:8554/live", ":8555", false},
		{"remote relay", "rtsp://10.0.0.5:8555/live", ":8555", false},
		{"default rtsp port", "rtsp://127.0.0.1/live", ":554", true},
		{"not rtsp", "srt://127.0.0.1:8555", ":8555", false},
		{"disabled", "rtsp://127.0.0.1:8555/live", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := localRelayAddr(tt.publish, tt.relayAddr)
			if ok != tt.want {
				t.Fatalf("localRelayAddr(%q, %q) = %v, want %v", tt.publish, tt.relayAddr, ok, tt.want)
			}
			if ok && addr != tt.relayAddr {
				t.Errorf("addr = %q, want %q", addr, tt.relayAddr)
			}
		})
	}
}
