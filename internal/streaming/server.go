package streaming

import (
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/rtsp"

	"github.com/smazurov/viewstream/internal/logging"
)

// Server is the local RTSP relay. Session encoders push to it with ANNOUNCE
// and players pull with DESCRIBE, both keyed by the URL path.
type Server struct {
	hub    *Hub
	logger logging.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a relay backed by hub.
func NewServer(hub *Hub, logger logging.Logger) *Server {
	return &Server{hub: hub, logger: logger}
}

// Start listens on addr and serves connections in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.closed = false
	s.mu.Unlock()

	s.logger.Info("RTSP relay listening", "addr", ln.Addr().String())
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			s.logger.Error("Failed to accept RTSP connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	rc := rtsp.NewServer(conn)
	var published string

	rc.Listen(func(msg any) {
		switch msg {
		case rtsp.MethodAnnounce:
			stream := streamPath(rc)
			if stream == "" {
				return
			}
			published = stream
			s.hub.AddProducer(stream, rc)
			s.logger.Info("Encoder publishing", "stream", stream, "remote", conn.RemoteAddr().String())

		case rtsp.MethodDescribe:
			stream := streamPath(rc)
			if stream == "" {
				return
			}
			if err := s.hub.WireConsumer(stream, rc); err != nil {
				s.logger.Warn("RTSP player rejected", "stream", stream, "error", err)
				return
			}
			s.logger.Info("RTSP player connected", "stream", stream, "remote", conn.RemoteAddr().String())
		}
	})

	if err := rc.Accept(); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("RTSP handshake failed", "error", err)
		}
		_ = conn.Close()
		return
	}

	if err := rc.Handle(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("RTSP connection ended", "error", err)
	}

	if published != "" {
		s.hub.RemoveProducer(published, rc)
	}
}

func streamPath(rc *rtsp.Conn) string {
	if rc.URL == nil {
		return ""
	}
	return strings.Trim(rc.URL.Path, "/")
}

// Stop closes the listener, waits for open connections and clears the hub.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	// Producers hold their connections open; stopping the hub unblocks them.
	s.hub.Stop()
	s.wg.Wait()

	s.logger.Info("RTSP relay stopped")
	return err
}

// Hub returns the relay's stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
