// Package ursim provides a UR-controller stand-in for development and tests.
//
// The simulator listens on a dashboard (control) port and a program port,
// reads every connection to EOF and records the payload. It never answers,
// matching a controller that only accepts fire-and-forget commands.
package ursim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Channel names the port a payload arrived on.
type Channel string

const (
	ChannelControl Channel = "control"
	ChannelProgram Channel = "program"
)

// Fault modes.
const (
	FaultNone          = ""
	FaultRefuseControl = "RefuseControl" // control listener closed, dials are refused
	FaultRefuseProgram = "RefuseProgram"
)

// Message is one recorded payload.
type Message struct {
	Channel    Channel   `json:"channel"`
	Port       int       `json:"port"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Config holds listener settings. Port 0 picks a free port.
type Config struct {
	Host        string
	ControlPort int
	ProgramPort int
	ReadTimeout time.Duration
}

// Server simulates the two controller sockets.
type Server struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	listeners map[Channel]net.Listener
	addrs     map[Channel]string
	messages  []Message
	changed   chan struct{}
	faultMode string
	stopped   bool

	wg sync.WaitGroup
}

// NewServer creates a simulator. A nil logger disables logging.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		listeners: make(map[Channel]net.Listener),
		addrs:     make(map[Channel]string),
		changed:   make(chan struct{}),
	}
}

// Start opens both listeners and serves them in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.listenLocked(ChannelControl, net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.ControlPort))); err != nil {
		return err
	}
	if err := s.listenLocked(ChannelProgram, net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.ProgramPort))); err != nil {
		s.closeLocked(ChannelControl)
		return err
	}
	return nil
}

// listenLocked must be called with s.mu held.
func (s *Server) listenLocked(ch Channel, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s (%s): %w", addr, ch, err)
	}
	s.listeners[ch] = ln
	s.addrs[ch] = ln.Addr().String()

	s.logger.Info("simulator listening", zap.String("channel", string(ch)), zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop(ch, ln)
	return nil
}

func (s *Server) closeLocked(ch Channel) {
	if ln, ok := s.listeners[ch]; ok {
		_ = ln.Close()
		delete(s.listeners, ch)
	}
}

func (s *Server) acceptLoop(ch Channel, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.String("channel", string(ch)), zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ch, conn)
	}
}

// handleConnection reads one payload to EOF.
func (s *Server) handleConnection(ch Channel, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	data, err := io.ReadAll(conn)
	if err != nil {
		s.logger.Warn("read failed", zap.String("channel", string(ch)), zap.Error(err))
		return
	}

	port := 0
	if tcp, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	msg := Message{
		Channel:    ch,
		Port:       port,
		Payload:    string(data),
		ReceivedAt: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("payload received",
		zap.String("channel", string(ch)),
		zap.Int("bytes", len(data)),
		zap.String("client", conn.RemoteAddr().String()))
	s.logger.Debug("payload", zap.String("channel", string(ch)), zap.String("data", msg.Payload))
}

// ControlAddr returns the bound control address.
func (s *Server) ControlAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[ChannelControl]
}

// ProgramAddr returns the bound program address.
func (s *Server) ProgramAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[ChannelProgram]
}

// Messages returns every payload received so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// ChannelMessages returns the payloads received on one channel, in arrival order.
func (s *Server) ChannelMessages(ch Channel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, m := range s.messages {
		if m.Channel == ch {
			out = append(out, m.Payload)
		}
	}
	return out
}

// WaitForMessages blocks until at least n payloads were recorded.
func (s *Server) WaitForMessages(ctx context.Context, n int) ([]Message, error) {
	for {
		s.mu.Lock()
		if len(s.messages) >= n {
			out := append([]Message(nil), s.messages...)
			s.mu.Unlock()
			return out, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Messages(), ctx.Err()
		}
	}
}

// Reset discards recorded payloads.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// SetFaultMode injects a fault. Refusal faults close the matching listener.
func (s *Server) SetFaultMode(mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case FaultRefuseControl:
		s.closeLocked(ChannelControl)
	case FaultRefuseProgram:
		s.closeLocked(ChannelProgram)
	case FaultNone:
	default:
		return fmt.Errorf("unknown fault mode %q", mode)
	}
	s.faultMode = mode
	return nil
}

// ClearFaultMode reopens closed listeners on their previous addresses.
func (s *Server) ClearFaultMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faultMode = FaultNone
	if s.stopped {
		return nil
	}
	for _, ch := range []Channel{ChannelControl, ChannelProgram} {
		if _, open := s.listeners[ch]; open {
			continue
		}
		if addr, ok := s.addrs[ch]; ok {
			if err := s.listenLocked(ch, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

// FaultMode returns the active fault.
func (s *Server) FaultMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faultMode
}

// Close stops both listeners and waits for in-flight connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.stopped = true
	s.closeLocked(ChannelControl)
	s.closeLocked(ChannelProgram)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
