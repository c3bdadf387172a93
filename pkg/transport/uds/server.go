package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	// DefaultWriteTimeout bounds a single write to a client socket.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultClientQueue is the number of outgoing lines buffered per client.
	DefaultClientQueue = 64
)

// HandlerFunc processes a request and returns a response data payload or error.
type HandlerFunc func(ctx context.Context, req Message) (any, error)

// Server listens on a Unix domain socket and dispatches NDJSON messages.
// Every client has its own outgoing queue drained by a writer goroutine, so
// Broadcast never waits on a socket.
type Server struct {
	socketPath   string
	listener     net.Listener
	handlers     map[string]HandlerFunc
	clients      map[net.Conn]*peer
	mu           sync.RWMutex
	logger       *slog.Logger
	writeTimeout time.Duration
	queueSize    int
}

// peer is one connected client and its outgoing queue.
type peer struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWriteTimeout sets the deadline for each write to a client. Zero disables it.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.writeTimeout = d }
}

// WithClientQueue sets how many outgoing lines a client may have pending.
func WithClientQueue(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// NewServer creates a new UDS server.
func NewServer(socketPath string, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		socketPath:   socketPath,
		handlers:     make(map[string]HandlerFunc),
		clients:      make(map[net.Conn]*peer),
		logger:       logger,
		writeTimeout: DefaultWriteTimeout,
		queueSize:    DefaultClientQueue,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers a handler for a method. Call before Start.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Start begins listening. It removes any stale socket file first.
func (s *Server) Start(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("server listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "err", err)
			continue
		}
		p := &peer{conn: conn, out: make(chan []byte, s.queueSize), done: make(chan struct{})}
		s.mu.Lock()
		s.clients[conn] = p
		s.mu.Unlock()
		go s.writeLoop(p)
		go s.handleConn(ctx, p)
	}
}

// Broadcast queues an event for every connected client without blocking.
// A client whose queue is full is disconnected.
func (s *Server) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("broadcast marshal error", "err", err)
		return
	}
	line := append(data, '\n')

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.clients {
		select {
		case p.out <- line:
		case <-p.done:
		default:
			s.logger.Warn("client not reading, disconnecting", "event", msg.Method)
			p.close()
		}
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown cleanly stops the server.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for _, p := range s.clients {
		p.close()
	}
	s.mu.Unlock()
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(ctx context.Context, p *peer) {
	defer func() {
		p.close()
		s.mu.Lock()
		delete(s.clients, p.conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024) // 1MB max line

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.logger.Error("invalid message", "err", err)
			continue
		}

		if msg.Type != MsgTypeReq {
			continue
		}

		handler, ok := s.handlers[msg.Method]
		if !ok {
			resp := NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("unknown method: %s", msg.Method))
			s.writeMessage(p, resp)
			continue
		}

		result, err := handler(ctx, msg)
		var resp Message
		if err != nil {
			resp = NewErrorResponse(msg.ID, msg.Method, err.Error())
		} else if resp, err = NewResponse(msg.ID, msg.Method, result); err != nil {
			resp = NewErrorResponse(msg.ID, msg.Method, "encode response: "+err.Error())
		}
		s.writeMessage(p, resp)
	}
}

// writeMessage queues a response behind any pending events for the same client.
func (s *Server) writeMessage(p *peer, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal response error", "err", err)
		return
	}
	select {
	case p.out <- append(data, '\n'):
	case <-p.done:
	}
}

// writeLoop drains a client's queue. A write that misses its deadline drops the client.
func (s *Server) writeLoop(p *peer) {
	for {
		select {
		case <-p.done:
			return
		case line := <-p.out:
			if s.writeTimeout > 0 {
				p.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if _, err := p.conn.Write(line); err != nil {
				s.logger.Warn("client write failed, disconnecting", "err", err)
				p.close()
				return
			}
		}
	}
}
