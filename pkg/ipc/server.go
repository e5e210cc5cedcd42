package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// connTimeout bounds one request/response exchange.
const connTimeout = 10 * time.Second

// Server accepts control connections on a unix socket. Each
// connection carries one JSON request line and gets one JSON response
// line back.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewServer builds a server. logger may be nil.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start listens on the socket and serves in the background. A stale
// socket file is replaced; the new one is owner-only.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("socket dir: %w", err)
	}
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Debug("control socket listening", "path", s.socketPath)
	return nil
}

// Stop closes the listener, waits for in-flight requests, and removes
// the socket file.
func (s *Server) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	var req Request
	resp := Response{}
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		resp = Errorf("bad request: %v", err)
	} else if req.Cmd == "" {
		resp = Errorf("bad request: missing cmd")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
		resp = s.handler.Handle(ctx, req)
		cancel()
		if !resp.OK {
			s.logger.Debug("control command failed", "cmd", req.Cmd, "error", resp.Error)
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Errorf("encode response: %v", err))
	}
	fmt.Fprintf(conn, "%s\n", data)
}
