package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"provmark/internal/event"
)

// Handler receives decoded editor events. Implementations must not
// block: one slow handler stalls the connection it came from.
type Handler interface {
	HandleOpen(uri, language, content string)
	HandleChange(change event.ChangeEvent)
	HandleSave(uri, content string)
	HandleClose(uri string)
	HandlePaste()
}

// Server listens on a unix socket for editor event streams.
type Server struct {
	socketPath string
	handler    Handler
	log        *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

// NewServer creates a server delivering events to handler.
func NewServer(socketPath string, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log.With("component", "ipc"),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Run listens until the context is cancelled. A stale socket file from a
// previous run is removed before binding.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}

	schema, err := compileSchema()
	if err != nil {
		listener.Close()
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		os.Remove(s.socketPath)
	}()

	s.log.Info("listening", "socket", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		go s.serveConn(conn, schema)
	}
}

// serveConn reads one JSON event per line until the peer disconnects.
func (s *Server) serveConn(conn net.Conn, schema *jsonschema.Schema) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		env, err := decode(schema, line)
		if err != nil {
			s.log.Warn("dropped malformed event", "error", err)
			continue
		}
		s.dispatch(env)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug("connection read ended", "error", err)
	}
}

func (s *Server) dispatch(env Envelope) {
	switch env.Type {
	case TypeOpen:
		s.handler.HandleOpen(env.URI, env.Language, env.Content)
	case TypeChange:
		s.handler.HandleChange(event.ChangeEvent{
			URI:            env.URI,
			Start:          env.Start,
			ReplacedLength: env.ReplacedLength,
			Text:           env.Text,
			Timestamp:      time.Now(),
		})
	case TypeSave:
		s.handler.HandleSave(env.URI, env.Content)
	case TypeClose:
		s.handler.HandleClose(env.URI)
	case TypePaste:
		s.handler.HandlePaste()
	}
}

// removeStaleSocket removes a leftover socket file if no daemon is
// listening on it.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("socket %s is already in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}
