package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/observability"
	"github.com/ashgrove-systems/godagent-memory/internal/pattern"
	"github.com/ashgrove-systems/godagent-memory/internal/provenance"
	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

// Deps bundles the components the daemon exposes over RPC.
type Deps struct {
	Provenance *provenance.Store
	Patterns   *pattern.Store
	Reasoning  *reasoning.Bank
	Vectors    *vectorstore.Store
}

// Limits mirrors config.DaemonTunables (spec.md §4.14, "Server limits").
type Limits struct {
	MaxConnections  int
	RequestTimeout  time.Duration
	MaxMessageBytes int
}

func (l *Limits) applyDefaults() {
	if l.MaxConnections <= 0 {
		l.MaxConnections = 64
	}
	if l.RequestTimeout <= 0 {
		l.RequestTimeout = 5 * time.Second
	}
	if l.MaxMessageBytes <= 0 {
		l.MaxMessageBytes = 1 << 20
	}
}

// Server is the C15 Memory-Server Daemon: it accepts NDJSON JSON-RPC 2.0
// requests on a Unix-domain socket and dispatches them against Deps.
type Server struct {
	socketPath string
	limits     Limits
	deps       Deps
	bus        *observability.Bus
	metrics    *observability.Metrics

	listener net.Listener
	handlers map[string]func(context.Context, json.RawMessage) (interface{}, *RPCError)

	mu           sync.Mutex
	activeConns  int32
	shuttingDown bool

	wg sync.WaitGroup
}

// New constructs a Server bound to socketPath (not yet listening).
func New(socketPath string, limits Limits, deps Deps, bus *observability.Bus, metrics *observability.Metrics) *Server {
	limits.applyDefaults()
	s := &Server{
		socketPath: socketPath,
		limits:     limits,
		deps:       deps,
		bus:        bus,
		metrics:    metrics,
	}
	s.handlers = s.buildHandlers()
	return s
}

// Serve binds the Unix socket and accepts connections until ctx is
// cancelled or Shutdown is called. Removes any stale socket file left by a
// previous crashed instance before binding.
func (s *Server) Serve(ctx context.Context) error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = ln
	log.Info().Str("socket", s.socketPath).Msg("daemon listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isShuttingDown() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		if atomic.LoadInt32(&s.activeConns) >= int32(s.limits.MaxConnections) {
			s.rejectConnection(conn)
			continue
		}

		atomic.AddInt32(&s.activeConns, 1)
		if s.metrics != nil {
			s.metrics.DaemonActiveConnections.Set(float64(atomic.LoadInt32(&s.activeConns)))
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) rejectConnection(conn net.Conn) {
	resp := Response{JSONRPC: "2.0", Error: applicationError(offsetMaxConnections, errs.ErrMaxConnections.Error())}
	enc := json.NewEncoder(conn)
	_ = enc.Encode(resp)
	conn.Close()
}

func (s *Server) isShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		atomic.AddInt32(&s.activeConns, -1)
		if s.metrics != nil {
			s.metrics.DaemonActiveConnections.Set(float64(atomic.LoadInt32(&s.activeConns)))
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), s.limits.MaxMessageBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.dispatchLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			log.Warn().Err(err).Msg("daemon: failed writing response")
			return
		}
		if resp.Error != nil && resp.Error.Code == codeShuttingDown {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			_ = enc.Encode(Response{JSONRPC: "2.0", Error: applicationError(offsetMessageTooLarge, "message exceeds max size")})
		}
		log.Warn().Err(err).Msg("daemon: connection read error")
	}
}

func (s *Server) dispatchLine(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.recordRequest("parse_error", "error")
		return Response{JSONRPC: "2.0", Error: newError(CodeParseError, "invalid JSON: "+err.Error())}
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.recordRequest(req.Method, "invalid_request")
		return Response{JSONRPC: "2.0", ID: req.ID, Error: newError(CodeInvalidRequest, "missing jsonrpc/method")}
	}

	if s.isShuttingDown() {
		s.recordRequest(req.Method, "shutting_down")
		return Response{JSONRPC: "2.0", ID: req.ID, Error: applicationError(offsetShuttingDown, errs.ErrShuttingDown.Error())}
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.recordRequest(req.Method, "method_not_found")
		return Response{JSONRPC: "2.0", ID: req.ID, Error: newError(CodeMethodNotFound, "unknown method: "+req.Method)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.limits.RequestTimeout)
	defer cancel()

	done := make(chan Response, 1)
	go func() {
		result, rpcErr := handler(reqCtx, req.Params)
		done <- Response{Result: result, Error: rpcErr}
	}()
	var result interface{}
	var rpcErr *RPCError
	select {
	case r := <-done:
		result, rpcErr = r.Result, r.Error
	case <-reqCtx.Done():
		rpcErr = applicationError(offsetRequestTimeout, errs.ErrTimeout.Error())
	}
	if rpcErr != nil {
		s.recordRequest(req.Method, "error")
		s.emit(req.Method, "error", map[string]interface{}{"code": rpcErr.Code})
		return Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	s.recordRequest(req.Method, "ok")
	s.emit(req.Method, "ok", nil)
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) recordRequest(method, outcome string) {
	if s.metrics != nil {
		s.metrics.DaemonRequestsTotal.WithLabelValues(method, outcome).Inc()
	}
}

func (s *Server) emit(operation, status string, metadata map[string]interface{}) {
	if s.bus != nil {
		s.bus.Emit(observability.NewEvent("daemon", operation, status, metadata))
	}
}
