package daemon

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Shutdown stops accepting new connections, lets in-flight requests finish
// (new requests on already-open connections are rejected with
// codeShuttingDown so clients stop sending), and returns once every
// handler has drained or the 30s budget (spec.md §4.14) elapses —
// mirroring the teacher's cmd/server/main.go shutdown shape: signal-driven,
// context-bounded, best-effort.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("daemon: all connections drained")
	case <-ctx.Done():
		log.Warn().Msg("daemon: shutdown budget exceeded, returning with connections still open")
	}

	os.Remove(s.socketPath)
	return nil
}

// DefaultShutdownTimeout is the spec-mandated graceful shutdown budget.
const DefaultShutdownTimeout = 30 * time.Second
