package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/observability"
	"github.com/ashgrove-systems/godagent-memory/internal/pattern"
	"github.com/ashgrove-systems/godagent-memory/internal/provenance"
	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	prov, err := provenance.Open(dir)
	if err != nil {
		t.Fatalf("open provenance: %v", err)
	}
	t.Cleanup(func() { prov.Close() })

	deps := Deps{
		Provenance: prov,
		Patterns:   pattern.NewStore(),
		Reasoning:  reasoning.NewBank(reasoning.Config{}),
		Vectors:    vectorstore.New(vectorstore.Config{Dimension: 4}),
	}

	socket := filepath.Join(dir, "daemon.sock")
	srv := New(socket, Limits{MaxConnections: 2, RequestTimeout: 2 * time.Second}, deps, observability.NewBus(16), observability.NewMetrics())
	return srv, socket
}

func serveInBackground(t *testing.T, srv *Server) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Serve(ctx); err != nil {
			t.Logf("serve exited: %v", err)
		}
	}()
	time.Sleep(50 * time.Millisecond) // let the listener bind
	return cancel
}

func dial(t *testing.T, socket string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func call(t *testing.T, conn net.Conn, method string, params interface{}) Response {
	t.Helper()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: paramsJSON}
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestServer_PingPong(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	resp := call(t, conn, "ping", map[string]interface{}{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "pong" {
		t.Fatalf("expected pong, got %+v", resp.Result)
	}
}

func TestServer_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	resp := call(t, conn, "does.not.exist", map[string]interface{}{})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected MethodNotFound, got %+v", resp.Error)
	}
}

func TestServer_KnowledgeStoreAndByDomain(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	resp := call(t, conn, "knowledge.store", map[string]interface{}{
		"title": "paper", "uri": "https://example.org", "kind": "academic",
		"relevance": 0.9, "domain": "medical", "tags": []string{"trial"},
	})
	if resp.Error != nil {
		t.Fatalf("store: %+v", resp.Error)
	}

	resp = call(t, conn, "knowledge.by_domain", map[string]interface{}{"domain": "medical"})
	if resp.Error != nil {
		t.Fatalf("by_domain: %+v", resp.Error)
	}
}

func TestServer_FeedbackProvideUnknownTrajectoryReturnsApplicationError(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	resp := call(t, conn, "feedback.provide", map[string]interface{}{
		"trajectory_id": "traj_0_missing", "quality": 0.9,
	})
	if resp.Error == nil {
		t.Fatalf("expected error for unknown trajectory")
	}
	if resp.Error.Code >= 0 {
		t.Fatalf("expected a reserved application error code, got %d", resp.Error.Code)
	}
}

func TestServer_RejectsBeyondMaxConnections(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	var conns []net.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < 2; i++ {
		conns = append(conns, dial(t, socket))
	}
	// Give the server time to register both as active before the third dial.
	time.Sleep(50 * time.Millisecond)

	third := dial(t, socket)
	defer third.Close()
	reader := bufio.NewReader(third)
	_ = third.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("expected a rejection response, got error: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal rejection: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("expected max-connections rejection")
	}
}

func TestServer_GracefulShutdownDrainsConnections(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestServer_RejectsRequestsOnOpenConnectionsOnceShuttingDown(t *testing.T) {
	srv, socket := newTestServer(t)
	cancel := serveInBackground(t, srv)
	defer cancel()

	conn := dial(t, socket)
	defer conn.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()
	go srv.Shutdown(shutdownCtx)

	deadline := time.Now().Add(2 * time.Second)
	for !srv.isShuttingDown() {
		if time.Now().After(deadline) {
			t.Fatalf("server never entered shutting-down state")
		}
		time.Sleep(time.Millisecond)
	}

	resp := call(t, conn, "ping", map[string]interface{}{})
	if resp.Error == nil {
		t.Fatalf("expected a shutting-down error, got result %v", resp.Result)
	}
	if resp.Error.Code != codeShuttingDown {
		t.Fatalf("expected code %d, got %d (%s)", codeShuttingDown, resp.Error.Code, resp.Error.Message)
	}
}
