package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/provenance"
	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

var startedAt = time.Now()

func (s *Server) buildHandlers() map[string]func(context.Context, json.RawMessage) (interface{}, *RPCError) {
	return map[string]func(context.Context, json.RawMessage) (interface{}, *RPCError){
		"knowledge.store":     s.handleKnowledgeStore,
		"knowledge.by_domain": s.handleKnowledgeByDomain,
		"knowledge.by_tags":   s.handleKnowledgeByTags,
		"knowledge.delete":    s.handleKnowledgeDelete,
		"feedback.provide":    s.handleFeedbackProvide,
		"patterns.query":      s.handlePatternsQuery,
		"vectors.get":         s.handleVectorsGet,
		"status":              s.handleStatus,
		"ping":                s.handlePing,
		"shutdown":            s.handleShutdownRequest,
	}
}

func decodeParams(raw json.RawMessage, out interface{}) *RPCError {
	if len(raw) == 0 {
		return applicationError(offsetValidation, "missing params")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}

type knowledgeStoreParams struct {
	Title     string   `json:"title"`
	URI       string   `json:"uri"`
	Kind      string   `json:"kind"`
	Relevance float64  `json:"relevance"`
	Domain    string   `json:"domain"`
	Tags      []string `json:"tags"`
}

func (s *Server) handleKnowledgeStore(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p knowledgeStoreParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.deps.Provenance.StoreSource(provenance.Source{
		Title: p.Title, URI: p.URI, Kind: p.Kind, Relevance: p.Relevance, Domain: p.Domain, Tags: p.Tags,
	})
	if err != nil {
		return nil, applicationError(offsetValidation, err.Error())
	}
	return map[string]string{"id": string(id)}, nil
}

type domainParams struct {
	Domain string `json:"domain"`
}

func (s *Server) handleKnowledgeByDomain(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p domainParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	sources, err := s.deps.Provenance.ByDomain(p.Domain)
	if err != nil {
		return nil, applicationError(offsetNotFound, err.Error())
	}
	return sources, nil
}

type tagsParams struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleKnowledgeByTags(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p tagsParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	sources, err := s.deps.Provenance.ByTags(p.Tags)
	if err != nil {
		return nil, applicationError(offsetNotFound, err.Error())
	}
	return sources, nil
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleKnowledgeDelete(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p idParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.deps.Provenance.DeleteSource(provenance.SourceID(p.ID)); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, applicationError(offsetNotFound, "source not found")
		}
		return nil, applicationError(offsetValidation, err.Error())
	}
	return map[string]bool{"deleted": true}, nil
}

type feedbackParams struct {
	TrajectoryID string  `json:"trajectory_id"`
	Quality      float64 `json:"quality"`
	Verdict      string  `json:"verdict,omitempty"`
}

func (s *Server) handleFeedbackProvide(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p feedbackParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	err := s.deps.Reasoning.ProvideFeedback(reasoning.TrajectoryID(p.TrajectoryID), p.Quality)
	if err == nil {
		return map[string]bool{"accepted": true}, nil
	}

	var driftErr *errs.DriftExceededError
	if errors.As(err, &driftErr) {
		if s.metrics != nil {
			s.metrics.ReasoningDriftRejections.WithLabelValues(driftErr.Route).Inc()
		}
		return nil, applicationError(offsetDriftExceeded, err.Error())
	}
	if errors.Is(err, errs.ErrWeightPersistence) {
		return nil, applicationError(offsetCooling, err.Error())
	}
	if errors.Is(err, errs.ErrNotFound) {
		return nil, applicationError(offsetNotFound, "unknown trajectory")
	}
	return nil, applicationError(offsetValidation, err.Error())
}

type patternsQueryParams struct {
	TaskType  string `json:"task_type"`
	Signature string `json:"signature"`
	TopK      int    `json:"top_k"`
}

func (s *Server) handlePatternsQuery(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p patternsQueryParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return s.deps.Patterns.Query(p.TaskType, p.Signature, p.TopK), nil
}

func (s *Server) handleVectorsGet(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p idParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := s.deps.Vectors.Get(vectorstore.VectorID(p.ID))
	if err != nil {
		return nil, applicationError(offsetNotFound, err.Error())
	}
	return rec, nil
}

func (s *Server) handleStatus(context.Context, json.RawMessage) (interface{}, *RPCError) {
	return map[string]interface{}{
		"uptime_ms":          time.Since(startedAt).Milliseconds(),
		"active_connections": atomic.LoadInt32(&s.activeConns),
		"socket":             s.socketPath,
	}, nil
}

func (s *Server) handlePing(context.Context, json.RawMessage) (interface{}, *RPCError) {
	return "pong", nil
}

func (s *Server) handleShutdownRequest(context.Context, json.RawMessage) (interface{}, *RPCError) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()
	return map[string]bool{"shutting_down": true}, nil
}
