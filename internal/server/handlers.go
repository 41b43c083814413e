package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"go.uber.org/zap"
)

// ModelInfo describes one priced model
type ModelInfo struct {
	ID string `json:"id"`
	usage.ModelPrice
}

// ModelsResponse represents the response for /api/models
type ModelsResponse struct {
	DefaultModel string      `json:"defaultModel"`
	Models       []ModelInfo `json:"models"`
}

// handleAnalyze runs one analysis and returns the envelope
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAnalysisRequest(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	outcome := s.analyzer.Run(ctx, req)
	status, body := s.envelope(ctx, r, outcome)
	s.jsonResponse(w, status, body)
}

// handleAnalyzeStream runs one analysis, streaming state transitions as SSE
// and finishing with a result or error event.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAnalysisRequest(r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, &analysis.ErrorEnvelope{Error: err.Error(), Kind: analysis.KindProviderError})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	// the observer runs on this goroutine, so writes never interleave
	streaming := s.analyzer.With(analysis.WithObserver(func(e analysis.Event) {
		if err := sse.WriteEvent(EventState, e); err != nil {
			s.logger.Debug("failed to write SSE event", zap.Error(err))
		}
	}))

	outcome := streaming.Run(ctx, req)
	status, body := s.envelope(ctx, r, outcome)
	if status == http.StatusOK {
		err = sse.WriteResult(body)
	} else {
		err = sse.WriteError(body)
	}
	if err != nil {
		s.logger.Debug("failed to write final SSE event", zap.Error(err))
	}
}

// handleModels lists the models that have a price entry
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	prices := s.analyzer.Prices()
	resp := ModelsResponse{DefaultModel: s.defaultModel, Models: []ModelInfo{}}
	for _, id := range prices.Models() {
		price, _ := prices.Lookup(id)
		resp.Models = append(resp.Models, ModelInfo{ID: id, ModelPrice: price})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// requestContext bounds an analysis by the configured request timeout
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.requestTimeout)
	}
	return context.WithCancel(r.Context())
}

// envelope converts an outcome, reporting a server-side timeout as 504 instead of a client cancel
func (s *Server) envelope(ctx context.Context, r *http.Request, outcome *analysis.Outcome) (int, any) {
	status, body := analysis.NewEnvelope(outcome)
	if outcome.Failure != nil && outcome.Failure.Kind == analysis.KindCanceled &&
		r.Context().Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if env, ok := body.(*analysis.ErrorEnvelope); ok {
			env.Error = "analysis timed out"
		}
		status = http.StatusGatewayTimeout
	}
	return status, body
}

// decodeAnalysisRequest reads the JSON body. Field validation is left to the analyzer.
func decodeAnalysisRequest(r *http.Request) (*types.AnalysisRequest, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return nil, &ErrUnsupportedMediaType{ContentType: ct}
		}
	}

	var req types.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			return nil, &ErrBodyTooLarge{Limit: maxErr.Limit}
		case errors.As(err, &typeErr):
			return nil, &ErrValidation{Field: typeErr.Field, Message: "has the wrong type"}
		case errors.Is(err, io.EOF):
			return nil, &ErrValidation{Message: "request body is required"}
		default:
			return nil, &ErrValidation{Message: "invalid JSON body: " + err.Error()}
		}
	}
	return &req, nil
}
