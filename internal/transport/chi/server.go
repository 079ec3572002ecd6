// Package chi implements the HTTP API on the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/domain"
)

// maxSentencesPerRequest caps one encode request.
const maxSentencesPerRequest = 256

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeEmptyInput       = "empty_input"
	codeQuotaExceeded    = "quota_exceeded"
	codeProviderError    = "provider_error"
	codeBackendNotReady  = "backend_not_ready"
	codeValidationFailed = "validation_failed"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes an encoder over HTTP.
type Server struct {
	encoder       domain.Encoder
	health        domain.HealthChecker
	model         string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server. health may be nil.
func NewServer(encoder domain.Encoder, health domain.HealthChecker, model string, logger *zap.Logger) *Server {
	s := &Server{
		encoder: encoder,
		health:  health,
		model:   model,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyInput, http.StatusBadRequest, codeEmptyInput),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrBackendNotReady, http.StatusServiceUnavailable, codeBackendNotReady),
	}
	return s
}

// Register mounts the API routes on the router.
func (s *Server) Register(r chirouter.Router) {
	r.Post("/v1/encode", s.EncodeSentences)
	r.Get("/healthz", s.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// encodeRequest is the body of POST /v1/encode.
type encodeRequest struct {
	Sentences []string `json:"sentences"`
}

// encodeResponse is the body of a successful encode.
type encodeResponse struct {
	Model   string      `json:"model"`
	Dim     int         `json:"dim"`
	Vectors [][]float32 `json:"vectors"`
	Usage   usage       `json:"usage"`
}

type usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EncodeSentences handles POST /v1/encode.
func (s *Server) EncodeSentences(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Sentences) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "sentences must not be empty")
		return
	}
	if len(req.Sentences) > maxSentencesPerRequest {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("sentences count must not exceed %d", maxSentencesPerRequest))
		return
	}

	result, err := s.encodeBatch(r.Context(), req.Sentences)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	dim := 0
	if len(result.Vectors) > 0 {
		dim = len(result.Vectors[0])
	}

	writeJSON(w, http.StatusOK, encodeResponse{
		Model:   s.model,
		Dim:     dim,
		Vectors: result.Vectors,
		Usage: usage{
			PromptTokens: result.PromptTokens,
			TotalTokens:  result.TotalTokens,
		},
	})
}

func (s *Server) encodeBatch(ctx context.Context, sentences []string) (domain.BatchEncodeResult, error) {
	if be, ok := s.encoder.(domain.BatchEncoder); ok {
		return be.EncodeBatch(ctx, sentences)
	}
	return domain.BatchFallback(ctx, s.encoder, sentences)
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyInput,
		domain.ErrQuotaExceeded,
		domain.ErrProviderError,
		domain.ErrBackendNotReady,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
