package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/domain"
)

// apiResponse mirrors the OpenAI-compatible embeddings response.
type apiResponse struct {
	Object string    `json:"object"`
	Data   []apiItem `json:"data"`
	Model  string    `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type apiItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Encoder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	enc := NewEncoder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})
	return server, enc
}

func respond(w http.ResponseWriter, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestEncode(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	_, enc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		resp := apiResponse{Object: "list", Model: "test-model"}
		resp.Data = []apiItem{{Object: "embedding", Embedding: expectedVec, Index: 0}}
		resp.Usage.PromptTokens = 10
		resp.Usage.TotalTokens = 10
		respond(w, resp)
	})

	result, err := enc.Encode(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(result.Vector) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Vector))
	}
	for i, v := range result.Vector {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
	if result.PromptTokens != 10 || result.TotalTokens != 10 {
		t.Errorf("usage = %d/%d, expected 10/10", result.PromptTokens, result.TotalTokens)
	}
}

func TestEncodeBatch_OrderRestoredByIndex(t *testing.T) {
	vec1 := []float32{0.1, 0.2}
	vec2 := []float32{0.3, 0.4}

	_, enc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Return vectors out of order; the encoder must reorder by Index.
		resp := apiResponse{Object: "list", Model: "test-model"}
		resp.Data = []apiItem{
			{Object: "embedding", Embedding: vec2, Index: 1},
			{Object: "embedding", Embedding: vec1, Index: 0},
		}
		resp.Usage.PromptTokens = 20
		resp.Usage.TotalTokens = 20
		respond(w, resp)
	})

	result, err := enc.EncodeBatch(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("EncodeBatch failed: %v", err)
	}
	if len(result.Vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(result.Vectors))
	}
	if result.Vectors[0][0] != 0.1 {
		t.Errorf("expected first vec[0]=0.1, got %f", result.Vectors[0][0])
	}
	if result.Vectors[1][0] != 0.3 {
		t.Errorf("expected second vec[0]=0.3, got %f", result.Vectors[1][0])
	}
	if result.TotalTokens != 20 {
		t.Errorf("expected TotalTokens=20, got %d", result.TotalTokens)
	}
}

func TestEncodeBatch_CountMismatch(t *testing.T) {
	_, enc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// One vector for two inputs.
		resp := apiResponse{Object: "list", Model: "test-model"}
		resp.Data = []apiItem{{Object: "embedding", Embedding: []float32{0.1}, Index: 0}}
		respond(w, resp)
	})

	_, err := enc.EncodeBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for count mismatch, got %v", err)
	}
}

func TestEncode_EmptyResponse(t *testing.T) {
	_, enc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, apiResponse{Object: "list", Model: "test-model"})
	})

	_, err := enc.Encode(context.Background(), "hello")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for empty response, got %v", err)
	}
}

func TestEncode_APIError(t *testing.T) {
	_, enc := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	})

	_, err := enc.Encode(context.Background(), "hello")
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError for 429 response, got %v", err)
	}
}

func TestParseAPIError_Detail(t *testing.T) {
	body := []byte(`{"detail": "model not found"}`)
	if got := extractDetail(body); got != "model not found" {
		t.Errorf("extractDetail = %q, want %q", got, "model not found")
	}
	if got := extractDetail([]byte(`not json`)); got != "" {
		t.Errorf("extractDetail on garbage = %q, want empty", got)
	}
}
