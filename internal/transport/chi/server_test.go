package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/domain"
)

type stubEncoder struct {
	result    domain.EncodeResult
	err       error
	healthErr error
}

func (s *stubEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	return s.result, s.err
}

func (s *stubEncoder) EncodeBatch(_ context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if s.err != nil {
		return domain.BatchEncodeResult{}, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.result.Vector
	}
	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: s.result.PromptTokens * len(texts),
		TotalTokens:  s.result.TotalTokens * len(texts),
	}, nil
}

func (s *stubEncoder) HealthCheck(_ context.Context) error { return s.healthErr }

func newTestRouter(enc *stubEncoder) http.Handler {
	r := chirouter.NewRouter()
	NewServer(enc, enc, "test-model", zap.NewNop()).Register(r)
	return r
}

func postEncode(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/encode", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestEncodeSentences(t *testing.T) {
	enc := &stubEncoder{result: domain.EncodeResult{
		Vector:       []float32{0.1, 0.2, 0.3},
		PromptTokens: 2,
		TotalTokens:  2,
	}}
	rr := postEncode(t, newTestRouter(enc), `{"sentences": ["the cat", "sat"]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp encodeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "test-model" {
		t.Errorf("model = %q, want test-model", resp.Model)
	}
	if resp.Dim != 3 {
		t.Errorf("dim = %d, want 3", resp.Dim)
	}
	if len(resp.Vectors) != 2 {
		t.Errorf("vectors = %d, want 2", len(resp.Vectors))
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("total tokens = %d, want 4", resp.Usage.TotalTokens)
	}
}

func TestEncodeSentences_InvalidBody(t *testing.T) {
	rr := postEncode(t, newTestRouter(&stubEncoder{}), `{"sentences": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestEncodeSentences_EmptyList(t *testing.T) {
	rr := postEncode(t, newTestRouter(&stubEncoder{}), `{"sentences": []}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", errResp.Code, codeValidationFailed)
	}
}

func TestEncodeSentences_TooMany(t *testing.T) {
	sentences := make([]string, maxSentencesPerRequest+1)
	for i := range sentences {
		sentences[i] = "x"
	}
	body, _ := json.Marshal(encodeRequest{Sentences: sentences})

	rr := postEncode(t, newTestRouter(&stubEncoder{}), string(body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestEncodeSentences_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"empty input", domain.ErrEmptyInput, http.StatusBadRequest, codeEmptyInput},
		{"quota exceeded", domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
		{"provider error", domain.ErrProviderError, http.StatusBadGateway, codeProviderError},
		{"backend not ready", domain.ErrBackendNotReady, http.StatusServiceUnavailable, codeBackendNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &stubEncoder{err: tt.err}
			rr := postEncode(t, newTestRouter(enc), `{"sentences": ["hello"]}`)

			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			var errResp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != tt.code {
				t.Errorf("code = %q, want %q", errResp.Code, tt.code)
			}
		})
	}
}

func TestEncodeSentences_UnknownErrorIs500(t *testing.T) {
	enc := &stubEncoder{err: context.DeadlineExceeded}
	rr := postEncode(t, newTestRouter(enc), `{"sentences": ["hello"]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "deadline") {
		t.Error("internal error details must not leak to the client")
	}
}

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	newTestRouter(&stubEncoder{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestHealthz_Unhealthy(t *testing.T) {
	enc := &stubEncoder{healthErr: domain.ErrBackendNotReady}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	newTestRouter(enc).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	newTestRouter(&stubEncoder{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
