package encoding

import (
	"context"
	"errors"
	"fmt"

	"github.com/staticembed/staticembed"
	"github.com/staticembed/staticembed/internal/domain"
)

// LocalEncoder adapts an in-process static embedder to the service encoder
// contract. Token usage is the tokenizer's output length; there is no paid
// prompt, so prompt and total counts match.
type LocalEncoder struct {
	embedder *staticembed.StaticEmbedder
}

// NewLocal wraps a static embedder.
func NewLocal(embedder *staticembed.StaticEmbedder) *LocalEncoder {
	return &LocalEncoder{embedder: embedder}
}

// Name returns the underlying table name.
func (l *LocalEncoder) Name() string { return l.embedder.Name() }

// Dim returns the vector dimensionality.
func (l *LocalEncoder) Dim() int { return l.embedder.Dim() }

// Encode pools a single text into a vector.
func (l *LocalEncoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EncodeResult{}, err
	}

	vec, err := l.embedder.EncodeOne(text)
	if err != nil {
		if errors.Is(err, staticembed.ErrEmptyInput) {
			return domain.EncodeResult{}, domain.ErrEmptyInput
		}
		return domain.EncodeResult{}, fmt.Errorf("encode text: %w", err)
	}

	tokens := len(l.embedder.Tokenizer().Tokenize(text))
	return domain.EncodeResult{
		Vector:       toFloat32(vec),
		PromptTokens: tokens,
		TotalTokens:  tokens,
	}, nil
}

// EncodeBatch encodes each text in order.
func (l *LocalEncoder) EncodeBatch(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	out := domain.BatchEncodeResult{Vectors: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := l.Encode(ctx, text)
		if err != nil {
			return domain.BatchEncodeResult{}, fmt.Errorf("text %d: %w", i, err)
		}
		out.Vectors = append(out.Vectors, res.Vector)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// HealthCheck reports readiness; the embedder is in-memory, so it only
// verifies the table is loaded.
func (l *LocalEncoder) HealthCheck(_ context.Context) error {
	if l.embedder.Table() == nil || l.embedder.Table().Len() == 0 {
		return domain.ErrBackendNotReady
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
