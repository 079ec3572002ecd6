// Package domain holds the contracts shared between the encoder backends,
// decorators and transports.
package domain

import (
	"context"
	"fmt"
)

// KeyPrefix namespaces every key the service writes to its KV store.
const KeyPrefix = "staticembed:"

// Encoder is the shared text-to-vector contract between layers.
type Encoder interface {
	Encode(ctx context.Context, text string) (EncodeResult, error)
}

// BatchEncoder vectorizes multiple texts in a single call.
type BatchEncoder interface {
	EncodeBatch(ctx context.Context, texts []string) (BatchEncodeResult, error)
}

// HealthChecker verifies encoder backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EncodeResult carries one vector and token usage through the decorator chain.
type EncodeResult struct {
	Vector       []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEncodeResult carries multiple vectors and aggregate token usage.
type BatchEncodeResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// BatchFallback encodes texts one by one for backends without native batching.
func BatchFallback(ctx context.Context, e Encoder, texts []string) (BatchEncodeResult, error) {
	vectors := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Encode(ctx, text)
		if err != nil {
			return BatchEncodeResult{}, fmt.Errorf("fallback encode [%d]: %w", i, err)
		}
		vectors[i] = res.Vector
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}
