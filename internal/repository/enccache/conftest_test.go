package enccache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/db"
	"github.com/staticembed/staticembed/internal/domain"
)

type mockEncoder struct {
	result     domain.EncodeResult
	err        error
	calls      int
	batchCalls int
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEncoder) EncodeBatch(_ context.Context, texts []string) (domain.BatchEncodeResult, error) {
	m.batchCalls++
	if m.err != nil {
		return domain.BatchEncodeResult{}, m.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = m.result.Vector
	}
	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	setFn    func(ctx context.Context, key string, value []byte) error
	setTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setTTLFn != nil {
		return m.setTTLFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedEncoder(t *testing.T, inner *mockEncoder, ttl time.Duration) (*CachedEncoder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, ttl, nil, zap.NewNop())
	return ce, ms
}
