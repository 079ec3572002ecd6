package encoding

import (
	"context"

	"github.com/staticembed/staticembed/internal/domain"
)

type mockEncoder struct {
	result     domain.EncodeResult
	err        error
	calls      int
	batchCalls int
	lastBatch  []string
}

func (m *mockEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEncoder) EncodeBatch(_ context.Context, texts []string) (domain.BatchEncodeResult, error) {
	m.batchCalls++
	m.lastBatch = texts
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

// singleEncoder implements only domain.Encoder, to exercise the batch fallback.
type singleEncoder struct {
	result domain.EncodeResult
	calls  int
}

func (s *singleEncoder) Encode(_ context.Context, _ string) (domain.EncodeResult, error) {
	s.calls++
	return s.result, nil
}

type mockBudget struct {
	checkErr error
	recorded int64
	daily    int64
	monthly  int64
}

func (m *mockBudget) Check(_ context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)           { m.recorded += tokens }
func (m *mockBudget) RemainingDaily() int64         { return m.daily }
func (m *mockBudget) RemainingMonthly() int64       { return m.monthly }

type mockBudgetStore struct {
	vals  map[string]int64
	incrs map[string]int64
	err   error
}

func (m *mockBudgetStore) IncrBy(_ context.Context, key string, val int64) error {
	if m.err != nil {
		return m.err
	}
	if m.incrs == nil {
		m.incrs = make(map[string]int64)
	}
	m.incrs[key] += val
	return nil
}

func (m *mockBudgetStore) Get(_ context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.vals[key], nil
}
