package encoding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/domain"
	"github.com/staticembed/staticembed/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest batch sent to a backend in one call.
// Larger inputs are split into chunks of this size.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the consumer interface for budget enforcement (ISP).
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEncoder decorates an encoder with budget checks, metrics and logging.
type InstrumentedEncoder struct {
	inner        domain.Encoder
	budget       BudgetChecker
	backend      string
	model        string
	maxBatchSize int
	logger       *zap.Logger
}

// NewInstrumented wraps an encoder. budget may be nil (no enforcement).
func NewInstrumented(
	inner domain.Encoder,
	budget BudgetChecker,
	backend, model string,
	logger *zap.Logger,
) *InstrumentedEncoder {
	return &InstrumentedEncoder{
		inner:        inner,
		budget:       budget,
		backend:      backend,
		model:        model,
		maxBatchSize: DefaultMaxAPIBatchSize,
		logger:       logger,
	}
}

// Encode checks the budget, delegates, then records usage and metrics.
func (e *InstrumentedEncoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	if err := e.checkBudget(ctx); err != nil {
		return domain.EncodeResult{}, err
	}

	start := time.Now()
	result, err := e.inner.Encode(ctx, text)
	e.observe(start, err)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}

	e.recordUsage(int64(result.TotalTokens), result.PromptTokens, result.TotalTokens)
	return result, nil
}

// EncodeBatch splits oversized batches into chunks and aggregates the results.
func (e *InstrumentedEncoder) EncodeBatch(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if err := e.checkBudget(ctx); err != nil {
		return domain.BatchEncodeResult{}, err
	}

	if len(texts) <= e.maxBatchSize {
		return e.encodeChunk(ctx, texts)
	}

	out := domain.BatchEncodeResult{Vectors: make([][]float32, 0, len(texts))}
	for lo := 0; lo < len(texts); lo += e.maxBatchSize {
		hi := lo + e.maxBatchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		chunk, err := e.encodeChunk(ctx, texts[lo:hi])
		if err != nil {
			return domain.BatchEncodeResult{}, fmt.Errorf("chunk at %d: %w", lo, err)
		}
		out.Vectors = append(out.Vectors, chunk.Vectors...)
		out.PromptTokens += chunk.PromptTokens
		out.TotalTokens += chunk.TotalTokens
	}
	return out, nil
}

func (e *InstrumentedEncoder) encodeChunk(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	start := time.Now()
	result, err := e.encodeInner(ctx, texts)
	e.observe(start, err)
	if err != nil {
		return domain.BatchEncodeResult{}, err
	}

	e.recordUsage(int64(result.TotalTokens), result.PromptTokens, result.TotalTokens)
	return result, nil
}

func (e *InstrumentedEncoder) encodeInner(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if be, ok := e.inner.(domain.BatchEncoder); ok {
		return be.EncodeBatch(ctx, texts)
	}
	return domain.BatchFallback(ctx, e.inner, texts)
}

func (e *InstrumentedEncoder) checkBudget(ctx context.Context) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		metrics.EncodeErrorsTotal.WithLabelValues(e.backend, e.model, "quota").Inc()
		return err
	}
	return nil
}

func (e *InstrumentedEncoder) recordUsage(tokens int64, promptTokens, totalTokens int) {
	metrics.EncodeTokensTotal.WithLabelValues(e.backend, e.model, "prompt").Add(float64(promptTokens))
	metrics.EncodeTokensTotal.WithLabelValues(e.backend, e.model, "total").Add(float64(totalTokens))

	if e.budget == nil {
		return
	}
	e.budget.Record(tokens)

	if daily := e.budget.RemainingDaily(); daily >= 0 {
		metrics.BudgetTokensRemaining.WithLabelValues(e.backend, "daily").Set(float64(daily))
	}
	if monthly := e.budget.RemainingMonthly(); monthly >= 0 {
		metrics.BudgetTokensRemaining.WithLabelValues(e.backend, "monthly").Set(float64(monthly))
	}
}

func (e *InstrumentedEncoder) observe(start time.Time, err error) {
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
		metrics.EncodeErrorsTotal.WithLabelValues(e.backend, e.model, "backend").Inc()
		e.logger.Error("Encode failed",
			zap.String("backend", e.backend),
			zap.String("model", e.model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	metrics.EncodeRequestsTotal.WithLabelValues(e.backend, e.model, status).Inc()
	metrics.EncodeRequestDuration.WithLabelValues(e.backend, e.model).Observe(elapsed.Seconds())
}
