// Package enccache caches encode results in a key-value store.
package enccache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/staticembed/staticembed/internal/db"
	"github.com/staticembed/staticembed/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "enc_cache:"

// store is the consumer interface for the encode cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEncoder caches vectors in a key-value store keyed by text hash.
type CachedEncoder struct {
	inner      domain.Encoder
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. ttl == 0 disables expiry.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Encoder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEncoder {
	return &CachedEncoder{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Encode returns a cached vector or calls the inner encoder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EncodeResult from inner.
func (c *CachedEncoder) Encode(ctx context.Context, text string) (domain.EncodeResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EncodeResult{Vector: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Encode(ctx, text)
	if err != nil {
		return domain.EncodeResult{}, fmt.Errorf("encode text: %w", err)
	}

	c.putToCache(ctx, key, result.Vector)
	return result, nil
}

// EncodeBatch checks the cache per text and encodes only the misses, keeping
// output order aligned with input order.
func (c *CachedEncoder) EncodeBatch(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.getFromCache(ctx, key); ok {
			c.incCache("hit")
			vectors[i] = vec
			continue
		}
		c.incCache("miss")
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return domain.BatchEncodeResult{Vectors: vectors}, nil
	}

	result, err := c.encodeMissing(ctx, missing)
	if err != nil {
		return domain.BatchEncodeResult{}, err
	}

	for j, i := range missingIdx {
		vectors[i] = result.Vectors[j]
		c.putToCache(ctx, c.cacheKey(texts[i]), result.Vectors[j])
	}

	return domain.BatchEncodeResult{
		Vectors:      vectors,
		PromptTokens: result.PromptTokens,
		TotalTokens:  result.TotalTokens,
	}, nil
}

func (c *CachedEncoder) encodeMissing(ctx context.Context, texts []string) (domain.BatchEncodeResult, error) {
	if be, ok := c.inner.(domain.BatchEncoder); ok {
		res, err := be.EncodeBatch(ctx, texts)
		if err != nil {
			return domain.BatchEncodeResult{}, fmt.Errorf("encode batch: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, c.inner, texts)
	if err != nil {
		return domain.BatchEncodeResult{}, fmt.Errorf("encode batch fallback: %w", err)
	}
	return res, nil
}

func (c *CachedEncoder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEncoder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedEncoder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached vector", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached vector", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEncoder) putToCache(ctx context.Context, key string, vec []float32) {
	data := vectorToCacheBytes(vec)
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache vector", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
