package domain

import "errors"

// Sentinel errors for encoding operations.
var (
	// ErrEmptyInput signals input that yields zero tokens to pool.
	ErrEmptyInput = errors.New("empty encoder input")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
	// ErrProviderError signals a remote encoder backend failure.
	ErrProviderError = errors.New("encoder provider error")
	// ErrBackendNotReady signals an encoder backend that is not yet usable.
	ErrBackendNotReady = errors.New("encoder backend not ready")
)
