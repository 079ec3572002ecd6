package staticembed

import "errors"

// Sentinel errors for embedder construction and pooling.
var (
	// ErrWeightingConflict signals that both Zipf and frequency reweighting were requested.
	ErrWeightingConflict = errors.New("zipf and frequency weighting are mutually exclusive")
	// ErrNoFrequencies signals frequency weighting without a frequency table.
	ErrNoFrequencies = errors.New("frequency weighting requires a frequency table")
	// ErrEmptyInput signals mean-pooling over zero tokens.
	ErrEmptyInput = errors.New("no tokens to pool")
	// ErrUnknownToken signals a token absent from the vector table.
	ErrUnknownToken = errors.New("token not in vector table")
)
