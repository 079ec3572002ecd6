package staticembed

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	progressbar "github.com/schollz/progressbar/v3"
)

// Reserved token strings inserted by FromVectors.
const (
	PadToken     = "[PAD]"
	UnknownToken = "[UNK]"
)

// maxEncodeTokens caps the tokens pooled per sentence in Encode.
const maxEncodeTokens = 512

// defaultPCAComponents is the target dimensionality for PCA reduction.
const defaultPCAComponents = 300

// Option configures embedder construction.
type Option func(*buildConfig)

type buildConfig struct {
	pca           bool
	pcaComponents int
	zipf          bool
	frequency     bool
	freqs         Frequencies
	modulePath    []string
	models        ModelRepository
	progress      io.Writer
}

func defaultBuildConfig() buildConfig {
	return buildConfig{
		pca:           true,
		pcaComponents: defaultPCAComponents,
		zipf:          true,
		progress:      os.Stderr,
	}
}

// WithPCA toggles PCA reduction. Enabled by default; applied only when the
// source dimensionality exceeds the component count.
func WithPCA(apply bool) Option {
	return func(c *buildConfig) { c.pca = apply }
}

// WithPCAComponents overrides the PCA target dimensionality (default 300).
func WithPCAComponents(n int) Option {
	return func(c *buildConfig) { c.pcaComponents = n }
}

// WithZipfWeighting toggles rank-based logarithmic row scaling.
// Enabled by default; mutually exclusive with frequency weighting.
func WithZipfWeighting(apply bool) Option {
	return func(c *buildConfig) { c.zipf = apply }
}

// WithFrequencyWeighting enables inverse-frequency logarithmic row scaling
// backed by freqs. Mutually exclusive with Zipf weighting, which must be
// disabled explicitly since it is on by default.
func WithFrequencyWeighting(freqs Frequencies) Option {
	return func(c *buildConfig) {
		c.frequency = true
		c.freqs = freqs
	}
}

// WithModulePath selects a sub-table inside a model directory for FromModel.
func WithModulePath(parts ...string) Option {
	return func(c *buildConfig) { c.modulePath = parts }
}

// WithModelRepository overrides the pretrained-model source for FromModel.
func WithModelRepository(r ModelRepository) Option {
	return func(c *buildConfig) { c.models = r }
}

// WithProgressWriter redirects Encode progress output (default os.Stderr).
func WithProgressWriter(w io.Writer) Option {
	return func(c *buildConfig) { c.progress = w }
}

// ModelRepository resolves a pretrained model name to its input-embedding table.
// The table must cover every token its tokenizer can produce, or designate an
// unknown token for the rest.
type ModelRepository interface {
	InputEmbeddings(name string, modulePath ...string) (*Table, error)
}

// DirRepository loads input embeddings from <Root>/<name>[/<module path>]/embeddings.vec.
type DirRepository struct {
	Root string
}

// InputEmbeddings implements ModelRepository.
func (r DirRepository) InputEmbeddings(name string, modulePath ...string) (*Table, error) {
	dir := filepath.Join(r.Root, name)
	if len(modulePath) > 0 {
		dir = filepath.Join(dir, filepath.Join(modulePath...))
	}
	t, err := LoadTable(filepath.Join(dir, "embeddings.vec"))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	t.name = name
	return t, nil
}

func defaultModelRepository() ModelRepository {
	root := os.Getenv("STATICEMBED_MODELS")
	if root == "" {
		root = "models"
	}
	return DirRepository{Root: root}
}

// StaticEmbedder is a lookup-table encoder: it tokenizes text, drops unknown
// tokens and mean-pools the remaining token vectors. Immutable after
// construction.
type StaticEmbedder struct {
	table     *Table
	tokenizer Tokenizer
	unk       string
	progress  io.Writer
}

// NewStaticEmbedder wraps an existing table and tokenizer.
func NewStaticEmbedder(table *Table, tokenizer Tokenizer, opts ...Option) *StaticEmbedder {
	cfg := defaultBuildConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &StaticEmbedder{
		table:     table,
		tokenizer: tokenizer,
		unk:       table.UnknownToken(),
		progress:  cfg.progress,
	}
}

// FromVectors builds an embedder from a word2vec text-format file. The pad and
// unknown tokens are always present afterwards. PCA runs before any
// reweighting; requesting both Zipf and frequency weighting fails with
// ErrWeightingConflict before the file is touched.
func FromVectors(path string, opts ...Option) (*StaticEmbedder, error) {
	cfg := defaultBuildConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.zipf && cfg.frequency {
		return nil, ErrWeightingConflict
	}
	if cfg.frequency && cfg.freqs == nil {
		return nil, ErrNoFrequencies
	}

	table, err := LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	table = table.WithPadToken(PadToken)
	table = table.WithToken(UnknownToken, true)

	if cfg.pca && table.Dim() > cfg.pcaComponents {
		table, err = table.PCA(cfg.pcaComponents)
		if err != nil {
			return nil, fmt.Errorf("reduce vectors: %w", err)
		}
	}

	if cfg.zipf {
		table = table.ZipfWeight()
	}
	if cfg.frequency {
		table, err = table.FrequencyWeight(cfg.freqs)
		if err != nil {
			return nil, fmt.Errorf("reweight vectors: %w", err)
		}
	}

	return &StaticEmbedder{
		table:     table,
		tokenizer: NewVocabTokenizer(table),
		unk:       table.UnknownToken(),
		progress:  cfg.progress,
	}, nil
}

// FromModel builds an embedder from a pretrained tokenizer name and the
// model's input-embedding table, resolved through a ModelRepository
// (filesystem-backed by default, rooted at $STATICEMBED_MODELS or ./models).
func FromModel(name string, opts ...Option) (*StaticEmbedder, error) {
	cfg := defaultBuildConfig()
	for _, o := range opts {
		o(&cfg)
	}

	tokenizer, err := PretrainedTokenizerForModel(name)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	repo := cfg.models
	if repo == nil {
		repo = defaultModelRepository()
	}
	table, err := repo.InputEmbeddings(name, cfg.modulePath...)
	if err != nil {
		return nil, fmt.Errorf("load input embeddings: %w", err)
	}

	return &StaticEmbedder{
		table:     table,
		tokenizer: tokenizer,
		unk:       table.UnknownToken(),
		progress:  cfg.progress,
	}, nil
}

// Name returns the identifying name carried by the vector table.
func (e *StaticEmbedder) Name() string { return e.table.Name() }

// Table returns the underlying vector table.
func (e *StaticEmbedder) Table() *Table { return e.table }

// Tokenizer returns the tokenizer the embedder was built with.
func (e *StaticEmbedder) Tokenizer() Tokenizer { return e.tokenizer }

// Dim returns the output vector dimensionality.
func (e *StaticEmbedder) Dim() int { return e.table.Dim() }

// EncodeOne encodes a single text: tokenize, drop unknown tokens, mean-pool.
// Input that yields zero known tokens returns ErrEmptyInput.
func (e *StaticEmbedder) EncodeOne(text string) ([]float64, error) {
	return e.table.MeanPool(e.knownTokens(text, 0))
}

// Encode encodes sentences in order, pooling at most the first 512 known
// tokens of each. Progress is reported on the configured writer.
func (e *StaticEmbedder) Encode(ctx context.Context, sentences []string) ([][]float64, error) {
	bar := progressbar.NewOptions(len(sentences),
		progressbar.OptionSetDescription("encoding"),
		progressbar.OptionSetWriter(e.progress),
		progressbar.OptionClearOnFinish(),
	)

	out := make([][]float64, len(sentences))
	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.table.MeanPool(e.knownTokens(sentence, maxEncodeTokens))
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		out[i] = vec
		_ = bar.Add(1)
	}
	return out, nil
}

// knownTokens tokenizes text and drops tokens equal to the unknown-token
// string. limit > 0 truncates to the first limit tokens after filtering.
func (e *StaticEmbedder) knownTokens(text string, limit int) []string {
	tokens := e.tokenizer.Tokenize(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok == e.unk {
			continue
		}
		kept = append(kept, tok)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept
}
