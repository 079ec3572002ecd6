package staticembed

import (
	"context"
	"fmt"
)

// Device identifies a compute device for model placement.
type Device string

// Common devices.
const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// DefaultBatchSize is the batch size ModelEncoder.Encode uses when given <= 0.
const DefaultBatchSize = 32

// MeanModel is the opaque pooling model contract: it owns its own tokenization
// and turns token-id sequences into one vector per sequence.
type MeanModel interface {
	Tokenize(texts []string) [][]int
	Forward(ctx context.Context, ids [][]int) ([][]float64, error)
}

// DevicePlacer is implemented by models that support device placement.
type DevicePlacer interface {
	To(device Device)
}

// EvalSwitcher is implemented by models that distinguish training from
// inference mode.
type EvalSwitcher interface {
	Eval()
}

// ModelEncoder wraps a MeanModel with batched inference. The model is put in
// evaluation mode at construction and stays there.
type ModelEncoder struct {
	model MeanModel
}

// NewModelEncoder wraps model, switching it to evaluation mode if it supports
// the distinction.
func NewModelEncoder(model MeanModel) *ModelEncoder {
	if es, ok := model.(EvalSwitcher); ok {
		es.Eval()
	}
	return &ModelEncoder{model: model}
}

// To moves the model to device when it supports placement. Returns the
// encoder for chaining.
func (e *ModelEncoder) To(device Device) *ModelEncoder {
	if p, ok := e.model.(DevicePlacer); ok {
		p.To(device)
	}
	return e
}

// Encode partitions sentences into contiguous batches, runs the model forward
// pass per batch and concatenates the outputs in input order. Batch size is a
// performance knob only: any value yields identical output.
func (e *ModelEncoder) Encode(ctx context.Context, sentences []string, batchSize int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float64, 0, len(sentences))
	for start := 0; start < len(sentences); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + batchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		batch := sentences[start:end]

		vecs, err := e.model.Forward(ctx, e.model.Tokenize(batch))
		if err != nil {
			return nil, fmt.Errorf("batch at %d: %w", start, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// TableMeanModel is an in-process MeanModel over a vector table: Tokenize maps
// token strings to table indices (dropping unknowns), Forward mean-pools the
// indexed rows.
type TableMeanModel struct {
	table     *Table
	tokenizer Tokenizer
	training  bool
}

// NewTableMeanModel builds a mean model from a table and tokenizer.
func NewTableMeanModel(table *Table, tokenizer Tokenizer) *TableMeanModel {
	return &TableMeanModel{table: table, tokenizer: tokenizer, training: true}
}

// Eval switches the model to inference mode.
func (m *TableMeanModel) Eval() { m.training = false }

// Training reports whether the model is still in training mode.
func (m *TableMeanModel) Training() bool { return m.training }

// Tokenize maps each text to the table indices of its known tokens.
func (m *TableMeanModel) Tokenize(texts []string) [][]int {
	ids := make([][]int, len(texts))
	for i, text := range texts {
		for _, tok := range m.tokenizer.Tokenize(text) {
			if tok == m.table.UnknownToken() {
				continue
			}
			if idx, ok := m.table.Index(tok); ok {
				ids[i] = append(ids[i], idx)
			}
		}
	}
	return ids
}

// Forward mean-pools the rows indexed by each id sequence. An empty sequence
// returns ErrEmptyInput.
func (m *TableMeanModel) Forward(_ context.Context, ids [][]int) ([][]float64, error) {
	out := make([][]float64, len(ids))
	for i, seq := range ids {
		if len(seq) == 0 {
			return nil, fmt.Errorf("sequence %d: %w", i, ErrEmptyInput)
		}
		sum := make([]float64, m.table.Dim())
		for _, id := range seq {
			row := m.table.RowAt(id)
			for j, v := range row {
				sum[j] += v
			}
		}
		for j := range sum {
			sum[j] /= float64(len(seq))
		}
		out[i] = sum
	}
	return out, nil
}
