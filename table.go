// Package staticembed turns text into fixed-size vectors using static
// word-vector tables or an opaque mean-pooling model.
//
// The core types are Table (an ordered token → vector mapping with pad and
// unknown tokens), StaticEmbedder (tokenize, drop unknowns, mean-pool) and
// ModelEncoder (batched inference over a MeanModel).
package staticembed

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// freqFloor replaces zero frequencies so the inverse-frequency weight stays finite.
const freqFloor = 1e-9

// Frequencies is a word-frequency lookup used for inverse-frequency reweighting.
type Frequencies interface {
	// Frequency returns the relative frequency of token in [0, 1].
	// Unknown tokens return 0.
	Frequency(token string) float64
}

// Table is an ordered word-vector table. The token order is the file order,
// which for standard word2vec exports is descending-frequency order; ZipfWeight
// relies on that invariant. All transforms return a new Table and leave the
// receiver untouched.
type Table struct {
	name   string
	tokens []string
	index  map[string]int
	vecs   *mat.Dense
	pad    string
	unk    string
}

// NewTable builds a table from parallel token and vector slices.
func NewTable(name string, tokens []string, vectors [][]float64) (*Table, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("table %q: no tokens", name)
	}
	if len(tokens) != len(vectors) {
		return nil, fmt.Errorf("table %q: %d tokens but %d vectors", name, len(tokens), len(vectors))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("table %q: zero-dimensional vectors", name)
	}

	index := make(map[string]int, len(tokens))
	vecs := mat.NewDense(len(tokens), dim, nil)
	for i, tok := range tokens {
		if _, dup := index[tok]; dup {
			return nil, fmt.Errorf("table %q: duplicate token %q", name, tok)
		}
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("table %q: token %q has dimension %d, want %d", name, tok, len(vectors[i]), dim)
		}
		index[tok] = i
		vecs.SetRow(i, vectors[i])
	}

	return &Table{
		name:   name,
		tokens: append([]string(nil), tokens...),
		index:  index,
		vecs:   vecs,
	}, nil
}

// LoadTable reads a word2vec text-format file: an optional "<count> <dim>"
// header followed by one "token v1 .. vn" row per line. File order is preserved.
// The table name is the file name without extension.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var (
		tokens  []string
		vectors [][]float64
		dim     int
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		// Header line: exactly two integer fields before any row was read.
		if lineNo == 1 && len(fields) == 2 {
			if _, err1 := strconv.Atoi(fields[0]); err1 == nil {
				if _, err2 := strconv.Atoi(fields[1]); err2 == nil {
					continue
				}
			}
		}

		if len(fields) < 2 {
			return nil, fmt.Errorf("vectors %s line %d: malformed row", path, lineNo)
		}
		row := make([]float64, len(fields)-1)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("vectors %s line %d: %w", path, lineNo, err)
			}
			row[i] = v
		}
		if dim == 0 {
			dim = len(row)
		} else if len(row) != dim {
			return nil, fmt.Errorf("vectors %s line %d: dimension %d, want %d", path, lineNo, len(row), dim)
		}
		tokens = append(tokens, fields[0])
		vectors = append(vectors, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vectors %s: %w", path, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vectors %s: empty file", path)
	}

	return NewTable(name, tokens, vectors)
}

// Name returns the identifying name carried by the table.
func (t *Table) Name() string { return t.name }

// Len returns the number of tokens.
func (t *Table) Len() int { return len(t.tokens) }

// Dim returns the vector dimensionality.
func (t *Table) Dim() int {
	_, d := t.vecs.Dims()
	return d
}

// Tokens returns the tokens in table order.
func (t *Table) Tokens() []string {
	return append([]string(nil), t.tokens...)
}

// PadToken returns the pad token, or "" if none was designated.
func (t *Table) PadToken() string { return t.pad }

// UnknownToken returns the unknown token, or "" if none was designated.
func (t *Table) UnknownToken() string { return t.unk }

// Index returns the position of token in the table.
func (t *Table) Index(token string) (int, bool) {
	i, ok := t.index[token]
	return i, ok
}

// Vector returns a copy of the vector for token.
func (t *Table) Vector(token string) ([]float64, bool) {
	i, ok := t.index[token]
	if !ok {
		return nil, false
	}
	return t.RowAt(i), true
}

// RowAt returns a copy of the i-th row.
func (t *Table) RowAt(i int) []float64 {
	row := make([]float64, t.Dim())
	mat.Row(row, i, t.vecs)
	return row
}

// WithToken returns a table that contains token, appending a zero vector if it
// was absent. asUnknown designates the token as the table's unknown token.
func (t *Table) WithToken(token string, asUnknown bool) *Table {
	out := t.clone()
	if _, ok := out.index[token]; !ok {
		out.tokens = append(out.tokens, token)
		out.index[token] = len(out.tokens) - 1
		grown := mat.NewDense(len(out.tokens), out.Dim(), nil)
		grown.Slice(0, len(out.tokens)-1, 0, out.Dim()).(*mat.Dense).Copy(out.vecs)
		out.vecs = grown
	}
	if asUnknown {
		out.unk = token
	}
	return out
}

// WithPadToken returns a table that contains token and designates it as pad.
func (t *Table) WithPadToken(token string) *Table {
	out := t.WithToken(token, false)
	out.pad = token
	return out
}

// PCA returns a table whose rows are projected onto the top-n principal
// components. Tables already at or below n dimensions are returned unchanged.
func (t *Table) PCA(components int) (*Table, error) {
	if components <= 0 {
		return nil, fmt.Errorf("pca: invalid component count %d", components)
	}
	d := t.Dim()
	if d <= components {
		return t, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(t.vecs, nil); !ok {
		return nil, fmt.Errorf("pca: decomposition failed for table %q", t.name)
	}
	var dirs mat.Dense
	pc.VectorsTo(&dirs)

	// Center columns before projecting, so the projection matches the
	// mean-subtracted principal axes.
	n := t.Len()
	centered := mat.NewDense(n, d, nil)
	centered.Copy(t.vecs)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, t.vecs)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, centered.At(i, j)-mean)
		}
	}

	var proj mat.Dense
	proj.Mul(centered, dirs.Slice(0, d, 0, components))

	out := t.clone()
	out.vecs = &proj
	return out, nil
}

// ZipfWeight returns a table with row i (zero-based) scaled by ln(i+1),
// approximating inverse word-frequency decay by rank. The scaling assumes the
// table order is descending-frequency order, which LoadTable preserves.
func (t *Table) ZipfWeight() *Table {
	out := t.clone()
	out.vecs = scaleRows(t.vecs, func(i int) float64 {
		return math.Log(float64(i + 1))
	})
	return out
}

// FrequencyWeight returns a table with each row scaled by ln(1/f) where f is
// the token's relative frequency. Tokens unknown to freqs fall back to a floor
// frequency instead of producing an infinite weight.
func (t *Table) FrequencyWeight(freqs Frequencies) (*Table, error) {
	if freqs == nil {
		return nil, ErrNoFrequencies
	}
	out := t.clone()
	out.vecs = scaleRows(t.vecs, func(i int) float64 {
		f := freqs.Frequency(t.tokens[i])
		if f <= 0 {
			f = freqFloor
		}
		return math.Log(1 / f)
	})
	return out, nil
}

// MeanPool averages the vectors of the given tokens into one vector.
// Pooling zero tokens returns ErrEmptyInput; tokens absent from the table
// return ErrUnknownToken.
func (t *Table) MeanPool(tokens []string) ([]float64, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}
	sum := make([]float64, t.Dim())
	row := make([]float64, t.Dim())
	for _, tok := range tokens {
		i, ok := t.index[tok]
		if !ok {
			return nil, fmt.Errorf("%q: %w", tok, ErrUnknownToken)
		}
		mat.Row(row, i, t.vecs)
		floats.Add(sum, row)
	}
	floats.Scale(1/float64(len(tokens)), sum)
	return sum, nil
}

// clone copies the table metadata and shares nothing mutable with the receiver.
func (t *Table) clone() *Table {
	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	vecs := mat.NewDense(t.Len(), t.Dim(), nil)
	vecs.Copy(t.vecs)
	return &Table{
		name:   t.name,
		tokens: append([]string(nil), t.tokens...),
		index:  index,
		vecs:   vecs,
		pad:    t.pad,
		unk:    t.unk,
	}
}

func scaleRows(m *mat.Dense, weight func(i int) float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		floats.Scale(weight(i), row)
		out.SetRow(i, row)
	}
	return out
}
