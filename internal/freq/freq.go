// Package freq provides a file-backed word-frequency lookup for
// inverse-frequency reweighting.
package freq

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Table maps tokens to relative frequencies in [0, 1].
type Table struct {
	freqs map[string]float64
}

// Load reads a frequency table from a JSON file of the form
// {"the": 0.0533, "of": 0.0261, ...}.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read frequency table: %w", err)
	}

	freqs := make(map[string]float64)
	if err := json.Unmarshal(data, &freqs); err != nil {
		return nil, fmt.Errorf("parse frequency table %s: %w", path, err)
	}
	for tok, f := range freqs {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("frequency table %s: token %q has frequency %v outside [0, 1]", path, tok, f)
		}
	}

	return &Table{freqs: freqs}, nil
}

// New builds a table from an in-memory map.
func New(freqs map[string]float64) *Table {
	copied := make(map[string]float64, len(freqs))
	for k, v := range freqs {
		copied[k] = v
	}
	return &Table{freqs: copied}
}

// Frequency returns the relative frequency of token, or 0 if unknown.
func (t *Table) Frequency(token string) float64 {
	return t.freqs[token]
}

// Len returns the number of tokens in the table.
func (t *Table) Len() int { return len(t.freqs) }
