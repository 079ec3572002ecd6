package staticembed

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// testVectors is a tiny word2vec text file in descending-frequency order.
const testVectors = `4 3
the 1 0 0
cat 0 1 0
sat 0 0 1
mat 1 1 1
`

// writeVectors writes content to a temp .vec file and returns its path.
func writeVectors(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vec")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write vectors: %v", err)
	}
	return path
}

// newTestEmbedder builds an embedder over testVectors with all transforms off,
// so pooled vectors can be checked against the raw rows.
func newTestEmbedder(t *testing.T) *StaticEmbedder {
	t.Helper()
	e, err := FromVectors(writeVectors(t, testVectors),
		WithPCA(false),
		WithZipfWeighting(false),
		WithProgressWriter(io.Discard),
	)
	if err != nil {
		t.Fatalf("FromVectors: %v", err)
	}
	return e
}

func vecEq(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
