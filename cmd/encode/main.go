// Command encode is an offline batch encoder: it reads sentences (one per
// line), encodes them with a vector-table embedder and writes JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/staticembed/staticembed"
	"github.com/staticembed/staticembed/internal/freq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		vectorsPath = flag.String("vectors", "", "path to a word2vec text-format vector file (required)")
		inputPath   = flag.String("input", "-", "input file with one sentence per line (- for stdin)")
		outputPath  = flag.String("output", "-", "output file for JSON lines (- for stdout)")
		pca         = flag.Bool("pca", true, "reduce dimensionality with PCA")
		components  = flag.Int("components", 300, "PCA target dimensionality")
		weighting   = flag.String("weighting", "zipf", "row weighting: zipf, frequency or none")
		freqPath    = flag.String("freq", "", "JSON frequency table (required for -weighting frequency)")
	)
	flag.Parse()

	if *vectorsPath == "" {
		return fmt.Errorf("-vectors is required")
	}

	opts := []staticembed.Option{
		staticembed.WithPCA(*pca),
		staticembed.WithPCAComponents(*components),
	}
	switch *weighting {
	case "zipf":
		// default
	case "none":
		opts = append(opts, staticembed.WithZipfWeighting(false))
	case "frequency":
		if *freqPath == "" {
			return fmt.Errorf("-freq is required for frequency weighting")
		}
		freqs, err := freq.Load(*freqPath)
		if err != nil {
			return fmt.Errorf("load frequency table: %w", err)
		}
		opts = append(opts,
			staticembed.WithZipfWeighting(false),
			staticembed.WithFrequencyWeighting(freqs),
		)
	default:
		return fmt.Errorf("unknown weighting %q", *weighting)
	}

	embedder, err := staticembed.FromVectors(*vectorsPath, opts...)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	sentences, err := readSentences(*inputPath)
	if err != nil {
		return err
	}
	if len(sentences) == 0 {
		return fmt.Errorf("no sentences to encode")
	}

	vectors, err := embedder.Encode(context.Background(), sentences)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	return writeResults(*outputPath, sentences, vectors)
}

func readSentences(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var sentences []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			sentences = append(sentences, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return sentences, nil
}

// resultLine is one JSON line of output.
type resultLine struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

func writeResults(path string, sentences []string, vectors [][]float64) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	for i, sentence := range sentences {
		if err := enc.Encode(resultLine{Text: sentence, Vector: vectors[i]}); err != nil {
			return fmt.Errorf("write result %d: %w", i, err)
		}
	}
	return nil
}
