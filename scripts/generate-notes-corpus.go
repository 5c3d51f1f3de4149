//go:build ignore

// Package main generates a synthetic notes corpus for ingest benchmarking.
// Usage: go run scripts/generate-notes-corpus.go -files 500 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of notes to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"espresso blend", "single origin", "cold brew", "pour over",
	"roast profile", "cupping session", "seasonal menu", "latte art",
	"grinder calibration", "green bean sourcing", "brewing temperature",
	"milk texturing", "decaf process", "subscription box", "opening hours",
}

var sentences = []string{
	"The %s turned out better than expected this week.",
	"We adjusted the %s after feedback from Saturday's tasting.",
	"Customers keep asking about the %s, so it goes on the board.",
	"Notes from the last %s: sweeter, rounder, less bitterness.",
	"The %s needs another iteration before it is ready to announce.",
	"Supplier confirmed availability for the %s through next quarter.",
	"Staff training on the %s is scheduled for next Tuesday.",
	"Yield on the %s came in at roughly two to one.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		var b strings.Builder
		fmt.Fprintf(&b, "# Note %d: %s\n\n", i, topic)

		paragraphs := 2 + rng.Intn(4)
		for p := 0; p < paragraphs; p++ {
			lines := 3 + rng.Intn(4)
			for l := 0; l < lines; l++ {
				tmpl := sentences[rng.Intn(len(sentences))]
				fmt.Fprintf(&b, tmpl+" ", topics[rng.Intn(len(topics))])
			}
			b.WriteString("\n\n")
		}

		name := filepath.Join(*outputDir, fmt.Sprintf("note-%04d.md", i))
		if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d notes in %s\n", *numFiles, *outputDir)
}
