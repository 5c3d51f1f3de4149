package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postmill/postmill/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK           int
	keywordWeight  float64
	semanticWeight float64
	format         string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long: `Run a hybrid search over indexed content.

Combines BM25 keyword matching and semantic similarity, normalizes
both to [0, 1] and fuses them with the configured weights.

Examples:
  postmill search "roastery opening hours"
  postmill search "espresso recipe" -n 5
  postmill search "new blends" --keyword-weight 0.8 --semantic-weight 0.2
  postmill search "seasonal menu" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.keywordWeight, "keyword-weight", -1, "Lexical fusion weight for this query")
	cmd.Flags().Float64Var(&opts.semanticWeight, "semantic-weight", -1, "Semantic fusion weight for this query")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	provider := newProvider(cfg)
	defer provider.Close()

	engine := newEngine(cfg, st, provider)

	q := search.Query{Text: query, TopK: opts.topK}
	if opts.keywordWeight >= 0 {
		q.KeywordWeight = &opts.keywordWeight
	}
	if opts.semanticWeight >= 0 {
		q.SemanticWeight = &opts.semanticWeight
	}

	formatted, results, err := engine.Retrieve(ctx, q)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		out := struct {
			Query   string                `json:"query"`
			Context string                `json:"context"`
			Results []search.RankedResult `json:"results"`
		}{Query: query, Context: formatted, Results: results}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s] %s (score: %.3f, lexical: %.3f, semantic: %.3f)\n",
			i+1, r.SourceType, r.SourceID, r.FusedScore, r.LexicalNorm, r.VectorNorm)
		fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", snippet(r.Content, 200))
	}
	return nil
}

// snippet returns the first line of content, truncated to max runes.
func snippet(content string, max int) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max-3]) + "..."
}
