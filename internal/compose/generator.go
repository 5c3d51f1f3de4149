package compose

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// DefaultMaxPostChars matches common microblogging limits.
const DefaultMaxPostChars = 500

// LLMGenerator drafts posts with an OpenAI-compatible chat model.
type LLMGenerator struct {
	llm          *openai.LLM
	model        string
	maxPostChars int
}

// GeneratorConfig configures the chat backend.
type GeneratorConfig struct {
	Endpoint     string
	Model        string
	Token        string
	MaxPostChars int
}

// NewLLMGenerator creates a generator. The token may be empty for local
// servers.
func NewLLMGenerator(cfg GeneratorConfig) (*LLMGenerator, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generation endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	if cfg.MaxPostChars <= 0 {
		cfg.MaxPostChars = DefaultMaxPostChars
	}
	token := cfg.Token
	if token == "" {
		token = "postmill-local"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}
	return &LLMGenerator{llm: llm, model: cfg.Model, maxPostChars: cfg.MaxPostChars}, nil
}

// GeneratePost drafts one post grounded in the retrieved context. Output
// beyond the character limit is trimmed at the last word boundary.
func (g *LLMGenerator) GeneratePost(ctx context.Context, topic, retrievedContext string) (string, error) {
	prompt := buildPrompt(topic, retrievedContext, g.maxPostChars)

	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(0.8),
		llms.WithMaxTokens(g.maxPostChars))
	if err != nil {
		return "", pmerrors.New(pmerrors.ErrCodeSearchFailed, "generate post draft", err)
	}

	draft := strings.TrimSpace(out)
	if len(draft) > g.maxPostChars {
		draft = trimAtWord(draft, g.maxPostChars)
	}
	return draft, nil
}

func buildPrompt(topic, retrievedContext string, maxChars int) string {
	var b strings.Builder
	b.WriteString("You write short social media posts in the author's own voice.\n\n")
	if retrievedContext != "" {
		b.WriteString("Context from the author's notes:\n")
		b.WriteString(retrievedContext)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Write one post about: %s\n", topic)
	fmt.Fprintf(&b, "Hard limit: %d characters. No hashtag spam, no preamble, output only the post text.\n", maxChars)
	return b.String()
}

// trimAtWord cuts s to at most limit characters, preferring a word
// boundary near the end.
func trimAtWord(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

var _ Generator = (*LLMGenerator)(nil)
