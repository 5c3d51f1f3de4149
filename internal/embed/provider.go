package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// Provider lazily constructs an Embedder on first use. Construction for the
// API backend involves a network probe, so it is deferred until a caller
// actually needs vectors.
type Provider struct {
	cfg Config

	once     sync.Once
	embedder Embedder
	err      error
}

// NewProvider creates a provider for the configured backend. No work happens
// until Get is called.
func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Get returns the shared embedder, constructing it on first call. A
// construction failure is sticky and reported as EmbeddingUnavailable.
func (p *Provider) Get(ctx context.Context) (Embedder, error) {
	p.once.Do(func() {
		p.embedder, p.err = p.build(ctx)
		if p.err != nil {
			slog.Error("embedding backend unavailable",
				"backend", p.cfg.Backend, "error", p.err)
			p.err = pmerrors.EmbeddingUnavailable(p.err)
			return
		}
		slog.Info("embedding backend ready",
			"backend", p.cfg.Backend,
			"model", p.embedder.ModelName(),
			"dimensions", p.embedder.Dimensions())
	})
	return p.embedder, p.err
}

func (p *Provider) build(ctx context.Context) (Embedder, error) {
	var inner Embedder
	switch p.cfg.Backend {
	case "", "openai":
		oe, err := NewOpenAIEmbedder(p.cfg)
		if err != nil {
			return nil, err
		}
		if !oe.Available(ctx) {
			_ = oe.Close()
			return nil, fmt.Errorf("embeddings endpoint %s did not respond", p.cfg.Endpoint)
		}
		inner = oe
	case "static":
		inner = NewStaticEmbedder(p.cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embeddings backend %q", p.cfg.Backend)
	}

	cached, err := NewCachedEmbedder(inner, p.cfg.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}

// Close closes the embedder if it was ever constructed.
func (p *Provider) Close() error {
	if p.embedder != nil {
		return p.embedder.Close()
	}
	return nil
}
