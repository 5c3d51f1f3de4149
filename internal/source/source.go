// Package source defines where ingestable documents come from. The core
// only depends on the Fetcher interface; network-backed fetchers plug in
// behind it.
package source

import "context"

// Document is one logical unit of content to ingest. (SourceType, SourceID)
// uniquely identifies it for idempotence.
type Document struct {
	SourceType string
	SourceID   string
	Content    string
}

// Fetcher produces documents from somewhere. Fetch errors are wrapped as
// source-unreadable and propagated to the ingest caller; the core never
// retries fetches.
type Fetcher interface {
	// Name identifies the fetcher in logs.
	Name() string

	// Fetch returns all documents currently available from this source.
	Fetch(ctx context.Context) ([]Document, error)
}
