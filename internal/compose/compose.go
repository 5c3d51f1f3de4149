// Package compose drafts social posts from retrieved context. Generation,
// approval and publishing sit behind interfaces; only the generator has a
// real backend here — posters for specific networks plug in externally.
package compose

import "context"

// Generator produces a post draft from a topic and its retrieved context.
type Generator interface {
	GeneratePost(ctx context.Context, topic, retrievedContext string) (string, error)
}

// Approver gates a draft before publishing. Implementations may block on
// human input.
type Approver interface {
	Approve(ctx context.Context, draft string) (bool, error)
}

// Poster publishes approved content and returns the remote handle (e.g. a
// status URL or id).
type Poster interface {
	Publish(ctx context.Context, content string) (string, error)
}
