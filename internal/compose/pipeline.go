package compose

import (
	"context"
	"log/slog"

	"github.com/postmill/postmill/internal/search"
	"github.com/postmill/postmill/internal/store"
)

// Outcome reports what happened to a drafted post.
type Outcome struct {
	PostID      int64
	Draft       string
	Status      string
	PublishedID string
	// ContextUsed is false when retrieval found nothing and the generator
	// worked from the topic alone.
	ContextUsed bool
}

// Pipeline runs retrieve -> generate -> approve -> publish. Approver and
// Poster are optional: without an approver the draft stays in draft status;
// without a poster an approved draft is recorded but not published.
type Pipeline struct {
	engine    *search.Engine
	posts     *store.SQLiteStore
	generator Generator
	approver  Approver
	poster    Poster
}

// NewPipeline wires the drafting pipeline.
func NewPipeline(engine *search.Engine, posts *store.SQLiteStore, generator Generator,
	approver Approver, poster Poster) *Pipeline {
	return &Pipeline{
		engine:    engine,
		posts:     posts,
		generator: generator,
		approver:  approver,
		poster:    poster,
	}
}

// Draft produces a post for the topic and walks it through the workflow.
// Every draft is recorded in the posts table regardless of outcome.
func (p *Pipeline) Draft(ctx context.Context, topic string) (*Outcome, error) {
	formatted, results, err := p.engine.Retrieve(ctx, search.Query{Text: topic})
	if err != nil {
		return nil, err
	}

	contextUsed := formatted != search.NoContextSentinel
	promptContext := formatted
	if !contextUsed {
		// The generator can still draft from the topic alone; it just is
		// not grounded in any notes.
		promptContext = ""
		slog.Info("drafting without retrieved context", "topic", topic)
	}

	draft, err := p.generator.GeneratePost(ctx, topic, promptContext)
	if err != nil {
		return nil, err
	}

	sourceRef := ""
	if len(results) > 0 {
		sourceRef = results[0].SourceType + ":" + results[0].SourceID
	}
	postID, err := p.posts.SavePost(ctx, draft, sourceRef)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{PostID: postID, Draft: draft, Status: store.PostStatusDraft, ContextUsed: contextUsed}

	if p.approver == nil {
		return outcome, nil
	}

	approved, err := p.approver.Approve(ctx, draft)
	if err != nil {
		return outcome, err
	}
	if !approved {
		outcome.Status = store.PostStatusRejected
		return outcome, p.posts.UpdatePostStatus(ctx, postID, store.PostStatusRejected, "")
	}

	outcome.Status = store.PostStatusApproved
	if err := p.posts.UpdatePostStatus(ctx, postID, store.PostStatusApproved, ""); err != nil {
		return outcome, err
	}

	if p.poster == nil {
		return outcome, nil
	}

	publishedID, err := p.poster.Publish(ctx, draft)
	if err != nil {
		return outcome, err
	}
	outcome.Status = store.PostStatusPublished
	outcome.PublishedID = publishedID
	slog.Info("post published", "post_id", postID, "published_id", publishedID)
	return outcome, p.posts.UpdatePostStatus(ctx, postID, store.PostStatusPublished, publishedID)
}
