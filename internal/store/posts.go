package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusApproved  = "approved"
	PostStatusRejected  = "rejected"
	PostStatusPublished = "published"
)

// Post is a drafted piece of content produced by the compose pipeline.
type Post struct {
	ID          int64      `json:"id"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	SourceRef   string     `json:"source_ref,omitempty"`
	PublishedID string     `json:"published_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

// SavePost records a new draft and returns its id.
func (s *SQLiteStore) SavePost(ctx context.Context, content, sourceRef string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (content, status, source_ref, created_at) VALUES (?, ?, ?, ?)`,
		content, PostStatusDraft, sourceRef, time.Now().Unix())
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "insert post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "read post id", err)
	}
	return id, nil
}

// UpdatePostStatus moves a post through the approval workflow. publishedID
// is recorded when the poster reports a remote handle; posted time is set
// when the status becomes published.
func (s *SQLiteStore) UpdatePostStatus(ctx context.Context, id int64, status, publishedID string) error {
	var postedAt any
	if status == PostStatusPublished {
		postedAt = time.Now().Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, published_id = ?, posted_at = COALESCE(?, posted_at)
		 WHERE id = ?`,
		status, publishedID, postedAt, id)
	if err != nil {
		return pmerrors.New(pmerrors.ErrCodeStoreWrite, "update post", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return pmerrors.New(pmerrors.ErrCodeInvalidInput, "post not found", nil).
			WithDetail("post_id", strconv.FormatInt(id, 10))
	}
	return nil
}

// ListPosts returns posts filtered by status, newest first. An empty status
// returns everything.
func (s *SQLiteStore) ListPosts(ctx context.Context, status string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, content, status, source_ref, published_id, created_at, posted_at
	          FROM posts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "list posts", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var createdAt int64
		var postedAt sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Content, &p.Status, &p.SourceRef,
			&p.PublishedID, &createdAt, &postedAt); err != nil {
			return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "scan post", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		if postedAt.Valid {
			t := time.Unix(postedAt.Int64, 0).UTC()
			p.PostedAt = &t
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
