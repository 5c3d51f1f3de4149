package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// postsOptions holds CLI flags for posts.
type postsOptions struct {
	status     string
	limit      int
	jsonOutput bool
}

func newPostsCmd() *cobra.Command {
	var opts postsOptions

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List drafted posts",
		Long: `List posts recorded by 'postmill draft', newest first.

Examples:
  postmill posts
  postmill posts --status approved
  postmill posts --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPosts(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by status: draft, approved, rejected, published")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of posts")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runPosts(ctx context.Context, cmd *cobra.Command, opts postsOptions) error {
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

	posts, err := st.Posts().ListPosts(ctx, opts.status, opts.limit)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(posts)
	}

	out := cmd.OutOrStdout()
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts yet. Try: postmill draft \"a topic\"")
		return nil
	}
	for _, p := range posts {
		fmt.Fprintf(out, "#%d  %-9s  %s\n", p.ID, p.Status, p.CreatedAt.Format(time.RFC3339))
		if p.SourceRef != "" {
			fmt.Fprintf(out, "     grounded on %s\n", p.SourceRef)
		}
		fmt.Fprintf(out, "     %s\n", snippet(p.Content, 200))
	}
	return nil
}
