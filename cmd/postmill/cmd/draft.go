package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postmill/postmill/internal/compose"
)

// draftOptions holds CLI flags for draft.
type draftOptions struct {
	approve bool
	yes     bool
}

func newDraftCmd() *cobra.Command {
	var opts draftOptions

	cmd := &cobra.Command{
		Use:   "draft <topic>",
		Short: "Draft a social post grounded in your indexed content",
		Long: `Retrieve context for the topic, generate a post draft with the
configured chat model, and record it in the posts table.

By default the draft is only recorded. With --approve you are prompted
to accept or reject it; --yes approves without prompting.

Examples:
  postmill draft "our new Ethiopian single origin"
  postmill draft "holiday opening hours" --approve`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.approve, "approve", false, "Prompt to approve or reject the draft")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve without prompting")

	return cmd
}

// terminalApprover asks for confirmation on the command's input stream.
type terminalApprover struct {
	in  io.Reader
	out io.Writer
}

func (a *terminalApprover) Approve(_ context.Context, draft string) (bool, error) {
	fmt.Fprintf(a.out, "\n--- draft ---\n%s\n-------------\nApprove? [y/N] ", draft)
	reader := bufio.NewReader(a.in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// autoApprover accepts every draft. Used for --yes.
type autoApprover struct{}

func (autoApprover) Approve(context.Context, string) (bool, error) { return true, nil }

func runDraft(ctx context.Context, cmd *cobra.Command, topic string, opts draftOptions) error {
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

	generator, err := compose.NewLLMGenerator(compose.GeneratorConfig{
		Endpoint:     cfg.Generation.Endpoint,
		Model:        cfg.Generation.Model,
		Token:        tokenFromEnv(),
		MaxPostChars: cfg.Generation.MaxPostChars,
	})
	if err != nil {
		return err
	}

	var approver compose.Approver
	switch {
	case opts.yes:
		approver = autoApprover{}
	case opts.approve:
		approver = &terminalApprover{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	}

	pipeline := compose.NewPipeline(engine, st.Posts(), generator, approver, nil)
	outcome, err := pipeline.Draft(ctx, topic)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !opts.approve && !opts.yes {
		fmt.Fprintf(out, "\n--- draft ---\n%s\n-------------\n", outcome.Draft)
	}
	fmt.Fprintf(out, "Post %d recorded as %s", outcome.PostID, outcome.Status)
	if !outcome.ContextUsed {
		fmt.Fprint(out, " (no indexed context matched the topic)")
	}
	fmt.Fprintln(out)
	return nil
}

func tokenFromEnv() string {
	return firstNonEmptyEnv("POSTMILL_CHAT_TOKEN", "OPENAI_API_KEY")
}
