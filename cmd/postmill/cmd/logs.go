package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
)

// logsOptions holds CLI flags for logs.
type logsOptions struct {
	lines  int
	level  string
	filter string
	file   string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the tail of the postmill log file.

Examples:
  postmill logs
  postmill logs -n 100
  postmill logs --level error
  postmill logs --filter "ingest"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file path (default: <data-dir>/postmill.log)")

	return cmd
}

// logEntry is the subset of slog's JSON output we render.
type logEntry struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := opts.file
	if path == "" {
		path = filepath.Join(cfg.DataDir, "postmill.log")
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No log file yet at %s\n", path)
			return nil
		}
		return err
	}
	defer f.Close()

	lines, err := tailLines(f, opts.lines, opts.level, pattern)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, formatLogLine(line))
	}
	return nil
}

// tailLines scans the whole file keeping the last n matching lines. Log
// files rotate at a bounded size, so a full scan stays cheap.
func tailLines(f *os.File, n int, level string, pattern *regexp.Regexp) ([]string, error) {
	var kept []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !matchesLine(line, level, pattern) {
			continue
		}
		kept = append(kept, line)
		if len(kept) > n {
			kept = kept[1:]
		}
	}
	return kept, scanner.Err()
}

func matchesLine(line, level string, pattern *regexp.Regexp) bool {
	if pattern != nil && !pattern.MatchString(line) {
		return false
	}
	if level == "" {
		return true
	}
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return false
	}
	return strings.EqualFold(entry.Level, level)
}

// formatLogLine renders a JSON log line as "time LEVEL msg"; non-JSON
// lines pass through unchanged.
func formatLogLine(line string) string {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Msg == "" {
		return line
	}
	ts := entry.Time
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return fmt.Sprintf("%s %-5s %s", ts, strings.ToUpper(entry.Level), entry.Msg)
}
