package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// textExtensions are the file types the filesystem source ingests.
var textExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// FilesystemSource reads documents from files and directories. Directories
// are walked recursively; only known text extensions are picked up.
type FilesystemSource struct {
	paths []string
}

// NewFilesystemSource creates a source over the given files or directories.
func NewFilesystemSource(paths []string) *FilesystemSource {
	return &FilesystemSource{paths: paths}
}

// Name implements Fetcher.
func (s *FilesystemSource) Name() string {
	return "filesystem"
}

// Fetch reads every matching file. The source id is the cleaned file path,
// so re-running over the same tree is idempotent.
func (s *FilesystemSource) Fetch(ctx context.Context) ([]Document, error) {
	var docs []Document
	for _, root := range s.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, pmerrors.SourceUnreadable(root, err)
		}

		if !info.IsDir() {
			doc, err := s.readFile(root)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return pmerrors.SourceUnreadable(path, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if !textExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			doc, err := s.readFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slog.Debug("filesystem fetch complete", "paths", len(s.paths), "documents", len(docs))
	return docs, nil
}

func (s *FilesystemSource) readFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, pmerrors.SourceUnreadable(path, err)
	}
	return Document{
		SourceType: "file",
		SourceID:   filepath.Clean(path),
		Content:    string(data),
	}, nil
}

var _ Fetcher = (*FilesystemSource)(nil)
