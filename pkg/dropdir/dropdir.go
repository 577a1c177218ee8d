package dropdir

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"pdfrag/pkg/fs"

	"github.com/fsnotify/fsnotify"
	"github.com/tmc/langchaingo/schema"
)

// Loader turns a PDF on disk into chunked documents.
type Loader func(ctx context.Context, path string) ([]schema.Document, error)

// Indexer replaces the current index with a new set of chunks.
type Indexer interface {
	Replace(ctx context.Context, docs []schema.Document) error
}

// Ingestor watches a directory and indexes any PDF dropped into it, the
// same way an upload would. There is still a single index; the newest
// drop wins.
type Ingestor struct {
	w      *fs.Watcher
	logger *slog.Logger
}

// Watch starts watching dir. The returned Ingestor must be Closed on
// shutdown.
func Watch(dir string, load Loader, index Indexer, logger *slog.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ingest := func(path string) {
		ctx := context.Background()
		docs, err := load(ctx, path)
		if err != nil {
			logger.Error("failed to load dropped PDF", "file", path, "error", err)
			return
		}
		if err := index.Replace(ctx, docs); err != nil {
			logger.Error("failed to index dropped PDF", "file", path, "error", err)
			return
		}
		logger.Info("dropped document indexed", "file", path, "chunks", len(docs))
	}

	w, err := fs.NewWatcher(func(event fsnotify.Event) {
		if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
			return
		}
		switch {
		case event.Op&fsnotify.Create == fsnotify.Create:
			fallthrough
		case event.Op&fsnotify.Write == fsnotify.Write:
			ingest(event.Name)
		}
		// Removes and renames are ignored; the last indexed document
		// stays queryable until a new one arrives.
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := w.AddFolder(dir); err != nil {
		w.Close()
		return nil, err
	}

	return &Ingestor{w: w, logger: logger}, nil
}

// Close stops the directory watch.
func (i *Ingestor) Close() {
	i.w.Close()
}
