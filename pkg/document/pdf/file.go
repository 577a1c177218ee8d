package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 150
)

// ErrNoText indicates the PDF parsed fine but yielded no extractable text
// (e.g. a scanned document with no text layer).
var ErrNoText = errors.New("no text found in PDF")

type loaderConfig struct {
	chunkSize    int
	chunkOverlap int
}

type Option func(*loaderConfig)

func WithChunkSize(n int) Option {
	return func(c *loaderConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithChunkOverlap(n int) Option {
	return func(c *loaderConfig) {
		if n >= 0 {
			c.chunkOverlap = n
		}
	}
}

// Page is the text of a single PDF page.
type Page struct {
	Number int
	Text   string
}

// Load converts a PDF file into a slice of chunked schema.Document.
// Each chunk carries the source filename and originating page number as
// metadata.
func Load(ctx context.Context, path string, opts ...Option) ([]schema.Document, error) {
	cfg := loaderConfig{
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pages, err := ExtractPages(path)
	if err != nil {
		return nil, err
	}

	return buildDocuments(filepath.Base(path), pages, cfg)
}

// ExtractPages pulls the plain text of every page in the PDF at path.
// Pages that fail text extraction are skipped rather than failing the
// whole document.
func ExtractPages(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}

// buildDocuments splits page texts into overlapping chunks, tagging each
// chunk with its source and page number.
func buildDocuments(source string, pages []Page, cfg loaderConfig) ([]schema.Document, error) {
	texts := make([]string, 0, len(pages))
	metadatas := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
		metadatas = append(metadatas, map[string]any{
			"source": source,
			"page":   p.Number,
		})
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.chunkSize),
		textsplitter.WithChunkOverlap(cfg.chunkOverlap),
	)
	docs, err := textsplitter.CreateDocuments(splitter, texts, metadatas)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}
