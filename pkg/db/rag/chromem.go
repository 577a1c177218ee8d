package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/clocklear/chromem-go"
	"github.com/tmc/langchaingo/schema"
)

const collectionName = "pdfrag"

// ChromemRag holds the single in-memory chunk index. The index lives only
// as long as the process; every Replace throws away the previous document.
type ChromemRag struct {
	db        *chromem.DB
	embedding chromem.EmbeddingFunc
	prompts   ModelPrompts

	// replaceMu serializes whole Replace sequences; mu only guards the
	// collection pointer so queries never block on an in-flight rebuild.
	replaceMu sync.Mutex
	mu        sync.RWMutex
	col       *chromem.Collection
}

func NewChromemRag(prompts ModelPrompts, embedding chromem.EmbeddingFunc) *ChromemRag {
	return &ChromemRag{
		db:        chromem.NewDB(),
		embedding: embedding,
		prompts:   prompts,
	}
}

// Replace swaps the entire index for the given document chunks. Queries
// running concurrently see either the old collection or the new one.
func (r *ChromemRag) Replace(ctx context.Context, docs []schema.Document) error {
	r.replaceMu.Lock()
	defer r.replaceMu.Unlock()

	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		cdocs = append(cdocs, chromem.Document{
			ID:       docID(d),
			Content:  r.prompts.EmbeddingPrefix + d.PageContent,
			Metadata: stringifyMetadata(d.Metadata),
		})
	}

	if err := r.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	col, err := r.db.GetOrCreateCollection(collectionName, nil, r.embedding)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := col.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	r.mu.Lock()
	r.col = col
	r.mu.Unlock()
	return nil
}

// Query runs a similarity search against the current index and returns up
// to nResults chunks, most similar first. nResults is clamped to the
// number of indexed chunks.
func (r *ChromemRag) Query(ctx context.Context, queryText string, nResults int) ([]schema.Document, error) {
	r.mu.RLock()
	col := r.col
	r.mu.RUnlock()
	if col == nil {
		return nil, nil
	}

	if n := col.Count(); nResults > n {
		nResults = n
	}
	if nResults <= 0 {
		return nil, nil
	}

	res, err := col.Query(ctx, r.prompts.QueryPrefix+queryText, nResults, nil, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, 0, len(res))
	for _, d := range res {
		metadata := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			metadata[k] = v
		}
		docs = append(docs, schema.Document{
			PageContent: strings.TrimPrefix(d.Content, r.prompts.EmbeddingPrefix),
			Metadata:    metadata,
			Score:       d.Similarity,
		})
	}
	return docs, nil
}

// HasDocuments reports whether an index is present.
func (r *ChromemRag) HasDocuments() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.col != nil && r.col.Count() > 0
}

// Count returns the number of indexed chunks.
func (r *ChromemRag) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.col == nil {
		return 0
	}
	return r.col.Count()
}

// docID builds a stable chunk id of the form source|page|hash. Duplicate
// chunks within one document collapse to a single entry.
func docID(d schema.Document) string {
	source := fmt.Sprintf("%v", d.Metadata["source"])
	page := fmt.Sprintf("%v", d.Metadata["page"])
	return source + "|" + page + "|" + sha256Hash(d.PageContent)
}

func stringifyMetadata(m map[string]any) map[string]string {
	sm := make(map[string]string)
	for k, v := range m {
		sm[k] = fmt.Sprintf("%v", v)
	}
	return sm
}

func sha256Hash(input string) string {
	hash := sha256.New()
	hash.Write([]byte(input))
	return fmt.Sprintf("%x", hash.Sum(nil))
}
