package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

// stubEmbedding maps marker words onto axis vectors so similarity ordering
// in tests is exact.
func stubEmbedding(ctx context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "alpha"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "beta"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func chunk(content, source string, page int) schema.Document {
	return schema.Document{
		PageContent: content,
		Metadata:    map[string]any{"source": source, "page": page},
	}
}

func TestReplaceAndQuery(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)

	assert.False(t, r.HasDocuments())
	assert.Zero(t, r.Count())

	err := r.Replace(ctx, []schema.Document{
		chunk("alpha facts", "doc.pdf", 1),
		chunk("beta facts", "doc.pdf", 2),
	})
	require.NoError(t, err)
	assert.True(t, r.HasDocuments())
	assert.Equal(t, 2, r.Count())

	docs, err := r.Query(ctx, "tell me about alpha", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "alpha facts", docs[0].PageContent)
	assert.Equal(t, "doc.pdf", docs[0].Metadata["source"])
	assert.Equal(t, "1", docs[0].Metadata["page"])
}

func TestReplaceOverwritesIndex(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)

	require.NoError(t, r.Replace(ctx, []schema.Document{
		chunk("alpha from the first upload", "first.pdf", 1),
	}))
	require.NoError(t, r.Replace(ctx, []schema.Document{
		chunk("beta from the second upload", "second.pdf", 1),
	}))

	assert.Equal(t, 1, r.Count())

	docs, err := r.Query(ctx, "alpha", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "second.pdf", docs[0].Metadata["source"])
}

func TestQueryClampsResultCount(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)

	require.NoError(t, r.Replace(ctx, []schema.Document{
		chunk("alpha one", "doc.pdf", 1),
		chunk("beta two", "doc.pdf", 1),
	}))

	docs, err := r.Query(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestQueryBeforeAnyReplace(t *testing.T) {
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)
	docs, err := r.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEmbeddingPrefixStripped(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{
		EmbeddingPrefix: "passage: ",
		QueryPrefix:     "query: ",
	}, stubEmbedding)

	require.NoError(t, r.Replace(ctx, []schema.Document{
		chunk("alpha content", "doc.pdf", 1),
	}))

	docs, err := r.Query(ctx, "alpha", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "alpha content", docs[0].PageContent)
}

func TestConcurrentReplaceKeepsSingleIndex(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			doc := chunk(fmt.Sprintf("alpha upload %d", i), fmt.Sprintf("doc-%d.pdf", i), 1)
			assert.NoError(t, r.Replace(ctx, []schema.Document{doc}))
		}(i)
	}
	close(start)
	wg.Wait()

	// Whichever upload landed last, there is exactly one chunk from
	// exactly one document.
	assert.Equal(t, 1, r.Count())
	docs, err := r.Query(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestQueryDuringReplaceSeesConsistentIndex(t *testing.T) {
	ctx := context.Background()
	r := NewChromemRag(ModelPrompts{}, stubEmbedding)

	require.NoError(t, r.Replace(ctx, []schema.Document{
		chunk("alpha first", "first.pdf", 1),
		chunk("beta first", "first.pdf", 2),
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			source := "first.pdf"
			if i%2 == 1 {
				source = "second.pdf"
			}
			_ = r.Replace(ctx, []schema.Document{
				chunk("alpha "+source, source, 1),
				chunk("beta "+source, source, 2),
			})
		}
	}()

	// Every query must return chunks from a single upload, never a mix
	// of old and new.
	for {
		select {
		case <-done:
			return
		default:
		}
		docs, err := r.Query(ctx, "alpha", 2)
		require.NoError(t, err)
		if len(docs) == 2 {
			assert.Equal(t, docs[0].Metadata["source"], docs[1].Metadata["source"])
		}
	}
}

func TestDocIDStableAcrossCalls(t *testing.T) {
	d := chunk("same content", "doc.pdf", 3)
	assert.Equal(t, docID(d), docID(d))
	assert.True(t, strings.HasPrefix(docID(d), "doc.pdf|3|"))

	other := chunk("other content", "doc.pdf", 3)
	assert.NotEqual(t, docID(d), docID(other))
}
