package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rahul/saarthi/internal/agent"
	"github.com/rahul/saarthi/internal/observability"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/tmc/langchaingo/vectorstores"
)

// Retriever implements the pipeline's retrieval port on top of a
// vector store. It is stateless per request and safe for concurrent
// dispatch.
type Retriever struct {
	Store     vectorstores.VectorStore
	Threshold float32
	Logger    *observability.Logger
}

func New(store vectorstores.VectorStore, threshold float32, logger *observability.Logger) *Retriever {
	return &Retriever{Store: store, Threshold: threshold, Logger: logger}
}

// Search runs every query against the store and returns the ranked
// results in query order. Scores come straight from the store; the
// pipeline thresholds but never recomputes them.
func (r *Retriever) Search(ctx context.Context, queries []string, k int) ([]agent.RetrievedDoc, error) {
	var results []agent.RetrievedDoc
	for _, query := range queries {
		docs, err := r.Store.SimilaritySearch(ctx, query, k, vectorstores.WithScoreThreshold(r.Threshold))
		if err != nil {
			return nil, fmt.Errorf("similarity search for %q: %w", query, err)
		}
		for i, doc := range docs {
			results = append(results, agent.RetrievedDoc{
				DocID:    metaString(doc.Metadata, "doc_id", fmt.Sprintf("chunk-%d", i)),
				Excerpt:  doc.PageContent,
				Score:    float64(doc.Score),
				Source:   metaString(doc.Metadata, "source", "knowledge_base"),
				Metadata: doc.Metadata,
			})
		}
	}
	return results, nil
}

// Ingest loads a knowledge-base file, chunks it and adds the chunks to
// the vector store. Meant to run once at startup when the collection
// is empty.
func (r *Retriever) Ingest(ctx context.Context, path string, chunkSize, chunkOverlap int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("knowledge base not found: %w", err)
	}
	defer f.Close()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	docs, err := documentloaders.NewText(f).LoadAndSplit(ctx, splitter)
	if err != nil {
		return 0, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	source := filepath.Base(path)
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["doc_id"] = fmt.Sprintf("%s-%d", source, i)
		docs[i].Metadata["source"] = source
	}

	if _, err := r.Store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to index knowledge base: %w", err)
	}

	if r.Logger != nil {
		r.Logger.Log(observability.Event{
			Type: observability.EventTypeEvidence,
			Data: map[string]any{"ingested_chunks": len(docs), "source": source},
		})
	}
	return len(docs), nil
}

func metaString(meta map[string]any, key, fallback string) string {
	if meta == nil {
		return fallback
	}
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
