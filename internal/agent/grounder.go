package agent

import (
	"context"

	"github.com/rahul/saarthi/internal/observability"
)

// RetrievedDoc is the raw result shape of the retrieval port.
type RetrievedDoc struct {
	DocID    string
	Excerpt  string
	Score    float64
	Source   string
	Metadata map[string]any
}

// RetrievalPort is how the pipeline obtains evidence. Implementations
// must be safe for concurrent use across requests.
type RetrievalPort interface {
	Search(ctx context.Context, queries []string, k int) ([]RetrievedDoc, error)
}

// Grounder turns the plan's retrieval needs into evidence items. It is
// strictly evidence-only: it never produces an answer, and it fails
// open to empty evidence when the port errors.
type Grounder struct {
	Port   RetrievalPort
	K      int
	Logger *observability.Logger
}

func NewGrounder(port RetrievalPort, k int, logger *observability.Logger) *Grounder {
	if k <= 0 {
		k = 4
	}
	return &Grounder{Port: port, K: k, Logger: logger}
}

func (g *Grounder) Retrieve(ctx context.Context, needs []RetrievalNeed, requestID string) []EvidenceItem {
	queries := make([]string, 0, len(needs))
	for _, need := range needs {
		if need.Query != "" {
			queries = append(queries, need.Query)
		}
	}

	// No non-empty queries: skip the port entirely.
	if len(queries) == 0 {
		return []EvidenceItem{}
	}

	docs, err := g.Port.Search(ctx, queries, g.K)
	if err != nil {
		g.Logger.LogError(requestID, "grounding", err)
		return []EvidenceItem{}
	}

	// 1:1 mapping, port order preserved. Duplicate doc ids across
	// queries are legal; the actor and critic weigh them.
	items := make([]EvidenceItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, EvidenceItem{
			DocID:      doc.DocID,
			Excerpt:    doc.Excerpt,
			Confidence: doc.Score,
			Source:     doc.Source,
			Metadata:   doc.Metadata,
		})
	}

	g.Logger.Log(observability.Event{
		Type:      observability.EventTypeEvidence,
		RequestID: requestID,
		Data: map[string]any{
			"queries_count":  len(queries),
			"evidence_count": len(items),
		},
	})
	return items
}
