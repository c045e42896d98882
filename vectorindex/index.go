// Package vectorindex defines the embedding + nearest-neighbor search
// interface used by the context subsystem (MemoryStore takes only an
// Embedder and does not search through an Index), plus two
// concrete backends: an embedded chromem-go index (the default, requiring
// no external service) and an optional Qdrant-backed index for
// out-of-process deployments. The interface is the spec surface; the
// backing library is external (spec: VectorIndex is interface-only).
package vectorindex

import "context"

// Document is one embedded unit: free text plus caller-defined metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// SearchResult decorates a Document with its similarity score in [0,1]
// (cosine similarity, or the backend's closest analogue).
type SearchResult struct {
	Document
	Score float64
}

// Index is the nearest-neighbor search surface the context subsystem
// consumes; MemoryStore does not use it. Vectors are always caller-supplied: the index
// itself never embeds text (see Embedder).
type Index interface {
	// Upsert inserts or replaces a document's embedding in collection.
	Upsert(ctx context.Context, collection string, vector []float32, doc Document) error

	// Search returns the topK nearest documents to vector in collection,
	// ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)

	// SearchWithFilter additionally restricts results to documents whose
	// metadata matches filter (exact string match per key).
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]SearchResult, error)

	// Delete removes a document by ID from collection.
	Delete(ctx context.Context, collection, id string) error

	// Close releases any resources (file handles, network connections).
	Close() error
}

// Embedder turns text into a vector. ContextAssembler takes this interface
// and MemoryStore takes its own with the same method, so one Embedder value
// can back both (nothing is initialized lazily; see DESIGN.md Open Question 1).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
