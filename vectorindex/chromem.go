package vectorindex

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// PersistPath, when set, enables on-disk persistence (gzip-compressed
	// when Compress is set). Empty means in-memory only.
	PersistPath string
	Compress    bool
}

// ChromemIndex is the default Index backend: pure Go, in-process, no
// external service required. Vectors are pre-computed by the caller's
// Embedder and passed straight through (chromem's own embedding function is
// never invoked — it exists only to satisfy the library's constructor).
type ChromemIndex struct {
	db   *chromem.DB
	path string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// NewChromemIndex opens (or creates) a chromem-go database per cfg.
func NewChromemIndex(cfg ChromemConfig) (*ChromemIndex, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("vectorindex: create persist dir: %w", err)
		}
		dbPath := cfg.PersistPath + "/vectors.gob"
		if cfg.Compress {
			dbPath += ".gz"
		}
		loaded, loadErr := chromem.NewPersistentDB(dbPath, cfg.Compress)
		if loadErr != nil {
			return nil, fmt.Errorf("vectorindex: open persisted db: %w", loadErr)
		}
		db = loaded
	} else {
		db = chromem.NewDB()
	}

	return &ChromemIndex{db: db, path: cfg.PersistPath, collections: map[string]*chromem.Collection{}}, nil
}

func identityEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectorindex: chromem embedding function invoked; vectors must be pre-computed")
}

func (c *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	c.mu.RLock()
	if col, ok := c.collections[name]; ok {
		c.mu.RUnlock()
		return col, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(identityEmbed))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: get/create collection %q: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *ChromemIndex) Upsert(ctx context.Context, collection string, vector []float32, doc Document) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}
	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = fmt.Sprint(v)
	}
	err = col.AddDocuments(ctx, []chromem.Document{{
		ID:        doc.ID,
		Content:   doc.Content,
		Metadata:  meta,
		Embedding: vector,
	}}, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}
	return c.persist()
}

func (c *ChromemIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	return c.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (c *ChromemIndex) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}
	if topK > col.Count() {
		topK = col.Count()
	}
	if topK == 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, vector, topK, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		out = append(out, SearchResult{
			Document: Document{ID: r.ID, Content: r.Content, Metadata: meta},
			Score:    float64(r.Similarity),
		})
	}
	return out, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, collection, id string) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vectorindex: delete: %w", err)
	}
	return c.persist()
}

func (c *ChromemIndex) Close() error { return nil }

func (c *ChromemIndex) persist() error {
	if c.path == "" {
		return nil
	}
	// chromem-go persists per-collection on write when constructed with a
	// persistence path; the embedded NewPersistentDB/AddDocuments combo
	// above already flushes to disk, so there is nothing further to do
	// here. Kept as an explicit hook so a future export step has a place
	// to live without touching call sites.
	return nil
}
