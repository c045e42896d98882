// Package contextcache implements the three-layer cache ContextAssembler
// reads through: an in-process LRU, an optional shared remote, and an
// on-disk JSON layer. Read order is LRU -> remote -> disk; a hit at any
// layer is promoted back up to the layers above it.
package contextcache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached value plus its time-to-live, matching the on-disk
// shape `{value, timestamp, ttl}`.
type Entry struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	TTL       time.Duration `json:"ttl"`
}

func (e Entry) expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.Timestamp) > e.TTL
}

// Remote is the optional shared cache layer (e.g. a process-external KV
// store). A nil Remote simply means the layer is absent.
type Remote interface {
	Get(key string) (Entry, bool, error)
	Set(key string, entry Entry) error
}

// Cache is the in-process LRU backed by an optional Remote and an on-disk
// JSON directory. Reads promote hits back up to faster layers; writes go
// to every layer. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ll       *list.List
	items    map[string]*list.Element
	maxItems int

	remote Remote
	diskDir string

	group singleflight.Group
}

type cacheItem struct {
	key   string
	entry Entry
}

// New creates a Cache with the given in-memory capacity. diskDir may be
// empty to disable the on-disk layer; remote may be nil.
func New(maxItems int, diskDir string, remote Remote) *Cache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &Cache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		maxItems: maxItems,
		remote:   remote,
		diskDir:  diskDir,
	}
}

// Get reads through LRU -> remote -> disk, in that order, promoting a hit
// at a slower layer back into the LRU. Expired entries are dropped
// opportunistically at whichever layer they're found.
func (c *Cache) Get(key string) (string, bool) {
	now := time.Now()

	if e, ok := c.lruGet(key); ok {
		if e.expired(now) {
			c.lruDelete(key)
		} else {
			return e.Value, true
		}
	}

	if c.remote != nil {
		if e, ok, err := c.remote.Get(key); err == nil && ok {
			if !e.expired(now) {
				c.lruSet(key, e)
				return e.Value, true
			}
		}
	}

	if c.diskDir != "" {
		if e, ok := c.diskGet(key); ok {
			if !e.expired(now) {
				c.lruSet(key, e)
				if c.remote != nil {
					_ = c.remote.Set(key, e)
				}
				return e.Value, true
			}
			_ = os.Remove(c.diskPath(key))
		}
	}

	return "", false
}

// Set writes to every configured layer. On-disk writes are per-key files,
// so no cross-key atomicity is required.
func (c *Cache) Set(key, value string, ttl time.Duration) error {
	entry := Entry{Value: value, Timestamp: time.Now(), TTL: ttl}
	c.lruSet(key, entry)

	if c.remote != nil {
		if err := c.remote.Set(key, entry); err != nil {
			return fmt.Errorf("contextcache: remote set: %w", err)
		}
	}
	if c.diskDir != "" {
		if err := c.diskSet(key, entry); err != nil {
			return fmt.Errorf("contextcache: disk set: %w", err)
		}
	}
	return nil
}

// GetOrLoad reads the cache, or calls load and stores its result, with at
// most one in-flight load per key across concurrent callers.
func (c *Cache) GetOrLoad(key string, ttl time.Duration, load func() (string, error)) (string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		value, err := load()
		if err != nil {
			return "", err
		}
		if err := c.Set(key, value, ttl); err != nil {
			return value, err
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) lruGet(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheItem).entry, true
}

// lruSet inserts or updates key, evicting the least-recently-used entry
// from the in-memory layer only when over capacity (spec: on LRU eviction
// the entry is dropped from the in-memory layer only).
func (c *Cache) lruSet(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).entry = entry
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheItem{key: key, entry: entry})
	c.items[key] = el

	if c.ll.Len() > c.maxItems {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheItem).key)
		}
	}
}

func (c *Cache) lruDelete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.diskDir, key+".json")
}

func (c *Cache) diskGet(key string) (Entry, bool) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) diskSet(key string, entry Entry) error {
	if err := os.MkdirAll(c.diskDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.diskPath(key), data, 0o644)
}
