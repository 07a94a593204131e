// Package cache provides the analysis caches of a pipeline run: a bounded
// LRU memo for expensive pure computations and a revision-tagged property
// set for analysis results tied to one graph.
package cache

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key string)
}

// LRU is a thread-safe, size-bounded memo keyed by string.
type LRU[V any] struct {
	mu      sync.Mutex
	items   map[string]*listItem[V]
	lru     list[V]
	maxSize int
	onEvict func(key string)

	hits      int64
	misses    int64
	evictions int64
}

// listItem is an item in the doubly-linked list.
type listItem[V any] struct {
	key   string
	value V
	prev  *listItem[V]
	next  *listItem[V]
}

// list is a doubly-linked list, most recently used at the head.
type list[V any] struct {
	head *listItem[V]
	tail *listItem[V]
	len  int
}

func (l *list[V]) unlink(item *listItem[V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list[V]) pushFront(item *listItem[V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list[V]) moveToFront(item *listItem[V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// NewLRU creates an LRU memo with the given options.
func NewLRU[V any](opts Options) *LRU[V] {
	return &LRU[V]{
		items:   make(map[string]*listItem[V]),
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.lru.moveToFront(item)
	return item.value, true
}

// Set stores a value, evicting the least recently used entry if full.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.value = value
		c.lru.moveToFront(item)
		return
	}

	item := &listItem[V]{key: key, value: value}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// Delete removes a key.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem[V])
	c.lru = list[V]{}
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictIfNeeded drops entries from the tail until the size bound holds.
func (c *LRU[V]) evictIfNeeded() {
	for c.maxSize > 0 && c.lru.len > c.maxSize {
		item := c.lru.tail
		c.lru.unlink(item)
		delete(c.items, item.key)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict(item.key)
		}
	}
}

// Stats returns memo statistics.
type Stats struct {
	Length    int   `json:"length"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns the current statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

type entry[V any] struct {
	Key   string `msgpack:"k"`
	Value V      `msgpack:"v"`
}

// Save writes the entries with msgpack, most recently used first.
func (c *LRU[V]) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]entry[V], 0, len(c.items))
	for item := c.lru.head; item != nil; item = item.next {
		entries = append(entries, entry[V]{Key: item.key, Value: item.value})
	}
	return msgpack.NewEncoder(w).Encode(entries)
}

// Load replaces the contents with entries written by Save, keeping their
// recency order and the size bound.
func (c *LRU[V]) Load(r io.Reader) error {
	var entries []entry[V]
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem[V], len(entries))
	c.lru = list[V]{}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if old, ok := c.items[e.Key]; ok {
			c.lru.unlink(old)
		}
		item := &listItem[V]{key: e.Key, value: e.Value}
		c.items[e.Key] = item
		c.lru.pushFront(item)
	}
	c.evictIfNeeded()
	return nil
}

// PersistToFile saves the memo to a file.
func PersistToFile[V any](c *LRU[V], path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFromFile loads the memo from a file. A missing file is not an error.
func LoadFromFile[V any](c *LRU[V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}
