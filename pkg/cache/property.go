package cache

import "sync"

// Kind names one analysis result.
type Kind string

// RevisionSource reports the current revision of the structure analyses
// describe.
type RevisionSource interface {
	Revision() uint64
}

type propertyEntry struct {
	value    any
	revision uint64
}

// PropertySet holds analysis results tagged with the revision they were
// computed at. A lookup whose stored revision differs from the source's
// current revision is a miss; stale values are never returned.
type PropertySet struct {
	mu      sync.Mutex
	src     RevisionSource
	entries map[Kind]propertyEntry

	hits        int64
	misses      int64
	staleMisses int64
}

// NewPropertySet binds a property set to src.
func NewPropertySet(src RevisionSource) *PropertySet {
	return &PropertySet{src: src, entries: make(map[Kind]propertyEntry)}
}

// Get returns the value of kind if it is current.
func (p *PropertySet) Get(kind Kind) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[kind]
	if !ok {
		p.misses++
		return nil, false
	}
	if e.revision != p.src.Revision() {
		delete(p.entries, kind)
		p.misses++
		p.staleMisses++
		return nil, false
	}
	p.hits++
	return e.value, true
}

// Put stores value under kind at the current revision.
func (p *PropertySet) Put(kind Kind, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[kind] = propertyEntry{value: value, revision: p.src.Revision()}
}

// Has reports whether kind is current without touching statistics.
func (p *PropertySet) Has(kind Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[kind]
	return ok && e.revision == p.src.Revision()
}

// Invalidate drops the given kinds.
func (p *PropertySet) Invalidate(kinds ...Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range kinds {
		delete(p.entries, k)
	}
}

// Clear drops every entry.
func (p *PropertySet) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[Kind]propertyEntry)
}

// PropertyStats counts property set lookups.
type PropertyStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	StaleMisses int64 `json:"stale_misses"`
}

// Stats returns the lookup counters.
func (p *PropertySet) Stats() PropertyStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PropertyStats{Hits: p.hits, Misses: p.misses, StaleMisses: p.staleMisses}
}

// Lookup is a typed Get. A value of the wrong type is a miss.
func Lookup[T any](p *PropertySet, kind Kind) (T, bool) {
	v, ok := p.Get(kind)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
