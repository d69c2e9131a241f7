package typeregistry

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Library is the set of ExtentTypes belonging to a single file. A file
// writes its library exactly once, near the head; uniqueness is by
// (namespace, name, version).
type Library struct {
	mu    sync.RWMutex
	types map[string]*ExtentType
	order []string // insertion order, for deterministic serialization
}

// NewLibrary returns an empty Library.
func NewLibrary() *Library {
	return &Library{types: make(map[string]*ExtentType)}
}

// Register adds t to the library. It returns ErrDuplicateType if a type
// with the same key is already present.
func (l *Library) Register(t *ExtentType) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := t.Key()
	if _, exists := l.types[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, key)
	}
	l.types[key] = t
	l.order = append(l.order, key)
	return nil
}

// Lookup returns the type registered under (namespace, name, major,
// minor), or false if absent.
func (l *Library) Lookup(namespace, name string, major, minor int) (*ExtentType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.types[key(namespace, name, major, minor)]
	return t, ok
}

// LookupByName returns the first registered type with the given name,
// regardless of namespace or version. Used by the codec when an extent
// header names only a type name (the common case for single-version
// files).
func (l *Library) LookupByName(name string) (*ExtentType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, key := range l.order {
		if t := l.types[key]; t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Types returns every registered type in registration order.
func (l *Library) Types() []*ExtentType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*ExtentType, len(l.order))
	for i, key := range l.order {
		out[i] = l.types[key]
	}
	return out
}

// InternCache bounds the process-wide table mapping (namespace, name,
// version) to *ExtentType. A long-lived server process opens many files
// that declare the same handful of types repeatedly; without a cap the
// naive approach (allocate a fresh ExtentType per file open) grows
// unboundedly. The cache does not replace a file's own Library — each
// file still carries and owns its Library — it only lets callers that
// parse the same descriptor bytes across many files reuse one
// *ExtentType instead of re-parsing and re-allocating it.
type InternCache struct {
	cache *lru.Cache
}

// NewInternCache returns an InternCache holding at most size entries.
func NewInternCache(size int) (*InternCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("typeregistry: new intern cache: %w", err)
	}
	return &InternCache{cache: c}, nil
}

// Intern returns the cached *ExtentType for t's key if one is already
// present, otherwise stores and returns t itself.
func (c *InternCache) Intern(t *ExtentType) *ExtentType {
	key := t.Key()
	if v, ok := c.cache.Get(key); ok {
		return v.(*ExtentType)
	}
	c.cache.Add(key, t)
	return t
}

// Len returns the number of entries currently cached.
func (c *InternCache) Len() int {
	return c.cache.Len()
}
