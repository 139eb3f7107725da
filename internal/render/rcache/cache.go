// Package rcache provides the fingerprint-keyed render cache.
//
// Entries are keyed by content fingerprint so identical source at
// different buffer positions, or across edits, reuses one render. The
// cache is sharded so lookups never serialize unrelated fingerprints,
// and bounded by an LRU policy enforced on every store.
package rcache

import (
	"hash/fnv"
	"image"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/termart/internal/applog"
)

// State represents the lifecycle of a render entry.
type State uint8

const (
	// StatePending means the render is queued but not yet started.
	StatePending State = iota

	// StateRendering means the external renderer is running.
	StateRendering

	// StateReady means a bitmap is available.
	StateReady

	// StateFailed means the renderer returned an error, retained until
	// the source text (and therefore the fingerprint) changes.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight returns true for states with a render still outstanding.
func (s State) InFlight() bool {
	return s == StatePending || s == StateRendering
}

// Entry is a snapshot of one cache entry.
type Entry struct {
	Fingerprint string
	State       State
	Bitmap      image.Image
	Err         error
}

// Stats reports cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

const shardCount = 16

type entry struct {
	state  State
	bitmap image.Image
	err    error
	path   string
	access int64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Cache is the render cache.
type Cache struct {
	shards   [shardCount]shard
	capacity int
	clock    atomic.Int64
	watcher  *Watcher
	log      *applog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Option configures the cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(log *applog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a cache bounded to capacity entries.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 128
	}
	c := &Cache{
		capacity: capacity,
		log:      applog.Nop(),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]*entry)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnableFileWatch starts a filesystem watcher that invalidates
// file-backed entries when the underlying file changes.
func (c *Cache) EnableFileWatch() error {
	w, err := NewWatcher(c.Invalidate, c.log.WithComponent("rcache-watcher"))
	if err != nil {
		return err
	}
	c.watcher = w
	return nil
}

// Close stops the file watcher, if any.
func (c *Cache) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *Cache) shardFor(fp string) *shard {
	h := fnv.New32a()
	h.Write([]byte(fp))
	return &c.shards[h.Sum32()%shardCount]
}

// Lookup returns a snapshot of the entry for the fingerprint.
func (c *Cache) Lookup(fp string) (Entry, bool) {
	s := c.shardFor(fp)
	s.mu.RLock()
	e, ok := s.entries[fp]
	if ok {
		atomic.StoreInt64(&e.access, c.clock.Add(1))
	}
	var snap Entry
	if ok {
		snap = Entry{Fingerprint: fp, State: e.state, Bitmap: e.bitmap, Err: e.err}
	}
	s.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return snap, ok
}

// Begin claims a fingerprint for rendering. It returns true if the
// caller must dispatch the render; false if an entry already exists in
// any state, which guarantees at most one in-flight render per
// fingerprint.
func (c *Cache) Begin(fp string) bool {
	s := c.shardFor(fp)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[fp]; ok {
		return false
	}
	s.entries[fp] = &entry{state: StatePending, access: c.clock.Add(1)}
	return true
}

// MarkRendering transitions a pending entry to rendering.
func (c *Cache) MarkRendering(fp string) {
	s := c.shardFor(fp)
	s.mu.Lock()
	if e, ok := s.entries[fp]; ok && e.state == StatePending {
		e.state = StateRendering
	}
	s.mu.Unlock()
}

// StoreBitmap records a successful render and enforces the LRU bound.
func (c *Cache) StoreBitmap(fp string, bitmap image.Image) {
	c.store(fp, StateReady, bitmap, nil)
}

// StoreError records a failed render. The error is retained so the
// same fingerprint is not retried until its source changes.
func (c *Cache) StoreError(fp string, err error) {
	c.store(fp, StateFailed, nil, err)
}

func (c *Cache) store(fp string, state State, bitmap image.Image, err error) {
	s := c.shardFor(fp)
	s.mu.Lock()
	e, ok := s.entries[fp]
	if !ok {
		e = &entry{}
		s.entries[fp] = e
	}
	e.state = state
	e.bitmap = bitmap
	e.err = err
	atomic.StoreInt64(&e.access, c.clock.Add(1))
	s.mu.Unlock()

	c.EvictLRU(c.capacity)
}

// WatchFile associates a file-backed fingerprint with its path so a
// change on disk invalidates the entry.
func (c *Cache) WatchFile(fp, path string) error {
	if c.watcher == nil {
		return nil
	}
	s := c.shardFor(fp)
	s.mu.Lock()
	if e, ok := s.entries[fp]; ok {
		e.path = path
	}
	s.mu.Unlock()
	return c.watcher.Add(path, fp)
}

// Invalidate removes the entry for the fingerprint.
func (c *Cache) Invalidate(fp string) {
	s := c.shardFor(fp)
	s.mu.Lock()
	e, ok := s.entries[fp]
	var path string
	if ok {
		path = e.path
		delete(s.entries, fp)
	}
	s.mu.Unlock()

	if ok && path != "" && c.watcher != nil {
		c.watcher.Remove(path, fp)
	}
	if ok {
		c.log.Debug("invalidated %s", fp)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]*entry)
		s.mu.Unlock()
	}
	if c.watcher != nil {
		c.watcher.Reset()
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}

// EvictLRU removes least recently used entries until at most capacity
// remain. In-flight entries are never evicted, preserving the
// at-most-one-render invariant.
func (c *Cache) EvictLRU(capacity int) {
	type aged struct {
		fp     string
		access int64
	}

	var candidates []aged
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		for fp, e := range s.entries {
			if !e.state.InFlight() {
				candidates = append(candidates, aged{fp, atomic.LoadInt64(&e.access)})
			}
		}
		s.mu.RUnlock()
	}

	excess := total - capacity
	if excess <= 0 {
		return
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].access < candidates[j].access })
	if excess > len(candidates) {
		excess = len(candidates)
	}
	for _, v := range candidates[:excess] {
		c.Invalidate(v.fp)
		c.evictions.Add(1)
	}
}
