package waveform

import (
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"k8s.io/utils/clock"
)

// Default cache bounds.
const (
	DefaultMaxBytes = 50 << 20
	DefaultMaxItems = 100

	// cleanupTarget is the fraction of each bound a cleanup pass evicts
	// down to.
	cleanupTarget = 0.8
)

// Entry is a cached buffer.
type Entry struct {
	Key          string
	Image        *image.RGBA
	CreatedAt    time.Time
	LastAccessed time.Time
	SizeBytes    int64
	Config       RenderConfig // samples and beat times dropped
}

// Stats counts cache activity.
type Stats struct {
	Hits      int
	Misses    int
	Renders   int
	Evictions int
	Oversized int
}

// Cache is a content-keyed waveform cache bounded by total bytes and item
// count. Inserts never fail; bounds are restored by a deferred cleanup that
// evicts least recently used entries down to 80% of each bound.
//
// Safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, *Entry]
	total     int64
	scheduled bool
	stats     Stats

	maxBytes           int64
	maxItems           int
	fingerprintSamples int
	render             RenderFunc
	deferFn            func(func())
	clock              clock.PassiveClock
	logger             *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxBytes bounds the summed buffer size.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// WithMaxItems bounds the entry count.
func WithMaxItems(n int) Option {
	return func(c *Cache) {
		c.maxItems = n
	}
}

// WithFingerprintSamples sets the hashed sample prefix length.
func WithFingerprintSamples(n int) Option {
	return func(c *Cache) {
		c.fingerprintSamples = n
	}
}

// WithRenderer replaces Render.
func WithRenderer(fn RenderFunc) Option {
	return func(c *Cache) {
		c.render = fn
	}
}

// WithDeferrer sets how cleanup is scheduled after an insert. The default
// runs it on a new goroutine; sessions pass their own queue.
func WithDeferrer(fn func(func())) Option {
	return func(c *Cache) {
		c.deferFn = fn
	}
}

// WithClock sets the clock stamping access times.
func WithClock(cl clock.PassiveClock) Option {
	return func(c *Cache) {
		c.clock = cl
	}
}

// WithLogger sets the logger for budget warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		maxBytes:           DefaultMaxBytes,
		maxItems:           DefaultMaxItems,
		fingerprintSamples: DefaultFingerprintSamples,
		render:             Render,
		deferFn:            func(f func()) { go f() },
		clock:              clock.RealClock{},
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Capacity is enforced by Cleanup, never by the list itself.
	lru, err := simplelru.NewLRU[string, *Entry](math.MaxInt32, func(_ string, e *Entry) {
		c.total -= e.SizeBytes
	})
	if err != nil {
		panic(err)
	}
	c.lru = lru
	return c
}

// Get returns the buffer for cfg, rendering it on a miss. Identical configs
// return the same buffer until it is evicted. Callers must not modify the
// returned image.
func (c *Cache) Get(cfg RenderConfig) (*image.RGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := Key(cfg, c.fingerprintSamples)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.lru.Get(key); ok {
		e.LastAccessed = c.clock.Now()
		c.stats.Hits++
		c.mu.Unlock()
		return e.Image, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	img, err := c.render(cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Renders++

	if e, ok := c.lru.Get(key); ok {
		// Rendered concurrently; keep the first buffer.
		e.LastAccessed = c.clock.Now()
		c.mu.Unlock()
		return e.Image, nil
	}

	size := cfg.SizeBytes()
	if size > c.maxBytes {
		c.stats.Oversized++
		c.mu.Unlock()
		c.logger.Warn("waveform larger than cache budget, not retained",
			"size", humanize.IBytes(uint64(size)),
			"budget", humanize.IBytes(uint64(max(c.maxBytes, 0))),
		)
		return img, nil
	}

	now := c.clock.Now()
	meta := cfg
	meta.Samples = nil
	meta.BeatTimes = nil
	c.lru.Add(key, &Entry{
		Key:          key,
		Image:        img,
		CreatedAt:    now,
		LastAccessed: now,
		SizeBytes:    size,
		Config:       meta,
	})
	c.total += size
	schedule := !c.scheduled
	c.scheduled = true
	c.mu.Unlock()

	if schedule {
		c.deferFn(func() { c.Cleanup() })
	}
	return img, nil
}

// Cleanup evicts least recently used entries when either bound is
// exceeded, until both are at or below 80%. It returns the eviction count.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduled = false

	if c.total <= c.maxBytes && c.lru.Len() <= c.maxItems {
		return 0
	}
	targetBytes := int64(float64(c.maxBytes) * cleanupTarget)
	targetItems := int(float64(c.maxItems) * cleanupTarget)

	evicted := 0
	for c.lru.Len() > 0 && (c.total > targetBytes || c.lru.Len() > targetItems) {
		c.lru.RemoveOldest()
		evicted++
	}
	c.stats.Evictions += evicted
	c.logger.Debug("waveform cache cleanup",
		"evicted", evicted,
		"items", c.lru.Len(),
		"size", humanize.IBytes(uint64(c.total)),
	)
	return evicted
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Contains reports whether cfg is cached, without touching recency.
func (c *Cache) Contains(cfg RenderConfig) bool {
	key, err := Key(cfg, c.fingerprintSamples)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Entries returns the cached entries from least to most recently used.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	vals := c.lru.Values()
	out := make([]Entry, len(vals))
	for i, e := range vals {
		out[i] = *e
	}
	return out
}

// Len returns the entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Size returns the summed buffer size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Stats returns activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
