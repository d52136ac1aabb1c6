// Package cache provides a generic in-memory TTL+LRU store used to avoid
// redundant calls to the remote drive API.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSweepInterval is how often the background sweep scans for expired
// entries that were never read again.
const DefaultSweepInterval = time.Minute

// Options configures a Cache.
type Options struct {
	DefaultTTL    time.Duration // TTL applied when Set is called with ttl <= 0
	MaxSize       int           // entry count ceiling; <= 0 means unbounded
	Enabled       bool          // false turns every operation into a no-op / miss
	SweepInterval time.Duration // 0 uses DefaultSweepInterval
}

type entry[T any] struct {
	key       string
	data      T
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a thread-safe TTL+LRU key/value store. The zero value is not
// usable; construct with New. A disabled cache never stores anything, so
// callers must tolerate always-miss as a valid runtime mode.
type Cache[T any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element // value is *entry[T]
	order   *list.List               // front = most recently used
	opts    Options
	group   singleflight.Group
	stop    chan struct{}
	stopped sync.Once
}

// New creates a Cache and starts its background expiry sweep.
// Call Stop when the cache is no longer needed.
func New[T any](opts Options) *Cache[T] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	c := &Cache[T]{
		items: make(map[string]*list.Element),
		order: list.New(),
		opts:  opts,
		stop:  make(chan struct{}),
	}
	if opts.Enabled {
		go c.sweepLoop()
	}
	return c
}

// Stop halts the background sweep. Safe to call more than once.
func (c *Cache[T]) Stop() {
	c.stopped.Do(func() { close(c.stop) })
}

// Get returns the cached value for key if present and unexpired, refreshing
// its LRU position. Expired entries are lazily deleted and reported absent.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if !c.opts.Enabled {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.data, true
}

// Has reports whether key is present and unexpired, without touching LRU
// order and without returning the value.
func (c *Cache[T]) Has(key string) bool {
	if !c.opts.Enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if time.Now().After(el.Value.(*entry[T]).expiresAt) {
		c.removeElement(el)
		return false
	}
	return true
}

// Set inserts or replaces the entry for key. A ttl <= 0 uses the default.
// When the store is full the least-recently-used entry is evicted first.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	if !c.opts.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	now := time.Now()
	e := &entry[T]{key: key, data: value, createdAt: now, expiresAt: now.Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	if c.opts.MaxSize > 0 && len(c.items) >= c.opts.MaxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	c.items[key] = c.order.PushFront(e)
}

// Delete removes key, reporting whether it was present.
func (c *Cache[T]) Delete(key string) bool {
	if !c.opts.Enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of stored entries, including any not yet swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetOrSet returns the cached value for key, or calls fetch and caches its
// result. A failed fetch propagates the error and caches nothing. Concurrent
// calls for the same key share one fetch.
func (c *Cache[T]) GetOrSet(ctx context.Context, key string, fetch func(context.Context) (T, error), ttl time.Duration) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have populated the key while we
		// waited on the flight group.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Preload warms the cache in the background. Fetch errors are logged and
// swallowed; a warm-up failure must never surface to startup code.
func (c *Cache[T]) Preload(ctx context.Context, key string, fetch func(context.Context) (T, error), ttl time.Duration) {
	if !c.opts.Enabled {
		return
	}
	go func() {
		if _, err := c.GetOrSet(ctx, key, fetch, ttl); err != nil {
			slog.Warn("cache preload failed", "key", key, "err", err)
		}
	}()
}

// InvalidateByPattern deletes every key matching the regular expression and
// returns how many entries were removed.
func (c *Cache[T]) InvalidateByPattern(pattern string) (int, error) {
	if !c.opts.Enabled {
		return 0, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []*list.Element
	for key, el := range c.items {
		if re.MatchString(key) {
			victims = append(victims, el)
		}
	}
	for _, el := range victims {
		c.removeElement(el)
	}
	return len(victims), nil
}

// sweepLoop periodically deletes expired entries regardless of access
// pattern, so never-read keys cannot accumulate.
func (c *Cache[T]) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache[T]) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []*list.Element
	for _, el := range c.items {
		if now.After(el.Value.(*entry[T]).expiresAt) {
			victims = append(victims, el)
		}
	}
	for _, el := range victims {
		c.removeElement(el)
	}
	if len(victims) > 0 {
		slog.Debug("cache sweep", "removed", len(victims), "remaining", len(c.items))
	}
}

// removeElement must be called with c.mu held.
func (c *Cache[T]) removeElement(el *list.Element) {
	e := el.Value.(*entry[T])
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Key joins parts into a hierarchical colon-delimited cache key, e.g.
// Key("drive", driveID, "item", itemID) -> "drive:d1:item:i2". The
// convention lets InvalidateByPattern target whole subtrees.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// SubtreePattern returns a regular expression matching every key under the
// given prefix parts, including the prefix itself.
func SubtreePattern(parts ...string) string {
	return "^" + regexp.QuoteMeta(Key(parts...)) + "(:|$)"
}
