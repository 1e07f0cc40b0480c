// Package cache holds server state fetched from the backend, keyed by
// resource. Concurrent reads of one key share a single fetch, failed fetches
// are remembered until invalidated, and invalidation only marks entries
// stale: the next read refetches.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultIdleEntries is the number of unreferenced entries kept for reuse.
const DefaultIdleEntries = 64

// Status is the settled state of an entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Fetcher loads the value for a key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	key       Key
	value     any
	hasValue  bool
	err       error
	status    Status
	version   uint64
	stale     bool
	gen       uint64 // bumped by every invalidation
	fetching  bool
	refs      int
	updatedAt time.Time
}

// fresh returns the cached outcome if a read may use it.
func (e *entry) fresh() (any, bool, error) {
	if e.stale || e.fetching {
		return nil, false, nil
	}
	switch e.status {
	case StatusSuccess:
		return e.value, true, nil
	case StatusError:
		return nil, true, e.err
	}
	return nil, false, nil
}

func (e *entry) snapshot() Snapshot {
	s := Snapshot{
		Key:       e.key,
		Value:     e.value,
		HasValue:  e.hasValue,
		Err:       e.err,
		Status:    e.status,
		Version:   e.version,
		Stale:     e.stale,
		Refs:      e.refs,
		UpdatedAt: e.updatedAt,
	}
	if e.fetching {
		s.Status = StatusLoading
	}
	return s
}

// Snapshot is a point-in-time copy of an entry.
type Snapshot struct {
	Key       Key
	Value     any
	HasValue  bool
	Err       error
	Status    Status
	Version   uint64
	Stale     bool
	Refs      int
	UpdatedAt time.Time
}

type observer struct {
	id uint64
	fn func(Key)
}

// Cache is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	active    map[string]*entry
	idle      *lru.Cache[string, *entry]
	idleSize  int
	group     singleflight.Group
	observers []observer
	nextObs   uint64

	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithIdleEntries bounds how many unreferenced entries are kept.
func WithIdleEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.idleSize = n
		}
	}
}

// WithFetchTimeout bounds a shared fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		active:   make(map[string]*entry),
		idleSize: DefaultIdleEntries,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")

	idle, err := lru.New[string, *entry](c.idleSize)
	if err != nil {
		// Only fails for a non-positive size, which the option rejects.
		panic(err)
	}
	c.idle = idle
	return c
}

// lookup finds the entry for id. Callers must hold c.mu.
func (c *Cache) lookup(id string, key Key, create bool) *entry {
	if e, ok := c.active[id]; ok {
		return e
	}
	if e, ok := c.idle.Get(id); ok {
		return e
	}
	if !create {
		return nil
	}
	e := &entry{key: NewKey(key...)}
	c.idle.Add(id, e)
	return e
}

// GetOrFetch returns the cached value for key, or runs fetch when there is
// no usable value. Callers asking for the same key while a fetch is in
// flight share its result. The fetch is detached from ctx so that one
// caller going away does not fail the others; ctx only bounds this
// caller's wait.
func (c *Cache) GetOrFetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	id := key.id()

	c.mu.Lock()
	if v, ok, err := c.lookup(id, key, true).fresh(); ok {
		c.mu.Unlock()
		return v, err
	}
	c.mu.Unlock()

	ch := c.group.DoChan(id, func() (any, error) {
		return c.fetch(ctx, id, key, fetch)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fetch(callerCtx context.Context, id string, key Key, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e := c.lookup(id, key, true)
	// Another fetch may have landed between the caller's check and now.
	if v, ok, err := e.fresh(); ok {
		c.mu.Unlock()
		return v, err
	}
	e.fetching = true
	startGen := e.gen
	c.mu.Unlock()

	ctx := context.WithoutCancel(callerCtx)
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	start := c.now()
	v, err := fetch(ctx)

	c.mu.Lock()
	e.fetching = false
	cur := c.lookup(id, key, true)
	cur.fetching = false
	if err != nil {
		cur.err = err
		cur.status = StatusError
	} else {
		cur.value = v
		cur.hasValue = true
		cur.err = nil
		cur.status = StatusSuccess
	}
	cur.version++
	cur.updatedAt = c.now()
	// Invalidated while in flight: the result may predate the change.
	cur.stale = cur == e && e.gen != startGen

	// Readers that reacted to that invalidation joined this flight and got
	// the old value. Tell them again once the next read starts a new flight.
	var observers []observer
	if cur.stale && cur.refs > 0 {
		observers = append(observers, c.observers...)
	}
	c.mu.Unlock()

	c.logger.Debug("fetch settled",
		"key", key.String(),
		"status", cur.status.String(),
		"version", cur.version,
		"stale", cur.stale,
		"duration", c.now().Sub(start),
	)

	if len(observers) > 0 {
		c.group.Forget(id)
		for _, o := range observers {
			o.fn(cur.key)
		}
	}
	return v, err
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many were marked. Nothing is refetched here; observers are
// told about marked keys that a view currently retains.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()

	var retained []Key
	n := 0
	mark := func(e *entry) {
		if !e.key.HasPrefix(prefix) {
			return
		}
		e.stale = true
		e.gen++
		n++
		if e.refs > 0 {
			retained = append(retained, e.key)
		}
	}
	for _, e := range c.active {
		mark(e)
	}
	for _, id := range c.idle.Keys() {
		if e, ok := c.idle.Peek(id); ok {
			mark(e)
		}
	}
	observers := make([]observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	c.logger.Debug("invalidated", "prefix", prefix.String(), "entries", n, "retained", len(retained))

	for _, k := range retained {
		for _, o := range observers {
			o.fn(k)
		}
	}
	return n
}

// Observe registers fn to be called with each retained key that gets
// invalidated. Calls happen on the invalidating goroutine.
func (c *Cache) Observe(fn func(Key)) (cancel func()) {
	c.mu.Lock()
	c.nextObs++
	id := c.nextObs
	c.observers = append(c.observers, observer{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, o := range c.observers {
			if o.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Retain records that a view is using key. Retained entries are never
// evicted. The returned release is idempotent; once the last holder
// releases, the entry moves to the bounded idle pool.
func (c *Cache) Retain(key Key) (release func()) {
	id := key.id()

	c.mu.Lock()
	e, ok := c.active[id]
	if !ok {
		if idle, found := c.idle.Peek(id); found {
			c.idle.Remove(id)
			e = idle
		} else {
			e = &entry{key: NewKey(key...)}
		}
		c.active[id] = e
	}
	e.refs++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.release(id) })
	}
}

func (c *Cache) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.active[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	e.refs = 0
	delete(c.active, id)
	c.idle.Add(id, e)
}

// IsLoading reports whether a fetch for key is in flight.
func (c *Cache) IsLoading(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(key.id(), key, false)
	return e != nil && e.fetching
}

// Peek returns the entry for key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(key.id(), key, false)
	if e == nil {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Entries returns a snapshot of every entry, ordered by key.
func (c *Cache) Entries() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Snapshot, 0, len(c.active)+c.idle.Len())
	for _, e := range c.active {
		out = append(out, e.snapshot())
	}
	for _, id := range c.idle.Keys() {
		if e, ok := c.idle.Peek(id); ok {
			out = append(out, e.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.id() < out[j].Key.id()
	})
	return out
}

// Clear drops every entry. Fetches still in flight land in fresh entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = make(map[string]*entry)
	c.idle.Purge()
}

// Fetch is GetOrFetch with a typed result.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T, want %T", key, v, zero)
	}
	return typed, nil
}

// Mutate runs a write. On success every key in invalidates is invalidated
// (prefix match); on failure nothing is touched and the cache keeps its
// last known good values.
func Mutate[T any](ctx context.Context, c *Cache, run func(ctx context.Context) (T, error), invalidates ...Key) (T, error) {
	out, err := run(ctx)
	if err != nil {
		return out, err
	}
	for _, k := range invalidates {
		c.Invalidate(k)
	}
	return out, nil
}
