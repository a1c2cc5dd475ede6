package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 30 * time.Minute
)

// Loader produces the value for a key, usually by calling the backend.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	key        Key
	data       any
	fetchedAt  time.Time
	lastAccess time.Time
}

// keyState tracks the generation and pending readers of a key. A generation
// is bumped by Invalidate and SetQueryData; loads started under an older
// generation never write their result back.
type keyState struct {
	key      Key
	gen      uint64
	inflight int
}

// Options configures a Store.
type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Now       func() time.Time
}

// Store is the shared query cache: keyed results with stale-while-revalidate
// reads, one in-flight load per key and prefix invalidation.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	states  map[string]*keyState
	seq     uint64

	group singleflight.Group
	bg    sync.WaitGroup

	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time
}

// NewStore creates an empty cache. Zero durations fall back to the defaults.
func NewStore(opts Options) *Store {
	s := &Store{
		entries:   make(map[string]*entry),
		states:    make(map[string]*keyState),
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		now:       opts.Now,
	}
	if s.staleTime < 0 {
		s.staleTime = 0
	}
	if s.gcTime <= 0 {
		s.gcTime = DefaultGCTime
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type fetchOptions struct {
	staleTime time.Duration
}

// FetchOption tunes a single Fetch.
type FetchOption func(*fetchOptions)

// WithStaleTime overrides the store's stale time for one read.
func WithStaleTime(d time.Duration) FetchOption {
	return func(o *fetchOptions) { o.staleTime = d }
}

// Fetch returns the cached value for key. Fresh values are returned without
// calling load. Stale values are returned immediately and refreshed in the
// background. Missing values are loaded, sharing one call among concurrent readers.
func (s *Store) Fetch(ctx context.Context, key Key, load Loader, opts ...FetchOption) (any, error) {
	o := fetchOptions{staleTime: s.staleTime}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.WithComponent("cache")
	id := key.id()

	s.mu.Lock()
	now := s.now()
	if e, ok := s.entries[id]; ok {
		e.lastAccess = now
		data := e.data
		if now.Sub(e.fetchedAt) < o.staleTime {
			s.mu.Unlock()
			metrics.RecordCacheLookup("hit")
			log.Tracef("hit %s", key)
			return data, nil
		}
		st := s.acquireLocked(key, id)
		gen := st.gen
		s.mu.Unlock()

		metrics.RecordCacheLookup("stale")
		log.Debugf("stale %s, revalidating", key)
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			defer s.release(id)
			if _, err := s.load(context.Background(), key, id, gen, load); err != nil {
				log.Warnf("background refetch of %s failed: %v", key, err)
			}
		}()
		return data, nil
	}
	st := s.acquireLocked(key, id)
	gen := st.gen
	s.mu.Unlock()
	defer s.release(id)

	metrics.RecordCacheLookup("miss")
	log.Debugf("miss %s", key)
	return s.load(ctx, key, id, gen, load)
}

// load runs fn at most once per (key, generation). The shared call is detached
// from the caller's cancellation; a canceled caller stops waiting but the
// other readers still get the result.
func (s *Store) load(ctx context.Context, key Key, id string, gen uint64, fn Loader) (any, error) {
	flight := id + "#" + strconv.FormatUint(gen, 10)
	ch := s.group.DoChan(flight, func() (any, error) {
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.store(key, id, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Store) store(key Key, id string, gen uint64, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok || st.gen != gen {
		logger.WithComponent("cache").Debugf("discarding result for %s loaded before invalidation", key)
		return
	}
	now := s.now()
	s.entries[id] = &entry{key: st.key, data: v, fetchedAt: now, lastAccess: now}
	metrics.SetCacheEntries(len(s.entries))
}

func (s *Store) acquireLocked(key Key, id string) *keyState {
	st, ok := s.states[id]
	if !ok {
		s.seq++
		st = &keyState{key: NewKey(key...), gen: s.seq}
		s.states[id] = st
	}
	st.inflight++
	return st
}

func (s *Store) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[id]; ok && st.inflight > 0 {
		st.inflight--
	}
}

// GetQueryData returns the cached value for key without loading or touching freshness.
func (s *Store) GetQueryData(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.id()]
	if !ok {
		return nil, false
	}
	e.lastAccess = s.now()
	return e.data, true
}

// SetQueryData overwrites the value for key with a fresh entry. Loads already
// in flight for key will not overwrite it.
func (s *Store) SetQueryData(key Key, data any) {
	id := key.id()

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		st = &keyState{key: NewKey(key...)}
		s.states[id] = st
	}
	s.seq++
	st.gen = s.seq

	now := s.now()
	s.entries[id] = &entry{key: st.key, data: data, fetchedAt: now, lastAccess: now}
	metrics.SetCacheEntries(len(s.entries))
}

// Invalidate removes every entry whose key starts with prefix and returns how
// many were removed. Loads in flight under the prefix keep running for their
// current readers but their results are dropped, and later reads start new loads.
func (s *Store) Invalidate(prefix Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.states {
		if !st.key.HasPrefix(prefix) {
			continue
		}
		s.seq++
		st.gen = s.seq
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			removed++
		}
	}
	for id, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, id)
			removed++
		}
	}

	metrics.RecordCacheInvalidation(removed)
	metrics.SetCacheEntries(len(s.entries))
	logger.WithComponent("cache").Debugf("invalidated %d entries under %s", removed, prefix)
	return removed
}

// Collect evicts entries nobody has read for longer than the GC time and
// forgets idle key states. It returns the number of evicted entries.
func (s *Store) Collect() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for id, e := range s.entries {
		st := s.states[id]
		if st != nil && st.inflight > 0 {
			continue
		}
		if now.Sub(e.lastAccess) > s.gcTime {
			delete(s.entries, id)
			evicted++
		}
	}
	for id, st := range s.states {
		if _, ok := s.entries[id]; !ok && st.inflight == 0 {
			delete(s.states, id)
		}
	}

	if evicted > 0 {
		metrics.RecordCacheEviction(evicted)
		logger.WithComponent("cache").Debugf("collected %d idle entries", evicted)
	}
	metrics.SetCacheEntries(len(s.entries))
	return evicted
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Wait blocks until background refetches have finished.
func (s *Store) Wait() {
	s.bg.Wait()
}

// Fetch is the typed form of Store.Fetch.
func Fetch[T any](ctx context.Context, r Reader, key Key, load func(ctx context.Context) (T, error), opts ...FetchOption) (T, error) {
	var zero T
	v, err := r.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T, want %T", key, v, zero)
	}
	return out, nil
}

// Peek is the typed form of Store.GetQueryData.
func Peek[T any](r Reader, key Key) (T, bool) {
	var zero T
	v, ok := r.GetQueryData(key)
	if !ok {
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}
