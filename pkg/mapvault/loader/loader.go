// Package loader schedules asynchronous reads from the content store for
// consumers that render a scrolling list of maps.
//
// A Loader keeps one priority queue, a cache and a failure set for a single
// kind of handle. Visible ids are fetched before hidden ones, at most
// MaxConcurrency at a time, and an id that keeps failing is given up on after
// RetryBudget attempts. Reads for rendering (Get, State) never block on I/O.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
)

const (
	DefaultMaxConcurrency = 1
	DefaultRetryBudget    = 3
)

var (
	// ErrStoreRead wraps content-store failures other than a missing blob.
	ErrStoreRead = errors.New("store read failed")
	// ErrDecode means the stored bytes could not be turned into a handle.
	ErrDecode = errors.New("decode failed")
	// ErrRetryBudget marks an id moved to the failure set.
	ErrRetryBudget = errors.New("retry budget exhausted")
	// ErrShutdown is returned by WaitIdle after Shutdown.
	ErrShutdown = errors.New("loader shut down")
)

// State is the lifecycle position of one id in a Loader.
type State int

const (
	NotRequested State = iota
	Queued
	Loading
	Cached
	Failed
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case Queued:
		return "queued"
	case Loading:
		return "loading"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FetchFunc reads and materializes one id. A missing or empty payload must be
// reported as an error.
type FetchFunc[T any] func(ctx context.Context, id string) (T, error)

type Config[T any] struct {
	Name           string
	MaxConcurrency int
	RetryBudget    int
	// CacheSize > 0 bounds the cache with an LRU. Evicted ids go back to
	// NotRequested.
	CacheSize int
	// Release is called once for every value that leaves the cache.
	Release func(T)
	Log     logger.Interface
	Metrics *metrics.QueueMetrics
	Now     func() time.Time
}

type Loader[T any] struct {
	name    string
	fetch   FetchFunc[T]
	release func(T)
	max     int
	budget  int
	log     logger.Interface
	metrics *metrics.QueueMetrics
	now     func() time.Time

	mu       sync.Mutex
	queue    *queue
	cache    cacheStore[T]
	failed   map[string]error
	lastErr  map[string]error
	retries  map[string]int
	loading  map[string]struct{}
	inFlight int
	closed   bool
	dropping bool // set while entries are removed on purpose, not by the LRU
	changed  chan struct{}
	wg       sync.WaitGroup
}

func New[T any](fetch FetchFunc[T], cfg Config[T]) (*Loader[T], error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.Log == nil {
		cfg.Log = logger.GetLogger().Named("loader")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Release == nil {
		cfg.Release = func(T) {}
	}

	l := &Loader[T]{
		name:    cfg.Name,
		fetch:   fetch,
		release: cfg.Release,
		max:     cfg.MaxConcurrency,
		budget:  cfg.RetryBudget,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		queue:   newQueue(),
		failed:  make(map[string]error),
		lastErr: make(map[string]error),
		retries: make(map[string]int),
		loading: make(map[string]struct{}),
		changed: make(chan struct{}),
	}

	if cfg.CacheSize > 0 {
		c, err := newLRUCache[T](cfg.CacheSize, l.evicted)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Name, err)
		}
		l.cache = c
	} else {
		l.cache = newMapCache[T](l.evicted)
	}
	return l, nil
}

// evicted runs with l.mu held.
func (l *Loader[T]) evicted(id string, e entry[T]) {
	if !e.failed {
		l.release(e.value)
	}
	if l.dropping {
		return
	}
	delete(l.retries, id)
	l.metrics.IncEviction()
	l.log.Debugf("%s: evicted %s", l.name, id)
}

// Request asks for id to be loaded. It is a no-op for cached and failed ids.
// A queued id keeps the stronger visibility and gets a fresh timestamp.
func (l *Loader[T]) Request(id string, visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.settled(id) {
		return
	}
	if l.queue.upsert(id, visible, l.now()) {
		l.queue.sort()
	}
	l.advance()
}

// SetVisible marks exactly ids as visible. Queued ids outside the set become
// hidden. The queue is sorted once and the scheduler advanced once.
func (l *Loader[T]) SetVisible(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	now := l.now()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
		if !l.settled(id) {
			l.queue.upsert(id, true, now)
		}
	}
	l.queue.setVisibility(set)
	l.queue.sort()
	l.advance()
}

// settled reports whether id is cached or failed.
func (l *Loader[T]) settled(id string) bool {
	if _, ok := l.failed[id]; ok {
		return true
	}
	_, ok := l.cache.get(id)
	return ok
}

// advance starts fetches while there is capacity. Caller holds l.mu.
func (l *Loader[T]) advance() {
	defer l.report()

	for l.inFlight < l.max {
		it, ok := l.queue.pop()
		if !ok {
			return
		}
		id := it.id
		if _, busy := l.loading[id]; busy || l.settled(id) {
			continue
		}
		if l.retries[id] >= l.budget {
			l.fail(id, l.lastErr[id])
			continue
		}

		l.retries[id]++
		l.inFlight++
		l.loading[id] = struct{}{}
		l.wg.Add(1)
		go l.run(id)
	}
}

func (l *Loader[T]) run(id string) {
	defer l.wg.Done()
	v, err := l.safeFetch(id)
	l.complete(id, v, err)
}

func (l *Loader[T]) safeFetch(id string) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while loading %s: %v", ErrDecode, id, r)
		}
	}()
	// fetches are never cancelled
	return l.fetch(context.Background(), id)
}

func (l *Loader[T]) complete(id string, v T, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.notify()

	delete(l.loading, id)
	l.inFlight--

	if l.closed {
		if err == nil {
			l.release(v)
		}
		return
	}

	if err == nil {
		l.metrics.IncFetch(metrics.ResultOK)
		delete(l.lastErr, id)
		l.cache.add(id, entry[T]{value: v})
		l.advance()
		return
	}

	if isMissing(err) {
		l.metrics.IncFetch(metrics.ResultMissing)
	} else {
		l.metrics.IncFetch(metrics.ResultError)
	}
	l.lastErr[id] = err

	if l.retries[id] >= l.budget {
		l.fail(id, err)
	} else {
		l.log.Debugf("%s: attempt %d/%d for %s failed: %v", l.name, l.retries[id], l.budget, id, err)
		l.queue.upsert(id, false, l.now())
	}
	l.advance()
}

// fail moves id to the failure set and caches the failed sentinel.
func (l *Loader[T]) fail(id string, cause error) {
	if cause == nil {
		cause = ErrRetryBudget
	} else {
		cause = fmt.Errorf("%w: %w", ErrRetryBudget, cause)
	}
	l.failed[id] = cause
	l.cache.add(id, entry[T]{failed: true})
	l.metrics.IncFailure()
	l.log.Warnf("%s: giving up on %s after %d attempts: %v", l.name, id, l.retries[id], cause)
}

// Get returns the cached handle for id. Failed sentinels report false.
func (l *Loader[T]) Get(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.cache.get(id)
	if !ok || e.failed {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (l *Loader[T]) State(id string) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.failed[id]; ok {
		return Failed
	}
	if _, ok := l.loading[id]; ok {
		return Loading
	}
	if _, ok := l.cache.get(id); ok {
		return Cached
	}
	if l.queue.has(id) {
		return Queued
	}
	return NotRequested
}

func (l *Loader[T]) IsFailed(id string) bool {
	return l.State(id) == Failed
}

// Failure returns the last error seen for id, or nil. For ids in the failure
// set the error wraps ErrRetryBudget and the final cause.
func (l *Loader[T]) Failure(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.failed[id]; ok {
		return err
	}
	return l.lastErr[id]
}

// Attempts returns how many fetches were started for id since it last left
// the cache.
func (l *Loader[T]) Attempts(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retries[id]
}

// Len returns the number of queued ids.
func (l *Loader[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.len()
}

// Pending returns the queued ids in pop order.
func (l *Loader[T]) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.ids()
}

// CacheLen returns the number of cache entries, failed sentinels included.
func (l *Loader[T]) CacheLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.len()
}

// Invalidate forgets everything known about id so the next Request reloads
// it. Used after a map is re-ingested. An in-flight fetch still completes and
// caches its result.
func (l *Loader[T]) Invalidate(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dropping = true
	l.cache.remove(id)
	l.dropping = false
	delete(l.failed, id)
	delete(l.lastErr, id)
	delete(l.retries, id)
	l.report()
}

// WaitIdle blocks until nothing is queued or in flight.
func (l *Loader[T]) WaitIdle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return ErrShutdown
		}
		if l.inFlight == 0 && l.queue.len() == 0 {
			l.mu.Unlock()
			return nil
		}
		ch := l.changed
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown stops accepting requests, drops the queue, waits for in-flight
// fetches and releases every cached value.
func (l *Loader[T]) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.queue.clear()
	l.notify()
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("%s: waiting for in-flight fetches: %w", l.name, ctx.Err())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropping = true
	l.cache.purge()
	l.dropping = false
	l.report()
	return nil
}

// notify wakes WaitIdle callers. Caller holds l.mu.
func (l *Loader[T]) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Loader[T]) report() {
	l.metrics.SetDepth(l.queue.len())
	l.metrics.SetInFlight(l.inFlight)
	l.metrics.SetCached(l.cache.len())
}
