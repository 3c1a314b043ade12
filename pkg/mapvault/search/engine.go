// Package search scans stored map records against a small query language:
// FIELD<op>VALUE filters (op is =, > or <) plus free text matched against
// titles and mappers.
package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/models"
)

const DefaultBatchSize = 20

// RecordCache is a read-only view of already loaded records, normally the
// scheduler's record loader.
type RecordCache interface {
	Get(id string) (*models.MapRecord, bool)
}

// ProgressFunc receives the cumulative matches and a 0-100 percentage after
// every batch.
type ProgressFunc func(matches []string, percent float64)

type Engine struct {
	store     storage.ContentStore
	records   RecordCache
	batchSize int
	log       logger.Interface
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	cache map[string]*models.MapRecord
}

type Option func(*Engine)

func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

func WithLogger(l logger.Interface) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine reading from store. records may be nil.
func NewEngine(store storage.ContentStore, records RecordCache, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		records:   records,
		batchSize: DefaultBatchSize,
		cache:     make(map[string]*models.MapRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.GetLogger().Named("search")
	}
	return e
}

// Search returns the ids matching raw, in input order. Records that cannot be
// read are logged and left out. Between batches the goroutine yields and ctx
// is checked, so a newer query can cancel a running one.
func (e *Engine) Search(ctx context.Context, ids []string, raw string, onProgress ProgressFunc) ([]string, error) {
	q := ParseQuery(raw)
	if q.Empty() {
		all := append([]string{}, ids...)
		if onProgress != nil {
			onProgress(all, 100)
		}
		return all, nil
	}

	if len(ids) == 0 {
		if onProgress != nil {
			onProgress([]string{}, 100)
		}
		return []string{}, nil
	}

	start := time.Now()
	m := compile(q)
	matches := []string{}
	skipped := 0
	defer func() { e.metrics.ObserveSearch(time.Since(start), skipped) }()

	for i := 0; i < len(ids); i += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+e.batchSize, len(ids))
		for _, id := range ids[i:end] {
			rec, err := e.resolve(ctx, id)
			if err != nil {
				e.log.Warnf("Skipping %s: %v", id, err)
				skipped++
				continue
			}
			if m.match(rec) {
				matches = append(matches, id)
			}
		}

		if onProgress != nil {
			onProgress(append([]string(nil), matches...), float64(end)*100/float64(len(ids)))
		}
		runtime.Gosched()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.log.Debugf("Query %q matched %d/%d maps", raw, len(matches), len(ids))
	return matches, nil
}

// resolve looks in the scheduler cache, then the search cache, then the store.
func (e *Engine) resolve(ctx context.Context, id string) (*models.MapRecord, error) {
	if e.records != nil {
		if rec, ok := e.records.Get(id); ok {
			return rec, nil
		}
	}

	e.mu.RLock()
	rec, ok := e.cache[id]
	e.mu.RUnlock()
	if ok {
		return rec, nil
	}

	data, err := e.store.Get(ctx, storage.KindMetadata, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	rec, err = models.DecodeRecord(data)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[id] = rec
	e.mu.Unlock()
	return rec, nil
}

// ClearCache empties the search-only record cache.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*models.MapRecord)
}

// Forget drops one id from the search cache, for re-ingested maps.
func (e *Engine) Forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, id)
}

// CacheLen returns the number of records held by the search cache.
func (e *Engine) CacheLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
