package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage/storagetest"
	"github.com/himanishpuri/MapVault/pkg/models"
)

func put(t *testing.T, store storage.ContentStore, rec *models.MapRecord) {
	t.Helper()
	if len(rec.Mappers) == 0 {
		rec.Mappers = []string{"mapper"}
	}
	data, err := models.EncodeRecord(rec)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), storage.KindMetadata, rec.ID, data))
}

type staticCache map[string]*models.MapRecord

func (c staticCache) Get(id string) (*models.MapRecord, bool) {
	r, ok := c[id]
	return r, ok
}

func setupEngine(t *testing.T, records RecordCache, opts ...Option) (*Engine, *storagetest.Recorder) {
	t.Helper()
	store := storagetest.NewMemory(t)
	opts = append([]Option{WithLogger(logger.Discard()), WithMetrics(metrics.New(""))}, opts...)
	return NewEngine(store, records, opts...), store
}

func TestSearchScenario(t *testing.T) {
	e, store := setupEngine(t, nil)
	put(t, store, &models.MapRecord{ID: "a", Title: "foo"})
	put(t, store, &models.MapRecord{ID: "c", Title: "bar"})
	ids := []string{"a", "b", "c"}
	ctx := context.Background()

	got, err := e.Search(ctx, ids, "", nil)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	got, err = e.Search(ctx, ids, "name=foo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestSearchStarAndDifficulty(t *testing.T) {
	e, store := setupEngine(t, nil)
	put(t, store, &models.MapRecord{ID: "1", Title: "Sample one", StarRating: 1, Difficulty: models.DifficultyHard})
	put(t, store, &models.MapRecord{ID: "2", Title: "Sample two", StarRating: 2, Difficulty: models.DifficultyHard})
	put(t, store, &models.MapRecord{ID: "3", Title: "Other", StarRating: 2.01, Difficulty: models.DifficultyHard})
	put(t, store, &models.MapRecord{ID: "4", Title: "sample four", StarRating: 5, Difficulty: models.DifficultyEasy})
	put(t, store, &models.MapRecord{ID: "5", Title: "Five", Mappers: []string{"SampleMapper"}, StarRating: 9, Difficulty: models.DifficultyHard})
	ids := []string{"1", "2", "3", "4", "5"}
	ctx := context.Background()

	got, err := e.Search(ctx, ids, "STAR>2", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, got)

	got, err = e.Search(ctx, ids, "diff=HARD sample", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "5"}, got)
}

func TestSearchProgressPerBatch(t *testing.T) {
	e, store := setupEngine(t, nil, WithBatchSize(20))
	var ids []string
	for i := 0; i < 45; i++ {
		id := fmt.Sprintf("m%02d", i)
		put(t, store, &models.MapRecord{ID: id, Title: "t", StarRating: float64(i % 3)})
		ids = append(ids, id)
	}

	var percents []float64
	var counts []int
	got, err := e.Search(context.Background(), ids, "star=0", func(matches []string, percent float64) {
		percents = append(percents, percent)
		counts = append(counts, len(matches))
	})
	require.NoError(t, err)
	assert.Len(t, got, 15)
	assert.Len(t, percents, 3)
	assert.InDelta(t, 100.0*20/45, percents[0], 0.001)
	assert.InDelta(t, 100.0*40/45, percents[1], 0.001)
	assert.Equal(t, 100.0, percents[2])
	assert.Equal(t, 15, counts[2])
	assert.LessOrEqual(t, counts[0], counts[1])
}

func TestSearchNoIDs(t *testing.T) {
	e, _ := setupEngine(t, nil)

	for _, q := range []string{"", "star>2"} {
		var percents []float64
		got, err := e.Search(context.Background(), nil, q, func(matches []string, percent float64) {
			assert.NotNil(t, matches)
			percents = append(percents, percent)
		})
		require.NoError(t, err)
		assert.NotNil(t, got, "query %q", q)
		assert.Empty(t, got)
		assert.Equal(t, []float64{100}, percents, "query %q", q)
	}
}

func TestSearchStoreErrorExcludesOnlyThatID(t *testing.T) {
	e, store := setupEngine(t, nil)
	put(t, store, &models.MapRecord{ID: "a", Title: "x"})
	put(t, store, &models.MapRecord{ID: "b", Title: "x"})
	store.FailGet(storage.KindMetadata, "a", errors.New("read error"))

	got, err := e.Search(context.Background(), []string{"a", "b"}, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestSearchCacheAvoidsRereads(t *testing.T) {
	e, store := setupEngine(t, nil)
	put(t, store, &models.MapRecord{ID: "a", Title: "x"})
	ctx := context.Background()

	_, err := e.Search(ctx, []string{"a"}, "x", nil)
	require.NoError(t, err)
	_, err = e.Search(ctx, []string{"a"}, "y", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Gets(storage.KindMetadata, "a"))
	assert.Equal(t, 1, e.CacheLen())

	e.ClearCache()
	assert.Zero(t, e.CacheLen())
	_, err = e.Search(ctx, []string{"a"}, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Gets(storage.KindMetadata, "a"))
}

func TestSearchPrefersSchedulerCache(t *testing.T) {
	cached := staticCache{"a": {ID: "a", Title: "from scheduler"}}
	e, store := setupEngine(t, cached)
	put(t, store, &models.MapRecord{ID: "a", Title: "from store"})

	got, err := e.Search(context.Background(), []string{"a"}, "scheduler", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
	assert.Zero(t, store.Gets(storage.KindMetadata, "a"))
	assert.Zero(t, e.CacheLen())
}

func TestSearchCancelled(t *testing.T) {
	e, store := setupEngine(t, nil, WithBatchSize(1))
	put(t, store, &models.MapRecord{ID: "a", Title: "x"})
	put(t, store, &models.MapRecord{ID: "b", Title: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	_, err := e.Search(ctx, []string{"a", "b"}, "x", func([]string, float64) {
		batches++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}
