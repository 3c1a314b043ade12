package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/MapVault/internal/metrics"
	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage/storagetest"
	"github.com/himanishpuri/MapVault/pkg/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func putRecord(t *testing.T, store storage.ContentStore, id string) {
	t.Helper()
	data, err := models.EncodeRecord(&models.MapRecord{ID: id, Title: "T " + id, Mappers: []string{"m"}})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), storage.KindMetadata, id, data))
}

func setupScheduler(t *testing.T, store storage.ContentStore) *Scheduler {
	t.Helper()
	s, err := NewScheduler(store, Options{Log: logger.Discard(), Metrics: metrics.New("")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestFetchRecordClassifiesErrors(t *testing.T) {
	store := storagetest.NewMemory(t)
	ctx := context.Background()
	fetch := FetchRecord(store)

	putRecord(t, store, "ok")
	rec, err := fetch(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, "T ok", rec.Title)

	_, err = fetch(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrBlobMissing)

	require.NoError(t, store.Set(ctx, storage.KindMetadata, "junk", []byte("{nope")))
	_, err = fetch(ctx, "junk")
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, models.ErrInvalidRecord)

	boom := errors.New("io error")
	store.FailGet(storage.KindMetadata, "broken", boom)
	_, err = fetch(ctx, "broken")
	assert.ErrorIs(t, err, ErrStoreRead)
	assert.ErrorIs(t, err, boom)
}

func TestFetchImage(t *testing.T) {
	store := storagetest.NewMemory(t)
	ctx := context.Background()
	fetch := FetchImage(store)

	require.NoError(t, store.Set(ctx, storage.KindImage, "a", pngBytes(t, 3, 2)))
	require.NoError(t, store.Set(ctx, storage.KindImage, "b", pngBytes(t, 1, 1)))

	a, err := fetch(ctx, "a")
	require.NoError(t, err)
	b, err := fetch(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, 3, a.Width)
	assert.Equal(t, 2, a.Height)
	assert.Equal(t, "png", a.Format)
	assert.Equal(t, "image/png", a.ContentType())
	assert.True(t, strings.HasPrefix(a.URL, "blob:mapvault/"))
	assert.NotEqual(t, a.URL, b.URL)
	assert.NotNil(t, a.Image())

	a.Release()
	assert.True(t, a.Released())
	assert.Nil(t, a.Image())
	assert.Nil(t, a.Bytes())

	require.NoError(t, store.Set(ctx, storage.KindImage, "bad", []byte("not an image")))
	_, err = fetch(ctx, "bad")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestSchedulerLoadsBothQueues(t *testing.T) {
	store := storagetest.NewMemory(t)
	ctx := context.Background()
	putRecord(t, store, "m1")
	require.NoError(t, store.Set(ctx, storage.KindImage, "m1", pngBytes(t, 4, 4)))
	putRecord(t, store, "m2") // no cover

	s := setupScheduler(t, store)
	s.SetVisible([]string{"m1", "m2"})
	waitIdle(t, s)

	rec, ok := s.Records.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "m1", rec.ID)
	img, ok := s.Images.Get("m1")
	require.True(t, ok)
	assert.Equal(t, 4, img.Width)

	_, ok = s.Records.Get("m2")
	assert.True(t, ok)
	assert.Equal(t, Failed, s.Images.State("m2"))
	assert.ErrorIs(t, s.Images.Failure("m2"), storage.ErrBlobMissing)
	assert.Equal(t, DefaultRetryBudget, store.Gets(storage.KindImage, "m2"))

	require.NoError(t, s.Shutdown(ctx))
	assert.True(t, img.Released())
}

// A corrupt record next to good ones must not block or poison the queue.
func TestSchedulerCorruptRecordIsolated(t *testing.T) {
	store := storagetest.NewMemory(t)
	ctx := context.Background()
	putRecord(t, store, "a")
	require.NoError(t, store.Set(ctx, storage.KindMetadata, "b", []byte("garbage")))
	putRecord(t, store, "c")

	s := setupScheduler(t, store)
	for _, id := range []string{"a", "b", "c"} {
		s.Records.Request(id, true)
	}
	waitIdle(t, s)

	assert.Equal(t, Cached, s.Records.State("a"))
	assert.Equal(t, Failed, s.Records.State("b"))
	assert.Equal(t, Cached, s.Records.State("c"))
	assert.ErrorIs(t, s.Records.Failure("b"), ErrDecode)
}

func TestSchedulerInvalidate(t *testing.T) {
	store := storagetest.NewMemory(t)
	putRecord(t, store, "a")

	s := setupScheduler(t, store)
	s.Request("a", true)
	waitIdle(t, s)
	assert.Equal(t, Failed, s.Images.State("a"))

	require.NoError(t, store.Set(context.Background(), storage.KindImage, "a", pngBytes(t, 1, 1)))
	s.Invalidate("a")
	s.Request("a", true)
	waitIdle(t, s)
	assert.Equal(t, Cached, s.Images.State("a"))
}
