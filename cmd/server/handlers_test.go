package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/MapVault/pkg/logger"
	"github.com/himanishpuri/MapVault/pkg/mapvault"
	"github.com/himanishpuri/MapVault/pkg/mapvault/format"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage"
	"github.com/himanishpuri/MapVault/pkg/mapvault/storage/storagetest"
	"github.com/himanishpuri/MapVault/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s, h, _ := setupServerWithStore(t)
	return s, h
}

func setupServerWithStore(t *testing.T) (*Server, http.Handler, *storagetest.Recorder) {
	t.Helper()
	store := storagetest.NewMemory(t)
	svc, err := mapvault.NewService(
		mapvault.WithStorage(store),
		mapvault.WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	s := NewServer(svc, &ServerConfig{Addr: ":0", Backend: "memory", AllowedOrigins: []string{"*"}})
	s.log = logger.Discard()
	return s, s.setupRoutes(), store
}

func mapBinary(t *testing.T, id, title string, stars float64, audio []byte) []byte {
	t.Helper()
	data, err := format.EncodeCurrent(&models.MapRecord{
		ID:         id,
		Title:      title,
		Mappers:    []string{"mapper"},
		Difficulty: models.DifficultyHard,
		StarRating: stars,
		Notes:      []models.Note{{Time: 250, X: 0, Y: 2}, {Time: 900, X: 1, Y: 1}},
	}, audio, nil)
	require.NoError(t, err)
	return data
}

func do(t *testing.T, h http.Handler, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, h http.Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, h, http.MethodPost, "/api/maps", &body, mw.FormDataContentType())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	_, h := setupServer(t)
	w := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestIngestAndFetch(t *testing.T) {
	_, h := setupServer(t)

	w := upload(t, h, "m1.sspm", mapBinary(t, "m1", "First Light", 3.5, []byte("ID3 not really mp3")))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[IngestResponse](t, w)
	assert.Equal(t, "m1", created.Map.ID)
	assert.Equal(t, "Hard", created.Map.Difficulty)
	assert.Equal(t, 2, created.Map.NoteCount)
	assert.Equal(t, 900, created.Map.DurationMs)
	assert.True(t, created.Map.HasAudio)

	w = do(t, h, http.MethodGet, "/api/maps/m1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "First Light", decode[MapDTO](t, w).Title)

	w = do(t, h, http.MethodGet, "/api/maps/m1?notes=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.MapRecord](t, w).Notes, 2)

	w = do(t, h, http.MethodGet, "/api/maps/m1/audio", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ID3 not really mp3", w.Body.String())

	w = do(t, h, http.MethodGet, "/api/maps/m1/cover", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/maps/m1/export", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	m, err := format.Normalize(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "m1", m.Record.ID)
}

func TestIngestRejectsGarbage(t *testing.T) {
	_, h := setupServer(t)

	w := upload(t, h, "junk.sspm", []byte("definitely not a map"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, decode[ErrorResponse](t, w).Code)

	w = do(t, h, http.MethodPost, "/api/maps", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMissingMap(t *testing.T) {
	_, h := setupServer(t)
	w := do(t, h, http.MethodGet, "/api/maps/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Message, "ghost")
}

func TestListMapsPagination(t *testing.T) {
	_, h := setupServer(t)
	for _, id := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusCreated, upload(t, h, id+".sspm", mapBinary(t, id, "Map "+id, 1, nil)).Code)
	}

	w := do(t, h, http.MethodGet, "/api/maps?limit=2&offset=1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ListMapsResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Maps, 2)
	assert.Equal(t, "b", resp.Maps[0].ID)
	assert.Equal(t, "c", resp.Maps[1].ID)

	w = do(t, h, http.MethodGet, "/api/maps?offset=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[ListMapsResponse](t, w).Maps)
}

func TestListMapsKeepsUnreadableRows(t *testing.T) {
	_, h, store := setupServerWithStore(t)
	require.Equal(t, http.StatusCreated, upload(t, h, "a.sspm", mapBinary(t, "a", "Good", 1, nil)).Code)
	require.NoError(t, store.Set(context.Background(), storage.KindMetadata, "b", []byte("{corrupt")))

	w := do(t, h, http.MethodGet, "/api/maps", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ListMapsResponse](t, w)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Maps, 2)
	assert.Equal(t, "a", resp.Maps[0].ID)
	assert.False(t, resp.Maps[0].Unavailable)
	assert.Equal(t, "b", resp.Maps[1].ID)
	assert.True(t, resp.Maps[1].Unavailable)
	assert.NotEmpty(t, resp.Maps[1].Error)
}

func TestSearch(t *testing.T) {
	_, h := setupServer(t)
	require.Equal(t, http.StatusCreated, upload(t, h, "a.sspm", mapBinary(t, "a", "Blue Sky", 1.5, nil)).Code)
	require.Equal(t, http.StatusCreated, upload(t, h, "b.sspm", mapBinary(t, "b", "Red Sun", 4, nil)).Code)

	w := do(t, h, http.MethodGet, "/api/search?q=sky%20star%3E1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a"}, decode[SearchResponse](t, w).IDs)

	w = do(t, h, http.MethodGet, "/api/search?q=star%3E2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"b"}, decode[SearchResponse](t, w).IDs)

	w = do(t, h, http.MethodGet, "/api/search", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[SearchResponse](t, w).Count)
}

func TestVisibleAndState(t *testing.T) {
	s, h := setupServer(t)
	require.Equal(t, http.StatusCreated, upload(t, h, "a.sspm", mapBinary(t, "a", "Blue Sky", 1, nil)).Code)

	w := do(t, h, http.MethodPost, "/api/visible", bytes.NewBufferString(`{"ids":["a"]}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)

	s.service.Scheduler().Request("a", true)
	require.NoError(t, s.service.Scheduler().WaitIdle(context.Background()))

	w = do(t, h, http.MethodGet, "/api/maps/a/state", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[StateResponse](t, w)
	assert.Equal(t, "cached", state.Record)
	// no cover stored, so the image queue gives up
	assert.Equal(t, "failed", state.Cover)
	assert.NotEmpty(t, state.CoverError)

	w = do(t, h, http.MethodPost, "/api/visible", bytes.NewBufferString(`{"ids":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalogImportWithoutCatalog(t *testing.T) {
	_, h := setupServer(t)
	w := do(t, h, http.MethodPost, "/api/catalog/import", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := setupServer(t)
	require.Equal(t, http.StatusCreated, upload(t, h, "a.sspm", mapBinary(t, "a", "Blue Sky", 1, nil)).Code)

	w := do(t, h, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mapvault_ingested_total")
}

func TestCORSPreflight(t *testing.T) {
	_, h := setupServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/maps", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, parseOrigins("*"))
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins("http://a, http://b"))
}

func TestPaginate(t *testing.T) {
	ids := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, paginate(ids, 0, 0))
	assert.Equal(t, []string{"b"}, paginate(ids, 1, 1))
	assert.Nil(t, paginate(ids, 3, 1))
}
