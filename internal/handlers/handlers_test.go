package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genimage/internal/config"
	"genimage/internal/lock"
	"genimage/internal/metrics"
	"genimage/internal/models"
	"genimage/internal/repository"
	"genimage/internal/service"
	"genimage/internal/storage"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	engine *gin.Engine
	store  *repository.MemoryStore
}

func newTestAPI(t *testing.T, checks map[string]Check) *testAPI {
	t.Helper()
	log := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := repository.NewMemoryStore()
	images, users := store.Images(), store.Users()

	svc := Services{
		Images:    service.NewImageService(images, users, storage.NewMemoryBlobStore(), lock.NewLocalLocker(time.Second), service.NewFetcher(2*time.Second, 1<<20), m, log),
		Ranking:   service.NewRankingService(images, 30, 100, m, log),
		Reactions: service.NewReactionService(images, users, lock.NewLocalLocker(time.Second), nil, m, log),
		Users:     service.NewUserService(users, log),
	}
	cfg := &config.AppConfig{Environment: "test"}

	engine := gin.New()
	NewHandlerSet(log, cfg, svc, checks, reg).Register(engine.Group("/api"))
	return &testAPI{engine: engine, store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func imageUpstream(t *testing.T, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/generated.png"
}

func createBody(link, createdBy string) map[string]any {
	return map[string]any{
		"prompt":    "an astronaut riding a horse",
		"model":     "sdxl",
		"width":     512,
		"height":    512,
		"seed":      1234,
		"createdBy": createdBy,
		"imageLink": link,
	}
}

func TestGalleryFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/user", map[string]any{"id": "alice", "fullName": "Alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/image", createBody(imageUpstream(t, http.StatusOK), "alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[imageResponse](t, rec)
	assert.Equal(t, pngBytes, created.Buffer)
	assert.Equal(t, "/api/image/"+created.ID, rec.Header().Get("Location"))
	id := created.ID

	rec = api.do(t, http.MethodPatch, "/api/image/"+id+"/like", map[string]any{"userId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	info := decode[models.ImageInfo](t, rec)
	assert.Equal(t, []string{"alice"}, info.LikedBy)
	assert.Equal(t, []string{}, info.DislikedBy)
	assert.Equal(t, 1, info.Popularity)

	rec = api.do(t, http.MethodGet, "/api/user/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[userResponse](t, rec)
	assert.Equal(t, []string{id}, user.Images)
	assert.Equal(t, []string{id}, user.LikedImages)

	rec = api.do(t, http.MethodPatch, "/api/image/"+id+"/dislike", map[string]any{"userId": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	info = decode[models.ImageInfo](t, rec)
	assert.Empty(t, info.LikedBy)
	assert.Equal(t, []string{"alice"}, info.DislikedBy)
	assert.Equal(t, -1, info.Popularity)

	for _, path := range []string{"/api/image/recent", "/api/image/popular", "/api/image/random?limit=5"} {
		rec = api.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		list := decode[[]models.ImageInfo](t, rec)
		require.Len(t, list, 1, path)
		assert.Equal(t, id, list[0].ID)
	}

	rec = api.do(t, http.MethodPost, "/api/image/search", map[string]any{"prompt": "astronaut"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.ImageInfo](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/api/image/"+id+"/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "buffer")

	rec = api.do(t, http.MethodGet, "/api/image/"+id+"/image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	rec = api.do(t, http.MethodGet, "/api/image/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, decode[imageResponse](t, rec).Buffer)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/user", map[string]any{"id": "alice"}).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		errKey string
	}{
		{"unknown image", http.MethodPatch, "/api/image/nope/like", map[string]any{"userId": "alice"}, http.StatusNotFound, "not_found"},
		{"missing user id", http.MethodPatch, "/api/image/nope/like", map[string]any{}, http.StatusBadRequest, "validation_failed"},
		{"malformed json", http.MethodPatch, "/api/image/nope/like", "{", http.StatusBadRequest, "invalid_body"},
		{"duplicate user", http.MethodPost, "/api/user", map[string]any{"id": "alice"}, http.StatusConflict, "already_exists"},
		{"unknown user", http.MethodGet, "/api/user/bob", nil, http.StatusNotFound, "not_found"},
		{"bad limit", http.MethodGet, "/api/image/recent?limit=ten", nil, http.StatusBadRequest, "validation_failed"},
		{"empty search", http.MethodPost, "/api/image/search", map[string]any{"prompt": ""}, http.StatusBadRequest, "validation_failed"},
		{"missing image", http.MethodGet, "/api/image/nope/image", nil, http.StatusNotFound, "not_found"},
		{"upstream failure", http.MethodPost, "/api/image", createBody(imageUpstream(t, http.StatusInternalServerError), "alice"), http.StatusBadGateway, "upstream_fetch_failed"},
		{"invalid image body", http.MethodPost, "/api/image", map[string]any{"prompt": "x"}, http.StatusBadRequest, "validation_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.errKey, decode[map[string]any](t, rec)["error"])
		})
	}

	rec := api.do(t, http.MethodPatch, "/api/image/nope/like", map[string]any{})
	details := decode[map[string]any](t, rec)["details"].(map[string]any)
	assert.Equal(t, "required", details["userId"])

	// nothing was persisted by the failed ingestion
	all, err := api.store.Images().List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := api.do(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[healthResponse](t, rec)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"database": "ok", "cache": "error"}, body.Checks)
	assert.Equal(t, "test", body.Environment)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodPost, "/api/user", map[string]any{"id": "alice"})
	api.do(t, http.MethodPost, "/api/image", createBody(imageUpstream(t, http.StatusOK), "alice"))

	rec := api.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `gallery_ingestions_total{outcome="created"} 1`), rec.Body.String())
}
