package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/fileattach/internal/api/handlers"
	"github.com/bigkaa/fileattach/internal/api/middleware"
	"github.com/bigkaa/fileattach/internal/api/openapi"
	"github.com/bigkaa/fileattach/internal/config"
	"github.com/bigkaa/fileattach/internal/domain/model"
	"github.com/bigkaa/fileattach/internal/identity"
	"github.com/bigkaa/fileattach/internal/repository"
	"github.com/bigkaa/fileattach/internal/service"
	"github.com/bigkaa/fileattach/internal/storage"
)

// --- In-memory зависимости ---

type memRepo struct {
	mu      sync.Mutex
	records []*model.FileRecord
	clock   time.Time
}

func (r *memRepo) Insert(_ context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	saved := *rec
	saved.ID = uuid.NewString()
	saved.CreatedAt = r.clock
	r.records = append(r.records, &saved)
	return &saved, nil
}

func (r *memRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.FileRecord{}
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) GetByIDAndOwner(_ context.Context, id, ownerID string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			return rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) DeleteByIDAndOwner(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.ID == id && rec.OwnerID == ownerID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; ok {
		return storage.ErrObjectExists
	}
	s.objects[path] = data
	return nil
}

func (s *memStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *memStore) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.test/files/" + path + "?X-Amz-Signature=test", nil
}

func (s *memStore) CheckReady() (string, string) { return "ok", "" }

func (s *memStore) object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, identity.ErrMissingCredential
	}
	if id, ok := v[token]; ok {
		return &model.Identity{ID: id}, nil
	}
	return nil, identity.ErrInvalidCredential
}

// --- Сборка сервера ---

func testConfig() *config.Config {
	return &config.Config{
		Port:               8040,
		HTTPReadTimeout:    5 * time.Second,
		HTTPWriteTimeout:   5 * time.Second,
		HTTPIdleTimeout:    5 * time.Second,
		ShutdownTimeout:    time.Second,
		UpstreamTimeout:    time.Second,
		CORSAllowedOrigins: []string{"*"},
		MaxUploadSize:      1024,
		SignedURLTTL:       time.Hour,
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *memStore) {
	t.Helper()

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memStore{objects: map[string][]byte{}}

	fileSvc := service.NewFileService(&memRepo{clock: time.Now()}, store, service.FileServiceConfig{
		MaxUploadSize:   cfg.MaxUploadSize,
		SignedURLTTL:    cfg.SignedURLTTL,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, logger)

	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(fileSvc, cfg.MaxUploadSize, logger),
		handlers.NewHealthHandler(handlers.NamedChecker{Name: "object_storage", Checker: store}),
		logger,
	)

	doc, err := openapi.GetSpec()
	require.NoError(t, err)
	validator, err := openapi.RequestValidator(doc)
	require.NoError(t, err)

	verifier := tokenVerifier{"alice-token": "alice", "bob-token": "bob"}
	srv := New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		middleware.CORS(cfg.CORSAllowedOrigins),
		AuthWithExclusions(middleware.Auth(verifier, logger), PublicPrefixes...),
		validator,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func doRequest(t *testing.T, method, url, token string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func uploadBody(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// --- Тесты ---

// TestFileLifecycle проходит загрузку, список, ссылку и удаление через HTTP.
func TestFileLifecycle(t *testing.T) {
	ts, store := newTestServer(t)

	body, ct := uploadBody(t, "Notes.TXT", []byte("hello"))
	resp, data := doRequest(t, http.MethodPost, ts.URL+"/api/files/upload", "alice-token", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	var uploaded openapi.FileRecord
	require.NoError(t, json.Unmarshal(data, &uploaded))
	assert.Equal(t, "alice", uploaded.OwnerId)
	assert.Equal(t, "Notes.TXT", uploaded.OriginalFilename)
	assert.Equal(t, int64(5), uploaded.FileSize)
	assert.True(t, strings.HasPrefix(uploaded.StoragePath, "alice/"), uploaded.StoragePath)
	assert.True(t, strings.HasSuffix(uploaded.StoragePath, ".txt"), uploaded.StoragePath)

	stored, ok := store.object(uploaded.StoragePath)
	require.True(t, ok)
	assert.Equal(t, "hello", string(stored))

	fileURL := ts.URL + "/api/files/" + uploaded.Id.String()

	// Список: свой файл виден только владельцу
	resp, data = doRequest(t, http.MethodGet, ts.URL+"/api/files", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []openapi.FileRecord
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, uploaded.Id, list[0].Id)

	resp, data = doRequest(t, http.MethodGet, ts.URL+"/api/files", "bob-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(data))

	// Чужой файл неотличим от несуществующего
	_, foreign := doRequest(t, http.MethodGet, fileURL+"/download", "bob-token", nil, "")
	resp, missing := doRequest(t, http.MethodGet, ts.URL+"/api/files/"+uuid.NewString()+"/download", "alice-token", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(missing), string(foreign))

	// Ссылка на скачивание
	resp, data = doRequest(t, http.MethodGet, fileURL+"/download", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var link openapi.DownloadLink
	require.NoError(t, json.Unmarshal(data, &link))
	assert.Contains(t, link.Url, uploaded.StoragePath)
	assert.WithinDuration(t, time.Now().Add(time.Hour), link.ExpiresAt, time.Minute)

	// Удаление: чужой — 404, свой — 200, повторно — 404
	resp, _ = doRequest(t, http.MethodDelete, fileURL, "bob-token", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_, ok = store.object(uploaded.StoragePath)
	assert.True(t, ok, "объект не должен удаляться по запросу чужого пользователя")

	resp, data = doRequest(t, http.MethodDelete, fileURL, "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"success":true}`, string(data))
	_, ok = store.object(uploaded.StoragePath)
	assert.False(t, ok, "объект должен быть удалён из хранилища")

	resp, _ = doRequest(t, http.MethodDelete, fileURL, "alice-token", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestAuthRequired проверяет, что файловые маршруты закрыты, а служебные открыты.
func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, tc := range []struct {
		method, path, token string
	}{
		{http.MethodGet, "/api/files", ""},
		{http.MethodGet, "/api/files", "unknown-token"},
		{http.MethodGet, "/api/files/" + uuid.NewString() + "/download", ""},
		{http.MethodDelete, "/api/files/" + uuid.NewString(), ""},
		{http.MethodPost, "/api/files/upload", ""},
	} {
		resp, data := doRequest(t, tc.method, ts.URL+tc.path, tc.token, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s: %s", tc.method, tc.path, data)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.Contains(t, string(data), `"UNAUTHORIZED"`)
	}

	for _, path := range []string{"/health/live", "/health/ready", "/metrics", "/api/openapi.json"} {
		resp, data := doRequest(t, http.MethodGet, ts.URL+path, "", nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "%s: %s", path, data)
	}
}

// TestUploadTooLarge проверяет отказ без записи в хранилище.
func TestUploadTooLarge(t *testing.T) {
	ts, store := newTestServer(t)

	body, ct := uploadBody(t, "big.bin", bytes.Repeat([]byte("x"), 2048))
	resp, data := doRequest(t, http.MethodPost, ts.URL+"/api/files/upload", "alice-token", body, ct)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), `"VALIDATION_ERROR"`)
	assert.Empty(t, store.objects)
}

// TestMalformedFileID_Unauthenticated проверяет, что без токена ответ 401, а не ошибка формата id.
func TestMalformedFileID_Unauthenticated(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/files/not-a-uuid"},
		{http.MethodGet, "/api/files/not-a-uuid/download"},
	} {
		resp, data := doRequest(t, tc.method, ts.URL+tc.path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s: %s", tc.method, tc.path, data)
		assert.Contains(t, string(data), `"UNAUTHORIZED"`)
	}
}

// TestMalformedFileID проверяет 400 на id не в формате UUID.
func TestMalformedFileID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doRequest(t, http.MethodGet, ts.URL+"/api/files/not-a-uuid/download", "alice-token", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
	assert.Contains(t, string(data), `"VALIDATION_ERROR"`)
}

func TestAuthWithExclusions(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	h := AuthWithExclusions(deny, "/health/")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestRun_Shutdown проверяет остановку сервера по отмене контекста.
func TestRun_Shutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, logger, handlers.NewAPIHandler(nil, handlers.NewHealthHandler(), logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("сервер не остановился после отмены контекста")
	}
}
