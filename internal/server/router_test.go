package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/metrics"
	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/storage"
	"github.com/abduss/assetgate/internal/transcode"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assetRoutes = []string{"/api/upload-image", "/api/create-product", "/api/generate-post", "/api/backup-post"}

func TestPreflightReturnsCORSHeaders(t *testing.T) {
	router := newTestRouter(t)

	for _, route := range assetRoutes {
		rec := do(router, http.MethodOptions, route, "")
		assert.Equal(t, http.StatusOK, rec.Code, route)
		assert.Empty(t, rec.Body.String(), route)
		assertCORS(t, rec)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	router := newTestRouter(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(router, method, "/api/upload-image", "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "Method Not Allowed", message(t, rec))
		assertCORS(t, rec)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", message(t, rec))
}

func TestMissingCredentialFailsBeforeParsing(t *testing.T) {
	router := newTestRouter(t)

	for _, route := range assetRoutes {
		rec := do(router, http.MethodPost, route, "not a form")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, route)
		assert.Contains(t, message(t, rec), "misconfiguration")
		assertCORS(t, rec)
	}
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential not configured")
	assert.Contains(t, rec.Body.String(), config.BackendGitHub)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.InitMetrics()
	router := newTestRouter(t)

	do(router, http.MethodGet, "/health/live", "")
	rec := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assetgate_http_requests_total")
}

// --- helpers ---

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	client, err := storage.NewGitHubClient(cfg.GitHub)
	require.NoError(t, err)

	store := asset.NewGitHubStore(client, cfg.GitHub, cfg.Committer)
	service := asset.NewService(store, transcode.New(cfg.Upload.Quality, 0), naming.Timestamp{}, asset.OptionsFromConfig(cfg))
	return NewRouter(Dependencies{Config: cfg, AssetService: service})
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Message
}
