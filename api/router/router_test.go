package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-letter/artifacts"
	"ai-letter/models"
	"ai-letter/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seededStore(t *testing.T) *artifacts.FileStore {
	t.Helper()
	s := artifacts.NewFileStore(t.TempDir())
	for i, day := range []int{13, 20} {
		d := models.Digest{
			RunID:       []string{"r1", "r2"}[i],
			Greeting:    "hi",
			GeneratedAt: time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC),
		}
		require.NoError(t, s.SaveDigest(context.Background(), models.DigestArtifact{Digest: d, Text: "text " + d.RunID}))
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDigestRoutes(t *testing.T) {
	h := New(Deps{Digests: seededStore(t), Runner: pipeline.NewRunner(nil, 0)})

	w := do(t, h, http.MethodGet, "/api/v1/digests?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Digest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].RunID)

	w = do(t, h, http.MethodGet, "/api/v1/digests/latest")
	require.Equal(t, http.StatusOK, w.Code)
	var latest models.Digest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, "r2", latest.RunID)

	w = do(t, h, http.MethodGet, "/api/v1/digests/latest?format=text")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text r2", w.Body.String())
}

func TestLatestDigest_NotFound(t *testing.T) {
	h := New(Deps{Digests: artifacts.NewFileStore(t.TempDir()), Runner: pipeline.NewRunner(nil, 0)})

	w := do(t, h, http.MethodGet, "/api/v1/digests/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerRun_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	runner := pipeline.NewRunner(func(ctx context.Context) (pipeline.Report, error) {
		<-release
		return pipeline.Report{RunID: "manual"}, nil
	}, time.Minute)
	h := New(Deps{Digests: artifacts.NewFileStore(t.TempDir()), Runner: runner})

	w := do(t, h, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	runner.Wait()

	w = do(t, h, http.MethodGet, "/api/v1/runs/status")
	require.Equal(t, http.StatusOK, w.Code)
	var st pipeline.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Running)
	assert.Equal(t, "manual", st.LastRunID)
}

func TestHealthAndMetrics(t *testing.T) {
	deps := Deps{
		Digests:         artifacts.NewFileStore(t.TempDir()),
		Runner:          pipeline.NewRunner(nil, 0),
		HistoryDegraded: func() bool { return true },
	}
	w := do(t, New(deps), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":"degraded"`)

	deps.Health = func(ctx context.Context) error { return errors.New("mongo down") }
	w = do(t, New(deps), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, New(deps), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ailetter_")
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := Handler(Deps{Digests: artifacts.NewFileStore(t.TempDir()), Runner: pipeline.NewRunner(nil, 0)}, []string{"https://letter.example"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://letter.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://letter.example", w.Header().Get("Access-Control-Allow-Origin"))
}
