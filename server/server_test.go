package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erisextract/internal/config"
	"erisextract/pipeline"
	"erisextract/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		ExtractTimeout:    5 * time.Second,
		TriggerRatePerMin: 60,
		LogLevel:          "INFO",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestExtractSuccessCapturesOutput(t *testing.T) {
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		logger.Info("[Run] Loaded sheets", "rows", 3)
		logger.Debug("[Run] hidden at INFO")
		return &pipeline.Report{RunID: "run-1", UploadID: 7, File: "ERIS_15_09_2025.xlsx", Completed: true}, nil
	}
	s := NewServer(testConfig(), run, nil, discardLogger())

	w := get(t, s, "/extract")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[ExtractResponse](t, w)
	assert.Equal(t, "success", body.Status)
	assert.Contains(t, body.Message, "ERIS_15_09_2025.xlsx")
	assert.Contains(t, body.Output, "Loaded sheets")
	assert.Contains(t, body.Output, "rows=3")
	assert.NotContains(t, body.Output, "hidden at INFO")
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, int64(7), body.UploadID)
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
}

func TestExtractWithoutPendingFileIsSkipped(t *testing.T) {
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		return &pipeline.Report{}, pipeline.ErrNoPendingFile
	}
	s := NewServer(testConfig(), run, nil, discardLogger())

	w := get(t, s, "/extract")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "skipped", decode[ExtractResponse](t, w).Status)
}

func TestExtractFailure(t *testing.T) {
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		logger.Error("[Run] Insert failed")
		return &pipeline.Report{}, fmt.Errorf("%s: %w", pipeline.PhaseInsertRows, errors.New("disk full"))
	}
	s := NewServer(testConfig(), run, nil, discardLogger())

	w := get(t, s, "/extract")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode[middleware.ErrorResponse](t, w)
	assert.Equal(t, "error", body.Status)
	assert.Contains(t, body.Error, "disk full")
	assert.Contains(t, body.Output, "Insert failed")
}

func TestExtractPanicIsReported(t *testing.T) {
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		panic("nil registry")
	}
	s := NewServer(testConfig(), run, nil, discardLogger())

	w := get(t, s, "/extract")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode[middleware.ErrorResponse](t, w).Error, "nil registry")
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 10*time.Millisecond)
}

func TestExtractTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ExtractTimeout = 50 * time.Millisecond
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := NewServer(cfg, run, nil, discardLogger())

	w := get(t, s, "/extract")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, decode[middleware.ErrorResponse](t, w).Message, "exceeded")
}

func TestExtractRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		<-release
		return &pipeline.Report{File: "a.xlsx"}, nil
	}
	s := NewServer(testConfig(), run, nil, discardLogger())

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		w := httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extract", nil))
		first <- w
	}()
	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)

	w := get(t, s, "/extract")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
}

func TestExtractRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.TriggerRatePerMin = 1
	runs := 0
	run := func(ctx context.Context, logger *slog.Logger) (*pipeline.Report, error) {
		runs++
		return &pipeline.Report{}, pipeline.ErrNoPendingFile
	}
	s := NewServer(cfg, run, nil, discardLogger())

	assert.Equal(t, http.StatusOK, get(t, s, "/extract").Code)
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, get(t, s, "/extract").Code)
	assert.Equal(t, 1, runs)
	assert.False(t, s.Running())
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, discardLogger())
	w := get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["running"])
}

func TestHealthReportsStore(t *testing.T) {
	ping := func(ctx context.Context) error { return errors.New("connection refused") }
	s := NewServer(testConfig(), nil, ping, discardLogger())

	w := get(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["database"])

	s = NewServer(testConfig(), nil, func(ctx context.Context) error { return nil }, discardLogger())
	w = get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["database"])
}

func TestTeeHandlerRespectsLevels(t *testing.T) {
	base := &lockedBuffer{}
	logger, captured := captureLogger(slog.New(slog.NewTextHandler(base, &slog.HandlerOptions{Level: slog.LevelDebug})), slog.LevelWarn)

	logger.With("component", "pipeline").Info("[Run] Started")
	logger.Warn("[Run] Registry row skipped", "row", 9)

	assert.Contains(t, base.String(), "component=pipeline")
	assert.Contains(t, base.String(), "Registry row skipped")
	assert.NotContains(t, captured.String(), "Started")
	assert.Contains(t, captured.String(), "row=9")
}
