package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/updatewatch/internal/fileio"
	"github.com/loykin/updatewatch/internal/metrics"
	"github.com/loykin/updatewatch/internal/scheduler"
	"github.com/loykin/updatewatch/internal/status"
	"github.com/loykin/updatewatch/internal/watcher"
)

type fakeController struct {
	st       status.Status
	interval time.Duration
	err      error
}

func (f *fakeController) Path() string           { return "current_update_step.json" }
func (f *fakeController) Status() status.Status   { return f.st }
func (f *fakeController) Interval() time.Duration { return f.interval }
func (f *fakeController) SetInterval(d time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.interval = d
	return nil
}

func setupRouter(t *testing.T, ctl Controller, base string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(ctl, base).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, _ := json.Marshal(body)
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetStatus(t *testing.T) {
	ctl := &fakeController{st: status.Status{Progress: 62, Status: "System Updating...", Step: "Finalizing installation"}}
	h := setupRouter(t, ctl, "/api")

	rec := doReq(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusResponse{
		Path:     "current_update_step.json",
		Progress: 62,
		Status:   "System Updating...",
		Step:     "Finalizing installation",
		Percent:  "62%",
	}, got)
}

func TestGetInterval(t *testing.T) {
	h := setupRouter(t, &fakeController{interval: 2 * time.Second}, "")
	rec := doReq(t, h, http.MethodGet, "/interval", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interval_ms":2000}`, rec.Body.String())
}

func TestSetInterval(t *testing.T) {
	ctl := &fakeController{interval: 2 * time.Second}
	h := setupRouter(t, ctl, "/api/")

	rec := doReq(t, h, http.MethodPut, "/api/interval", IntervalBody{IntervalMS: 500})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"interval_ms":500}`, rec.Body.String())
	assert.Equal(t, 500*time.Millisecond, ctl.interval)
}

func TestSetIntervalRejectsBadInput(t *testing.T) {
	ctl := &fakeController{interval: 2 * time.Second}
	h := setupRouter(t, ctl, "")

	for _, body := range []any{IntervalBody{IntervalMS: 0}, IntervalBody{IntervalMS: -5}, "{not json"} {
		rec := doReq(t, h, http.MethodPut, "/interval", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Equal(t, 2*time.Second, ctl.interval)
}

func TestSetIntervalErrors(t *testing.T) {
	h := setupRouter(t, &fakeController{err: watcher.ErrNotStarted}, "")
	rec := doReq(t, h, http.MethodPut, "/interval", IntervalBody{IntervalMS: 100})
	assert.Equal(t, http.StatusConflict, rec.Code)

	h = setupRouter(t, &fakeController{err: errors.New("scheduler closed")}, "")
	rec = doReq(t, h, http.MethodPut, "/interval", IntervalBody{IntervalMS: 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "scheduler closed")
}

func TestUnknownRoute(t *testing.T) {
	h := setupRouter(t, &fakeController{}, "/api")
	rec := doReq(t, h, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	require.NoError(t, metrics.Register(prometheus.DefaultRegisterer))
	gin.SetMode(gin.TestMode)
	h := NewRouter(&fakeController{}, "/api").WithMetrics().Handler()

	rec := doReq(t, h, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "updatewatch_watch_reads_total")
}

func TestRouterWithWatcher(t *testing.T) {
	r, err := scheduler.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Stop() })

	w := watcher.New(watcher.Config{Path: "s.json", FS: fileio.NewMemory()})
	h := setupRouter(t, w, "")

	rec := doReq(t, h, http.MethodPut, "/interval", IntervalBody{IntervalMS: 100})
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, w.Start(context.Background(), r))
	rec = doReq(t, h, http.MethodPut, "/interval", IntervalBody{IntervalMS: 100})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100*time.Millisecond, w.Interval())

	rec = doReq(t, h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"System Ready"`)
}

func TestServerStartShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer("127.0.0.1:0", NewRouter(&fakeController{}, ""))
	s.Start(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
