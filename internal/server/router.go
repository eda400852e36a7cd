package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/updatewatch/internal/metrics"
	"github.com/loykin/updatewatch/internal/status"
	"github.com/loykin/updatewatch/internal/watcher"
)

// Controller is the part of a watcher the HTTP surface drives.
type Controller interface {
	Path() string
	Status() status.Status
	Interval() time.Duration
	SetInterval(d time.Duration) error
}

// Router provides embeddable HTTP handlers for a running watcher.
// Endpoints:
//
//	GET {basePath}/status     current status
//	GET {basePath}/interval   polling interval in milliseconds
//	PUT {basePath}/interval   body: {"interval_ms": N}
//	GET {basePath}/metrics    prometheus metrics (when enabled)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      Controller
	basePath string
	metrics  bool
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(ctl Controller, basePath string) *Router {
	return &Router{ctl: ctl, basePath: sanitizeBase(basePath)}
}

// WithMetrics mounts the prometheus handler under the base path.
func (r *Router) WithMetrics() *Router {
	r.metrics = true
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/interval", r.handleGetInterval)
	group.PUT("/interval", r.handleSetInterval)
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// Server is the standalone HTTP control surface.
type Server struct {
	srv *http.Server
}

// NewServer builds a server for addr using this router. Call Start to serve.
func NewServer(addr string, r *Router) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start serves in the background. Errors other than a normal shutdown are
// passed to onErr, which may be nil.
func (s *Server) Start(onErr func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Path     string `json:"path"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Step     string `json:"step"`
	Percent  string `json:"percent"`
}

// IntervalBody is the body of the interval endpoints.
type IntervalBody struct {
	IntervalMS int64 `json:"interval_ms"`
}

func (r *Router) handleStatus(c *gin.Context) {
	st := r.ctl.Status()
	writeJSON(c, http.StatusOK, StatusResponse{
		Path:     r.ctl.Path(),
		Progress: st.Progress,
		Status:   st.Status,
		Step:     st.Step,
		Percent:  st.Percent(),
	})
}

func (r *Router) handleGetInterval(c *gin.Context) {
	writeJSON(c, http.StatusOK, IntervalBody{IntervalMS: r.ctl.Interval().Milliseconds()})
}

func (r *Router) handleSetInterval(c *gin.Context) {
	var body IntervalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if body.IntervalMS <= 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "interval_ms must be > 0"})
		return
	}
	if err := r.ctl.SetInterval(time.Duration(body.IntervalMS) * time.Millisecond); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, watcher.ErrNotStarted) {
			code = http.StatusConflict
		}
		writeJSON(c, code, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, IntervalBody{IntervalMS: r.ctl.Interval().Milliseconds()})
}
