package client

// Status is the watcher's current status as served by GET /status.
type Status struct {
	Path     string `json:"path"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Step     string `json:"step"`
	Percent  string `json:"percent"`
}

// IntervalRequest is the body of the interval endpoints.
type IntervalRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
