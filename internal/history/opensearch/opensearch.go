package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/updatewatch/internal/history"
)

// Sink indexes status events into OpenSearch (or Elasticsearch) over HTTP.
// Each event is POSTed as a document to baseURL/index/_doc.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

func New(baseURL, index string) *Sink {
	c := &http.Client{Timeout: 5 * time.Second}
	return &Sink{client: c, baseURL: strings.TrimRight(baseURL, "/"), index: index}
}

// document flattens an event so progress can be aggregated without a nested mapping.
type document struct {
	OccurredAt time.Time `json:"@timestamp"`
	Path       string    `json:"path"`
	Progress   int       `json:"progress"`
	Status     string    `json:"status"`
	Step       string    `json:"step"`
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(document{
		OccurredAt: e.OccurredAt.UTC(),
		Path:       e.Path,
		Progress:   e.Status.Progress,
		Status:     e.Status.Status,
		Step:       e.Status.Step,
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}
