package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	// must not panic
	IncPoll("changed")
	IncRead()
	IncReadFailure()
	ObserveStatus(10)
	SetPollInterval(time.Second)
	IncWrite("simulator", false)
}

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	before := testutil.ToFloat64(reads)
	IncPoll("changed")
	IncRead()
	IncReadFailure()
	ObserveStatus(62)
	SetPollInterval(1500 * time.Millisecond)
	IncWrite("bootstrap", true)
	IncWrite("simulator", false)

	if got := testutil.ToFloat64(reads) - before; got != 1 {
		t.Fatalf("reads delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(progress); got != 62 {
		t.Fatalf("progress gauge = %v, want 62", got)
	}
	if got := testutil.ToFloat64(pollInterval); got != 1.5 {
		t.Fatalf("poll interval gauge = %v, want 1.5", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"updatewatch_watch_polls_total":          false,
		"updatewatch_watch_reads_total":          false,
		"updatewatch_watch_read_failures_total":  false,
		"updatewatch_watch_status_changes_total": false,
		"updatewatch_watch_progress":             false,
		"updatewatch_watch_poll_interval_seconds": false,
		"updatewatch_file_writes_total":          false,
		"updatewatch_file_write_failures_total":  false,
	}
	for _, mf := range mfs {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncRead()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "updatewatch_watch_reads_total") {
		t.Fatalf("metrics output missing reads counter")
	}
}

func TestNewServerRoutesMetricsOnly(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/other")
	if err != nil {
		t.Fatalf("GET /other: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("/other status = %d", resp.StatusCode)
	}
}
