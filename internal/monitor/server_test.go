package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lava-submitter/internal/core"

	"github.com/prometheus/client_golang/prometheus"
)

type stubLedger struct{ err error }

func (s stubLedger) VerifyChain() error { return s.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestStatusEndpoints(t *testing.T) {
	s := NewServer(nil, prometheus.NewRegistry(), nil)
	h := s.Router()

	if rr := get(t, h, "/status"); rr.Code != http.StatusNotFound {
		t.Errorf("/status before any job = %d", rr.Code)
	}

	ctx := context.Background()
	s.Publish(ctx, core.Snapshot{RunID: "run-1", Attempt: 1, JobID: "1234", Status: core.StatusRunning})
	s.Publish(ctx, core.Snapshot{RunID: "run-1", Attempt: 1, JobID: "1234", Status: core.StatusPass})

	rr := get(t, h, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("/status = %d", rr.Code)
	}
	var latest core.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&latest); err != nil {
		t.Fatal(err)
	}
	if latest.Status != core.StatusPass || latest.JobID != "1234" {
		t.Errorf("latest = %+v", latest)
	}

	var history []core.Snapshot
	json.NewDecoder(get(t, h, "/status/history").Body).Decode(&history)
	if len(history) != 2 {
		t.Errorf("history has %d entries", len(history))
	}

	if rr := get(t, h, "/healthz"); rr.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rr.Code)
	}
}

func TestLedgerVerifyEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		ledger ChainVerifier
		code   int
	}{
		{"disabled", nil, http.StatusNotFound},
		{"ok", stubLedger{}, http.StatusOK},
		{"tampered", stubLedger{err: errors.New("hash mismatch at index 0")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(tt.ledger, prometheus.NewRegistry(), nil).Router()
			if rr := get(t, h, "/ledger/verify"); rr.Code != tt.code {
				t.Errorf("/ledger/verify = %d, want %d", rr.Code, tt.code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "lava_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rr := get(t, NewServer(nil, reg, nil).Router(), "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "lava_test_total 1") {
		t.Errorf("/metrics = %d\n%s", rr.Code, rr.Body.String())
	}
}
