package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"lava-submitter/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ChainVerifier checks the attempt ledger.
type ChainVerifier interface {
	VerifyChain() error
}

// Server exposes the state of the running submission over HTTP.
type Server struct {
	mu      sync.Mutex
	latest  *core.Snapshot
	history []core.Snapshot

	ledger   ChainVerifier
	gatherer prometheus.Gatherer
	log      *zerolog.Logger
	srv      *http.Server
}

var _ core.StatusSink = (*Server)(nil)

// NewServer builds the monitor. ledger may be nil; a nil gatherer means the
// default prometheus registry.
func NewServer(ledger ChainVerifier, gatherer prometheus.Gatherer, log *zerolog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Server{ledger: ledger, gatherer: gatherer, log: log}
}

// Publish records a snapshot.
func (s *Server) Publish(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snap
	s.history = append(s.history, snap)
	return nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/status/history", s.handleHistory)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("monitor listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// GET /status -> latest snapshot
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == nil {
		http.Error(w, "no job submitted yet", http.StatusNotFound)
		return
	}
	writeJSON(w, latest)
}

// GET /status/history
func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	history := make([]core.Snapshot, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	writeJSON(w, history)
}

// GET /ledger/verify -> run VerifyChain
func (s *Server) handleVerifyLedger(w http.ResponseWriter, _ *http.Request) {
	if s.ledger == nil {
		http.Error(w, "ledger disabled", http.StatusNotFound)
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("ledger verification ok"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
