package diag

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a run's diagnostics over HTTP: snapshot listing and
// download, the event timeline, and Prometheus metrics.
type Server struct {
	sink *Sink
	log  *slog.Logger
	srv  *http.Server
}

// NewServer builds the viewer around a sink.
func NewServer(sink *Sink, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{sink: sink, log: log}
}

// Router assembles the viewer routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/snapshots", s.handleSnapshots)
	r.Get("/snapshots/{id}", s.handleSnapshot)
	r.Get("/events", s.handleEvents)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve runs the viewer until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("diag: viewer listening", "addr", addr, "run_id", s.sink.RunID())
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.sink.Snapshots(r.Context())
	if err != nil {
		s.log.Error("diag: list snapshots", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snaps)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sink.SnapshotByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("diag: load snapshot", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, snap.Path)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.sink.Events(r.Context())
	if err != nil {
		s.log.Error("diag: list events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("diag: encode response", "error", err)
	}
}
