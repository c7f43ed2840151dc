// Package collector implements the HTTP service that receives change
// event batches from monitoring agents and serves queries over them.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Sashwatreded/integrity-check/pkg/collector/store"
	"github.com/Sashwatreded/integrity-check/pkg/fim/logging"
	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

const (
	// DefaultListLimit applies when a query does not specify one.
	DefaultListLimit = 100

	// MaxListLimit caps any requested limit.
	MaxListLimit = 1000

	// maxBatchBytes bounds a single ingest request body.
	maxBatchBytes = 8 << 20
)

// Server is the collector HTTP service.
type Server struct {
	store  *store.Store
	router chi.Router
}

// NewServer builds a collector server over the given store.
func NewServer(st *store.Store) *Server {
	s := &Server{store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleIngest)
		r.Get("/events", s.handleList)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := logging.Get("collector")

	var batch types.EventBatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err := dec.Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch: "+err.Error())
		return
	}

	if err := validateBatch(batch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.InsertBatch(r.Context(), batch); err != nil {
		logger.Error("failed to store batch", "batch", batch.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	logger.Info("batch accepted",
		"batch", batch.ID,
		"root", batch.Root,
		"events", len(batch.Events))
	writeJSON(w, http.StatusCreated, map[string]any{
		"batch_id": batch.ID,
		"accepted": len(batch.Events),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f := store.Filter{
		Root:  r.URL.Query().Get("root"),
		Type:  r.URL.Query().Get("type"),
		Limit: DefaultListLimit,
	}

	if f.Type != "" && !types.EventType(f.Type).Valid() {
		writeError(w, http.StatusBadRequest, "unknown event type: "+f.Type)
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		f.Limit = n
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}

	events, err := s.store.ListEvents(r.Context(), f)
	if err != nil {
		logging.Get("collector").Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func validateBatch(batch types.EventBatch) error {
	if batch.ID == "" {
		return errors.New("batch id is required")
	}
	if batch.Root == "" {
		return errors.New("batch root is required")
	}
	if len(batch.Events) == 0 {
		return errors.New("batch has no events")
	}
	for _, ev := range batch.Events {
		if !ev.Type.Valid() {
			return errors.New("unknown event type: " + string(ev.Type))
		}
		if ev.Path == "" {
			return errors.New("event path is required")
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the collector on addr until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logging.Get("collector").Info("collector listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
