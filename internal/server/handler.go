// Package server exposes the registry and matching API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/querystream/percolator/internal/ingest"
	"github.com/querystream/percolator/internal/monitor"
	"github.com/querystream/percolator/internal/query"
	"github.com/querystream/percolator/internal/registry"
	"github.com/querystream/percolator/pkg/config"
	"github.com/querystream/percolator/pkg/errors"
	"github.com/querystream/percolator/pkg/logger"
	"github.com/querystream/percolator/pkg/metrics"
)

// Handler serves the query-registry and match endpoints.
type Handler struct {
	monitor *monitor.Monitor
	store   registry.Store
	metrics *metrics.Metrics
	cfg     config.MatcherConfig
	logger  *slog.Logger
}

// New creates a Handler. store and m may be nil (no persistence, no
// metrics).
func New(mon *monitor.Monitor, store registry.Store, m *metrics.Metrics, cfg config.MatcherConfig) *Handler {
	return &Handler{
		monitor: mon,
		store:   store,
		metrics: m,
		cfg:     cfg,
		logger:  slog.Default().With("component", "api-handler"),
	}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/queries", h.RegisterQueries)
	mux.HandleFunc("GET /api/v1/queries", h.Stats)
	mux.HandleFunc("GET /api/v1/queries/{id}", h.GetQuery)
	mux.HandleFunc("DELETE /api/v1/queries/{id}", h.DeleteQuery)
	mux.HandleFunc("POST /api/v1/match", h.Match)
}

// RegisterQueries registers or replaces a batch of queries. The whole batch
// is validated before anything becomes visible; on success the batch is
// persisted to the durable store.
func (h *Handler) RegisterQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var queries []*query.MonitorQuery
	if err := json.NewDecoder(r.Body).Decode(&queries); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid query batch: "+err.Error())
		return
	}
	if len(queries) == 0 {
		h.writeError(w, http.StatusBadRequest, "empty query batch")
		return
	}

	if err := h.monitor.Register(queries...); err != nil {
		log.Error("query registration failed", "count", len(queries), "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.store != nil {
		if err := h.store.SaveQueries(ctx, queries); err != nil {
			// The in-memory registration already succeeded; losing
			// persistence is an operational problem, not a client error.
			log.Error("persisting queries failed", "count", len(queries), "error", err)
		}
	}
	h.updateQueryGauge()

	log.Info("queries registered", "count", len(queries), "total", h.monitor.Count())
	h.writeJSON(w, http.StatusOK, map[string]any{
		"registered": len(queries),
		"total":      h.monitor.Count(),
	})
}

// GetQuery returns one registered query by id.
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := h.monitor.Get(id)
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

// DeleteQuery removes a query. Deleting an unknown id succeeds; removal is
// idempotent.
func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	h.monitor.Remove(id)
	if h.store != nil {
		if err := h.store.DeleteQuery(ctx, id); err != nil {
			logger.FromContext(ctx).Error("deleting stored query failed", "query_id", id, "error", err)
		}
	}
	h.updateQueryGauge()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"removed": id,
		"total":   h.monitor.Count(),
	})
}

// Stats reports registry counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"queries": h.monitor.Count(),
	})
}

// Match runs one document through the engine and returns the aggregated
// matches.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	var event ingest.DocumentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document: "+err.Error())
		return
	}
	doc, err := event.ToDocument(h.cfg.DefaultAnalyzer)
	if err != nil {
		h.writeError(w, errors.HTTPStatusCode(err), err.Error())
		return
	}

	matchCtx := ctx
	if h.cfg.MatchTimeout > 0 {
		var cancel context.CancelFunc
		matchCtx, cancel = context.WithTimeout(ctx, h.cfg.MatchTimeout)
		defer cancel()
	}
	result, err := h.monitor.Match(matchCtx, doc)
	if err != nil {
		log.Error("match failed", "doc_id", doc.ID, "error", err)
		h.writeError(w, errors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.MatchLatency.Observe(time.Since(start).Seconds())
		h.metrics.CandidatesPerDoc.Observe(float64(result.Candidates))
		h.metrics.MatchesPerDoc.Observe(float64(result.MatchCount()))
	}

	log.Info("document matched",
		"doc_id", doc.ID,
		"matches", result.MatchCount(),
		"candidates", result.Candidates,
		"latency_ms", time.Since(start).Milliseconds(),
		"partial", result.Partial,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) updateQueryGauge() {
	if h.metrics != nil {
		h.metrics.RegisteredQueries.Set(float64(h.monitor.Count()))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
