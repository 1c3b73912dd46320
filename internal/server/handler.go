package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/reportstore"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
	"github.com/kilupskalvis/shoprestore/internal/view"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LogStore is the persistence the handlers need.
type LogStore interface {
	ListLogs(ctx context.Context) ([]models.LogEntry, error)
	DeleteLog(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// RowRestorer restores a single row outside of a batch.
type RowRestorer interface {
	RestoreRow(ctx context.Context, row restore.Row) (models.JobOutcome, error)
}

// ReportReader reads finished batch reports.
type ReportReader interface {
	GetReport(ctx context.Context, id string) (*models.BatchReport, error)
	ListReports(ctx context.Context, limit int) ([]*models.BatchReport, error)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Logs     LogStore
	Restorer RowRestorer
	Counter  shopify.Counter
	View     *view.Controller
	Reports  ReportReader // optional
}

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody    int64  // bytes
	RequestsPerMinute int    // per-client rate limit
	APIToken          string // bearer token for /api/
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    4 * 1024 * 1024,
		RequestsPerMinute: 300,
	}
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(deps *Deps, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	h := &handlers{deps: deps, cfg: cfg, logger: logger}

	// Execution order: auth -> rl -> body limit -> handler
	api := func(fn http.HandlerFunc) http.Handler {
		return applyMiddleware(fn, bearerAuth(cfg.APIToken), rl.middleware, h.limitBody)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Logs.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: log store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Logs
	mux.Handle("GET /api/logs", api(h.listLogs))
	mux.Handle("POST /api/logs/delete", api(h.deleteLog))
	mux.Handle("POST /api/restore", api(h.restoreRow))
	mux.Handle("POST /api/count", api(h.count))

	// View
	mux.Handle("GET /api/view", api(h.viewSnapshot))
	mux.Handle("POST /api/view/load", api(h.viewLoad))
	mux.Handle("POST /api/view/rows/{index}/toggle", api(h.viewToggle))
	mux.Handle("POST /api/view/logs/{id}/restore", api(h.viewRequestRestore))
	mux.Handle("POST /api/view/confirm", api(h.viewConfirm))
	mux.Handle("POST /api/view/cancel", api(h.viewCancel))
	mux.Handle("POST /api/view/dismiss", api(h.viewDismiss))

	// Reports
	mux.Handle("GET /api/reports", api(h.listReports))
	mux.Handle("GET /api/reports/{id}", api(h.getReport))

	// requestID must run first: it replaces the request, and the mux sets the
	// matched pattern on the request that logging holds.
	handler := applyMiddleware(mux,
		requestIDMiddleware,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
	)

	cleanup := func() {
		rl.Stop()
	}

	return handler, cleanup
}

type handlers struct {
	deps   *Deps
	cfg    *ServerConfig
	logger *slog.Logger
}

func (h *handlers) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.MaxRequestBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBody)
		}
		next.ServeHTTP(w, r)
	})
}

// --- Log Handlers ---

func (h *handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.deps.Logs.ListLogs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *handlers) deleteLog(w http.ResponseWriter, r *http.Request) {
	req := deleteRequest{RowID: r.FormValue("rowId")}
	id, convErr := strconv.ParseInt(req.RowID, 10, 64)
	if err := req.Validate(); err != nil || convErr != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid or missing rowId"})
		return
	}

	if err := h.deps.Logs.DeleteLog(r.Context(), id); err != nil {
		h.logger.Error("delete log", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Delete failed",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type restoreResponse struct {
	Success bool               `json:"success"`
	Errors  []models.UserError `json:"errors,omitempty"`
}

func restoreFailure(msg string) restoreResponse {
	return restoreResponse{Errors: []models.UserError{{Message: msg}}}
}

func (h *handlers) restoreRow(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("rows")
	if raw == "" {
		raw = "[]"
	}
	var rows []*restore.Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		writeJSON(w, http.StatusInternalServerError, restoreFailure(err.Error()))
		return
	}
	if len(rows) == 0 || rows[0] == nil {
		writeJSON(w, http.StatusOK, restoreFailure("No row data provided"))
		return
	}
	row := *rows[0]

	if err := requestValidate.Struct(&row); err != nil {
		writeJSON(w, http.StatusOK, restoreFailure("Unable to resolve Shopify ID"))
		return
	}

	outcome, err := h.deps.Restorer.RestoreRow(r.Context(), row)
	var (
		resErr  *restore.ResolutionError
		userErr *restore.MutationUserError
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, restoreResponse{Success: true})
	case errors.Is(err, restore.ErrInvalidRow):
		writeJSON(w, http.StatusOK, restoreFailure("Invalid restore request. No tags or metafields present."))
	case errors.As(err, &resErr):
		writeJSON(w, http.StatusOK, restoreFailure("ID resolution failed: "+resErr.Err.Error()))
	case errors.Is(err, restore.ErrIdentifierNotFound):
		writeJSON(w, http.StatusOK, restoreFailure("Unable to resolve Shopify ID"))
	case errors.As(err, &userErr):
		writeJSON(w, http.StatusOK, restoreResponse{Errors: outcome.Errors})
	default:
		h.logger.Error("restore row", "id", row.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, restoreFailure(err.Error()))
	}
}

func (h *handlers) count(w http.ResponseWriter, r *http.Request) {
	req := countRequest{Resource: r.FormValue("resource"), Tags: parseTags(r.FormValue("tags"))}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	n, err := h.deps.Counter.CountByTags(r.Context(), req.Resource, req.Tags)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"resource": req.Resource,
		"tagCount": n,
	})
}

// --- View Handlers ---

func (h *handlers) viewSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

func (h *handlers) viewLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.View.Load(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

func (h *handlers) viewToggle(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "row index must be an integer"})
		return
	}
	if err := h.deps.View.ToggleRow(i); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

func (h *handlers) viewRequestRestore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "log id must be an integer"})
		return
	}
	if err := h.deps.View.RequestRestore(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

func (h *handlers) viewConfirm(w http.ResponseWriter, r *http.Request) {
	err := h.deps.View.Confirm(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, h.deps.View.Snapshot())
	case errors.Is(err, restore.ErrBatchInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "batch_in_flight", "message": err.Error()})
	case errors.Is(err, view.ErrNoPendingRestore):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
	}
}

func (h *handlers) viewCancel(w http.ResponseWriter, _ *http.Request) {
	h.deps.View.Cancel()
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

func (h *handlers) viewDismiss(w http.ResponseWriter, _ *http.Request) {
	if err := h.deps.View.Dismiss(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "batch_in_flight", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.View.Snapshot())
}

// --- Report Handlers ---

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reports == nil {
		writeJSON(w, http.StatusOK, map[string]any{"reports": []*models.BatchReport{}})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	reports, err := h.deps.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	if reports == nil {
		reports = []*models.BatchReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reports == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "report not found"})
		return
	}
	report, err := h.deps.Reports.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, reportstore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "report not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
