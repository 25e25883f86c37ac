package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pesio-ai/be-prepress-worklist/internal/platform/errors"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/logger"
	"github.com/pesio-ai/be-prepress-worklist/internal/platform/middleware"
	"github.com/pesio-ai/be-prepress-worklist/internal/service"
	"github.com/pesio-ai/be-prepress-worklist/internal/workitem"
)

// PendingFetcher is the aggregator the handler serves.
type PendingFetcher interface {
	FetchPendingForUser(ctx context.Context, username string) (*service.PendingResult, error)
}

// WorkItemUpdater is the orchestrator the handler serves.
type WorkItemUpdater interface {
	Load(ctx context.Context, provenance, id string) (*workitem.WorkItem, error)
	ApplyUpdate(ctx context.Context, env service.Envelope) (*service.UpdateResult, error)
	ApplyBatch(ctx context.Context, envs []service.Envelope) []service.BatchItemResult
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	pending PendingFetcher
	updates WorkItemUpdater
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(pending PendingFetcher, updates WorkItemUpdater, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		pending: pending,
		updates: updates,
		log:     log,
	}
}

// Routes builds the router with the standard middleware chain.
func (h *HTTPHandler) Routes(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.EchoRequestID)
	r.Use(middleware.Logger(&h.log.Logger))
	r.Use(chimw.Recoverer)
	if requestTimeout > 0 {
		r.Use(chimw.Timeout(requestTimeout))
	}

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pending", h.GetPending)
		r.Get("/workitems/{provenance}/{id}", h.GetWorkItem)
		r.Post("/workitems/update", h.UpdateWorkItem)
		r.Post("/workitems/update/batch", h.UpdateBatch)
	})
	return r
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetPending handles GET /api/v1/pending?username=
func (h *HTTPHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	res, err := h.pending.FetchPendingForUser(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetWorkItem handles GET /api/v1/workitems/{provenance}/{id}
func (h *HTTPHandler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.updates.Load(r.Context(), chi.URLParam(r, "provenance"), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"item":   item,
		"fields": workitem.FieldValues(*item),
	})
}

// UpdateWorkItem handles POST /api/v1/workitems/update
func (h *HTTPHandler) UpdateWorkItem(w http.ResponseWriter, r *http.Request) {
	var env service.Envelope
	if err := decodeJSON(r, &env); err != nil {
		h.respondError(w, r, err)
		return
	}

	res, err := h.updates.ApplyUpdate(r.Context(), env)
	if err != nil {
		if res != nil {
			respondJSON(w, errors.HTTPStatus(err), map[string]any{
				"error":  errorBody(err),
				"result": res,
			})
			return
		}
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Items []service.Envelope `json:"items"`
}

// UpdateBatch handles POST /api/v1/workitems/update/batch
func (h *HTTPHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		h.respondError(w, r, errors.InvalidInput("items", "at least one item is required"))
		return
	}

	results := h.updates.ApplyBatch(r.Context(), req.Items)

	failed := 0
	for _, item := range results {
		if !item.OK {
			failed++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": len(results) - failed,
		"failed":    failed,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	return nil
}

func errorBody(err error) map[string]any {
	body := map[string]any{
		"code":    errors.CodeOf(err),
		"message": err.Error(),
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		body["message"] = appErr.Message
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
	}
	return body
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	// The Timeout middleware answers 504 once the request deadline passes.
	if r.Context().Err() == context.DeadlineExceeded {
		h.log.Warn().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request timed out")
		return
	}
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondJSON(w, status, map[string]any{"error": errorBody(err)})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
