// Package httpapi provides the REST HTTP adapter for the board service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/sprintboard/internal/adapters/server/common"
	"github.com/evanschultz/sprintboard/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader names the request header that attributes mutations to an actor.
const ActorHeader = "X-Actor-ID"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board  common.BoardService
	logger app.Logger
	mux    *http.ServeMux
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the board service. A nil logger discards.
func NewHandler(board common.BoardService, logger app.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &Handler{board: board, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /tasks", h.handleCreateTask)
	h.mux.HandleFunc("GET /tasks/{id}", h.handleGetTask)
	h.mux.HandleFunc("PATCH /tasks/{id}", h.handleUpdateTask)
	h.mux.HandleFunc("DELETE /tasks/{id}", h.handleDeleteTask)
	h.mux.HandleFunc("POST /tasks/{id}/move", h.handleMoveTask)
	h.mux.HandleFunc("POST /tasks/{id}/sprint-move", h.handleReorderInSprint)
	h.mux.HandleFunc("POST /tasks/{id}/duplicate", h.handleDuplicateTask)
	h.mux.HandleFunc("GET /tasks/{id}/history", h.handleListHistory)
	h.mux.HandleFunc("GET /columns/{status}", h.handleListColumn)
	h.mux.HandleFunc("GET /board", h.handleListBoard)
	h.mux.HandleFunc("GET /sprints/{id}", h.handleListSprint)
	h.mux.HandleFunc("GET /backlog", h.handleListSprint)
	h.mux.HandleFunc("POST /admin/resequence", h.handleResequence)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	return h
}

// ServeHTTP routes one versioned API request. The actor header, when present, is carried
// on the request context for mutation attribution.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	if actorID := strings.TrimSpace(r.Header.Get(ActorHeader)); actorID != "" {
		r = r.WithContext(app.WithActor(r.Context(), actorID))
	}
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	h.mux.ServeHTTP(w, r)
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	task, err := h.board.CreateTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask serves GET `/tasks/{id}`.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.board.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	req.TaskID = r.PathValue("id")
	task, err := h.board.UpdateTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ActorID string `json:"actor_id"`
	}
	if err := decodeOptionalJSONBody(r.Context(), w, r, &payload); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	out, err := h.board.DeleteTask(r.Context(), common.TaskRef{TaskID: r.PathValue("id"), ActorID: payload.ActorID})
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMoveTask serves POST `/tasks/{id}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var req common.MoveTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	req.TaskID = r.PathValue("id")
	out, err := h.board.MoveTask(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleReorderInSprint serves POST `/tasks/{id}/sprint-move`.
func (h *Handler) handleReorderInSprint(w http.ResponseWriter, r *http.Request) {
	var req common.ReorderInSprintRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	req.TaskID = r.PathValue("id")
	out, err := h.board.ReorderInSprint(r.Context(), req)
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDuplicateTask serves POST `/tasks/{id}/duplicate`.
func (h *Handler) handleDuplicateTask(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ActorID string `json:"actor_id"`
	}
	if err := decodeOptionalJSONBody(r.Context(), w, r, &payload); err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	out, err := h.board.DuplicateTask(r.Context(), common.TaskRef{TaskID: r.PathValue("id"), ActorID: payload.ActorID})
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleListHistory serves GET `/tasks/{id}/history`.
func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.board.ListHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": records,
	})
}

// handleListColumn serves GET `/columns/{status}`.
func (h *Handler) handleListColumn(w http.ResponseWriter, r *http.Request) {
	column, err := h.board.ListColumn(r.Context(), r.PathValue("status"))
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, column)
}

// handleListBoard serves GET `/board`.
func (h *Handler) handleListBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.ListBoard(r.Context())
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": board,
	})
}

// handleListSprint serves GET `/sprints/{id}` and GET `/backlog`.
func (h *Handler) handleListSprint(w http.ResponseWriter, r *http.Request) {
	var sprintID *string
	if id := strings.TrimSpace(r.PathValue("id")); id != "" {
		sprintID = &id
	}
	snapshot, err := h.board.ListSprint(r.Context(), sprintID)
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleResequence serves POST `/admin/resequence`.
func (h *Handler) handleResequence(w http.ResponseWriter, r *http.Request) {
	report, err := h.board.ResequenceAll(r.Context())
	if err != nil {
		h.writeErrorFrom(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func (h *Handler) writeErrorFrom(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrInvalidActorID):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
			Hint:    "Send the acting user in the " + ActorHeader + " header or an actor_id field.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	default:
		h.logger.Error("api request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
