package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wdbm/blocktogether/internal/types/action"
	"github.com/wdbm/blocktogether/middleware"
	"github.com/wdbm/blocktogether/services"
)

type ActionHandler struct {
	actionService *services.ActionService
}

func NewActionHandler(actionService *services.ActionService) *ActionHandler {
	return &ActionHandler{
		actionService: actionService,
	}
}

// POST /api/v1/blocks/enqueue - Queue block actions for a source account
func (h *ActionHandler) EnqueueBlocks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	_, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var body action.EnqueueBlocksRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.SourceUID == "" || len(body.SinkUIDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "sourceUid and sinkUids are required")
		return
	}

	// Best-effort per item: failed rows are logged by the service, the
	// caller only learns how many were accepted.
	accepted := h.actionService.EnqueueBlocks(ctx, body.SourceUID, body.SinkUIDs)

	respondWithJSON(w, http.StatusAccepted, action.EnqueueBlocksResponse{
		SourceUID: body.SourceUID,
		Accepted:  accepted,
	})
}

// GET /api/v1/blocks/queue - Inspect queued actions for a source account
func (h *ActionHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sourceUID := r.URL.Query().Get("source_uid")
	if sourceUID == "" {
		respondWithError(w, http.StatusBadRequest, "source_uid is required")
		return
	}

	status := action.ActionStatus(r.URL.Query().Get("status"))

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	actions, err := h.actionService.ListActions(ctx, sourceUID, status, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, actions)
}

// GET /api/v1/blocks/stats - Per-status counts for a source account
func (h *ActionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sourceUID := r.URL.Query().Get("source_uid")
	if sourceUID == "" {
		respondWithError(w, http.StatusBadRequest, "source_uid is required")
		return
	}

	counts, err := h.actionService.StatusCounts(ctx, sourceUID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, counts)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
