package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"usher/internal/core"
	"usher/internal/utils"
)

type APIHandler struct {
	manager *core.Manager
	logger  *utils.Logger
}

// A helper function to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to respond with a JSON error
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func NewAPIHandler(manager *core.Manager, logger *utils.Logger) *APIHandler {
	return &APIHandler{manager: manager, logger: logger}
}

// hookRequest is the body the catalog's hook dispatcher posts.
type hookRequest struct {
	ID    json.Number `json:"id"`
	Event string      `json:"event"`
}

func (h *APIHandler) hookHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ID.String() == "" {
			respondError(w, http.StatusBadRequest, "id is required")
			return
		}
		event := req.Event
		if event == "" {
			event = "update"
		}
		if event != "create" && event != "update" {
			respondError(w, http.StatusBadRequest, "event must be 'create' or 'update'")
			return
		}

		hook := core.HookEvent{Kind: kind, ID: req.ID.String(), Event: event}
		if !h.manager.EnqueueHook(hook) {
			respondError(w, http.StatusServiceUnavailable, "Hook queue is full")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

func (h *APIHandler) SceneHook(w http.ResponseWriter, r *http.Request) {
	h.hookHandler("scene")(w, r)
}

func (h *APIHandler) PerformerHook(w http.ResponseWriter, r *http.Request) {
	h.hookHandler("performer")(w, r)
}

func (h *APIHandler) StudioHook(w http.ResponseWriter, r *http.Request) {
	h.hookHandler("studio")(w, r)
}

func (h *APIHandler) taskHandler(name string, start func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !start() {
			respondError(w, http.StatusConflict, name+" is already running")
			return
		}
		h.logger.Info("Task started via API:", name)
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started", "task": name})
	}
}

func (h *APIHandler) OrganizeTask(w http.ResponseWriter, r *http.Request) {
	h.taskHandler("organize", h.manager.RunOrganizeTask)(w, r)
}

func (h *APIHandler) PerformerSyncTask(w http.ResponseWriter, r *http.Request) {
	h.taskHandler("performer sync", h.manager.RunPerformerSyncTask)(w, r)
}

func (h *APIHandler) StudioSyncTask(w http.ResponseWriter, r *http.Request) {
	h.taskHandler("studio sync", h.manager.RunStudioSyncTask)(w, r)
}

func (h *APIHandler) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.GetSystemStatus())
}

// historyLimit reads the optional ?limit= parameter, defaulting to 50.
func historyLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}

func (h *APIHandler) GetMoveHistory(w http.ResponseWriter, r *http.Request) {
	moves, err := h.manager.RecentMoves(historyLimit(r))
	if err != nil {
		h.logger.Error("Failed to fetch move history:", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch move history")
		return
	}
	respondJSON(w, http.StatusOK, moves)
}

func (h *APIHandler) GetJobHistory(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.manager.RecentJobs(historyLimit(r))
	if err != nil {
		h.logger.Error("Failed to fetch job history:", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch job history")
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (h *APIHandler) TestCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.TestCatalogConnection(r.Context()); err != nil {
		h.logger.Error("Catalog connection test failed:", err)
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *APIHandler) TestMediaServer(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.TestMediaServerConnection(r.Context()); err != nil {
		h.logger.Error("Media server connection test failed:", err)
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *APIHandler) TestNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.TestNotifications(); err != nil {
		h.logger.Error("Notification test failed:", err)
		respondJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
