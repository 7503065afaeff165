package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/facegatebackend/config"
	"github.com/camden-git/facegatebackend/database"
	"github.com/camden-git/facegatebackend/repository"
)

const (
	defaultRecentLimit  = 100
	maxRecentLimit      = 500
	defaultHistoryLimit = 50
	defaultDailyDays    = 30
)

// AuditHandler exposes the audit store's read views and the retention cleanup
type AuditHandler struct {
	Logs     repository.AccessLogRepositoryInterface
	Sessions repository.TrainingSessionRepositoryInterface
	SQLDB    *sql.DB
	Cfg      config.Config
}

func queryLimit(r *http.Request, param string, defaultVal, maxVal int) int {
	valStr := r.URL.Query().Get(param)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return maxVal
	}
	return val
}

// GetRecentAttempts returns the most recent access events, newest first
// GET /api/logs/recent?limit=100
func (h *AuditHandler) GetRecentAttempts(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, "limit", defaultRecentLimit, maxRecentLimit)

	events, err := h.Logs.ListRecent(limit)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list recent access events")
		return
	}
	WriteJSON(w, http.StatusOK, events)
}

// GetPersonHistory returns one person's events, newest first
// GET /api/logs/person/{person_name}?limit=50
func (h *AuditHandler) GetPersonHistory(w http.ResponseWriter, r *http.Request) {
	personName := chi.URLParam(r, "person_name")
	if personName == "" {
		WriteAPIError(w, http.StatusBadRequest, "missing_person", "person_name is required")
		return
	}
	limit := queryLimit(r, "limit", defaultHistoryLimit, maxRecentLimit)

	events, err := h.Logs.ListByPerson(personName, limit)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list access events for person")
		return
	}
	WriteJSON(w, http.StatusOK, events)
}

// GetPersonStatistics returns per-person aggregates
// GET /api/stats/people
func (h *AuditHandler) GetPersonStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetPersonStatistics(h.SQLDB)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "stats_failed", "failed to compute person statistics")
		return
	}
	if stats == nil {
		stats = []database.PersonStats{}
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetDailyStatistics returns per-day aggregates, most recent date first
// GET /api/stats/daily?days=30
func (h *AuditHandler) GetDailyStatistics(w http.ResponseWriter, r *http.Request) {
	days := queryLimit(r, "days", defaultDailyDays, 365)

	stats, err := database.GetDailyStatistics(h.SQLDB, days)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "stats_failed", "failed to compute daily statistics")
		return
	}
	if stats == nil {
		stats = []database.DailyStats{}
	}
	WriteJSON(w, http.StatusOK, stats)
}

// ListTrainingSessions returns recent training sessions, newest first
// GET /api/training_sessions?limit=50
func (h *AuditHandler) ListTrainingSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, "limit", defaultHistoryLimit, maxRecentLimit)

	sessions, err := h.Sessions.ListRecent(limit)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "failed to list training sessions")
		return
	}
	WriteJSON(w, http.StatusOK, sessions)
}

type cleanupRequest struct {
	DaysToKeep int `json:"days_to_keep"`
}

type cleanupResponse struct {
	DeletedCount int64 `json:"deleted_count"`
	DaysToKeep   int   `json:"days_to_keep"`
}

// CleanupLogs deletes access events older than the retention window and
// returns the deleted count. Safe to call repeatedly.
// POST /api/logs/cleanup {"days_to_keep": 90}
func (h *AuditHandler) CleanupLogs(w http.ResponseWriter, r *http.Request) {
	req := cleanupRequest{DaysToKeep: h.Cfg.RetentionDays}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_body", "invalid cleanup request body")
			return
		}
	}
	if req.DaysToKeep <= 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_retention", "days_to_keep must be positive")
		return
	}

	deleted, err := database.CleanupOldLogs(h.SQLDB, req.DaysToKeep)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "cleanup_failed", "failed to delete old access events")
		return
	}
	WriteJSON(w, http.StatusOK, cleanupResponse{DeletedCount: deleted, DaysToKeep: req.DaysToKeep})
}
