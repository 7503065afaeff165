package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/camden-git/facegatebackend/config"
	"github.com/camden-git/facegatebackend/database"
	"github.com/camden-git/facegatebackend/models"
	"github.com/camden-git/facegatebackend/repository"
)

func newAuditHandler(t *testing.T) (*AuditHandler, *repository.AccessLogRepository) {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)

	logs := repository.NewAccessLogRepository(db)
	return &AuditHandler{
		Logs:     logs,
		Sessions: repository.NewTrainingSessionRepository(db),
		SQLDB:    sqlDB,
		Cfg:      config.Config{RetentionDays: 90},
	}, logs
}

func seedGrant(t *testing.T, logs *repository.AccessLogRepository, name string, ts int64) {
	t.Helper()
	require.NoError(t, logs.Create(&models.AccessLog{
		PersonName:      &name,
		Confidence:      42,
		AccessTimestamp: ts,
		AccessGranted:   true,
		EventType:       models.EventSuccessfulAccess,
	}))
}

func TestGetRecentAttempts(t *testing.T) {
	h, logs := newAuditHandler(t)
	base := time.Now().Unix()
	seedGrant(t, logs, "Ana", base-20)
	seedGrant(t, logs, "Leo", base-10)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/recent?limit=1", nil)
	rec := httptest.NewRecorder()
	h.GetRecentAttempts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.AccessLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.NotNil(t, events[0].PersonName)
	assert.Equal(t, "Leo", *events[0].PersonName)
}

func TestGetRecentAttemptsIgnoresBadLimit(t *testing.T) {
	h, logs := newAuditHandler(t)
	seedGrant(t, logs, "Ana", time.Now().Unix())

	req := httptest.NewRequest(http.MethodGet, "/api/logs/recent?limit=banana", nil)
	rec := httptest.NewRecorder()
	h.GetRecentAttempts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.AccessLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}

func TestGetPersonHistoryViaRouter(t *testing.T) {
	h, logs := newAuditHandler(t)
	base := time.Now().Unix()
	seedGrant(t, logs, "Ana", base-5)
	seedGrant(t, logs, "Leo", base-1)

	r := chi.NewRouter()
	r.Get("/api/logs/person/{person_name}", h.GetPersonHistory)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/person/Ana", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.AccessLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Ana", *events[0].PersonName)
}

func TestGetPersonStatisticsEmptyStore(t *testing.T) {
	h, _ := newAuditHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/people", nil)
	rec := httptest.NewRecorder()
	h.GetPersonStatistics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), "empty store serializes as an empty array, not null")
}

func TestCleanupLogs(t *testing.T) {
	h, logs := newAuditHandler(t)
	now := time.Now()
	seedGrant(t, logs, "Ana", now.AddDate(0, 0, -10).Unix())
	seedGrant(t, logs, "Leo", now.AddDate(0, 0, -120).Unix())

	req := httptest.NewRequest(http.MethodPost, "/api/logs/cleanup", strings.NewReader(`{"days_to_keep": 90}`))
	rec := httptest.NewRecorder()
	h.CleanupLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp cleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.DeletedCount)
	assert.Equal(t, 90, resp.DaysToKeep)
}

func TestCleanupLogsDefaultsToConfiguredRetention(t *testing.T) {
	h, logs := newAuditHandler(t)
	seedGrant(t, logs, "Ana", time.Now().AddDate(0, 0, -120).Unix())

	req := httptest.NewRequest(http.MethodPost, "/api/logs/cleanup", nil)
	rec := httptest.NewRecorder()
	h.CleanupLogs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp cleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 90, resp.DaysToKeep)
	assert.Equal(t, int64(1), resp.DeletedCount)
}

func TestCleanupLogsRejectsNonPositiveRetention(t *testing.T) {
	h, _ := newAuditHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/logs/cleanup", strings.NewReader(`{"days_to_keep": -1}`))
	rec := httptest.NewRecorder()
	h.CleanupLogs(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireWriteKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireWriteKey(string(hash), next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/train", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/train", nil)
		req.Header.Set("X-API-Key", "guess")
		rec := httptest.NewRecorder()
		RequireWriteKey(string(hash), next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("correct key passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/train", nil)
		req.Header.Set("X-API-Key", "open-sesame")
		rec := httptest.NewRecorder()
		RequireWriteKey(string(hash), next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("empty hash disables the check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireWriteKey("", next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/train", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
