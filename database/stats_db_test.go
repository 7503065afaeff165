package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/facegatebackend/models"
)

func newStatsDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	db, err := InitGormDB(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	return db, sqlDB
}

func seedEvent(t *testing.T, db *gorm.DB, name string, granted bool, confidence float64, ts int64) {
	t.Helper()
	event := models.AccessLog{
		Confidence:      confidence,
		AccessTimestamp: ts,
		AccessGranted:   granted,
		EventType:       models.EventSuccessfulAccess,
		CreatedAt:       ts,
	}
	if name != "" {
		event.PersonName = &name
	}
	if !granted {
		event.EventType = models.EventFailedAccess
		reason := models.FailureLowConfidence
		event.FailureReason = &reason
		event.PersonName = nil
	}
	require.NoError(t, db.Create(&event).Error)
}

func TestGetPersonStatistics(t *testing.T) {
	db, sqlDB := newStatsDB(t)
	base := time.Now().Unix()

	seedEvent(t, db, "Ana", true, 40, base-100)
	seedEvent(t, db, "Ana", true, 50, base-50)
	seedEvent(t, db, "", false, 90, base-10) // anonymous denial, excluded
	seedEvent(t, db, "Leo", true, 30, base-20)

	stats, err := GetPersonStatistics(sqlDB)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	ana := stats[0]
	assert.Equal(t, "Ana", ana.PersonName)
	assert.Equal(t, int64(2), ana.Total)
	assert.Equal(t, int64(2), ana.Successful)
	assert.Equal(t, int64(0), ana.Failed)
	require.NotNil(t, ana.AvgConfidenceOnSuccess)
	assert.InDelta(t, 45.0, *ana.AvgConfidenceOnSuccess, 0.001)
	assert.Equal(t, base-50, ana.LastSeen)

	leo := stats[1]
	assert.Equal(t, "Leo", leo.PersonName)
	assert.Equal(t, int64(1), leo.Total)
}

func TestGetDailyStatistics(t *testing.T) {
	db, sqlDB := newStatsDB(t)

	today := time.Now().UTC().Truncate(24 * time.Hour).Add(12 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	seedEvent(t, db, "Ana", true, 40, today.Unix())
	seedEvent(t, db, "Leo", true, 30, today.Unix()+60)
	seedEvent(t, db, "", false, 95, today.Unix()+120)
	seedEvent(t, db, "Ana", true, 42, yesterday.Unix())

	stats, err := GetDailyStatistics(sqlDB, 30)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, today.Format("2006-01-02"), stats[0].Date, "most recent date first")
	assert.Equal(t, int64(3), stats[0].Total)
	assert.Equal(t, int64(2), stats[0].Successful)
	assert.Equal(t, int64(1), stats[0].Failed)
	assert.Equal(t, int64(2), stats[0].UniquePersons)

	assert.Equal(t, yesterday.Format("2006-01-02"), stats[1].Date)
	assert.Equal(t, int64(1), stats[1].Total)
}

func TestCleanupOldLogsRespectsRetentionWindow(t *testing.T) {
	db, sqlDB := newStatsDB(t)
	now := time.Now()

	seedEvent(t, db, "Ana", true, 40, now.AddDate(0, 0, -10).Unix())
	seedEvent(t, db, "Leo", true, 30, now.AddDate(0, 0, -100).Unix())

	deleted, err := CleanupOldLogs(sqlDB, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted, "only the 100-day-old event is outside the window")

	var remaining int64
	require.NoError(t, db.Model(&models.AccessLog{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)

	// idempotent: nothing left to delete
	deleted, err = CleanupOldLogs(sqlDB, 90)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupOldLogsRejectsNonPositiveRetention(t *testing.T) {
	_, sqlDB := newStatsDB(t)

	_, err := CleanupOldLogs(sqlDB, 0)
	assert.Error(t, err)
	_, err = CleanupOldLogs(sqlDB, -5)
	assert.Error(t, err)
}
