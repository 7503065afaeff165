package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// PersonStats aggregates all recognition attempts attributed to one person.
// AvgConfidenceOnSuccess is nil when the person never had a granted attempt.
type PersonStats struct {
	PersonName             string   `json:"person_name"`
	Total                  int64    `json:"total"`
	Successful             int64    `json:"successful"`
	Failed                 int64    `json:"failed"`
	AvgConfidenceOnSuccess *float64 `json:"avg_confidence_on_success"`
	LastSeen               int64    `json:"last_seen"` // Unix timestamp
}

// DailyStats aggregates attempts per calendar date (UTC).
type DailyStats struct {
	Date          string `json:"date"` // YYYY-MM-DD
	Total         int64  `json:"total"`
	Successful    int64  `json:"successful"`
	Failed        int64  `json:"failed"`
	UniquePersons int64  `json:"unique_persons"`
}

// GetPersonStatistics returns per-person aggregates over access_logs.
// Events with no attributed person (no-face, unknown, low confidence)
// are excluded since they carry no person_name.
func GetPersonStatistics(db *sql.DB) ([]PersonStats, error) {
	queryBuilder := psql.Select(
		"person_name",
		"COUNT(*) AS total",
		"SUM(CASE WHEN access_granted THEN 1 ELSE 0 END) AS successful",
		"SUM(CASE WHEN access_granted THEN 0 ELSE 1 END) AS failed",
		"AVG(CASE WHEN access_granted THEN confidence END) AS avg_confidence_on_success",
		"MAX(access_timestamp) AS last_seen",
	).
		From("access_logs").
		Where(sq.NotEq{"person_name": nil}).
		GroupBy("person_name").
		OrderBy("person_name ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetPersonStatistics: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query person statistics: %w", err)
	}
	defer rows.Close()

	var stats []PersonStats
	for rows.Next() {
		var s PersonStats
		if err := rows.Scan(&s.PersonName, &s.Total, &s.Successful, &s.Failed, &s.AvgConfidenceOnSuccess, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan person statistics row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// GetDailyStatistics returns per-day aggregates over access_logs,
// most recent date first, bounded to limitDays rows.
func GetDailyStatistics(db *sql.DB, limitDays int) ([]DailyStats, error) {
	if limitDays <= 0 {
		limitDays = 30
	}

	queryBuilder := psql.Select(
		"date(access_timestamp, 'unixepoch') AS day",
		"COUNT(*) AS total",
		"SUM(CASE WHEN access_granted THEN 1 ELSE 0 END) AS successful",
		"SUM(CASE WHEN access_granted THEN 0 ELSE 1 END) AS failed",
		"COUNT(DISTINCT person_name) AS unique_persons",
	).
		From("access_logs").
		GroupBy("day").
		OrderBy("day DESC").
		Limit(uint64(limitDays))

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetDailyStatistics: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily statistics: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Date, &s.Total, &s.Successful, &s.Failed, &s.UniquePersons); err != nil {
			return nil, fmt.Errorf("failed to scan daily statistics row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CleanupOldLogs deletes access events older than daysToKeep days and returns
// the number of rows removed. This is the only deletion path over access_logs
// and is idempotent: a second call with nothing left to delete returns 0.
func CleanupOldLogs(db *sql.DB, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		return 0, fmt.Errorf("daysToKeep must be positive, got %d", daysToKeep)
	}

	cutoff := time.Now().AddDate(0, 0, -daysToKeep).Unix()

	queryBuilder := psql.Delete("access_logs").
		Where(sq.Lt{"access_timestamp": cutoff})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for CleanupOldLogs: %w", err)
	}

	result, err := db.Exec(sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute cleanup of old access logs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cleanup row count: %w", err)
	}
	return deleted, nil
}
