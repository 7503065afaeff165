package repository

import (
	"fmt"
	"time"

	"github.com/camden-git/facegatebackend/models"
	"gorm.io/gorm"
)

const DefaultRecentLimit = 100

// AccessLogRepository handles database operations for AccessLog entities
type AccessLogRepository struct {
	DB *gorm.DB
}

// NewAccessLogRepository creates a new instance of AccessLogRepository
func NewAccessLogRepository(db *gorm.DB) *AccessLogRepository {
	return &AccessLogRepository{DB: db}
}

// Create appends a new access event. Timestamps default to now when unset so
// the event's wall-clock position reflects submission, not persistence.
func (r *AccessLogRepository) Create(event *models.AccessLog) error {
	now := time.Now().Unix()
	if event.AccessTimestamp == 0 {
		event.AccessTimestamp = now
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = now
	}

	err := r.DB.Create(event).Error
	if err != nil {
		return fmt.Errorf("failed to create access log (%s): %w", event.EventType, err)
	}
	return nil
}

// ListRecent retrieves the most recent access events, newest first
func (r *AccessLogRepository) ListRecent(limit int) ([]models.AccessLog, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var events []models.AccessLog
	err := r.DB.Order("access_timestamp DESC, id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent access logs: %w", err)
	}
	return events, nil
}

// ListByPerson retrieves one person's access events, newest first
func (r *AccessLogRepository) ListByPerson(personName string, limit int) ([]models.AccessLog, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var events []models.AccessLog
	err := r.DB.Where("person_name = ?", personName).
		Order("access_timestamp DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs for %s: %w", personName, err)
	}
	return events, nil
}
