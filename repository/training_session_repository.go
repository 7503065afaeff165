package repository

import (
	"fmt"
	"time"

	"github.com/camden-git/facegatebackend/models"
	"gorm.io/gorm"
)

// TrainingSessionRepository handles database operations for TrainingSession entities
type TrainingSessionRepository struct {
	DB *gorm.DB
}

// NewTrainingSessionRepository creates a new instance of TrainingSessionRepository
func NewTrainingSessionRepository(db *gorm.DB) *TrainingSessionRepository {
	return &TrainingSessionRepository{DB: db}
}

// Create appends a new training session record
func (r *TrainingSessionRepository) Create(session *models.TrainingSession) error {
	now := time.Now().Unix()
	if session.TrainingTimestamp == 0 {
		session.TrainingTimestamp = now
	}
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}

	err := r.DB.Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to create training session for %s: %w", session.PersonName, err)
	}
	return nil
}

// ListRecent retrieves the most recent training sessions, newest first
func (r *TrainingSessionRepository) ListRecent(limit int) ([]models.TrainingSession, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var sessions []models.TrainingSession
	err := r.DB.Order("training_timestamp DESC, id DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list training sessions: %w", err)
	}
	return sessions, nil
}
