package repository

import (
	"github.com/camden-git/facegatebackend/models"
)

// AccessLogRepositoryInterface defines methods for access event persistence.
// Events are append-only; there is no update or single-row delete.
type AccessLogRepositoryInterface interface {
	Create(event *models.AccessLog) error
	ListRecent(limit int) ([]models.AccessLog, error)
	ListByPerson(personName string, limit int) ([]models.AccessLog, error)
}

// TrainingSessionRepositoryInterface defines methods for training session persistence
type TrainingSessionRepositoryInterface interface {
	Create(session *models.TrainingSession) error
	ListRecent(limit int) ([]models.TrainingSession, error)
}
