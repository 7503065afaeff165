package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/camden-git/facegatebackend/dataset"
	"github.com/camden-git/facegatebackend/models"
	"github.com/camden-git/facegatebackend/repository"
	"github.com/camden-git/facegatebackend/vision"
)

// TrainingScopeAll marks a training session that used every enrolled label
const TrainingScopeAll = "all"

// TrainResult reports a successful training run
type TrainResult struct {
	ModelType   string    `json:"model_type"`
	ImagesCount int       `json:"images_count"`
	Labels      []string  `json:"labels"`
	TrainedAt   time.Time `json:"trained_at"`
}

// TrainerService builds model artifacts from the identity dataset. A
// successful run atomically replaces the current model; a failed run records
// a failed session and leaves the previous model untouched.
type TrainerService struct {
	dataset    *dataset.Store
	recognizer vision.Recognizer
	handle     *ModelHandle
	sessions   repository.TrainingSessionRepositoryInterface
	modelPath  string // persisted model location; empty disables persistence
	mu         *sync.Mutex
}

func NewTrainerService(ds *dataset.Store, rec vision.Recognizer, handle *ModelHandle, sessions repository.TrainingSessionRepositoryInterface, modelPath string, mu *sync.Mutex) *TrainerService {
	return &TrainerService{
		dataset:    ds,
		recognizer: rec,
		handle:     handle,
		sessions:   sessions,
		modelPath:  modelPath,
		mu:         mu,
	}
}

// Train loads a stable snapshot of the dataset, trains a new model artifact
// and swaps it in. Training over an unchanged dataset is idempotent in
// outcome: each run yields a successful session with the same images_count.
func (s *TrainerService) Train() (TrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	faces, sampleLabels, err := s.dataset.Load()
	if err != nil {
		return TrainResult{}, fmt.Errorf("failed to load identity dataset: %w", err)
	}

	distinct := make(map[string]struct{})
	for _, label := range sampleLabels {
		distinct[label] = struct{}{}
	}
	// a classifier distinguishing a single class is degenerate; reject before
	// anything is touched so the current model cannot be affected
	if len(distinct) < 2 {
		return TrainResult{}, ErrInsufficientData
	}

	startedAt := time.Now()

	scorer, err := s.recognizer.Train(faces, sampleLabels)
	if err != nil {
		s.recordSession(len(faces), startedAt, false)
		return TrainResult{}, fmt.Errorf("%w: %v", ErrTrainingFailed, err)
	}

	if s.modelPath != "" {
		if err := scorer.Save(s.modelPath); err != nil {
			s.recordSession(len(faces), startedAt, false)
			return TrainResult{}, fmt.Errorf("%w: persisting model: %v", ErrTrainingFailed, err)
		}
	}

	model := &Model{
		Scorer:      scorer,
		Kind:        s.recognizer.Kind(),
		TrainedAt:   startedAt,
		SampleCount: len(faces),
	}
	s.handle.Swap(model)
	s.recordSession(len(faces), startedAt, true)

	log.Printf("trainer: trained %s model over %d sample(s), %d people", model.Kind, len(faces), len(distinct))
	return TrainResult{
		ModelType:   model.Kind,
		ImagesCount: model.SampleCount,
		Labels:      scorer.Labels(),
		TrainedAt:   startedAt,
	}, nil
}

// LoadPersisted restores the model saved by a previous run, if one exists,
// so recognition can start without retraining. Missing or unreadable models
// are not an error; the caller simply starts untrained.
func (s *TrainerService) LoadPersisted() bool {
	if s.modelPath == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	labels, err := s.dataset.Labels()
	if err != nil || len(labels) < 2 {
		return false
	}

	scorer, err := s.recognizer.Load(s.modelPath, labels)
	if err != nil {
		log.Printf("trainer: no persisted model restored: %v", err)
		return false
	}

	total := 0
	for _, label := range labels {
		n, err := s.dataset.SampleCount(label)
		if err != nil {
			return false
		}
		total += n
	}

	s.handle.Swap(&Model{
		Scorer:      scorer,
		Kind:        s.recognizer.Kind(),
		TrainedAt:   time.Now(),
		SampleCount: total,
	})
	log.Printf("trainer: restored persisted %s model from %s", s.recognizer.Kind(), s.modelPath)
	return true
}

// recordSession appends the training session audit record. A session write
// failure is logged but never masks the training outcome itself.
func (s *TrainerService) recordSession(imagesCount int, at time.Time, success bool) {
	session := &models.TrainingSession{
		PersonName:        TrainingScopeAll,
		ImagesCount:       imagesCount,
		ModelType:         s.recognizer.Kind(),
		TrainingTimestamp: at.Unix(),
		Success:           success,
	}
	if err := s.sessions.Create(session); err != nil {
		log.Printf("trainer: ERROR recording training session: %v", err)
	}
}
