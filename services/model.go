package services

import (
	"sync/atomic"
	"time"

	"github.com/camden-git/facegatebackend/vision"
)

// Model is one immutable trained model artifact. A new artifact supersedes
// the previous one; artifacts are never mutated after creation.
type Model struct {
	Scorer      vision.TrainedModel
	Kind        string
	TrainedAt   time.Time
	SampleCount int
}

// Recognizes reports whether the model was trained with the given label
func (m *Model) Recognizes(label string) bool {
	return m.Scorer.HasLabel(label)
}

// ModelHandle is the process-wide reference to the current model. The swap is
// atomic: concurrent readers see either the previous or the new artifact in
// full, never a partially updated one.
type ModelHandle struct {
	current atomic.Pointer[Model]
}

func NewModelHandle() *ModelHandle {
	return &ModelHandle{}
}

// Current returns the current model, or ErrModelNotTrained if no training
// run has succeeded yet.
func (h *ModelHandle) Current() (*Model, error) {
	m := h.current.Load()
	if m == nil {
		return nil, ErrModelNotTrained
	}
	return m, nil
}

// Swap installs a new current model
func (h *ModelHandle) Swap(m *Model) {
	h.current.Store(m)
}

// Loaded reports whether a model is available
func (h *ModelHandle) Loaded() bool {
	return h.current.Load() != nil
}
