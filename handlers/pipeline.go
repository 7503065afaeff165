package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/camden-git/facegatebackend/config"
	"github.com/camden-git/facegatebackend/services"
	"github.com/camden-git/facegatebackend/vision"
	"github.com/camden-git/facegatebackend/workers"
)

// PipelineHandler controls the offline workflows (enrollment, training) and
// the live recognition loop.
type PipelineHandler struct {
	Enrollment  *services.EnrollmentService
	Trainer     *services.TrainerService
	Recognition *services.RecognitionService
	Models      *services.ModelHandle
	Writer      *workers.AuditWriter
	Cfg         config.Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
}

type enrollRequest struct {
	PersonName string `json:"person_name"`
	// SourceDir enrolls from a directory of still images instead of the camera
	SourceDir string `json:"source_dir,omitempty"`
}

// PostEnroll runs one enrollment session
// POST /api/enroll {"person_name": "Ana", "source_dir": "/frames/ana"}
func (h *PipelineHandler) PostEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PersonName == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "person_name is required")
		return
	}

	source, err := h.openSource(req.SourceDir)
	if err != nil {
		WriteAPIError(w, http.StatusBadGateway, "capture_unavailable", err.Error())
		return
	}
	defer source.Close()

	result, err := h.Enrollment.Enroll(r.Context(), req.PersonName, source)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCaptureUnavailable):
			WriteAPIError(w, http.StatusBadGateway, "capture_unavailable", err.Error())
		case errors.Is(err, context.Canceled):
			WriteAPIError(w, http.StatusRequestTimeout, "enrollment_cancelled", "enrollment cancelled")
		default:
			WriteAPIError(w, http.StatusInternalServerError, "enrollment_failed", err.Error())
		}
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// PostTrain runs one training session over the whole dataset
// POST /api/train
func (h *PipelineHandler) PostTrain(w http.ResponseWriter, r *http.Request) {
	result, err := h.Trainer.Train()
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientData):
			WriteAPIError(w, http.StatusConflict, "insufficient_data", err.Error())
		case errors.Is(err, services.ErrTrainingFailed):
			WriteAPIError(w, http.StatusInternalServerError, "training_failed", err.Error())
		default:
			WriteAPIError(w, http.StatusInternalServerError, "training_failed", err.Error())
		}
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// PostRecognitionStart starts the live recognition loop against the camera
// POST /api/recognition/start
func (h *PipelineHandler) PostRecognitionStart(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		WriteAPIError(w, http.StatusConflict, "already_running", "recognition loop is already running")
		return
	}
	if !h.Models.Loaded() {
		WriteAPIError(w, http.StatusConflict, "model_not_trained", services.ErrModelNotTrained.Error())
		return
	}

	source, err := vision.OpenCamera(h.Cfg.CameraIndex)
	if err != nil {
		WriteAPIError(w, http.StatusBadGateway, "capture_unavailable", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.loopDone = done

	go func() {
		defer close(done)
		defer source.Close()
		if err := h.Recognition.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("recognition loop exited: %v", err)
		}
		h.mu.Lock()
		h.cancel = nil
		h.loopDone = nil
		h.mu.Unlock()
	}()

	WriteJSON(w, http.StatusAccepted, map[string]bool{"running": true})
}

// PostRecognitionStop stops the live recognition loop. The loop observes the
// stop between frames, so any in-flight decision completes first.
// POST /api/recognition/stop
func (h *PipelineHandler) PostRecognitionStop(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	cancel := h.cancel
	done := h.loopDone
	h.mu.Unlock()

	if cancel == nil {
		WriteAPIError(w, http.StatusConflict, "not_running", "recognition loop is not running")
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		WriteAPIError(w, http.StatusGatewayTimeout, "stop_timeout", "recognition loop did not stop in time")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"running": false})
}

type statusResponse struct {
	RecognitionRunning bool         `json:"recognition_running"`
	Model              *modelStatus `json:"model"`
	Audit              auditStatus  `json:"audit"`
	Threshold          float64      `json:"confidence_threshold"`
}

type modelStatus struct {
	Kind        string    `json:"kind"`
	TrainedAt   time.Time `json:"trained_at"`
	SampleCount int       `json:"sample_count"`
	Labels      []string  `json:"labels"`
}

type auditStatus struct {
	Degraded bool  `json:"degraded"`
	Dropped  int64 `json:"dropped_records"`
}

// GetStatus reports the live pipeline state, including the operator-facing
// degraded-mode signal for audit persistence.
// GET /api/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running := h.cancel != nil
	h.mu.Unlock()

	resp := statusResponse{
		RecognitionRunning: running,
		Threshold:          h.Recognition.Threshold(),
		Audit: auditStatus{
			Degraded: h.Writer.Degraded(),
			Dropped:  h.Writer.DroppedCount(),
		},
	}
	if model, err := h.Models.Current(); err == nil {
		resp.Model = &modelStatus{
			Kind:        model.Kind,
			TrainedAt:   model.TrainedAt,
			SampleCount: model.SampleCount,
			Labels:      model.Scorer.Labels(),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *PipelineHandler) openSource(sourceDir string) (vision.FrameSource, error) {
	if sourceDir != "" {
		return vision.NewImageDirSource(sourceDir)
	}
	return vision.OpenCamera(h.Cfg.CameraIndex)
}
