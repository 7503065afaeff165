package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/facegatebackend/models"
	"github.com/camden-git/facegatebackend/vision"
)

// AuditSubmitter decouples the recognition loop from audit persistence.
// Submit must never block; it reports whether the event was accepted.
type AuditSubmitter interface {
	Submit(event *models.AccessLog) bool
}

// RecognitionService turns frames into access decisions. Each Recognize call
// produces exactly one access event; the decision is stateless apart from the
// configured threshold and the currently loaded model.
type RecognitionService struct {
	locator   vision.FaceLocator
	handle    *ModelHandle
	writer    AuditSubmitter
	threshold float64
	failedDir string // failed-attempt crops are kept here; empty disables
	interval  int    // audit every Nth frame of the live loop
}

func NewRecognitionService(locator vision.FaceLocator, handle *ModelHandle, writer AuditSubmitter, threshold float64, failedDir string, interval int) *RecognitionService {
	if interval <= 0 {
		interval = 1
	}
	return &RecognitionService{
		locator:   locator,
		handle:    handle,
		writer:    writer,
		threshold: threshold,
		failedDir: failedDir,
		interval:  interval,
	}
}

func (s *RecognitionService) Threshold() float64 { return s.threshold }

// Recognize scores a single frame against the current model and returns the
// resulting access event. The event is not persisted here; callers hand it to
// the audit writer.
func (s *RecognitionService) Recognize(frame image.Image) (*models.AccessLog, error) {
	model, err := s.handle.Current()
	if err != nil {
		return nil, err
	}

	regions, err := s.locator.Locate(frame)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	now := time.Now()
	if len(regions) == 0 {
		return noFaceEvent(now), nil
	}

	// score every region and keep the best match; lower confidence is more
	// similar, and a strict comparison keeps the first region on ties
	var best vision.Prediction
	var bestRegion image.Rectangle
	var bestFace *image.Gray
	for i, region := range regions {
		face := vision.Normalize(frame, region)
		pred, err := model.Scorer.Predict(face)
		if err != nil {
			return nil, fmt.Errorf("scoring failed for region %d: %w", i, err)
		}
		if bestFace == nil || pred.Confidence < best.Confidence {
			best = pred
			bestRegion = region
			bestFace = face
		}
	}

	return s.decide(model, best, bestRegion, bestFace, now), nil
}

// decide applies the access policy to the best-scoring candidate:
//   - the candidate label must be a class of the current model, otherwise the
//     attempt is rejected as unknown_person whatever the score;
//   - a confidence at or under the threshold grants access;
//   - over the threshold the attempt is rejected as low_confidence and the
//     candidate label is withheld from the event, since an over-threshold
//     match is too ambiguous to attribute.
func (s *RecognitionService) decide(model *Model, best vision.Prediction, region image.Rectangle, face *image.Gray, now time.Time) *models.AccessLog {
	event := &models.AccessLog{
		Confidence:      best.Confidence,
		AccessTimestamp: now.Unix(),
	}

	extra := map[string]interface{}{
		"threshold": s.threshold,
		"face_position": map[string]int{
			"x": region.Min.X,
			"y": region.Min.Y,
			"w": region.Dx(),
			"h": region.Dy(),
		},
	}

	known := best.Label != "" && model.Recognizes(best.Label)
	switch {
	case !known:
		event.AccessGranted = false
		event.EventType = models.EventFailedAccess
		reason := models.FailureUnknownPerson
		event.FailureReason = &reason
		s.attachFailureImage(event, face, now)

	case best.Confidence <= s.threshold:
		event.AccessGranted = true
		event.EventType = models.EventSuccessfulAccess
		name := best.Label
		event.PersonName = &name
		if encoded, err := vision.EncodeJPEGBase64(face); err == nil {
			event.FaceImageBase64 = &encoded
		}

	default:
		event.AccessGranted = false
		event.EventType = models.EventFailedAccess
		reason := models.FailureLowConfidence
		event.FailureReason = &reason
		// the label is withheld from person_name but kept in the extra data
		// for operator review
		extra["predicted_name"] = best.Label
		s.attachFailureImage(event, face, now)
	}

	if data, err := json.Marshal(extra); err == nil {
		encoded := string(data)
		event.AdditionalData = &encoded
	}

	return event
}

func noFaceEvent(now time.Time) *models.AccessLog {
	reason := models.FailureNoFaceDetected
	return &models.AccessLog{
		PersonName:      nil,
		Confidence:      0,
		AccessTimestamp: now.Unix(),
		AccessGranted:   false,
		EventType:       models.EventNoFaceDetected,
		FailureReason:   &reason,
	}
}

// attachFailureImage saves the rejected face crop locally and embeds it in
// the event. Image persistence is best effort; a full disk must not block
// the decision.
func (s *RecognitionService) attachFailureImage(event *models.AccessLog, face *image.Gray, now time.Time) {
	if encoded, err := vision.EncodeJPEGBase64(face); err == nil {
		event.FaceImageBase64 = &encoded
	}

	if s.failedDir == "" {
		return
	}
	name := fmt.Sprintf("failed_%s_%s.jpg", now.Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(s.failedDir, name)
	if err := os.MkdirAll(s.failedDir, 0755); err != nil {
		log.Printf("recognition: failed to create %s: %v", s.failedDir, err)
		return
	}
	if err := saveJPEG(face, path); err != nil {
		log.Printf("recognition: failed to save failed-attempt image: %v", err)
		return
	}
	rel := name
	event.ImagePath = &rel
}

// Run drives the live recognition loop: read a frame, decide, submit the
// event to the audit writer. The stop signal is observed only between frames,
// never mid-decision. Only every interval-th frame is scored so the audit
// store is not written at full camera rate.
func (s *RecognitionService) Run(ctx context.Context, source vision.FrameSource) error {
	if !s.handle.Loaded() {
		return ErrModelNotTrained
	}

	frameCount := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}

		frameCount++
		if frameCount%s.interval != 0 {
			continue
		}

		event, err := s.Recognize(frame)
		if err != nil {
			if errors.Is(err, ErrModelNotTrained) {
				return err
			}
			log.Printf("recognition: frame %d skipped: %v", frameCount, err)
			continue
		}

		if !s.writer.Submit(event) {
			log.Printf("recognition: audit writer rejected event at frame %d", frameCount)
		}
	}
}
