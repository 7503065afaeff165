package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/camden-git/facegatebackend/dataset"
	"github.com/camden-git/facegatebackend/vision"
)

// EnrollmentResult reports what one enrollment run did
type EnrollmentResult struct {
	FramesProcessed int `json:"frames_processed"`
	SamplesCaptured int `json:"samples_captured"`
	FramesSkipped   int `json:"frames_skipped"`
}

// EnrollmentService captures normalized face samples into the identity
// dataset. It shares a mutex with the trainer so the dataset is never read
// for training while an enrollment run is appending to it.
type EnrollmentService struct {
	dataset *dataset.Store
	locator vision.FaceLocator
	target  int
	mu      *sync.Mutex
}

func NewEnrollmentService(ds *dataset.Store, locator vision.FaceLocator, target int, mu *sync.Mutex) *EnrollmentService {
	if target <= 0 {
		target = 1
	}
	return &EnrollmentService{dataset: ds, locator: locator, target: target, mu: mu}
}

// Enroll consumes frames from the source until the sample target is reached
// or the source is exhausted. Frames with exactly one detected face become
// samples under personLabel; frames with zero or multiple faces are skipped
// so an ambiguous frame can never contaminate another person's samples.
func (s *EnrollmentService) Enroll(ctx context.Context, personLabel string, source vision.FrameSource) (EnrollmentResult, error) {
	var res EnrollmentResult

	if err := dataset.ValidateLabel(personLabel); err != nil {
		return res, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.dataset.NextIndex(personLabel)
	if err != nil {
		return res, err
	}

	for res.SamplesCaptured < s.target {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		frame, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		res.FramesProcessed++

		regions, err := s.locator.Locate(frame)
		if err != nil {
			log.Printf("enrollment: face detection failed on frame %d: %v", res.FramesProcessed, err)
			res.FramesSkipped++
			continue
		}
		if len(regions) != 1 {
			res.FramesSkipped++
			continue
		}

		face := vision.Normalize(frame, regions[0])
		if _, err := s.dataset.AddSample(personLabel, seq, face); err != nil {
			return res, err
		}
		seq++
		res.SamplesCaptured++
	}

	log.Printf("enrollment: captured %d sample(s) for %q (%d frames processed, %d skipped)",
		res.SamplesCaptured, personLabel, res.FramesProcessed, res.FramesSkipped)
	return res, nil
}
