package services

import "errors"

var (
	// ErrCaptureUnavailable means the frame source could not be opened or
	// stopped delivering frames. Fatal to the running session; not retried.
	ErrCaptureUnavailable = errors.New("frame source unavailable")

	// ErrInsufficientData means training was requested with fewer than two
	// enrolled people. Recoverable: enroll more data and retrain.
	ErrInsufficientData = errors.New("training requires at least two enrolled people with samples")

	// ErrTrainingFailed wraps an algorithmic failure mid-training. The
	// previous current model, if any, is retained.
	ErrTrainingFailed = errors.New("training failed")

	// ErrModelNotTrained means recognition was attempted before any
	// successful training run.
	ErrModelNotTrained = errors.New("no trained model loaded")
)
