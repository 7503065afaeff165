package vision

import (
	"context"
	"image"
)

// FrameSource supplies a sequence of raw frames. Next returns io.EOF when the
// source is exhausted; any other error means the source is unusable.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// FaceLocator finds face bounding boxes in a frame, in scan order.
type FaceLocator interface {
	Locate(frame image.Image) ([]image.Rectangle, error)
}

// Prediction is one scored candidate match. Confidence is a distance: lower
// means more similar. Implementations whose native score runs the other way
// (higher = more similar) must convert before returning; callers never invert.
type Prediction struct {
	Label      string
	Confidence float64
}

// TrainedModel scores normalized face crops against its trained classes.
type TrainedModel interface {
	Predict(face *image.Gray) (Prediction, error)
	Labels() []string
	HasLabel(label string) bool
	Save(path string) error
}

// Recognizer builds TrainedModels for one algorithm kind.
// faces and labels are parallel slices, one label per sample.
type Recognizer interface {
	Kind() string
	Train(faces []*image.Gray, labels []string) (TrainedModel, error)
	Load(path string, labels []string) (TrainedModel, error)
}
