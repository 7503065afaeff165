package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// detection parameters carried over from the capture tooling this replaces
const (
	cascadeScaleFactor  = 1.3
	cascadeMinNeighbors = 5
	cascadeMinFaceSize  = 30
)

// CascadeLocator is a FaceLocator backed by an OpenCV Haar cascade.
// The classifier is not safe for concurrent use, so Locate serializes.
type CascadeLocator struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewCascadeLocator loads a Haar cascade from the given XML file
func NewCascadeLocator(cascadePath string) (*CascadeLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade from %s", cascadePath)
	}
	return &CascadeLocator{classifier: classifier}, nil
}

// Locate returns the bounding boxes of all faces found in the frame,
// in the classifier's scan order.
func (l *CascadeLocator) Locate(frame image.Image) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame for detection: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	l.mu.Lock()
	rects := l.classifier.DetectMultiScaleWithParams(
		gray,
		cascadeScaleFactor,
		cascadeMinNeighbors,
		0,
		image.Pt(cascadeMinFaceSize, cascadeMinFaceSize),
		image.Pt(0, 0),
	)
	l.mu.Unlock()

	return rects, nil
}

func (l *CascadeLocator) Close() error {
	return l.classifier.Close()
}
