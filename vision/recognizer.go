package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Recognizer kinds supported by the OpenCV backend
const (
	KindLBPH   = "lbph"
	KindEigen  = "eigen"
	KindFisher = "fisher"
)

// OpenCVRecognizer trains distance-scored face classifiers using the classic
// cv::face recognizers. All three kinds report confidence as a distance
// (lower = more similar), which matches the audit store's convention directly.
type OpenCVRecognizer struct {
	kind string
}

// NewOpenCVRecognizer validates the requested kind and returns a recognizer
func NewOpenCVRecognizer(kind string) (*OpenCVRecognizer, error) {
	switch kind {
	case KindLBPH, KindEigen, KindFisher:
		return &OpenCVRecognizer{kind: kind}, nil
	default:
		return nil, fmt.Errorf("unknown recognizer kind %q (expected %s, %s or %s)", kind, KindLBPH, KindEigen, KindFisher)
	}
}

func (r *OpenCVRecognizer) Kind() string { return r.kind }

func (r *OpenCVRecognizer) newBackend() contrib.FaceRecognizer {
	switch r.kind {
	case KindEigen:
		return contrib.NewEigenFaceRecognizer()
	case KindFisher:
		return contrib.NewFisherFaceRecognizer()
	default:
		return contrib.NewLBPHFaceRecognizer()
	}
}

// Train builds a model from parallel sample/label slices. Class ids are
// assigned per distinct label in first-seen order, so the id → label mapping
// is a pure function of the dataset's iteration order.
func (r *OpenCVRecognizer) Train(faces []*image.Gray, labels []string) (TrainedModel, error) {
	if len(faces) == 0 || len(faces) != len(labels) {
		return nil, fmt.Errorf("invalid training input: %d faces, %d labels", len(faces), len(labels))
	}

	classIDs := make(map[string]int)
	var classes []string
	ids := make([]int, 0, len(labels))
	for _, label := range labels {
		id, ok := classIDs[label]
		if !ok {
			id = len(classes)
			classIDs[label] = id
			classes = append(classes, label)
		}
		ids = append(ids, id)
	}

	mats := make([]gocv.Mat, 0, len(faces))
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()
	for i, face := range faces {
		mat, err := gocv.ImageGrayToMatGray(face)
		if err != nil {
			return nil, fmt.Errorf("failed to convert sample %d for training: %w", i, err)
		}
		mats = append(mats, mat)
	}

	backend := r.newBackend()
	backend.Train(mats, ids)
	if backend.Empty() {
		backend.Close()
		return nil, fmt.Errorf("%s recognizer produced an empty model", r.kind)
	}

	return newOpenCVModel(backend, r.kind, classes), nil
}

// Load restores a previously saved model. labels must be the class list the
// model was trained with, in the same order.
func (r *OpenCVRecognizer) Load(path string, labels []string) (TrainedModel, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("cannot load model %s without its class labels", path)
	}

	backend := r.newBackend()
	backend.LoadFile(path)
	if backend.Empty() {
		backend.Close()
		return nil, fmt.Errorf("failed to load %s model from %s", r.kind, path)
	}

	return newOpenCVModel(backend, r.kind, labels), nil
}

type openCVModel struct {
	mu      sync.Mutex
	backend contrib.FaceRecognizer
	kind    string
	classes []string
	known   map[string]struct{}
}

func newOpenCVModel(backend contrib.FaceRecognizer, kind string, classes []string) *openCVModel {
	known := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		known[c] = struct{}{}
	}
	return &openCVModel{backend: backend, kind: kind, classes: classes, known: known}
}

func (m *openCVModel) Predict(face *image.Gray) (Prediction, error) {
	mat, err := gocv.ImageGrayToMatGray(face)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to convert face for scoring: %w", err)
	}
	defer mat.Close()

	m.mu.Lock()
	resp := m.backend.PredictExtendedResponse(mat)
	m.mu.Unlock()

	pred := Prediction{Confidence: float64(resp.Confidence)}
	if resp.Label >= 0 && int(resp.Label) < len(m.classes) {
		pred.Label = m.classes[resp.Label]
	}
	return pred, nil
}

func (m *openCVModel) Labels() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

func (m *openCVModel) HasLabel(label string) bool {
	_, ok := m.known[label]
	return ok
}

func (m *openCVModel) Save(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backend.SaveFile(path)
	return nil
}
