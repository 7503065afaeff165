package services

import (
	"encoding/json"
	"image"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facegatebackend/models"
	"github.com/camden-git/facegatebackend/vision"
)

type fakeLocator struct {
	regions []image.Rectangle
	err     error
}

func (l *fakeLocator) Locate(frame image.Image) ([]image.Rectangle, error) {
	return l.regions, l.err
}

// fakeScorer returns queued predictions in call order
type fakeScorer struct {
	preds  []vision.Prediction
	calls  int
	labels []string
}

func (s *fakeScorer) Predict(face *image.Gray) (vision.Prediction, error) {
	if s.calls >= len(s.preds) {
		return vision.Prediction{}, nil
	}
	p := s.preds[s.calls]
	s.calls++
	return p, nil
}

func (s *fakeScorer) Labels() []string { return s.labels }

func (s *fakeScorer) HasLabel(label string) bool {
	for _, l := range s.labels {
		if l == label {
			return true
		}
	}
	return false
}

func (s *fakeScorer) Save(path string) error { return nil }

type fakeWriter struct {
	events []*models.AccessLog
}

func (w *fakeWriter) Submit(event *models.AccessLog) bool {
	w.events = append(w.events, event)
	return true
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 200))
}

func newTestRecognition(locator *fakeLocator, scorer *fakeScorer, threshold float64) (*RecognitionService, *ModelHandle) {
	handle := NewModelHandle()
	if scorer != nil {
		handle.Swap(&Model{Scorer: scorer, Kind: "lbph", TrainedAt: time.Now(), SampleCount: 10})
	}
	svc := NewRecognitionService(locator, handle, &fakeWriter{}, threshold, "", 1)
	return svc, handle
}

func TestRecognizeGrantsWithinThreshold(t *testing.T) {
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 90, 90)}}
	scorer := &fakeScorer{preds: []vision.Prediction{{Label: "Ana", Confidence: 40}}, labels: []string{"Ana", "Leo"}}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.True(t, event.AccessGranted)
	assert.Equal(t, models.EventSuccessfulAccess, event.EventType)
	require.NotNil(t, event.PersonName)
	assert.Equal(t, "Ana", *event.PersonName)
	assert.Nil(t, event.FailureReason)
	assert.Equal(t, 40.0, event.Confidence)
	assert.NotNil(t, event.FaceImageBase64)
}

func TestRecognizeConfidenceEqualToThresholdGrants(t *testing.T) {
	// the boundary is inclusive: a distance exactly at the threshold matches
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 90, 90)}}
	scorer := &fakeScorer{preds: []vision.Prediction{{Label: "Ana", Confidence: 50}}, labels: []string{"Ana", "Leo"}}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)
	assert.True(t, event.AccessGranted)
	assert.Equal(t, models.EventSuccessfulAccess, event.EventType)
}

func TestRecognizeLowConfidenceWithholdsLabel(t *testing.T) {
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 90, 90)}}
	scorer := &fakeScorer{preds: []vision.Prediction{{Label: "Ana", Confidence: 60}}, labels: []string{"Ana", "Leo"}}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)

	assert.False(t, event.AccessGranted)
	assert.Equal(t, models.EventFailedAccess, event.EventType)
	assert.Nil(t, event.PersonName)
	require.NotNil(t, event.FailureReason)
	assert.Equal(t, models.FailureLowConfidence, *event.FailureReason)

	// the withheld candidate is still available to operators in the extra data
	require.NotNil(t, event.AdditionalData)
	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*event.AdditionalData), &extra))
	assert.Equal(t, "Ana", extra["predicted_name"])
	assert.Equal(t, 50.0, extra["threshold"])
}

func TestRecognizeUnknownLabelRejected(t *testing.T) {
	// a candidate the model has no class for is unknown_person even when the
	// distance is under the threshold
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 90, 90)}}
	scorer := &fakeScorer{preds: []vision.Prediction{{Label: "", Confidence: 10}}, labels: []string{"Ana", "Leo"}}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)

	assert.False(t, event.AccessGranted)
	assert.Equal(t, models.EventFailedAccess, event.EventType)
	assert.Nil(t, event.PersonName)
	require.NotNil(t, event.FailureReason)
	assert.Equal(t, models.FailureUnknownPerson, *event.FailureReason)
}

func TestRecognizeNoFaceDetected(t *testing.T) {
	locator := &fakeLocator{regions: nil}
	scorer := &fakeScorer{labels: []string{"Ana", "Leo"}}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)

	assert.False(t, event.AccessGranted)
	assert.Equal(t, models.EventNoFaceDetected, event.EventType)
	assert.Nil(t, event.PersonName)
	require.NotNil(t, event.FailureReason)
	assert.Equal(t, models.FailureNoFaceDetected, *event.FailureReason)
	assert.Equal(t, 0.0, event.Confidence)
}

func TestRecognizeWithoutModelFails(t *testing.T) {
	locator := &fakeLocator{regions: []image.Rectangle{image.Rect(10, 10, 90, 90)}}
	svc, _ := newTestRecognition(locator, nil, 50)

	event, err := svc.Recognize(testFrame())
	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestRecognizeMultipleRegionsPicksBestMatch(t *testing.T) {
	locator := &fakeLocator{regions: []image.Rectangle{
		image.Rect(0, 0, 50, 50),
		image.Rect(60, 0, 110, 50),
		image.Rect(0, 60, 50, 110),
	}}
	scorer := &fakeScorer{
		preds: []vision.Prediction{
			{Label: "Leo", Confidence: 80},
			{Label: "Ana", Confidence: 30},
			{Label: "Leo", Confidence: 55},
		},
		labels: []string{"Ana", "Leo"},
	}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)
	require.NotNil(t, event.PersonName)
	assert.Equal(t, "Ana", *event.PersonName)
	assert.Equal(t, 30.0, event.Confidence)
}

func TestRecognizeTieKeepsFirstRegion(t *testing.T) {
	locator := &fakeLocator{regions: []image.Rectangle{
		image.Rect(0, 0, 50, 50),
		image.Rect(60, 0, 110, 50),
	}}
	scorer := &fakeScorer{
		preds: []vision.Prediction{
			{Label: "Ana", Confidence: 30},
			{Label: "Leo", Confidence: 30},
		},
		labels: []string{"Ana", "Leo"},
	}
	svc, _ := newTestRecognition(locator, scorer, 50)

	event, err := svc.Recognize(testFrame())
	require.NoError(t, err)
	require.NotNil(t, event.PersonName)
	assert.Equal(t, "Ana", *event.PersonName)
}

// TestDecisionInvariants checks the event-shape invariants over randomized
// decision inputs: one event per call, and the event_type / access_granted /
// person_name / failure_reason combinations always agree.
func TestDecisionInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		threshold := rng.Float64() * 100
		confidence := rng.Float64() * 150
		faceDetected := rng.Intn(4) != 0
		known := rng.Intn(3) != 0

		label := "Ana"
		if !known {
			label = "Intruder"
		}

		var locator *fakeLocator
		if faceDetected {
			locator = &fakeLocator{regions: []image.Rectangle{image.Rect(5, 5, 80, 80)}}
		} else {
			locator = &fakeLocator{}
		}
		scorer := &fakeScorer{
			preds:  []vision.Prediction{{Label: label, Confidence: confidence}},
			labels: []string{"Ana", "Leo"},
		}
		svc, _ := newTestRecognition(locator, scorer, threshold)

		event, err := svc.Recognize(testFrame())
		require.NoError(t, err)
		require.NotNil(t, event, "every invocation must produce exactly one event")

		// (a) no_face_detected iff person is nil with reason no_face_detected
		if event.EventType == models.EventNoFaceDetected {
			assert.Nil(t, event.PersonName)
			require.NotNil(t, event.FailureReason)
			assert.Equal(t, models.FailureNoFaceDetected, *event.FailureReason)
			assert.False(t, faceDetected)
		}
		// (b) granted implies successful_access with a person attached
		if event.AccessGranted {
			assert.Equal(t, models.EventSuccessfulAccess, event.EventType)
			assert.NotNil(t, event.PersonName)
			assert.Nil(t, event.FailureReason)
		}
		// (c) denied with a person named can only be low_confidence; the
		// policy never names a person on a denial, so no event may do both
		if !event.AccessGranted && event.PersonName != nil {
			require.NotNil(t, event.FailureReason)
			assert.Equal(t, models.FailureLowConfidence, *event.FailureReason)
		}
		// (d) denied, no person, face present: unknown_person or low_confidence
		if !event.AccessGranted && event.PersonName == nil && faceDetected {
			require.NotNil(t, event.FailureReason)
			assert.Contains(t, []models.FailureReason{models.FailureUnknownPerson, models.FailureLowConfidence}, *event.FailureReason)
		}
	}
}
