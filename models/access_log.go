package models

// EventType classifies the outcome of one recognition decision.
type EventType string

const (
	EventSuccessfulAccess EventType = "successful_access"
	EventFailedAccess     EventType = "failed_access"
	EventNoFaceDetected   EventType = "no_face_detected"
)

// FailureReason explains why access was not granted.
type FailureReason string

const (
	FailureUnknownPerson  FailureReason = "unknown_person"
	FailureLowConfidence  FailureReason = "low_confidence"
	FailureNoFaceDetected FailureReason = "no_face_detected"
)

// AccessLog is one immutable audit record of a recognition decision.
// It corresponds to the 'access_logs' table. Rows are append-only; the
// retention cleanup is the only deletion path.
type AccessLog struct {
	ID              uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonName      *string        `json:"person_name"`
	Confidence      float64        `gorm:"not null" json:"confidence"`
	AccessTimestamp int64          `gorm:"not null;index" json:"access_timestamp"` // Unix timestamp
	AccessGranted   bool           `gorm:"not null" json:"access_granted"`
	EventType       EventType      `gorm:"not null" json:"event_type"`
	FailureReason   *FailureReason `json:"failure_reason,omitempty"`
	ImagePath       *string        `json:"image_path,omitempty"`
	FaceImageBase64 *string        `json:"face_image_base64,omitempty"`
	AdditionalData  *string        `json:"additional_data,omitempty"` // opaque JSON
	CreatedAt       int64          `gorm:"not null" json:"created_at"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}
