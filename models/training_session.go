package models

// TrainingSession is one immutable audit record of a trainer run.
// It corresponds to the 'training_sessions' table. PersonName is the
// training scope: a single label or "all" when the whole dataset was used.
type TrainingSession struct {
	ID                uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonName        string `gorm:"not null" json:"person_name"`
	ImagesCount       int    `gorm:"not null" json:"images_count"`
	ModelType         string `gorm:"not null" json:"model_type"`
	TrainingTimestamp int64  `gorm:"not null;index" json:"training_timestamp"` // Unix timestamp
	Success           bool   `gorm:"not null" json:"success"`
	CreatedAt         int64  `gorm:"not null" json:"created_at"`
}

func (TrainingSession) TableName() string {
	return "training_sessions"
}
