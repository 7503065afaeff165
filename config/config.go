package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultDatasetSubDir        = "images"
	DefaultFailedAttemptsSubDir = "failed_attempts"
	DefaultModelFileName        = "recognizer_model.xml"
)

const (
	defaultAuditQueueSize     = 200
	defaultAuditMaxRetries    = 5
	defaultAuditFrameInterval = 30
	defaultSampleTarget       = 300
	defaultRetentionDays      = 90
	defaultConfidenceLimit    = 70.0
)

type Config struct {
	// database path
	DatabasePath string

	// storage configuration
	StoragePath        string // primary root for dataset, model and failed-attempt images
	DatasetPath        string // full-calculated path for enrolled face samples
	FailedAttemptsPath string // full-calculated path for failed-attempt crops
	ModelPath          string // full-calculated path for the persisted recognizer model

	// recognition settings
	CascadePath         string
	RecognizerKind      string  // lbph, eigen or fisher
	ConfidenceThreshold float64 // maximum distance accepted as a match (lower = more similar)
	CameraIndex         int
	SampleTarget        int // face samples collected per enrollment run
	AuditFrameInterval  int // persist a decision every Nth frame of the live loop

	// audit writer settings
	AuditQueueSize  int
	AuditMaxRetries int

	// retention settings
	RetentionDays int

	// bcrypt hash of the key required on mutating endpoints; empty disables the check
	WriteKeyHash string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "access.db")

	storage := getEnvOrDefault("STORAGE_PATH", filepath.Join(".", "storage"))
	absStorage, err := filepath.Abs(storage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for storage '%s': %w", storage, err)
	}

	datasetSubDir := getEnvOrDefault("DATASET_SUBDIR", DefaultDatasetSubDir)
	absDatasetPath := filepath.Join(absStorage, datasetSubDir)

	failedSubDir := getEnvOrDefault("FAILED_ATTEMPTS_SUBDIR", DefaultFailedAttemptsSubDir)
	absFailedPath := filepath.Join(absStorage, failedSubDir)

	modelFile := getEnvOrDefault("MODEL_FILE", DefaultModelFileName)
	absModelPath := filepath.Join(absStorage, modelFile)

	cascadePath := getEnvOrDefault("FACE_CASCADE_PATH", "./models/haarcascade_frontalface_default.xml")
	recognizerKind := getEnvOrDefault("RECOGNIZER_KIND", "lbph")

	cameraIndex := 0
	if valStr := os.Getenv("CAMERA_INDEX"); valStr != "" {
		val, err := strconv.Atoi(valStr)
		if err != nil || val < 0 {
			log.Printf("Warning: Invalid CAMERA_INDEX '%s'. Using default 0. Error: %v", valStr, err)
		} else {
			cameraIndex = val
		}
	}

	cfg := Config{
		DatabasePath:        dbPath,
		StoragePath:         absStorage,
		DatasetPath:         absDatasetPath,
		FailedAttemptsPath:  absFailedPath,
		ModelPath:           absModelPath,
		CascadePath:         cascadePath,
		RecognizerKind:      recognizerKind,
		ConfidenceThreshold: getEnvFloatOrDefault("CONFIDENCE_THRESHOLD", defaultConfidenceLimit),
		CameraIndex:         cameraIndex,
		SampleTarget:        getEnvIntOrDefault("ENROLL_SAMPLE_TARGET", defaultSampleTarget),
		AuditFrameInterval:  getEnvIntOrDefault("AUDIT_FRAME_INTERVAL", defaultAuditFrameInterval),
		AuditQueueSize:      getEnvIntOrDefault("AUDIT_QUEUE_SIZE", defaultAuditQueueSize),
		AuditMaxRetries:     getEnvIntOrDefault("AUDIT_MAX_RETRIES", defaultAuditMaxRetries),
		RetentionDays:       getEnvIntOrDefault("RETENTION_DAYS", defaultRetentionDays),
		WriteKeyHash:        os.Getenv("WRITE_API_KEY_HASH"),
	}

	return cfg, nil
}
