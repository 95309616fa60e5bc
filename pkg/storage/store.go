package storage

import "time"

// ResultRecord is the local trace of a result acknowledged by the coordinator
type ResultRecord struct {
	AssignmentID int64         `json:"assignment_id"`
	SubmissionID int64         `json:"submission_id"`
	ProjectID    int64         `json:"project_id"`
	ProjectName  string        `json:"project_name"`
	WorkerID     string        `json:"worker_id"`
	ExitCode     int           `json:"exit_code"`
	Duration     time.Duration `json:"duration"`
	StdoutBytes  int           `json:"stdout_bytes"`
	StderrBytes  int           `json:"stderr_bytes"`
	SubmittedAt  time.Time     `json:"submitted_at"`
}

// DetectionRecord is the latest detection outcome of a platform
type DetectionRecord struct {
	PlatformID int64     `json:"platform_id"`
	Name       string    `json:"name"`
	Valid      bool      `json:"valid"`
	DetectedAt time.Time `json:"detected_at"`
}

// Store defines the interface for the node's local ledger
type Store interface {
	// Results
	RecordResult(rec *ResultRecord) error
	GetResult(assignmentID int64) (*ResultRecord, error)
	ListResults() ([]*ResultRecord, error)

	// Platform detections
	RecordDetection(rec *DetectionRecord) error
	ListDetections() ([]*DetectionRecord, error)

	// Utility
	Close() error
}
