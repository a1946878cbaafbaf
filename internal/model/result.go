package model

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses stored in the repository and published with results.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// JobRecord is the persisted state of a job run in worker mode.
type JobRecord struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	Dir        string    `json:"dir"`
	Format     string    `json:"format"`
	ImageCount int       `json:"image_count"`
	OutputPath string    `json:"output_path"`
	Status     string    `json:"status"` // pending / processed / failed
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobResult is published to the results topic once a job finishes.
type JobResult struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	OutputPath string    `json:"output_path,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
