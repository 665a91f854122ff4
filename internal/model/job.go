package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a bulk-generation run record. It is created with status=processing
// before any rendering starts, mutated incrementally as rows complete or
// fail, and finalized once all rows are attempted. Partial progress is
// preserved even on failure; a Job is never rolled back.
type Job struct {
	ID             string     `json:"id"`
	TemplateID     string     `json:"templateId"`
	Status         JobStatus  `json:"status"`
	Format         string     `json:"format"`
	TotalItems     int        `json:"totalItems"`
	ProcessedItems int        `json:"processedItems"`
	OutputRefs     []string   `json:"outputRefs"`
	ErrorMessages  []string   `json:"errorMessages"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// GenerateJobPayload is the asynq task payload for the async generation path.
type GenerateJobPayload struct {
	JobID         string              `json:"jobId"`
	TemplateID    string              `json:"templateId"`
	Format        string              `json:"format"`
	Data          []map[string]string `json:"data"`
	UploadOutputs bool                `json:"uploadOutputs"`
}
