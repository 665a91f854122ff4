package model

import "time"

// Output formats
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// GenerateRequest asks for one rendered image per data row. Each row maps
// variable names to substitution values; every variable declared by the
// template must be present in every row.
type GenerateRequest struct {
	TemplateID    string              `json:"templateId" validate:"required,uuid"`
	Format        string              `json:"format" validate:"required,oneof=png jpeg"`
	Data          []map[string]string `json:"data" validate:"required,min=1,max=500"`
	InlineBase64  bool                `json:"inlineBase64,omitempty"`
	UploadOutputs bool                `json:"uploadOutputs,omitempty"`
}

// GeneratedImage is one successful row result. Index always refers back to
// the position in the request's data array.
type GeneratedImage struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Base64 string `json:"base64,omitempty"`
}

// GenerateResponse reports the finished (synchronous) batch. A partially
// successful batch is status=completed with a non-empty errors list;
// callers must inspect processedItems and errors, not status alone.
type GenerateResponse struct {
	JobID          string           `json:"jobId"`
	Status         JobStatus        `json:"status"`
	TotalItems     int              `json:"totalItems"`
	ProcessedItems int              `json:"processedItems"`
	Images         []GeneratedImage `json:"images"`
	Errors         []string         `json:"errors,omitempty"`
}

// GenerateAcceptedResponse acknowledges an async generation request.
type GenerateAcceptedResponse struct {
	JobID      string    `json:"jobId"`
	Status     JobStatus `json:"status"`
	TotalItems int       `json:"totalItems"`
	CreatedAt  time.Time `json:"createdAt"`
}

// JobStatusResponse is the job status query shape.
type JobStatusResponse struct {
	JobID          string     `json:"jobId"`
	TemplateID     string     `json:"templateId"`
	Status         JobStatus  `json:"status"`
	TotalItems     int        `json:"totalItems"`
	ProcessedItems int        `json:"processedItems"`
	OutputRefs     []string   `json:"outputRefs,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (j *Job) ToStatusResponse() *JobStatusResponse {
	return &JobStatusResponse{
		JobID:          j.ID,
		TemplateID:     j.TemplateID,
		Status:         j.Status,
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		OutputRefs:     j.OutputRefs,
		Errors:         j.ErrorMessages,
		CreatedAt:      j.CreatedAt,
		CompletedAt:    j.CompletedAt,
	}
}
