package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/renderer"
	"github.com/bannerforge/api/internal/store"
)

const TaskTypeGenerate = "generate:process"

// Validation failures are rejected before any job record exists.
var (
	ErrEmptyData       = errors.New("data array is empty")
	ErrMissingVariable = errors.New("missing required variable")
)

// Renderer is the slice of the rendering service the orchestrator drives.
type Renderer interface {
	Render(ctx context.Context, doc *model.SceneDocument, subs map[string]string, format, name string, upload bool) (*renderer.Result, error)
}

// ProgressNotifier receives per-row and final job updates. Nil disables
// notifications.
type ProgressNotifier interface {
	BroadcastProgress(jobID string, status model.JobStatus, total, processed, rowIndex int, rowErr string)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID, code, message string)
}

// GenerateService is the bulk-generation orchestrator: it validates a
// request against the template's variable contract, owns the Job record for
// the run, and drives one render per data row with per-row failure
// isolation.
type GenerateService struct {
	templates   store.TemplateStore
	jobs        store.JobStore
	renderer    Renderer
	asynqClient *asynq.Client
	notifier    ProgressNotifier
	concurrency int
}

func NewGenerateService(templates store.TemplateStore, jobs store.JobStore, r Renderer, asynqClient *asynq.Client, notifier ProgressNotifier, concurrency int) *GenerateService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &GenerateService{
		templates:   templates,
		jobs:        jobs,
		renderer:    r,
		asynqClient: asynqClient,
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// validate enforces the generation contract before any Job exists: the
// template must exist, the data array must be non-empty, and every declared
// variable must be supplied by every row.
func (s *GenerateService) validate(ctx context.Context, req *model.GenerateRequest) (*model.Template, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyData
	}
	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	for i, row := range req.Data {
		for _, v := range tmpl.Variables {
			if _, ok := row[v]; !ok {
				return nil, fmt.Errorf("%w: row %d is missing %q", ErrMissingVariable, i, v)
			}
		}
	}
	return tmpl, nil
}

// Generate runs a bulk generation synchronously and returns the finished
// batch.
func (s *GenerateService) Generate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	tmpl, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	job := s.newJob(tmpl.ID, req.Format, len(req.Data))
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	images := s.runRows(ctx, job, tmpl, req.Data, req.UploadOutputs)
	s.finalize(ctx, job)

	resp := &model.GenerateResponse{
		JobID:          job.ID,
		Status:         job.Status,
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		Images:         make([]model.GeneratedImage, 0, len(images)),
		Errors:         job.ErrorMessages,
	}
	for _, img := range images {
		if img == nil {
			continue
		}
		out := *img
		if !req.InlineBase64 {
			out.Base64 = ""
		}
		resp.Images = append(resp.Images, out)
	}
	return resp, nil
}

// StartGenerate validates, creates the job, and queues the row loop onto
// the asynq worker.
func (s *GenerateService) StartGenerate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateAcceptedResponse, error) {
	if s.asynqClient == nil {
		return nil, errors.New("async generation is not configured")
	}
	tmpl, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	job := s.newJob(tmpl.ID, req.Format, len(req.Data))
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	payload, err := json.Marshal(&model.GenerateJobPayload{
		JobID:         job.ID,
		TemplateID:    tmpl.ID,
		Format:        req.Format,
		Data:          req.Data,
		UploadOutputs: req.UploadOutputs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeGenerate, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("generate"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.GenerateAcceptedResponse{
		JobID:      job.ID,
		Status:     job.Status,
		TotalItems: job.TotalItems,
		CreatedAt:  job.CreatedAt,
	}, nil
}

// ProcessJob is the asynq entry point: it re-loads the template and drives
// the same row loop as the synchronous path.
func (s *GenerateService) ProcessJob(ctx context.Context, payload *model.GenerateJobPayload) error {
	job, err := s.jobs.Get(ctx, payload.JobID)
	if err != nil {
		return err
	}
	tmpl, err := s.templates.Get(ctx, payload.TemplateID)
	if err != nil {
		s.failAll(ctx, job, fmt.Sprintf("template %s disappeared: %v", payload.TemplateID, err))
		return err
	}

	s.runRows(ctx, job, tmpl, payload.Data, payload.UploadOutputs)
	s.finalize(ctx, job)
	if s.notifier != nil {
		s.notifier.BroadcastComplete(job.ID, job.ToStatusResponse())
	}
	return nil
}

// GetJob returns a job record for status queries.
func (s *GenerateService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

func (s *GenerateService) newJob(templateID, format string, total int) *model.Job {
	return &model.Job{
		ID:            uuid.New().String(),
		TemplateID:    templateID,
		Status:        model.JobStatusProcessing,
		Format:        format,
		TotalItems:    total,
		OutputRefs:    []string{},
		ErrorMessages: []string{},
		CreatedAt:     time.Now(),
	}
}

// runRows attempts every row. One row's failure never aborts the batch;
// only pool shutdown fails the remaining rows fast. The returned slice is
// index-aligned with the input rows (nil marks a failed row).
func (s *GenerateService) runRows(ctx context.Context, job *model.Job, tmpl *model.Template, rows []map[string]string, upload bool) []*model.GeneratedImage {
	rec := &rowRecorder{
		refs:    make([]string, len(rows)),
		rowErrs: make([]string, len(rows)),
	}
	images := make([]*model.GeneratedImage, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, row := range rows {
		g.Go(func() error {
			if rec.isPoolDown() {
				s.recordRow(ctx, job, rec, i, nil, fmt.Sprintf("row %d: %v", i, renderer.ErrPoolClosed))
				return nil
			}
			if err := gctx.Err(); err != nil {
				s.recordRow(ctx, job, rec, i, nil, fmt.Sprintf("row %d: canceled: %v", i, err))
				return nil
			}

			name := fmt.Sprintf("%s_%d", job.ID, i)
			res, err := s.renderer.Render(gctx, &tmpl.Document, row, job.Format, name, upload)
			if err != nil {
				if errors.Is(err, renderer.ErrPoolClosed) {
					rec.markPoolDown()
				}
				s.recordRow(ctx, job, rec, i, nil, fmt.Sprintf("row %d: %v", i, err))
				return nil
			}

			images[i] = &model.GeneratedImage{
				Index:  i,
				URL:    res.URL,
				Base64: base64.StdEncoding.EncodeToString(res.Bytes),
			}
			s.recordRow(ctx, job, rec, i, res, "")
			return nil
		})
	}
	// Row closures always return nil; the group is only a bounded waiter.
	_ = g.Wait()

	return images
}

// rowRecorder holds per-row results in index-addressed slices so the job's
// output refs and error messages stay in row order regardless of completion
// order.
type rowRecorder struct {
	mu       sync.Mutex
	refs     []string
	rowErrs  []string
	poolDown bool
}

func (r *rowRecorder) isPoolDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poolDown
}

func (r *rowRecorder) markPoolDown() {
	r.mu.Lock()
	r.poolDown = true
	r.mu.Unlock()
}

func compactRows(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// recordRow folds one finished row into the job record and persists it so
// status stays queryable mid-run.
func (s *GenerateService) recordRow(ctx context.Context, job *model.Job, rec *rowRecorder, index int, res *renderer.Result, rowErr string) {
	rec.mu.Lock()
	if rowErr != "" {
		rec.rowErrs[index] = rowErr
	} else {
		rec.refs[index] = res.Path
		job.ProcessedItems++
	}
	job.OutputRefs = compactRows(rec.refs)
	job.ErrorMessages = compactRows(rec.rowErrs)
	processed := job.ProcessedItems
	snapshot := *job
	rec.mu.Unlock()

	if err := s.jobs.Save(ctx, &snapshot); err != nil {
		log.Printf("Failed to persist job %s progress: %v", job.ID, err)
	}
	if s.notifier != nil {
		s.notifier.BroadcastProgress(job.ID, model.JobStatusProcessing, job.TotalItems, processed, index, rowErr)
	}
}

// finalize applies the completion rule: failed only when zero rows
// succeeded and at least one error occurred; partial success completes with
// a non-empty error list.
func (s *GenerateService) finalize(ctx context.Context, job *model.Job) {
	now := time.Now()
	job.CompletedAt = &now
	if job.ProcessedItems == 0 && len(job.ErrorMessages) > 0 {
		job.Status = model.JobStatusFailed
	} else {
		job.Status = model.JobStatusCompleted
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		log.Printf("Failed to persist final job %s state: %v", job.ID, err)
	}
	if s.notifier != nil && job.Status == model.JobStatusFailed {
		s.notifier.BroadcastError(job.ID, "JOB_FAILED", fmt.Sprintf("all %d rows failed", job.TotalItems))
	}
}

func (s *GenerateService) failAll(ctx context.Context, job *model.Job, msg string) {
	job.ErrorMessages = append(job.ErrorMessages, msg)
	s.finalize(ctx, job)
	if s.notifier != nil {
		s.notifier.BroadcastError(job.ID, "JOB_FAILED", msg)
	}
}
