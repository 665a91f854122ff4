package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/renderer"
	"github.com/bannerforge/api/internal/store"
)

// fakeRenderer succeeds unless fail returns an error for the row's
// substitutions. delay, when set, stalls each row by its returned duration
// so concurrent rows finish out of order.
type fakeRenderer struct {
	mu      sync.Mutex
	calls   int
	uploads []bool
	fail    func(subs map[string]string) error
	delay   func(subs map[string]string) time.Duration
}

func (f *fakeRenderer) Render(ctx context.Context, doc *model.SceneDocument, subs map[string]string, format, name string, upload bool) (*renderer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.uploads = append(f.uploads, upload)
	f.mu.Unlock()
	if f.delay != nil {
		time.Sleep(f.delay(subs))
	}
	if f.fail != nil {
		if err := f.fail(subs); err != nil {
			return nil, err
		}
	}
	return &renderer.Result{
		Bytes: []byte("raster"),
		Path:  "output/" + name + "." + format,
		URL:   "/files/" + name + "." + format,
	}, nil
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRenderer) uploadFlags() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.uploads...)
}

type fakeNotifier struct {
	mu        sync.Mutex
	progress  int
	completes int
	errors    []string
}

func (f *fakeNotifier) BroadcastProgress(jobID string, status model.JobStatus, total, processed, rowIndex int, rowErr string) {
	f.mu.Lock()
	f.progress++
	f.mu.Unlock()
}

func (f *fakeNotifier) BroadcastComplete(jobID string, result interface{}) {
	f.mu.Lock()
	f.completes++
	f.mu.Unlock()
}

func (f *fakeNotifier) BroadcastError(jobID, code, message string) {
	f.mu.Lock()
	f.errors = append(f.errors, code+": "+message)
	f.mu.Unlock()
}

func seedTemplate(t *testing.T, templates *store.MemoryTemplateStore, variables ...string) *model.Template {
	t.Helper()
	elements := make([]model.Element, 0, len(variables))
	for i, v := range variables {
		elements = append(elements, model.Element{
			ID:      fmt.Sprintf("t%d", i),
			Kind:    model.KindText,
			Width:   200,
			Height:  50,
			Opacity: 1,
			Text:    "{{" + v + "}}",
			Binding: &model.Binding{VariableName: v, IsDynamic: true},
		})
	}
	tmpl := &model.Template{
		ID:     "11111111-2222-3333-4444-555555555555",
		Name:   "card",
		Width:  800,
		Height: 600,
		Document: model.SceneDocument{
			Width:    800,
			Height:   600,
			Elements: elements,
		},
		Variables: variables,
	}
	if err := templates.Save(context.Background(), tmpl); err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	return tmpl
}

func rows(values ...string) []map[string]string {
	out := make([]map[string]string, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]string{"name": v})
	}
	return out
}

func newTestService(t *testing.T, r Renderer, notifier ProgressNotifier, concurrency int) (*GenerateService, *store.MemoryTemplateStore, *store.MemoryJobStore) {
	t.Helper()
	templates := store.NewMemoryTemplateStore()
	jobs := store.NewMemoryJobStore()
	return NewGenerateService(templates, jobs, r, nil, notifier, concurrency), templates, jobs
}

func TestGenerateRowFailureIsolation(t *testing.T) {
	fake := &fakeRenderer{fail: func(subs map[string]string) error {
		if subs["name"] == "bad" {
			return errors.New("render blew up")
		}
		return nil
	}}
	svc, templates, _ := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b", "bad", "d", "e"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Status != model.JobStatusCompleted {
		t.Errorf("expected completed, got %s", resp.Status)
	}
	if resp.ProcessedItems != 4 {
		t.Errorf("expected 4 processed items, got %d", resp.ProcessedItems)
	}
	if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0], "row 2") {
		t.Errorf("expected one error naming row 2, got %v", resp.Errors)
	}
	wantIndexes := []int{0, 1, 3, 4}
	if len(resp.Images) != len(wantIndexes) {
		t.Fatalf("expected %d images, got %d", len(wantIndexes), len(resp.Images))
	}
	for i, img := range resp.Images {
		if img.Index != wantIndexes[i] {
			t.Errorf("image %d: expected index %d, got %d", i, wantIndexes[i], img.Index)
		}
		if img.URL == "" {
			t.Errorf("image %d: missing URL", i)
		}
	}
}

func TestGenerateEmptyDataRejectedBeforeJobCreation(t *testing.T) {
	svc, templates, jobs := newTestService(t, &fakeRenderer{}, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	_, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       nil,
	})
	if !errors.Is(err, ErrEmptyData) {
		t.Fatalf("expected ErrEmptyData, got %v", err)
	}
	if jobs.Count() != 0 {
		t.Errorf("rejected request must not create a job, found %d", jobs.Count())
	}
}

func TestGenerateMissingVariableRejectedBeforeJobCreation(t *testing.T) {
	fake := &fakeRenderer{}
	svc, templates, jobs := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name", "title")

	_, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data: []map[string]string{
			{"name": "a", "title": "x"},
			{"name": "b"}, // title missing
		},
	})
	if !errors.Is(err, ErrMissingVariable) {
		t.Fatalf("expected ErrMissingVariable, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 1") || !strings.Contains(err.Error(), "title") {
		t.Errorf("error should name the row and variable, got %q", err.Error())
	}
	if jobs.Count() != 0 {
		t.Errorf("rejected request must not create a job, found %d", jobs.Count())
	}
	if fake.callCount() != 0 {
		t.Errorf("no render should run for a rejected request, got %d calls", fake.callCount())
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	svc, _, jobs := newTestService(t, &fakeRenderer{}, nil, 1)

	_, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: "99999999-0000-0000-0000-000000000000",
		Format:     model.FormatPNG,
		Data:       rows("a"),
	})
	if !errors.Is(err, store.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if jobs.Count() != 0 {
		t.Errorf("rejected request must not create a job, found %d", jobs.Count())
	}
}

func TestGenerateAllRowsFailedMarksJobFailed(t *testing.T) {
	fake := &fakeRenderer{fail: func(map[string]string) error {
		return errors.New("render blew up")
	}}
	notifier := &fakeNotifier{}
	svc, templates, jobs := newTestService(t, fake, notifier, 1)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b", "c"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Status != model.JobStatusFailed {
		t.Errorf("expected failed, got %s", resp.Status)
	}
	if resp.ProcessedItems != 0 {
		t.Errorf("expected 0 processed items, got %d", resp.ProcessedItems)
	}
	if len(resp.Errors) != 3 {
		t.Errorf("expected 3 errors, got %v", resp.Errors)
	}

	job, err := jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job not found after run: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Errorf("persisted job status: expected failed, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("persisted job should have a completion time")
	}
	if len(notifier.errors) != 1 {
		t.Errorf("expected one error broadcast, got %v", notifier.errors)
	}
}

func TestGeneratePartialSuccessIsCompleted(t *testing.T) {
	fake := &fakeRenderer{fail: func(subs map[string]string) error {
		if subs["name"] != "ok" {
			return errors.New("render blew up")
		}
		return nil
	}}
	svc, templates, _ := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatJPEG,
		Data:       rows("ok", "bad1", "bad2"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Status != model.JobStatusCompleted {
		t.Errorf("a single success keeps the job completed, got %s", resp.Status)
	}
	if resp.ProcessedItems != 1 || len(resp.Errors) != 2 {
		t.Errorf("expected 1 success and 2 errors, got %d/%v", resp.ProcessedItems, resp.Errors)
	}
}

func TestGenerateErrorsReportedInRowOrder(t *testing.T) {
	fake := &fakeRenderer{fail: func(subs map[string]string) error {
		if strings.HasPrefix(subs["name"], "bad") {
			return errors.New("render blew up")
		}
		return nil
	}}
	svc, templates, _ := newTestService(t, fake, nil, 4)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("bad0", "a", "bad2", "b", "bad4", "c"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(resp.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %v", resp.Errors)
	}
	for i, wantRow := range []string{"row 0", "row 2", "row 4"} {
		if !strings.Contains(resp.Errors[i], wantRow) {
			t.Errorf("error %d: expected %s, got %q", i, wantRow, resp.Errors[i])
		}
	}
}

func TestGenerateInlineBase64(t *testing.T) {
	svc, templates, _ := newTestService(t, &fakeRenderer{}, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	req := &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a"),
	}
	resp, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Images[0].Base64 != "" {
		t.Error("base64 payload must be stripped unless requested")
	}

	req.InlineBase64 = true
	resp, err = svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Images[0].Base64 == "" {
		t.Error("base64 payload missing despite inlineBase64")
	}
}

func TestGeneratePoolClosedFailsRemainingRowsFast(t *testing.T) {
	fake := &fakeRenderer{fail: func(map[string]string) error {
		return fmt.Errorf("acquire: %w", renderer.ErrPoolClosed)
	}}
	svc, templates, _ := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b", "c", "d"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Status != model.JobStatusFailed {
		t.Errorf("expected failed, got %s", resp.Status)
	}
	if len(resp.Errors) != 4 {
		t.Errorf("every row should report an error, got %v", resp.Errors)
	}
	// Sequential rows short-circuit once the pool is gone.
	if fake.callCount() != 1 {
		t.Errorf("expected a single render attempt, got %d", fake.callCount())
	}
}

func TestGenerateOutputRefsStayInRowOrder(t *testing.T) {
	// Earlier rows sleep longer, so with parallel rows completion order is
	// the reverse of row order.
	fake := &fakeRenderer{delay: func(subs map[string]string) time.Duration {
		switch subs["name"] {
		case "slow":
			return 30 * time.Millisecond
		case "medium":
			return 15 * time.Millisecond
		}
		return 0
	}}
	svc, templates, jobs := newTestService(t, fake, nil, 3)
	tmpl := seedTemplate(t, templates, "name")

	resp, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("slow", "medium", "fast"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	job, err := jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job not found: %v", err)
	}
	want := []string{
		fmt.Sprintf("output/%s_0.png", job.ID),
		fmt.Sprintf("output/%s_1.png", job.ID),
		fmt.Sprintf("output/%s_2.png", job.ID),
	}
	if !reflect.DeepEqual(job.OutputRefs, want) {
		t.Errorf("output refs not in row order:\n got %v\nwant %v", job.OutputRefs, want)
	}
}

func TestGenerateUploadFlagReachesRenderer(t *testing.T) {
	fake := &fakeRenderer{}
	svc, templates, _ := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	req := &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b"),
	}
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	req.UploadOutputs = true
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if got := fake.uploadFlags(); !reflect.DeepEqual(got, []bool{false, false, true, true}) {
		t.Errorf("upload flags per render call: got %v, want [false false true true]", got)
	}
}

func TestProcessJobCarriesUploadFlag(t *testing.T) {
	fake := &fakeRenderer{}
	svc, templates, jobs := newTestService(t, fake, nil, 1)
	tmpl := seedTemplate(t, templates, "name")

	job := svc.newJob(tmpl.ID, model.FormatPNG, 1)
	if err := jobs.Save(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	err := svc.ProcessJob(context.Background(), &model.GenerateJobPayload{
		JobID:         job.ID,
		TemplateID:    tmpl.ID,
		Format:        model.FormatPNG,
		Data:          rows("a"),
		UploadOutputs: true,
	})
	if err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}
	if got := fake.uploadFlags(); !reflect.DeepEqual(got, []bool{true}) {
		t.Errorf("upload flags: got %v, want [true]", got)
	}
}

func TestGenerateNotifierReceivesRowProgress(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, templates, _ := newTestService(t, &fakeRenderer{}, notifier, 1)
	tmpl := seedTemplate(t, templates, "name")

	_, err := svc.Generate(context.Background(), &model.GenerateRequest{
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b", "c"),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if notifier.progress != 3 {
		t.Errorf("expected 3 progress broadcasts, got %d", notifier.progress)
	}
}

func TestProcessJobBroadcastsCompletion(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, templates, jobs := newTestService(t, &fakeRenderer{}, notifier, 1)
	tmpl := seedTemplate(t, templates, "name")

	job := svc.newJob(tmpl.ID, model.FormatPNG, 2)
	if err := jobs.Save(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	err := svc.ProcessJob(context.Background(), &model.GenerateJobPayload{
		JobID:      job.ID,
		TemplateID: tmpl.ID,
		Format:     model.FormatPNG,
		Data:       rows("a", "b"),
	})
	if err != nil {
		t.Fatalf("ProcessJob failed: %v", err)
	}

	stored, err := jobs.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("job not found: %v", err)
	}
	if stored.Status != model.JobStatusCompleted || stored.ProcessedItems != 2 {
		t.Errorf("expected completed with 2 items, got %s/%d", stored.Status, stored.ProcessedItems)
	}
	if notifier.completes != 1 {
		t.Errorf("expected one completion broadcast, got %d", notifier.completes)
	}
}

func TestGetJobNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeRenderer{}, nil, 1)
	if _, err := svc.GetJob(context.Background(), "missing"); !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
