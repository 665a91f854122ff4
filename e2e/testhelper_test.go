package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bannerforge/api/internal/handler"
	"github.com/bannerforge/api/internal/middleware"
	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/renderer"
	"github.com/bannerforge/api/internal/service"
	"github.com/bannerforge/api/internal/store"
)

const testUserID = "test-user-123"

// stubRenderer stands in for the browser pipeline. It fails any row whose
// substitutions contain failValue, which lets handler tests exercise partial
// batches without Chrome.
type stubRenderer struct {
	failValue string
}

func (s *stubRenderer) Render(ctx context.Context, doc *model.SceneDocument, subs map[string]string, format, name string, upload bool) (*renderer.Result, error) {
	if s.failValue != "" {
		for _, v := range subs {
			if v == s.failValue {
				return nil, errors.New("render blew up")
			}
		}
	}
	return &renderer.Result{
		Bytes: []byte("raster"),
		Path:  "output/" + name + "." + format,
		URL:   "/files/" + name + "." + format,
	}, nil
}

func (s *stubRenderer) RenderPreview(ctx context.Context, doc *model.SceneDocument, name string) (string, error) {
	return "/files/" + name + ".png", nil
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	renderer *stubRenderer
	jobs     *store.MemoryJobStore
}

// setupApp creates a Fiber app wired like main.go but on in-memory stores
// and a stub renderer, so no Redis or Chrome is needed.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	validate := validator.New()

	templateStore := store.NewMemoryTemplateStore()
	jobStore := store.NewMemoryJobStore()

	stub := &stubRenderer{}

	templateService := service.NewTemplateService(templateStore, stub)
	generateService := service.NewGenerateService(templateStore, jobStore, stub, nil, nil, 1)

	templateHandler := handler.NewTemplateHandler(templateService, validate)
	generateHandler := handler.NewGenerateHandler(generateService, validate)
	jobHandler := handler.NewJobHandler(generateService)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", middleware.GatewayAuthMiddleware())

	templates := api.Group("/templates")
	templates.Post("/", templateHandler.Create)
	templates.Get("/", templateHandler.List)
	templates.Get("/:id", templateHandler.Get)
	templates.Put("/:id", templateHandler.Update)
	templates.Delete("/:id", templateHandler.Delete)
	templates.Post("/:id/resize", templateHandler.Resize)
	templates.Get("/:id/variables", templateHandler.Variables)

	generate := api.Group("/generate")
	generate.Post("/", generateHandler.Generate)

	api.Get("/jobs/:jobId", jobHandler.Status)

	return &testApp{app: app, renderer: stub, jobs: jobStore}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request with the gateway identity headers set.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"X-User-Id":    testUserID,
		"X-User-Email": "test@example.com",
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// templateBody builds a save request with one bound text element per
// variable name.
func templateBody(name string, variables ...string) string {
	elements := make([]string, 0, len(variables))
	for i, v := range variables {
		elements = append(elements, fmt.Sprintf(
			`{"id":"t%d","kind":"text","width":200,"height":50,"opacity":1,"text":"{{%s}}","binding":{"variableName":"%s","isDynamic":true}}`,
			i, v, v))
	}
	return fmt.Sprintf(
		`{"name":%q,"document":{"width":800,"height":600,"backgroundColor":"#ffffff","elements":[%s]}}`,
		name, strings.Join(elements, ","))
}

// createTemplate POSTs a template and returns its ID.
func createTemplate(t *testing.T, ta *testApp, variables ...string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/templates", templateBody("e2e template", variables...))
	if err != nil {
		t.Fatalf("create template request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	body := parseJSON(t, resp)
	id, ok := body["id"].(string)
	if !ok || id == "" {
		t.Fatalf("create template response missing id: %v", body)
	}
	return id
}
