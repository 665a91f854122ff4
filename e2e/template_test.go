package e2e

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
}

func TestAPIRequiresGatewayHeaders(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/templates", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateTemplate(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/templates", templateBody("promo card", "name", "title"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	body := parseJSON(t, resp)
	if body["name"] != "promo card" {
		t.Errorf("expected name 'promo card', got %v", body["name"])
	}
	vars, ok := body["variables"].([]interface{})
	if !ok || len(vars) != 2 {
		t.Fatalf("expected 2 extracted variables, got %v", body["variables"])
	}
	if vars[0] != "name" || vars[1] != "title" {
		t.Errorf("expected [name title], got %v", vars)
	}
	if body["previewRef"] == "" {
		t.Error("expected a preview ref from the stub renderer")
	}
}

func TestCreateTemplate_MissingName(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/templates",
		`{"document":{"width":800,"height":600,"elements":[]}}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok || errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR envelope, got %v", body)
	}
}

func TestCreateTemplate_ZeroDimensions(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/templates",
		`{"name":"bad","document":{"width":0,"height":600,"elements":[]}}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGetTemplate_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/templates/does-not-exist", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestListTemplates(t *testing.T) {
	ta := setupApp(t)
	createTemplate(t, ta, "name")
	createTemplate(t, ta, "title")

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/templates", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	items, ok := body["templates"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 templates, got %v", body["templates"])
	}
	first, _ := items[0].(map[string]interface{})
	if _, hasDoc := first["document"]; hasDoc {
		t.Error("list items must not carry the full document")
	}
}

func TestUpdateTemplateRefreshesVariables(t *testing.T) {
	ta := setupApp(t)
	id := createTemplate(t, ta, "old")

	resp, err := doAuthRequest(t, ta.app, http.MethodPut, "/api/templates/"+id, templateBody("renamed", "new"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	vars, ok := body["variables"].([]interface{})
	if !ok || len(vars) != 1 || vars[0] != "new" {
		t.Errorf("expected [new], got %v", body["variables"])
	}
}

func TestDeleteTemplate(t *testing.T) {
	ta := setupApp(t)
	id := createTemplate(t, ta, "name")

	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/templates/"+id, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/templates/"+id, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestResizeTemplate(t *testing.T) {
	ta := setupApp(t)
	id := createTemplate(t, ta, "name")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/templates/"+id+"/resize",
		`{"width":1600,"height":1200}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["width"] != float64(1600) || body["height"] != float64(1200) {
		t.Errorf("expected 1600x1200, got %vx%v", body["width"], body["height"])
	}
}

func TestTemplateVariablesEndpoint(t *testing.T) {
	ta := setupApp(t)
	id := createTemplate(t, ta, "name", "title")

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/templates/"+id+"/variables", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["templateId"] != id {
		t.Errorf("expected templateId %s, got %v", id, body["templateId"])
	}
	vars, ok := body["variables"].([]interface{})
	if !ok || len(vars) != 2 {
		t.Errorf("expected 2 variables, got %v", body["variables"])
	}
}
