package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/auth"
	"chatrelay/internal/models"
	"chatrelay/internal/storage"
)

type fakeConfigStore struct {
	configs map[string]*models.ClientAgentConfig
	upserts []*models.ClientAgentConfig
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: make(map[string]*models.ClientAgentConfig)}
}

func key(clientID, configID string) string { return clientID + "/" + configID }

func (f *fakeConfigStore) Upsert(_ context.Context, cfg *models.ClientAgentConfig) (bool, error) {
	_, existed := f.configs[key(cfg.ClientID, cfg.ConfigID)]
	stored := *cfg
	f.configs[key(cfg.ClientID, cfg.ConfigID)] = &stored
	f.upserts = append(f.upserts, &stored)
	return existed, nil
}

func (f *fakeConfigStore) Get(_ context.Context, clientID, configID string) (*models.ClientAgentConfig, error) {
	cfg, ok := f.configs[key(clientID, configID)]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	return cfg, nil
}

func (f *fakeConfigStore) ListClientIDs(context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, cfg := range f.configs {
		if !seen[cfg.ClientID] {
			seen[cfg.ClientID] = true
			ids = append(ids, cfg.ClientID)
		}
	}
	return ids, nil
}

func (f *fakeConfigStore) ListConfigs(_ context.Context, clientID string) ([]models.ConfigSummary, error) {
	summaries := make([]models.ConfigSummary, 0)
	for _, cfg := range f.configs {
		if cfg.ClientID == clientID {
			summaries = append(summaries, models.ConfigSummary{ConfigID: cfg.ConfigID, BotName: cfg.BotName})
		}
	}
	return summaries, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeConfigStore, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newFakeConfigStore()
	authService, err := auth.NewService("admin", "pass", "test-secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("auth.NewService error: %v", err)
	}
	handler := NewHandler(store, authService, nil, "")
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, store, authService
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginHeader(t *testing.T, router *gin.Engine) map[string]string {
	t.Helper()
	rec := doJSONRequest(t, router, http.MethodPost, "/login", map[string]string{
		"username": "admin",
		"password": "pass",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return map[string]string{"Authorization": "Bearer " + body.AccessToken}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSONRequest(t, router, http.MethodPost, "/login", map[string]string{
		"username": "admin",
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestManagementRequiresToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/add_config"},
		{http.MethodPost, "/get_config"},
		{http.MethodGet, "/clients"},
		{http.MethodGet, "/clients/acme/configs"},
		{http.MethodGet, "/validate"},
	}
	for _, p := range paths {
		rec := doJSONRequest(t, router, p.method, p.path, map[string]string{}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without token, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestValidateEchoesUsername(t *testing.T) {
	router, _, _ := newTestRouter(t)
	header := loginHeader(t, router)
	rec := doJSONRequest(t, router, http.MethodGet, "/validate", nil, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"username":"admin"`) {
		t.Fatalf("expected echoed username, got %s", rec.Body.String())
	}
}

func TestAddConfigInsertThenUpdate(t *testing.T) {
	router, store, _ := newTestRouter(t)
	header := loginHeader(t, router)

	payload := map[string]any{
		"client_id": "acme",
		"config_id": "support",
		"agent_config": map[string]any{
			"prompt_preamble": "Be helpful.",
		},
	}
	rec := doJSONRequest(t, router, http.MethodPost, "/add_config", payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "inserted") {
		t.Fatalf("expected inserted message, got %s", rec.Body.String())
	}

	rec = doJSONRequest(t, router, http.MethodPost, "/add_config", payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "updated") {
		t.Fatalf("expected updated message, got %s", rec.Body.String())
	}

	// Defaults filled before the document reaches the store.
	stored := store.upserts[0]
	if stored.BotName != models.DefaultBotName {
		t.Fatalf("expected default bot name, got %q", stored.BotName)
	}
	if stored.AgentConfig.MaxTokens != models.DefaultMaxTokens {
		t.Fatalf("expected default max_tokens, got %d", stored.AgentConfig.MaxTokens)
	}
	if stored.AgentConfig.ModelName != models.DefaultModelName {
		t.Fatalf("expected default model name, got %q", stored.AgentConfig.ModelName)
	}
}

func TestAddConfigValidatesIdentifiers(t *testing.T) {
	router, _, _ := newTestRouter(t)
	header := loginHeader(t, router)
	rec := doJSONRequest(t, router, http.MethodPost, "/add_config", map[string]any{
		"client_id": " ",
		"config_id": "",
	}, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetConfigMissing(t *testing.T) {
	router, _, _ := newTestRouter(t)
	header := loginHeader(t, router)
	rec := doJSONRequest(t, router, http.MethodPost, "/get_config", map[string]string{
		"client_id": "ghost",
		"config_id": "none",
	}, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No such bot config found") {
		t.Fatalf("expected error payload, got %s", rec.Body.String())
	}
}

func TestGetConfigRoundTrip(t *testing.T) {
	router, store, _ := newTestRouter(t)
	header := loginHeader(t, router)
	store.configs[key("acme", "support")] = &models.ClientAgentConfig{
		ClientID: "acme",
		ConfigID: "support",
		BotName:  "Helper",
		AgentConfig: models.AgentConfig{
			PromptPreamble: "Be helpful.",
			MaxTokens:      256,
			Temperature:    0.5,
			ModelName:      "gpt-4o-mini",
		},
	}

	rec := doJSONRequest(t, router, http.MethodPost, "/get_config", map[string]string{
		"client_id": "acme",
		"config_id": "support",
	}, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.ClientAgentConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if got.BotName != "Helper" || got.AgentConfig.MaxTokens != 256 {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestListings(t *testing.T) {
	router, store, _ := newTestRouter(t)
	header := loginHeader(t, router)
	store.configs[key("acme", "support")] = &models.ClientAgentConfig{ClientID: "acme", ConfigID: "support", BotName: "Helper"}
	store.configs[key("acme", "sales")] = &models.ClientAgentConfig{ClientID: "acme", ConfigID: "sales", BotName: "Seller"}
	store.configs[key("globex", "intro")] = &models.ClientAgentConfig{ClientID: "globex", ConfigID: "intro", BotName: "Greeter"}

	rec := doJSONRequest(t, router, http.MethodGet, "/clients", nil, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var clients struct {
		Clients []string `json:"clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &clients); err != nil {
		t.Fatalf("decode clients: %v", err)
	}
	if len(clients.Clients) != 2 {
		t.Fatalf("expected 2 clients, got %v", clients.Clients)
	}

	rec = doJSONRequest(t, router, http.MethodGet, "/clients/acme/configs", nil, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var configs struct {
		Configs []models.ConfigSummary `json:"configs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &configs); err != nil {
		t.Fatalf("decode configs: %v", err)
	}
	if len(configs.Configs) != 2 {
		t.Fatalf("expected 2 configs for acme, got %v", configs.Configs)
	}
}

func TestAddConfigRejectsMalformedBody(t *testing.T) {
	router, _, _ := newTestRouter(t)
	header := loginHeader(t, router)
	req := httptest.NewRequest(http.MethodPost, "/add_config", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
