package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/auth"
	"github.com/robbyautoki/attio-hub/pkg/config"
	"github.com/robbyautoki/attio-hub/pkg/engine"
	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

type stubClient struct{}

func (c stubClient) UpsertContact(ctx context.Context, contact integrations.ContactIdentity, attributes map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"record_id": "rec-1"}, nil
}

func (c stubClient) UpdateContactStatus(ctx context.Context, email, status string) (map[string]interface{}, error) {
	return map[string]interface{}{"record_id": "rec-1", "stage": status}, nil
}

func (c stubClient) SubscribeContact(ctx context.Context, contact integrations.ContactIdentity, listID string) (map[string]interface{}, error) {
	return map[string]interface{}{"id": 1}, nil
}

func (c stubClient) Send(ctx context.Context, to, subject, body string) error {
	return nil
}

func (c stubClient) Notify(ctx context.Context, message string) error {
	return nil
}

func (c stubClient) TestConnection(ctx context.Context) integrations.ConnectionStatus {
	return integrations.ConnectionStatus{OK: true}
}

type stubFactory struct{}

func (f stubFactory) CRM(apiKey string) integrations.CRMClient             { return stubClient{} }
func (f stubFactory) Marketing(apiKey string) integrations.MarketingClient { return stubClient{} }
func (f stubFactory) Email(secret string) integrations.EmailSender         { return stubClient{} }
func (f stubFactory) Chat(secret string) integrations.ChatNotifier         { return stubClient{} }

type apiHarness struct {
	server   *Server
	handler  http.Handler
	token    string
	provider *storage.MemoryProvider
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())

	accounts := auth.NewAccountService(provider.GetAccountStore())
	jwtService := auth.NewJWTService("test-secret", 1)

	key := bytes.Repeat([]byte{0xAB}, 32)
	vaultService, err := vault.NewService(provider.GetCredentialStore(), key)
	require.NoError(t, err)

	eng := engine.New(engine.Config{
		Workflows:  provider.GetWorkflowStore(),
		Executions: provider.GetExecutionStore(),
		Bookings:   provider.GetBookingStore(),
		Vault:      vaultService,
		Clients:    stubFactory{},
	})

	server := NewServer(Deps{
		Config:         config.DefaultConfig(),
		AccountService: accounts,
		JWTService:     jwtService,
		Vault:          vaultService,
		Clients:        stubFactory{},
		Engine:         eng,
		Workflows:      provider.GetWorkflowStore(),
		Executions:     provider.GetExecutionStore(),
		Bookings:       provider.GetBookingStore(),
	})

	h := &apiHarness{server: server, handler: server.Handler(), provider: provider}

	created := h.doJSON(t, http.MethodPost, "/api/v1/accounts", "", map[string]string{
		"username": "tester",
		"password": "super-secret",
	}, http.StatusCreated)
	h.token = created["api_token"].(string)
	require.NotEmpty(t, h.token)

	return h
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) doJSON(t *testing.T, method, path, token string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	rec := h.do(t, method, path, token, body)
	require.Equal(t, wantStatus, rec.Code, "unexpected status: %s", rec.Body.String())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestHealthEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	resp := h.doJSON(t, http.MethodGet, "/api/v1/health", "", nil, http.StatusOK)
	assert.Equal(t, "ok", resp["status"])
}

func TestLoginAndCurrentAccount(t *testing.T) {
	h := newAPIHarness(t)

	login := h.doJSON(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "tester",
		"password": "super-secret",
	}, http.StatusOK)
	jwtToken := login["token"].(string)
	require.NotEmpty(t, jwtToken)

	me := h.doJSON(t, http.MethodGet, "/api/v1/accounts/me", jwtToken, nil, http.StatusOK)
	assert.Equal(t, "tester", me["username"])

	t.Run("WrongPassword", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
			"username": "tester",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("APITokenAlsoWorks", func(t *testing.T) {
		me := h.doJSON(t, http.MethodGet, "/api/v1/accounts/me", h.token, nil, http.StatusOK)
		assert.Equal(t, "tester", me["username"])
	})
}

func TestAuthenticationRequired(t *testing.T) {
	h := newAPIHarness(t)

	for _, path := range []string{
		"/api/v1/workflows",
		"/api/v1/executions",
		"/api/v1/bookings",
		"/api/v1/credentials",
	} {
		rec := h.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	h := newAPIHarness(t)

	created := h.doJSON(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
		"name": "Inbound leads",
		"kind": models.WorkflowKindLeadCapture,
		"trigger": map[string]interface{}{
			"provider": "webform",
		},
	}, http.StatusCreated)

	workflowID := created["id"].(string)
	require.NotEmpty(t, workflowID)
	assert.Equal(t, true, created["enabled"])

	trigger := created["trigger"].(map[string]interface{})
	assert.NotEmpty(t, trigger["webhook_path"], "webhook path should be generated")

	t.Run("RejectsUnknownKind", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
			"name": "Broken",
			"kind": "espionage",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ListAndGet", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/v1/workflows", h.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var workflows []models.Workflow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflows))
		require.Len(t, workflows, 1)
		assert.Equal(t, "Inbound leads", workflows[0].Name)

		got := h.doJSON(t, http.MethodGet, "/api/v1/workflows/"+workflowID, h.token, nil, http.StatusOK)
		assert.Equal(t, workflowID, got["id"])
	})

	t.Run("Update", func(t *testing.T) {
		updated := h.doJSON(t, http.MethodPut, "/api/v1/workflows/"+workflowID, h.token, map[string]interface{}{
			"name": "Inbound leads v2",
		}, http.StatusOK)
		assert.Equal(t, "Inbound leads v2", updated["name"])
		// The generated webhook path survives a config update
		trigger := updated["trigger"].(map[string]interface{})
		assert.NotEmpty(t, trigger["webhook_path"])
	})

	t.Run("Toggle", func(t *testing.T) {
		toggled := h.doJSON(t, http.MethodPost, "/api/v1/workflows/"+workflowID+"/toggle", h.token, nil, http.StatusOK)
		assert.Equal(t, false, toggled["enabled"])
		assert.Equal(t, models.WorkflowStatusPaused, toggled["status"])

		toggled = h.doJSON(t, http.MethodPost, "/api/v1/workflows/"+workflowID+"/toggle", h.token, nil, http.StatusOK)
		assert.Equal(t, true, toggled["enabled"])
	})

	t.Run("Delete", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, "/api/v1/workflows/"+workflowID, h.token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = h.do(t, http.MethodGet, "/api/v1/workflows/"+workflowID, h.token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestManualRun(t *testing.T) {
	h := newAPIHarness(t)

	// Credentials for every service so all steps succeed
	for _, service := range []string{models.ServiceCRM, models.ServiceMarketing, models.ServiceEmail, models.ServiceChat} {
		h.doJSON(t, http.MethodPost, "/api/v1/credentials", h.token, map[string]string{
			"service": service,
			"api_key": "key-for-" + service,
		}, http.StatusCreated)
	}

	created := h.doJSON(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
		"name": "Leads",
		"kind": models.WorkflowKindLeadCapture,
		"trigger": map[string]interface{}{
			"provider": "webform",
		},
	}, http.StatusCreated)
	workflowID := created["id"].(string)

	run := h.doJSON(t, http.MethodPost, "/api/v1/workflows/"+workflowID+"/run", h.token, map[string]interface{}{
		"email": "lead@example.com",
		"name":  "New Lead",
	}, http.StatusOK)

	assert.Equal(t, models.ExecutionStatusSuccess, run["status"])
	assert.Equal(t, models.TriggerManual, run["trigger_kind"])
	steps := run["steps"].([]interface{})
	assert.Len(t, steps, 5)

	t.Run("ExecutionVisibleInReadAPI", func(t *testing.T) {
		executionID := run["id"].(string)

		got := h.doJSON(t, http.MethodGet, "/api/v1/executions/"+executionID, h.token, nil, http.StatusOK)
		assert.Equal(t, models.ExecutionStatusSuccess, got["status"])

		rec := h.do(t, http.MethodGet, "/api/v1/workflows/"+workflowID+"/executions", h.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var executions []models.ExecutionLog
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executions))
		require.Len(t, executions, 1)
		assert.Equal(t, executionID, executions[0].ID)
	})
}

func TestWebhookDispatch(t *testing.T) {
	h := newAPIHarness(t)

	created := h.doJSON(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
		"name": "Leads",
		"kind": models.WorkflowKindLeadCapture,
		"trigger": map[string]interface{}{
			"provider": "webform",
			"secret":   "hook-secret",
		},
	}, http.StatusCreated)
	workflowID := created["id"].(string)
	path := created["trigger"].(map[string]interface{})["webhook_path"].(string)

	hook := func(t *testing.T, secret string, payload interface{}) *httptest.ResponseRecorder {
		t.Helper()
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/hooks/"+path, bytes.NewReader(encoded))
		if secret != "" {
			req.Header.Set("X-Webhook-Secret", secret)
		}
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Dispatches", func(t *testing.T) {
		rec := hook(t, "hook-secret", map[string]string{"email": "lead@example.com"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["execution_id"])
		// No credentials stored, so the critical CRM upsert is skipped
		assert.Equal(t, models.ExecutionStatusSuccessDegraded, resp["status"])
	})

	t.Run("RejectsWrongSecret", func(t *testing.T) {
		rec := hook(t, "not-the-secret", map[string]string{"email": "lead@example.com"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("UnknownPathIs404", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/hooks/no-such-path", "", map[string]string{"email": "x@example.com"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("DisabledWorkflowIsIgnored", func(t *testing.T) {
		h.doJSON(t, http.MethodPost, "/api/v1/workflows/"+workflowID+"/toggle", h.token, nil, http.StatusOK)

		rec := hook(t, "hook-secret", map[string]string{"email": "lead@example.com"})
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ignored", resp["status"])

		h.doJSON(t, http.MethodPost, "/api/v1/workflows/"+workflowID+"/toggle", h.token, nil, http.StatusOK)
	})
}

func TestWebhookEventFilter(t *testing.T) {
	h := newAPIHarness(t)

	created := h.doJSON(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
		"name": "Bookings",
		"kind": models.WorkflowKindScheduling,
		"trigger": map[string]interface{}{
			"provider": "calendly",
			"events":   []string{"invitee.created"},
		},
	}, http.StatusCreated)
	path := created["trigger"].(map[string]interface{})["webhook_path"].(string)

	resp := h.doJSON(t, http.MethodPost, "/api/v1/hooks/"+path, "", map[string]interface{}{
		"event": "invitee.no_show",
		"payload": map[string]interface{}{
			"email": "guest@example.com",
		},
	}, http.StatusAccepted)

	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, "event not subscribed", resp["reason"])
}

func TestCredentialEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	const apiKey = "sk-live-abcdef123456"

	created := h.doJSON(t, http.MethodPost, "/api/v1/credentials", h.token, map[string]string{
		"service": models.ServiceCRM,
		"api_key": apiKey,
	}, http.StatusCreated)
	credentialID := created["id"].(string)
	require.NotEmpty(t, credentialID)
	assert.Equal(t, fmt.Sprintf("********%s", apiKey[len(apiKey)-4:]), created["key_hint"])

	t.Run("NeverLeaksKeyMaterial", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/v1/credentials", h.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), apiKey)

		rec = h.do(t, http.MethodGet, "/api/v1/credentials/"+credentialID, h.token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), apiKey)
	})

	t.Run("RejectsUnknownService", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/api/v1/credentials", h.token, map[string]string{
			"service": "carrier-pigeon",
			"api_key": "coo",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ConnectionTest", func(t *testing.T) {
		resp := h.doJSON(t, http.MethodPost, "/api/v1/credentials/"+credentialID+"/test", h.token, nil, http.StatusOK)
		assert.Equal(t, true, resp["ok"])

		credential := resp["credential"].(map[string]interface{})
		assert.Equal(t, true, credential["valid"])
		assert.NotEmpty(t, credential["last_tested_at"])
	})

	t.Run("Delete", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, "/api/v1/credentials/"+credentialID, h.token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = h.do(t, http.MethodGet, "/api/v1/credentials/"+credentialID, h.token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOwnerScoping(t *testing.T) {
	h := newAPIHarness(t)

	other := h.doJSON(t, http.MethodPost, "/api/v1/accounts", "", map[string]string{
		"username": "intruder",
		"password": "also-secret",
	}, http.StatusCreated)
	otherToken := other["api_token"].(string)

	created := h.doJSON(t, http.MethodPost, "/api/v1/workflows", h.token, map[string]interface{}{
		"name": "Private",
		"kind": models.WorkflowKindCRMStatus,
		"trigger": map[string]interface{}{
			"provider": "attio",
		},
	}, http.StatusCreated)
	workflowID := created["id"].(string)

	rec := h.do(t, http.MethodGet, "/api/v1/workflows/"+workflowID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/workflows", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var workflows []models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflows))
	assert.Empty(t, workflows)
}
