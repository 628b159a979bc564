package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/api/http/handlers"
	"github.com/spec-kit/case-service/internal/app"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/config"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository/memory"
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	store  *memory.Store
	users  map[domain.Role]*domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Auth:      config.AuthConfig{JWTSecret: "test-secret", BcryptCost: 4},
		Lifecycle: config.LifecycleConfig{ConflictRetries: 2, RetryInitialIntervalMS: 1},
	}
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	store := memory.NewStore()
	backend := app.MemoryBackend(store)
	services := app.NewServices(cfg, backend, app.Options{
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    metrics,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 5)

	server := NewServer("case-service-test", logger, metrics, 0, RouteConfig{
		Health:         handlers.NewHealthHandler("case-service", "test", nil),
		Cases:          handlers.NewCasesHandler(services.Cases, services.Assignment, services.Audit),
		Users:          handlers.NewUsersHandler(services.Users),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, backend.Users),
		Gatherer:       registry,
	})

	ts := &testServer{app: server, tokens: tokens, store: store, users: map[domain.Role]*domain.User{}}
	for _, role := range []domain.Role{domain.RoleRequester, domain.RoleAnalyst, domain.RoleManager, domain.RoleAdmin} {
		user := &domain.User{
			Name:   strings.ToLower(string(role)),
			Email:  strings.ToLower(string(role)) + "@example.com",
			Role:   role,
			Active: true,
		}
		require.NoError(t, store.Users().Create(context.Background(), user))
		ts.users[role] = user
	}
	return ts
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (ts *testServer) do(t *testing.T, role domain.Role, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, _, err := ts.tokens.GenerateToken(ts.users[role].ID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type caseBody struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	Status     string  `json:"status"`
	Priority   string  `json:"priority"`
	AssigneeID *string `json:"assignee_id"`
	SLAStatus  string  `json:"sla_status"`
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	analyst := ts.users[domain.RoleAnalyst]

	status, resp := ts.do(t, domain.RoleRequester, nethttp.MethodPost, "/api/cases", map[string]any{
		"title":    "Cannot log in",
		"priority": "HIGH",
		"category": "ACCESS",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	created := decode[caseBody](t, resp.Data)
	assert.Equal(t, "CREATED", created.Status)
	assert.Equal(t, "on_track", created.SLAStatus)

	base := "/api/cases/" + created.ID

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodPost, base+"/transitions", map[string]any{"to": "CLOSED"})
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "POLICY_VIOLATION", resp.Error.Code)
	assert.Equal(t, "INVALID_EDGE", resp.Error.Details["reason"])
	assert.Contains(t, resp.Error.Message, "ASSIGNED")

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodPost, base+"/assign", map[string]any{"assignee_id": analyst.ID})
	require.Equal(t, nethttp.StatusOK, status)
	assigned := decode[caseBody](t, resp.Data)
	assert.Equal(t, "ASSIGNED", assigned.Status)
	assert.Equal(t, analyst.ID, *assigned.AssigneeID)

	for _, target := range []string{"IN_PROGRESS", "UNDER_REVIEW"} {
		status, _ = ts.do(t, domain.RoleAnalyst, nethttp.MethodPost, base+"/transitions", map[string]any{"to": target})
		require.Equal(t, nethttp.StatusOK, status, target)
	}

	status, resp = ts.do(t, domain.RoleAnalyst, nethttp.MethodPost, base+"/transitions", map[string]any{"to": "CLOSED"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "UNAUTHORIZED_ROLE", resp.Error.Details["reason"])

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodGet, base+"/transitions", nil)
	require.Equal(t, nethttp.StatusOK, status)
	options := decode[struct {
		Transitions []struct {
			To string `json:"to"`
		} `json:"transitions"`
	}](t, resp.Data)
	require.Len(t, options.Transitions, 2)
	assert.Equal(t, "CLOSED", options.Transitions[0].To)

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodPost, base+"/transitions", map[string]any{"to": "closed", "comment": "verified"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "CLOSED", decode[caseBody](t, resp.Data).Status)
	assert.Equal(t, "closed", decode[caseBody](t, resp.Data).SLAStatus)

	status, resp = ts.do(t, domain.RoleRequester, nethttp.MethodGet, base+"/audit", nil)
	require.Equal(t, nethttp.StatusOK, status)
	trail := decode[[]struct {
		Action      string         `json:"action"`
		Details     map[string]any `json:"details"`
		PerformedBy struct {
			Name string `json:"name"`
		} `json:"performed_by"`
	}](t, resp.Data)
	require.Len(t, trail, 6)
	actions := make([]string, 0, len(trail))
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"STATUS_CHANGED", "STATUS_CHANGED", "STATUS_CHANGED", "STATUS_CHANGED", "ASSIGNED", "CASE_CREATED"}, actions)
	assert.Equal(t, "verified", trail[0].Details["comment"])
	assert.Equal(t, "auto_assignment", trail[3].Details["reason"])
	assert.Equal(t, "manager", trail[0].PerformedBy.Name)
}

func TestCreateCase_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(t, domain.RoleRequester, nethttp.MethodPost, "/api/cases", map[string]any{"priority": "URGENT"})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	fields := resp.Error.Details["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "priority")
}

func TestAuthAndRoleGuards(t *testing.T) {
	ts := newTestServer(t)

	status, resp := ts.do(t, "", nethttp.MethodGet, "/api/cases", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	status, _ = ts.do(t, domain.RoleRequester, nethttp.MethodGet, "/api/dashboard/sla", nil)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = ts.do(t, domain.RoleAnalyst, nethttp.MethodPost, "/api/cases/x/assign", map[string]any{"assignee_id": "y"})
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = ts.do(t, domain.RoleManager, nethttp.MethodPost, "/api/users", map[string]any{
		"name": "n", "email": "n@example.com", "password": "password1", "role": "ANALYST",
	})
	assert.Equal(t, nethttp.StatusForbidden, status)
}

func TestAssign_RoleMismatchAndNotFound(t *testing.T) {
	ts := newTestServer(t)
	_, resp := ts.do(t, domain.RoleRequester, nethttp.MethodPost, "/api/cases", map[string]any{"title": "x"})
	created := decode[caseBody](t, resp.Data)

	status, resp := ts.do(t, domain.RoleManager, nethttp.MethodPost, "/api/cases/"+created.ID+"/assign", map[string]any{
		"assignee_id": ts.users[domain.RoleRequester].ID,
	})
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status)
	assert.Equal(t, "ROLE_MISMATCH", resp.Error.Code)

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodPost, "/api/cases/missing/assign", map[string]any{
		"assignee_id": ts.users[domain.RoleAnalyst].ID,
	})
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestPriorityEditAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	_, resp := ts.do(t, domain.RoleRequester, nethttp.MethodPost, "/api/cases", map[string]any{"title": "Slow disk"})
	created := decode[caseBody](t, resp.Data)

	status, resp := ts.do(t, domain.RoleRequester, nethttp.MethodPatch, "/api/cases/"+created.ID, map[string]any{"priority": "CRITICAL"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodPatch, "/api/cases/"+created.ID, map[string]any{"priority": "CRITICAL"})
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "CRITICAL", decode[caseBody](t, resp.Data).Priority)

	status, resp = ts.do(t, domain.RoleManager, nethttp.MethodGet, "/api/dashboard/sla", nil)
	require.Equal(t, nethttp.StatusOK, status)
	board := decode[struct {
		Total int            `json:"total"`
		BySLA map[string]int `json:"by_sla"`
	}](t, resp.Data)
	assert.Equal(t, 1, board.Total)
	assert.Contains(t, board.BySLA, "overdue")
	assert.NotContains(t, board.BySLA, "breached")
}

func TestListCases_RequesterSeesOwnOnly(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, domain.RoleRequester, nethttp.MethodPost, "/api/cases", map[string]any{"title": "mine"})
	ts.do(t, domain.RoleManager, nethttp.MethodPost, "/api/cases", map[string]any{"title": "theirs", "category": "BILLING"})

	status, resp := ts.do(t, domain.RoleRequester, nethttp.MethodGet, "/api/cases", nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, decode[[]caseBody](t, resp.Data), 1)

	status, resp = ts.do(t, domain.RoleAnalyst, nethttp.MethodGet, "/api/cases?category=billing", nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, decode[[]caseBody](t, resp.Data), 1)
}

func TestProvisionUser(t *testing.T) {
	ts := newTestServer(t)
	status, resp := ts.do(t, domain.RoleAdmin, nethttp.MethodPost, "/api/users", map[string]any{
		"name": "Nina", "email": "nina@example.com", "password": "password1", "role": "ANALYST",
	})
	require.Equal(t, nethttp.StatusCreated, status)
	body := string(resp.Data)
	assert.Contains(t, body, `"role":"ANALYST"`)
	assert.NotContains(t, body, "password")

	status, resp = ts.do(t, domain.RoleAdmin, nethttp.MethodPost, "/api/users", map[string]any{
		"name": "Nina", "email": "nina@example.com", "password": "password1", "role": "ANALYST",
	})
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, "", nethttp.MethodGet, "/health/live", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	status, _ = ts.do(t, "", nethttp.MethodGet, "/health/ready", nil)
	assert.Equal(t, nethttp.StatusOK, status)

	ts.do(t, domain.RoleRequester, nethttp.MethodGet, "/api/cases", nil)

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "case_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	status, resp := ts.do(t, "", nethttp.MethodGet, "/nope", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}
