package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gartstein/staffing/internal/portal/accesscode"
	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/controller"
	"github.com/gartstein/staffing/internal/portal/db"
	e "github.com/gartstein/staffing/internal/portal/errors"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/middleware"
	"github.com/gartstein/staffing/internal/portal/models"
	"github.com/gartstein/staffing/internal/portal/redisstore"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	repo    *db.Repository
	tokens  *auth.TokenManager
	handler *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo, err := db.NewRepository(&db.Config{Driver: db.DriverSQLite, LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	tokens := auth.NewTokenManager("handler-secret", time.Hour, repo)
	producer := events.NewStubPublisher(logger)
	verifier := controller.NewVerificationService(repo, producer, logger)
	return &fixture{
		repo:   repo,
		tokens: tokens,
		handler: NewHandler(
			verifier,
			controller.NewIntakeService(repo, producer, logger),
			controller.NewAdminService(repo, accesscode.NewGenerator(), tokens, producer, logger),
			controller.NewClientService(repo, verifier, tokens, producer, logger),
			logger,
		),
	}
}

func (f *fixture) router(t *testing.T, limiter middleware.RateLimitStore) http.Handler {
	return NewRouter(RouterConfig{
		Handler:   f.handler,
		Tokens:    f.tokens,
		RateLimit: limiter,
		Health:    f.repo.Ping,
		Logger:    zaptest.NewLogger(t),
	})
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := f.tokens.Issue(auth.RoleAdmin, "ops", uuid.Nil)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func postingBody(code string) map[string]any {
	return map[string]any{
		"contact_name":    "Sam Lee",
		"company_name":    "Globex",
		"email":           "sam@globex.test",
		"phone":           "555-0199",
		"job_title":       "Forklift Operator",
		"location":        "Reno, NV",
		"employment_type": "temporary",
		"access_code":     code,
	}
}

func TestRouter_ApprovalToSelfService(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, nil)
	admin := f.adminToken(t)

	rec := do(t, r, http.MethodPost, "/v1/code-requests", "", map[string]any{
		"company_name": "Acme Corp",
		"contact_name": "Jane Doe",
		"email":        "jane@acme.test",
		"reason":       "seasonal hiring",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reqID := decode[idBody](t, rec).ID

	rec = do(t, r, http.MethodGet, "/v1/admin/code-requests?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.CodeRequest](t, rec), 1)

	rec = do(t, r, http.MethodPost, "/v1/admin/code-requests/"+reqID.String()+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approval := decode[clientWithCode](t, rec)
	require.NotEmpty(t, approval.AccessCode)
	assert.Equal(t, "Acme Corp", approval.Client.CompanyName)

	rec = do(t, r, http.MethodPost, "/v1/admin/code-requests/"+reqID.String()+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode[errorBody](t, rec).Kind)

	rec = do(t, r, http.MethodPost, "/v1/access-codes/verify", "", accessCodeRequest{AccessCode: approval.AccessCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[verifyResponse](t, rec)
	assert.True(t, verified.Success)
	assert.Equal(t, approval.Client.ID, verified.Client.ID)

	rec = do(t, r, http.MethodPost, "/v1/job-postings", "", postingBody(approval.AccessCode))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	postingID := decode[idBody](t, rec).ID

	rec = do(t, r, http.MethodPost, "/v1/client/login", "", accessCodeRequest{AccessCode: approval.AccessCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[controller.Session](t, rec)
	require.NotEmpty(t, session.Token)

	rec = do(t, r, http.MethodGet, "/v1/client/job-postings", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decode[[]models.JobPosting](t, rec)
	require.Len(t, own, 1)
	assert.True(t, own[0].IsExistingClient)

	self := postingBody("")
	delete(self, "access_code")
	self["company_name"] = ""
	self["job_title"] = "Shift Lead"
	rec = do(t, r, http.MethodPost, "/v1/client/job-postings", session.Token, self)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.JobPosting](t, rec)
	assert.Equal(t, "Acme Corp", created.CompanyName)
	require.NotNil(t, created.OwnerClientID)
	assert.Equal(t, approval.Client.ID, *created.OwnerClientID)

	rec = do(t, r, http.MethodPatch, "/v1/client/job-postings/"+postingID.String(), session.Token,
		map[string]any{"salary_range": "$20-24/h"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "$20-24/h", decode[models.JobPosting](t, rec).SalaryRange)

	rec = do(t, r, http.MethodPatch, "/v1/admin/job-postings/"+postingID.String()+"/status", admin,
		statusRequest{Status: models.JobStatusClosed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodDelete, "/v1/client/job-postings/"+postingID.String(), session.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodGet, "/v1/admin/clients/"+approval.Client.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[models.ClientDetail](t, rec)
	assert.EqualValues(t, 3, detail.Client.LoginCount)

	rec = do(t, r, http.MethodPost, "/v1/client/logout", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/v1/client/job-postings", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminClientManagement(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, nil)
	admin := f.adminToken(t)

	rec := do(t, r, http.MethodPost, "/v1/admin/clients", admin, models.NewClientInput{
		CompanyName: "Initech", ContactName: "Bill", Email: "bill@initech.test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[clientWithCode](t, rec)
	assert.Equal(t, created.Client.AccessCode, created.AccessCode)
	id := created.Client.ID.String()

	rec = do(t, r, http.MethodPost, "/v1/admin/clients/bulk", admin, bulkRequest{Clients: []models.NewClientInput{
		{CompanyName: "A", ContactName: "a", Email: "a@a.test"},
		{CompanyName: "B", ContactName: "b", Email: "not-an-email"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bulk := decode[bulkResponse](t, rec)
	assert.Equal(t, 1, bulk.Succeeded)
	assert.Equal(t, 1, bulk.Failed)

	rec = do(t, r, http.MethodPatch, "/v1/admin/clients/"+id, admin, map[string]any{"phone": "555-0000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "555-0000", decode[models.Client](t, rec).Phone)

	rec = do(t, r, http.MethodPost, "/v1/admin/clients/"+id+"/regenerate-code", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	regenerated := decode[accessCodeResponse](t, rec).AccessCode
	assert.NotEqual(t, created.AccessCode, regenerated)

	rec = do(t, r, http.MethodPost, "/v1/admin/clients/"+id+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/access-codes/verify", "", accessCodeRequest{AccessCode: regenerated})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/v1/admin/clients", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Client](t, rec), 2)

	rec = do(t, r, http.MethodGet, "/v1/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[models.DashboardSummary](t, rec).ActiveClients)

	rec = do(t, r, http.MethodPost, "/v1/admin/logout", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/v1/admin/clients", admin, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectAndApplications(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, nil)
	admin := f.adminToken(t)

	rec := do(t, r, http.MethodPost, "/v1/code-requests", "", map[string]any{
		"company_name": "Umbrella", "contact_name": "Al", "email": "al@umbrella.test",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[idBody](t, rec).ID.String()

	rec = do(t, r, http.MethodPost, "/v1/admin/code-requests/"+id+"/reject", admin, rejectRequest{Reason: "duplicate"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, r, http.MethodPost, "/v1/admin/code-requests/"+id+"/reject", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/job-applications", "", map[string]any{
		"full_name": "Pat Kim", "email": "pat@example.test", "position": "Forklift Operator",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/v1/admin/job-applications", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.JobApplication](t, rec), 1)
}

func TestRouter_Validation(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, nil)
	admin := f.adminToken(t)

	honeypot := postingBody("")
	honeypot["website"] = "http://spam.test"

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"honeypot", http.MethodPost, "/v1/job-postings", "", honeypot, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/code-requests", "", map[string]any{"bogus": 1}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/v1/access-codes/verify", "", nil, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/admin/clients/not-a-uuid", admin, nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/v1/admin/job-postings?status=archived", admin, nil, http.StatusBadRequest},
		{"bad code request filter", http.MethodGet, "/v1/admin/code-requests?status=done", admin, nil, http.StatusBadRequest},
		{"unknown client", http.MethodGet, "/v1/admin/clients/" + uuid.NewString(), admin, nil, http.StatusNotFound},
		{"missing token", http.MethodGet, "/v1/admin/clients", "", nil, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/client/job-postings", "garbage", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRouter_ClientTokenCannotReachAdmin(t *testing.T) {
	f := newFixture(t)
	r := f.router(t, nil)
	token, _, err := f.tokens.Issue(auth.RoleClient, "c", uuid.New())
	require.NoError(t, err)

	rec := do(t, r, http.MethodGet, "/v1/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Kind)
}

type fakeVerifier struct{ err error }

func (v *fakeVerifier) Verify(context.Context, string, string) (*models.Client, error) {
	return nil, v.err
}

func TestErrorWriter_StatusMapping(t *testing.T) {
	tests := []struct {
		err      error
		want     int
		wantKind string
	}{
		{fmt.Errorf("%w: code is required", e.ErrValidation), http.StatusBadRequest, "validation_error"},
		{e.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("%w: access code", e.ErrNotFound), http.StatusNotFound, "not_found"},
		{e.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{e.ErrConflict, http.StatusConflict, "conflict"},
		{e.ErrExpired, http.StatusGone, "expired"},
		{e.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{errors.New("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			h := NewHandler(&fakeVerifier{err: tt.err}, nil, nil, nil, zap.NewNop())
			r := NewRouter(RouterConfig{Handler: h, Tokens: auth.NewTokenManager("s", time.Hour, nil)})

			rec := do(t, r, http.MethodPost, "/v1/access-codes/verify", "", accessCodeRequest{AccessCode: "X"})
			assert.Equal(t, tt.want, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.RequestID)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
				assert.NotContains(t, rec.Body.String(), "10.0.0.5")
			}
		})
	}
}

func TestRouter_RateLimitsPublicForms(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r := f.router(t, redisstore.NewSlidingWindow(rdb, "test:rl", 2, time.Minute))

	body := map[string]any{"company_name": "Acme", "contact_name": "Jo", "email": "jo@acme.test"}
	for i := 0; i < 2; i++ {
		rec := do(t, r, http.MethodPost, "/v1/code-requests", "", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := do(t, r, http.MethodPost, "/v1/code-requests", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Code guessing shares the same budget.
	rec = do(t, r, http.MethodPost, "/v1/access-codes/verify", "", accessCodeRequest{AccessCode: "NOPE"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	mr.FastForward(2 * time.Minute)
	rec = do(t, r, http.MethodPost, "/v1/access-codes/verify", "", accessCodeRequest{AccessCode: "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	require.NoError(t, err)

	healthy := true
	r := NewRouter(RouterConfig{
		Handler:        f.handler,
		Tokens:         f.tokens,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Health: func(ctx context.Context) error {
			if !healthy {
				return errors.New("database unreachable")
			}
			return f.repo.Ping(ctx)
		},
	})

	rec := do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "portal_http_requests_total"))
}

func TestServer_ServeStop(t *testing.T) {
	f := newFixture(t)
	s := NewServer(0, f.router(t, nil), zaptest.NewLogger(t))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.Stop(time.Second)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
