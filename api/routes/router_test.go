package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurkart/storefront-backend/internal/cancellation"
	"github.com/ayurkart/storefront-backend/internal/deletion"
	"github.com/ayurkart/storefront-backend/internal/refunds"
	pkgAuth "github.com/ayurkart/storefront-backend/pkg/auth"
	"github.com/ayurkart/storefront-backend/pkg/config"
	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubAdmins struct{ admin uuid.UUID }

func (s stubAdmins) IsActiveAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	return userID == s.admin, nil
}

type stubDLQ struct{ rows []models.OutboxDLQ }

func (s stubDLQ) Recent(context.Context, int) ([]models.OutboxDLQ, error) { return s.rows, nil }

type stubCancellation struct{}

func (stubCancellation) CancelOrder(_ context.Context, input cancellation.CancelOrderInput) (*cancellation.Result, error) {
	return &cancellation.Result{OrderID: input.OrderID}, nil
}

type stubDeletion struct{}

func (stubDeletion) DeleteOrder(context.Context, deletion.DeleteOrderInput) error { return nil }

type stubRefunds struct{}

func (stubRefunds) ProcessRefund(_ context.Context, input refunds.ProcessRefundInput) (*refunds.Result, error) {
	return &refunds.Result{OrderID: input.OrderID, RefundID: "rf_1", Amount: input.Amount}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront", Audience: "authenticated", ExpirationMinutes: 30},
	}
}

func newTestRouter(t *testing.T, admin uuid.UUID, dbP stubPinger) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	wm := metrics.NewWorkflowMetrics(reg)
	wm.Track(metrics.WorkflowCancel, time.Now(), nil)

	h := NewRouter(
		testConfig(),
		nil,
		dbP,
		nil,
		reg,
		stubAdmins{admin: admin},
		stubDLQ{rows: []models.OutboxDLQ{{EventID: uuid.New()}}},
		Services{
			Cancellation: stubCancellation{},
			Deletion:     stubDeletion{},
			Refunds:      stubRefunds{},
		},
	)
	return h, reg
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.Issue(testConfig().JWT, time.Now(), pkgAuth.Identity{UserID: userID})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestPreflightNeedsNoAuth(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	for _, path := range []string{"/functions/v1/cancel-order", "/functions/v1/delete-order", "/functions/v1/process-refund"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://ayurkart.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Less(t, rec.Code, 300, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Empty(t, rec.Body.String(), path)
	}
}

func TestBareOptionsReturnsNoContent(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/functions/v1/cancel-order", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFunctionsRequireBearerToken(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/cancel-order", strings.NewReader(`{"orderId":"`+uuid.NewString()+`"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestFunctionsRouteToServices(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})
	caller := uuid.New()
	orderID := uuid.NewString()

	cases := []struct {
		path string
		body string
		want string
	}{
		{"/functions/v1/cancel-order", `{"orderId":"` + orderID + `"}`, `{"success":true,"message":"Order cancelled successfully","orderId":"` + orderID + `"}`},
		{"/functions/v1/delete-order", `{"orderId":"` + orderID + `"}`, `{"success":true,"message":"Order deleted successfully","orderId":"` + orderID + `"}`},
		{"/functions/v1/process-refund", `{"orderId":"` + orderID + `","amount":25.5}`, `{"success":true,"message":"Refund processed successfully","refundId":"rf_1","amount":25.5}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Authorization", bearer(t, caller))
		req.Header.Set("Origin", "https://ayurkart.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.JSONEq(t, tc.want, rec.Body.String(), tc.path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), tc.path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"), tc.path)
	}
}

func TestFunctionsRejectGet(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/functions/v1/cancel-order", nil)
	req.Header.Set("Authorization", bearer(t, uuid.New()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAdminDLQRequiresAdminRole(t *testing.T) {
	admin := uuid.New()
	h, _ := newTestRouter(t, admin, stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq", nil)
	req.Header.Set("Authorization", bearer(t, uuid.New()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/outbox/dlq?limit=10", nil)
	req.Header.Set("Authorization", bearer(t, admin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Entries []map[string]any `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Entries, 1)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := newTestRouter(t, uuid.New(), stubPinger{err: errors.New("connection refused")})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointExposesWorkflowCounters(t *testing.T) {
	h, _ := newTestRouter(t, uuid.New(), stubPinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "order_workflow_total")
}
