package crm

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estate_crm_backend/internal/crm/repository/memstore"
	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crmConfig struct{}

func (crmConfig) GetLeadInactivityWindow() time.Duration { return 90 * 24 * time.Hour }
func (crmConfig) GetPhoneDefaultRegion() string          { return "IN" }

type testServer struct {
	engine   *gin.Engine
	store    *memstore.Store
	officer  uuid.UUID
	customer uuid.UUID
}

// newTestServer mounts the module behind a fake auth middleware that trusts
// the X-Roles header.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	store := memstore.New()
	officer, customer := uuid.New(), uuid.New()
	store.AddUser(officer)
	store.AddCustomer(customer)

	m, err := NewModuleWithRepository(store, events.NewInMemoryBus(log), validator.New(), crmConfig{}, log)
	require.NoError(t, err)

	engine := gin.New()
	auth := func(c *gin.Context) {
		var roles []string
		if raw := c.GetHeader("X-Roles"); raw != "" {
			roles = strings.Split(raw, ",")
		}
		httpkit.SetIdentity(c, officer, roles)
		c.Next()
	}
	v1 := engine.Group("/api/v1")
	protected := v1.Group("", auth)
	admin := v1.Group("/admin", auth, httpkit.RequireRole("admin"))
	m.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Protected: protected, Admin: admin, AuthMiddleware: auth})

	return &testServer{engine: engine, store: store, officer: officer, customer: customer}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, roles ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if len(roles) > 0 {
		req.Header.Set("X-Roles", strings.Join(roles, ","))
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func (s *testServer) createLead(t *testing.T) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/crm/leads", map[string]interface{}{
		"propertyId": uuid.NewString(),
		"customerId": s.customer.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["id"].(string)
}

func TestCreateLeadValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
		field  string
	}{
		{"malformed json", `{"propertyId":`, http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"missing customer", map[string]string{"propertyId": uuid.NewString()}, http.StatusBadRequest, "VALIDATION_ERROR", "customerId"},
		{"bad contact date", map[string]string{"propertyId": uuid.NewString(), "customerId": s.customer.String(), "initialContactDate": "14/03/2026"}, http.StatusBadRequest, "VALIDATION_ERROR", "initialContactDate"},
		{"unknown customer", map[string]string{"propertyId": uuid.NewString(), "customerId": uuid.NewString()}, http.StatusBadRequest, "VALIDATION_ERROR", "customerId"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/crm/leads", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, body["errorCode"])
			if tc.field != "" {
				details, ok := body["details"].(map[string]interface{})
				require.True(t, ok, rec.Body.String())
				assert.Contains(t, details, tc.field)
			}
		})
	}
}

func TestLeadLookupErrors(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/crm/leads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := s.do(t, http.MethodGet, "/crm/leads/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["errorCode"])
}

func TestPaymentRejectsUnknownEnums(t *testing.T) {
	s := newTestServer(t)
	leadID := s.createLead(t)

	rec, body := s.do(t, http.MethodPost, "/crm/payments", map[string]interface{}{
		"leadId": leadID, "amountCents": 1000, "method": "bitcoin", "purpose": "deposit",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "paymentMethod", details["method"])
	assert.Equal(t, "paymentPurpose", details["purpose"])

	rec, body = s.do(t, http.MethodPost, "/crm/payments", map[string]interface{}{
		"leadId": leadID, "amountCents": -5, "method": "cash", "purpose": "token",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "gte=0", body["details"].(map[string]interface{})["amountCents"])
}

func TestDecisionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	leadID := s.createLead(t)

	rec, payment := s.do(t, http.MethodPost, "/crm/payments", map[string]interface{}{
		"leadId": leadID, "amountCents": 500000, "method": "upi", "purpose": "token",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", payment["status"])

	rec, list := s.do(t, http.MethodGet, "/crm/status-requests?leadId="+leadID+"&requestedStage=token_advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := list["items"].([]interface{})
	require.Len(t, items, 1)
	requestID := items[0].(map[string]interface{})["id"].(string)

	path := "/crm/status-requests/" + requestID + "/decision"
	rec, _ = s.do(t, http.MethodPost, path, map[string]string{"outcome": "approved"}, "sales")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := s.do(t, http.MethodPost, path, map[string]string{"outcome": "maybe"}, "approver")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["errorCode"])

	rec, decision := s.do(t, http.MethodPost, path, map[string]string{"outcome": "approved"}, "approver")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decision["lead"].(map[string]interface{})["currentApproval"])
	assert.EqualValues(t, 1, decision["paymentsUpdated"])

	rec, body = s.do(t, http.MethodPost, path, map[string]string{"outcome": "approved"}, "admin")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", body["errorCode"])

	rec, settled := s.do(t, http.MethodGet, "/crm/payments/"+payment["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", settled["status"])
}

func TestStageEditOverHTTP(t *testing.T) {
	s := newTestServer(t)
	leadID := s.createLead(t)

	rec, body := s.do(t, http.MethodPatch, "/crm/leads/"+leadID, map[string]string{"currentApproval": "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["errorCode"])

	rec, lead := s.do(t, http.MethodPatch, "/crm/leads/"+leadID, map[string]string{
		"currentStage": "documentation", "currentApproval": "pending",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "documentation", lead["currentStage"])
	assert.Equal(t, "pending", lead["currentApproval"])

	rec, overview := s.do(t, http.MethodGet, "/crm/leads/"+leadID+"/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, overview["statusRequests"], 1)
	assert.Len(t, overview["statusLogs"], 1)
}

func TestCreateStatusRequestOverHTTP(t *testing.T) {
	s := newTestServer(t)
	leadID := s.createLead(t)

	rec, body := s.do(t, http.MethodPost, "/crm/status-requests", map[string]string{"leadId": leadID, "requestedStage": "handover"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "requestedStage")

	rec, body = s.do(t, http.MethodPost, "/crm/status-requests", map[string]string{"leadId": uuid.NewString(), "requestedStage": "payment"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "leadId")

	payload := map[string]string{"leadId": leadID, "requestedStage": "payment", "remarks": "loan sanctioned"}
	rec, created := s.do(t, http.MethodPost, "/crm/status-requests", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "payment", created["requestedStage"])
	assert.Equal(t, "pending", created["approval"])

	rec, reused := s.do(t, http.MethodPost, "/crm/status-requests", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created["id"], reused["id"])

	rec, lead := s.do(t, http.MethodGet, "/crm/leads/"+leadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payment", lead["currentStage"])
	assert.Equal(t, "pending", lead["currentApproval"])

	rec, decided := s.do(t, http.MethodPost, "/crm/status-requests/"+created["id"].(string)+"/decision", map[string]string{"outcome": "approved"}, "approver")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decided["lead"].(map[string]interface{})["currentApproval"])
}

func TestSiteVisitOverHTTP(t *testing.T) {
	s := newTestServer(t)
	leadID := s.createLead(t)

	rec, visit := s.do(t, http.MethodPost, "/crm/site-visits", map[string]interface{}{
		"leadId": leadID, "isPickup": true, "contactPhone": "+91 98765 43210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "+919876543210", visit["contactPhone"])

	rec, lead := s.do(t, http.MethodGet, "/crm/leads/"+leadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "site_visit", lead["currentStage"])

	rec, _ = s.do(t, http.MethodGet, "/crm/site-visits?pickupDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSweepRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	s.createLead(t)

	rec, _ := s.do(t, http.MethodPost, "/admin/crm/leads/deactivate-stale", nil, "sales")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/admin/crm/leads/deactivate-stale", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["deactivated"])
}

func TestOfficerPerformanceOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createLead(t)

	rec, perf := s.do(t, http.MethodGet, "/crm/officers/"+s.officer.String()+"/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, perf["leadsWithoutStage"])
}
