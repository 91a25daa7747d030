package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/service"
	"go-retail-ledger/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Open(ctx context.Context, req *service.OpenCashSessionRequest) (*model.CashSession, error) {
	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*model.CashSession)
	return session, args.Error(1)
}

func (m *mockSessions) Withdraw(ctx context.Context, id uuid.UUID, req *service.WithdrawRequest) (*service.WithdrawResult, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*service.WithdrawResult)
	return res, args.Error(1)
}

func (m *mockSessions) Close(ctx context.Context, id uuid.UUID, req *service.CloseCashSessionRequest) (*model.CashSession, error) {
	args := m.Called(ctx, id, req)
	session, _ := args.Get(0).(*model.CashSession)
	return session, args.Error(1)
}

func (m *mockSessions) Report(ctx context.Context, id uuid.UUID) (*service.CashSessionReport, error) {
	args := m.Called(ctx, id)
	report, _ := args.Get(0).(*service.CashSessionReport)
	return report, args.Error(1)
}

func (m *mockSessions) ListOpen(ctx context.Context) ([]model.CashSession, error) {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]model.CashSession)
	return sessions, args.Error(1)
}

func (m *mockSessions) Get(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*model.CashSession)
	return session, args.Error(1)
}

func newSessionApp(sessions service.CashSessionService) *fiber.App {
	h := NewCashSessionHandler(sessions)
	app := fiber.New()
	app.Post("/cash-sessions", h.Open)
	app.Get("/cash-sessions/:id", h.Get)
	app.Get("/cash-sessions/:id/report", h.Report)
	app.Post("/cash-sessions/:id/withdrawals", h.Withdraw)
	return app
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestRespondError_MapsKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperror.Validation("INVALID_INPUT", "bad"), fiber.StatusBadRequest, "INVALID_INPUT"},
		{"conflict", service.ErrMaxOpenCashSessions, fiber.StatusConflict, "MAX_OPEN_CASH_SESSIONS"},
		{"not found", service.ErrCashSessionNotFound, fiber.StatusNotFound, "CASH_SESSION_NOT_FOUND"},
		{"forbidden", service.ErrRoleForbidden, fiber.StatusForbidden, "ROLE_FORBIDDEN"},
		{"tenant", apperror.New(apperror.KindTenantNotResolved, "TENANT_NOT_RESOLVED", "no tenant"), fiber.StatusUnauthorized, "TENANT_NOT_RESOLVED"},
		{"wrapped", errors.Join(errors.New("context"), service.ErrCashSessionNotFound), fiber.StatusNotFound, "CASH_SESSION_NOT_FOUND"},
		{"unknown", errors.New("disk on fire"), fiber.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return respondError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeBody(t, resp.Body)["code"])
		})
	}
}

func TestRespondError_HidesInternalMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return respondError(c, errors.New("pq: password authentication failed")) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.NotContains(t, body, "details")
}

func TestCashSessionHandler_OpenConflictCarriesDetails(t *testing.T) {
	sessions := new(mockSessions)
	sessions.On("Open", mock.Anything, &service.OpenCashSessionRequest{OpeningCents: 1000, RegisterLabel: "POS-1"}).
		Return(nil, service.ErrMaxOpenCashSessions.WithDetails(map[string]interface{}{"max": 1, "open": 1}))

	req := httptest.NewRequest("POST", "/cash-sessions", strings.NewReader(`{"openingCents":1000,"registerLabel":"POS-1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newSessionApp(sessions).Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, "MAX_OPEN_CASH_SESSIONS", body["code"])
	assert.Equal(t, map[string]interface{}{"max": float64(1), "open": float64(1)}, body["details"])
	sessions.AssertExpectations(t)
}

func TestCashSessionHandler_OpenCreated(t *testing.T) {
	created := &model.CashSession{OpeningCents: 500}
	created.ID = uuid.New()
	sessions := new(mockSessions)
	sessions.On("Open", mock.Anything, mock.AnythingOfType("*service.OpenCashSessionRequest")).Return(created, nil)

	req := httptest.NewRequest("POST", "/cash-sessions", strings.NewReader(`{"openingCents":500}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newSessionApp(sessions).Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, created.ID.String(), decodeBody(t, resp.Body)["id"])
}

func TestCashSessionHandler_InvalidJSON(t *testing.T) {
	sessions := new(mockSessions)
	req := httptest.NewRequest("POST", "/cash-sessions", strings.NewReader(`{"openingCents":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newSessionApp(sessions).Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_JSON", decodeBody(t, resp.Body)["code"])
	sessions.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestCashSessionHandler_InvalidID(t *testing.T) {
	sessions := new(mockSessions)
	resp, err := newSessionApp(sessions).Test(httptest.NewRequest("GET", "/cash-sessions/not-a-uuid/report", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ID", decodeBody(t, resp.Body)["code"])
}

func TestCashSessionHandler_WithdrawApprovalFailed(t *testing.T) {
	id := uuid.New()
	sessions := new(mockSessions)
	sessions.On("Withdraw", mock.Anything, id, &service.WithdrawRequest{AmountCents: 1500, SupervisorCredential: "0000"}).
		Return(nil, service.ErrApprovalFailed)

	req := httptest.NewRequest("POST", "/cash-sessions/"+id.String()+"/withdrawals",
		strings.NewReader(`{"amountCents":1500,"supervisorCredential":"0000"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newSessionApp(sessions).Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, service.ErrApprovalFailed.Code, decodeBody(t, resp.Body)["code"])
}
