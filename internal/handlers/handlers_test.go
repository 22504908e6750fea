package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yameogogildas/transactions/configs"
	"github.com/yameogogildas/transactions/internal/handlers"
	"github.com/yameogogildas/transactions/internal/models"
	"github.com/yameogogildas/transactions/internal/routes"
	"github.com/yameogogildas/transactions/internal/store"
)

func setup(t *testing.T) http.Handler {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ExchangeRate{}, &models.Transaction{}, &models.Alert{}))
	store.DB = db

	configs.AppConfig.JWT.Secret = "test-secret"
	configs.AppConfig.JWT.AccessTTL = time.Hour
	configs.AppConfig.JWT.RefreshTTL = 24 * time.Hour
	configs.AppConfig.Alerts.HighAmountThreshold = 10000
	configs.AppConfig.Alerts.VelocityMax = 3
	configs.AppConfig.Alerts.VelocityWindow = 5 * time.Minute

	handlers.Init()
	return routes.NewRoutes()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, name, email, role string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	h := setup(t)

	register(t, h, "Client One", "client1@test.local", "client")
	register(t, h, "Back Office", "service1@test.local", "service")
	clientTok := login(t, h, "client1@test.local")
	serviceTok := login(t, h, "service1@test.local")

	rec := do(t, h, http.MethodGet, "/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/transactions", clientTok, map[string]any{
		"amount": 15000, "currency": "USD", "service": "Western Union", "number": "TX1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.StatusPending, created.Status)

	// duplicate number is a conflict
	rec = do(t, h, http.MethodPost, "/transactions", clientTok, map[string]any{
		"amount": 10, "currency": "USD", "service": "RIA", "number": "TX1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the high amount shows up for the service role
	rec = do(t, h, http.MethodGet, "/alerts", serviceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var findings []struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "high amount", findings[0].Reason)

	// alerts are off limits for clients
	rec = do(t, h, http.MethodGet, "/alerts", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// validate by number, then edits are rejected
	rec = do(t, h, http.MethodPatch, "/transactions/TX1/status", serviceTok, map[string]string{
		"status": models.StatusValidated,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, fmt.Sprintf("/transactions/%d", created.ID), clientTok, map[string]any{
		"amount": 20,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// receipt for a validated transaction
	rec = do(t, h, http.MethodGet, fmt.Sprintf("/transactions/%d/receipt", created.ID), clientTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String()[:4])

	// supervision summary is service-only
	rec = do(t, h, http.MethodGet, "/supervision/summary", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, h, http.MethodGet, "/supervision/summary", serviceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		PerStatus []struct {
			Status string `json:"status"`
			Count  int64  `json:"count"`
		} `json:"per_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.PerStatus, 1)
	assert.Equal(t, models.StatusValidated, summary.PerStatus[0].Status)
}

func TestRateEndpoints(t *testing.T) {
	h := setup(t)

	register(t, h, "Agent One", "agent1@test.local", "agent")
	tok := login(t, h, "agent1@test.local")

	rec := do(t, h, http.MethodGet, "/rates", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "empty registry lists as an empty collection")

	rec = do(t, h, http.MethodPost, "/rates", tok, map[string]any{
		"source_currency": " usd", "target_currency": "eur", "rate": "0.92",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/rates", tok, map[string]any{
		"source_currency": "USD", "target_currency": "EUR", "rate": "0.95",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/rates", tok, map[string]any{
		"source_currency": "USD", "target_currency": "USD", "rate": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := setup(t)

	rec := do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "X", "email": "x@test.local", "password": "short", "role": "client",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "X", "email": "x@test.local", "password": "secret123", "role": "root",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	register(t, h, "X", "x@test.local", "client")
	rec = do(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Other", "email": "x@test.local", "password": "secret123", "role": "client",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
