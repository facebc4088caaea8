package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger/internal/services"
	"feeledger/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	fees := services.NewFeeService(repo, nil)
	fees.SetClock(func() time.Time { return fixedNow })
	s := NewServer(Options{Addr: ":0", RequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}, Services{
		Accounts:     services.NewAccountService(repo, "TRY"),
		Catalog:      services.NewCatalogService(repo, nil),
		Fees:         fees,
		Transactions: services.NewTransactionService(repo),
		Reports:      services.NewReportService(repo),
	}, repo)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(HeaderOrganizationID, "org-1")
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func createAccount(t *testing.T, s *Server) string {
	t.Helper()
	rec, env := do(t, s, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Main cash", "type": "cash", "opening_balance": 0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &a))
	return a.ID
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAPIRequiresPrincipal(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := createAccount(t, s)

	rec, env := do(t, s, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), id)

	rec, env = do(t, s, http.MethodPatch, "/api/accounts/"+id, map[string]any{"name": "Front desk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), "Front desk")

	rec, _ = do(t, s, http.MethodDelete, "/api/accounts/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/accounts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestCreateAccountRejectsBadBody(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"invalid json", `{"name":`},
		{"unknown field", map[string]any{"name": "Cash", "type": "cash", "colour": "red"}},
		{"wrong type", map[string]any{"name": 12, "type": "cash"}},
		{"invalid account type", map[string]any{"name": "Cash", "type": "vault"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPost, "/api/accounts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestFeePaymentFlow(t *testing.T) {
	s := newTestServer(t)
	accountID := createAccount(t, s)

	rec, env := do(t, s, http.MethodPost, "/api/student-fees", map[string]any{
		"student_id":        "student-1",
		"description":       "Spring term",
		"total_amount":      300,
		"installment_count": 3,
		"first_due_date":    "2025-04-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var fee struct {
		ID           string `json:"id"`
		Installments []struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
		} `json:"installments"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fee))
	require.Len(t, fee.Installments, 3)

	rec, env = do(t, s, http.MethodPost, "/api/fee-payments", map[string]any{
		"student_id":     "student-1",
		"installment_id": fee.Installments[0].ID,
		"account_id":     accountID,
		"amount":         fee.Installments[0].Amount + 0.01,
		"payment_method": "cash",
		"payment_date":   "2025-02-20",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, env.Error, "maximum allowed is")

	rec, env = do(t, s, http.MethodPost, "/api/fee-payments", map[string]any{
		"student_id":     "student-1",
		"installment_id": fee.Installments[0].ID,
		"account_id":     accountID,
		"amount":         fee.Installments[0].Amount,
		"payment_method": "cash",
		"payment_date":   "2025-02-20",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	rec, env = do(t, s, http.MethodGet, "/api/accounts/"+accountID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account struct {
		Balance float64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, fee.Installments[0].Amount, account.Balance)

	rec, env = do(t, s, http.MethodGet, "/api/fee-payments?student_id=student-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 1)

	rec, env = do(t, s, http.MethodPost, "/api/student-fees/"+fee.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"cancelled"`)

	rec, _ = do(t, s, http.MethodGet, "/api/student-fees?status=cancelled", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/student-fees?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeePaymentRejectsOverflowingAmount(t *testing.T) {
	s := newTestServer(t)
	accountID := createAccount(t, s)

	rec, env := do(t, s, http.MethodPost, "/api/fee-payments",
		`{"student_id":"student-1","account_id":"`+accountID+`","amount":184467440737095516.17,"payment_method":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, env.Error, "invalid amount")

	rec, env = do(t, s, http.MethodGet, "/api/fee-payments?student_id=student-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Empty(t, payments)
}

func TestCancelStudentFeeWithChunkedEmptyBody(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/student-fees", map[string]any{
		"student_id":        "student-1",
		"description":       "Spring term",
		"total_amount":      300,
		"installment_count": 1,
		"first_due_date":    "2025-04-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var fee struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fee))

	req := httptest.NewRequest(http.MethodPost, "/api/student-fees/"+fee.ID+"/cancel", http.NoBody)
	req.ContentLength = -1
	req.Header.Set(HeaderOrganizationID, "org-1")
	req.Header.Set(HeaderUserID, "user-1")
	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancelled"`)
}

func TestAccountDeleteConflictWhenReferenced(t *testing.T) {
	s := newTestServer(t)
	accountID := createAccount(t, s)

	rec, _ := do(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"type":             "expense",
		"amount":           50,
		"account_id":       accountID,
		"description":      "Chalk",
		"transaction_date": "2025-02-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodDelete, "/api/accounts/"+accountID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, env.Error, "deactivate it instead")
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	accountID := createAccount(t, s)

	rec, _ := do(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"type":             "income",
		"amount":           118,
		"vat_rate":         18,
		"account_id":       accountID,
		"transaction_date": "2025-02-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary struct {
		Year        int     `json:"year"`
		TotalIncome float64 `json:"total_income"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 2025, summary.Year)
	assert.Equal(t, 118.0, summary.TotalIncome)

	rec, env = do(t, s, http.MethodGet, "/api/reports/monthly?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trends []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &trends))
	assert.Len(t, trends, 12)

	rec, _ = do(t, s, http.MethodGet, "/api/reports/monthly?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/reports/categories?type=expense", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/reports/overdue?date=2025-13-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodGet, "/api/accounts", nil)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.GreaterOrEqual(t, m.TotalRequests, int64(1))
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	s := newTestServer(t)
	s.rateLimiter.Stop()
	s2 := NewServer(Options{RateLimitPerMinute: 1}, s.services, s.store)
	t.Cleanup(func() { s2.rateLimiter.Stop() })

	rec, _ := do(t, s2, http.MethodPost, "/api/categories", map[string]any{"name": "Books", "type": "expense"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s2, http.MethodPost, "/api/categories", map[string]any{"name": "Rent", "type": "expense"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.False(t, env.Success)

	rec, _ = do(t, s2, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
