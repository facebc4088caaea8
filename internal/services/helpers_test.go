package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/storage"
)

var (
	principal = core.Principal{OrganizationID: "org-1", UserID: "user-1"}
	outsider  = core.Principal{OrganizationID: "org-2", UserID: "user-9"}
	fixedNow  = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Events() []amqp.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]amqp.LedgerEvent(nil), p.events...)
}

type testEnv struct {
	repo         *storage.SQLiteRepository
	publisher    *recordingPublisher
	accounts     *AccountService
	catalog      *CatalogService
	fees         *FeeService
	transactions *TransactionService
	reports      *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), storage.Options{BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	clock := func() time.Time { return fixedNow }
	env := &testEnv{
		repo:         repo,
		publisher:    &recordingPublisher{},
		accounts:     NewAccountService(repo, "TRY"),
		catalog:      NewCatalogService(repo, nil),
		transactions: NewTransactionService(repo),
		reports:      NewReportService(repo),
	}
	env.fees = NewFeeService(repo, env.publisher)
	env.fees.SetClock(clock)
	env.accounts.now = clock
	env.catalog.now = clock
	env.transactions.now = clock
	return env
}

func (e *testEnv) account(t *testing.T, name string, opening int64) core.Account {
	t.Helper()
	a, err := e.accounts.CreateAccount(context.Background(), principal, CreateAccountInput{
		Name: name, Type: core.AccountCash, OpeningBalance: core.Money{Cents: opening},
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) balance(t *testing.T, id string) int64 {
	t.Helper()
	a, err := e.accounts.GetAccount(context.Background(), principal, id)
	require.NoError(t, err)
	return a.Balance.Cents
}

func (e *testEnv) service(t *testing.T, price int64, vat int64) core.Service {
	t.Helper()
	s, err := e.catalog.CreateService(context.Background(), principal, ServiceInput{
		Name: "Tuition", Type: core.Income, UnitPrice: core.Money{Cents: price}, VATRate: decimal.NewFromInt(vat),
	})
	require.NoError(t, err)
	return s
}

// fee creates a monthly fee for student-1 with the given net amount.
func (e *testEnv) fee(t *testing.T, serviceID string, net int64, n int) core.StudentFee {
	t.Helper()
	total := core.Money{Cents: net}
	f, err := e.fees.CreateStudentFee(context.Background(), principal, CreateStudentFeeInput{
		StudentID:        "student-1",
		ServiceID:        serviceID,
		Description:      "Spring term",
		TotalAmount:      &total,
		InstallmentCount: n,
		FirstDueDate:     core.NewDate(2025, 4, 15),
	})
	require.NoError(t, err)
	return f
}

func (e *testEnv) pay(accountID, installmentID string, cents int64, date core.Date) (PaymentReceipt, error) {
	return e.fees.CreateFeePayment(context.Background(), principal, CreateFeePaymentInput{
		StudentID:     "student-1",
		InstallmentID: installmentID,
		AccountID:     accountID,
		Amount:        core.Money{Cents: cents},
		Method:        core.MethodCash,
		PaymentDate:   date,
	})
}

func (e *testEnv) installment(t *testing.T, id string) core.Installment {
	t.Helper()
	i, err := e.repo.Queries().GetInstallment(context.Background(), principal.OrganizationID, id)
	require.NoError(t, err)
	return i
}

func isValidation(err error) bool {
	var ve *core.ValidationError
	return errors.As(err, &ve)
}
