package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/services"
	"feeledger/internal/sheets"
	"feeledger/internal/sheets/memory"
	"feeledger/internal/storage"
)

var (
	owner    = core.Principal{OrganizationID: "org-1", UserID: "user-1"}
	fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

type capture struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
}

func (c *capture) PublishLedgerEvent(_ context.Context, e amqp.LedgerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) last() amqp.LedgerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type failingWriter struct{}

func (failingWriter) AppendReceipt(context.Context, sheets.ReceiptRow) (string, error) {
	return "", errors.New("sheets unavailable")
}

func (failingWriter) WriteYearReport(context.Context, sheets.YearReport) (string, error) {
	return "", errors.New("sheets unavailable")
}

type fixture struct {
	fees    *services.FeeService
	events  *capture
	store   *memory.Store
	worker  *ExportWorker
	account core.Account
	fee     core.StudentFee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	events := &capture{}
	fees := services.NewFeeService(repo, events)
	fees.SetClock(func() time.Time { return fixedNow })
	reports := services.NewReportService(repo)
	store := memory.New()

	acct, err := services.NewAccountService(repo, "TRY").CreateAccount(ctx, owner, services.CreateAccountInput{
		Name: "Front desk", Type: core.AccountCash,
	})
	require.NoError(t, err)
	svc, err := services.NewCatalogService(repo, nil).CreateService(ctx, owner, services.ServiceInput{
		Name: "Tuition", Type: core.Income, UnitPrice: core.Money{Cents: 11800}, VATRate: decimal.NewFromInt(18),
	})
	require.NoError(t, err)
	fee, err := fees.CreateStudentFee(ctx, owner, services.CreateStudentFeeInput{
		StudentID:        "student-1",
		ServiceID:        svc.ID,
		Description:      "Spring term",
		InstallmentCount: 1,
		FirstDueDate:     core.NewDate(2025, 4, 15),
	})
	require.NoError(t, err)

	w := NewExportWorker(repo, fees, reports, store, store)
	w.now = func() time.Time { return fixedNow }

	return &fixture{fees: fees, events: events, store: store, worker: w, account: acct, fee: fee}
}

func (f *fixture) payInFull(t *testing.T) services.PaymentReceipt {
	t.Helper()
	r, err := f.fees.CreateFeePayment(context.Background(), owner, services.CreateFeePaymentInput{
		StudentID:     "student-1",
		InstallmentID: f.fee.Installments[0].ID,
		AccountID:     f.account.ID,
		Amount:        core.Money{Cents: 11800},
		Method:        core.MethodBankTransfer,
		PaymentDate:   core.NewDate(2025, 2, 20),
	})
	require.NoError(t, err)
	return r
}

func TestHandleLedgerEvent_PaymentAppendsReceipt(t *testing.T) {
	f := newFixture(t)
	receipt := f.payInFull(t)

	require.NoError(t, f.worker.HandleLedgerEvent(context.Background(), f.events.last()))

	rows := f.store.Receipts()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, sheets.RowPayment, row.Kind)
	assert.Equal(t, receipt.Payment.ID, row.Reference)
	assert.Equal(t, "2025-02-20", row.Date.String())
	assert.Equal(t, "student-1", row.StudentID)
	assert.Equal(t, "Payment: Spring term", row.Description)
	assert.Equal(t, core.MethodBankTransfer, row.Method)
	assert.Equal(t, int64(11800), row.Amount.Cents)
	assert.Equal(t, int64(10000), row.Subtotal.Cents)
	assert.Equal(t, int64(1800), row.VATAmount.Cents)

	// Redelivery does not duplicate the receipt.
	require.NoError(t, f.worker.HandleLedgerEvent(context.Background(), f.events.last()))
	assert.Len(t, f.store.Receipts(), 1)
}

func TestHandleLedgerEvent_CancellationAppendsRefund(t *testing.T) {
	f := newFixture(t)
	f.payInFull(t)

	_, err := f.fees.CancelStudentFee(context.Background(), owner, f.fee.ID, services.CancelStudentFeeInput{
		Refund: true, Reason: "moved away",
	})
	require.NoError(t, err)

	ev := f.events.last()
	require.Equal(t, amqp.EventStudentFeeCancelled, ev.Type)
	require.NoError(t, f.worker.HandleLedgerEvent(context.Background(), ev))

	rows := f.store.Receipts()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, sheets.RowCancellation, row.Kind)
	assert.Equal(t, f.fee.ID, row.Reference)
	assert.Equal(t, "2025-03-01", row.Date.String())
	assert.Equal(t, "Cancelled: Spring term (moved away)", row.Description)
	assert.Equal(t, int64(11800), row.Amount.Cents)
	assert.Equal(t, int64(10000), row.Subtotal.Cents)
	assert.Equal(t, int64(1800), row.VATAmount.Cents)
}

func TestHandleLedgerEvent_DropsUnknownAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unknown := amqp.NewLedgerEvent("invoice.created", "org-1", "x", "", 0)
	assert.NoError(t, f.worker.HandleLedgerEvent(ctx, unknown))

	missing := amqp.NewLedgerEvent(amqp.EventFeePaymentCreated, "org-1", "does-not-exist", "student-1", 100)
	assert.NoError(t, f.worker.HandleLedgerEvent(ctx, missing))

	// A fee of another organization is missing too.
	foreign := amqp.NewLedgerEvent(amqp.EventStudentFeeCancelled, "org-2", f.fee.ID, "student-1", 0)
	assert.NoError(t, f.worker.HandleLedgerEvent(ctx, foreign))

	assert.Empty(t, f.store.Receipts())
}

func TestHandleLedgerEvent_SkipsActiveFee(t *testing.T) {
	f := newFixture(t)
	ev := amqp.NewLedgerEvent(amqp.EventStudentFeeCancelled, "org-1", f.fee.ID, "student-1", 0)
	assert.NoError(t, f.worker.HandleLedgerEvent(context.Background(), ev))
	assert.Empty(t, f.store.Receipts())
}

func TestHandleLedgerEvent_WriterFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.payInFull(t)
	f.worker.receipts = failingWriter{}

	err := f.worker.HandleLedgerEvent(context.Background(), f.events.last())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets unavailable")
}

func TestExportYearReport(t *testing.T) {
	f := newFixture(t)
	f.payInFull(t)

	require.NoError(t, f.worker.ExportYearReport(context.Background(), "org-1", 2025))

	report, ok := f.store.Report("org-1", 2025)
	require.True(t, ok)
	assert.Equal(t, 2025, report.Summary.Year)
	assert.Equal(t, int64(11800), report.Summary.FeeIncome.Cents)
	assert.Equal(t, int64(11800), report.Summary.CollectedAmount.Cents)
	assert.Equal(t, int64(100), report.Summary.CollectionRate)
	require.Len(t, report.Trends, 12)
	assert.Equal(t, int64(11800), report.Trends[1].Income.Cents)
}

func TestExportReports_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.worker.ExportReports(context.Background(), []string{"org-1", "org-2"}))
	_, ok := f.store.Report("org-2", 2025)
	assert.True(t, ok)

	f.worker.writer = failingWriter{}
	err := f.worker.ExportReports(context.Background(), []string{"org-1", "org-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org-1")
	assert.Contains(t, err.Error(), "org-2")
}
