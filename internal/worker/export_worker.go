package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/services"
	"feeledger/internal/sheets"
	"feeledger/internal/storage"
)

// WorkerUserID is the user recorded for reads made on behalf of an event.
const WorkerUserID = "ledger-worker"

// ExportWorker copies committed ledger changes to the receipt journal and
// rebuilds annual reports on request.
type ExportWorker struct {
	storage  *storage.SQLiteRepository
	fees     *services.FeeService
	reports  *services.ReportService
	receipts sheets.ReceiptWriter
	writer   sheets.ReportWriter
	now      func() time.Time
}

func NewExportWorker(storage *storage.SQLiteRepository, fees *services.FeeService, reports *services.ReportService, receipts sheets.ReceiptWriter, writer sheets.ReportWriter) *ExportWorker {
	return &ExportWorker{
		storage:  storage,
		fees:     fees,
		reports:  reports,
		receipts: receipts,
		writer:   writer,
		now:      time.Now,
	}
}

func principal(orgID string) core.Principal {
	return core.Principal{OrganizationID: orgID, UserID: WorkerUserID}
}

// HandleLedgerEvent exports a single event. Events whose records no longer
// exist and unknown event types are logged and dropped; other failures are
// returned so the message is redelivered.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"organization_id", ev.OrganizationID,
		"entity_id", ev.EntityID)

	var err error
	switch ev.Type {
	case amqp.EventFeePaymentCreated:
		err = w.exportPayment(ctx, ev)
	case amqp.EventStudentFeeCancelled:
		err = w.exportCancellation(ctx, ev)
	default:
		slog.WarnContext(ctx, "Skipping unknown ledger event", "type", ev.Type)
		return nil
	}

	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		slog.WarnContext(ctx, "Ledger event refers to a missing record, dropping",
			"type", ev.Type,
			"entity", nf.Entity,
			"entity_id", nf.ID)
		return nil
	}
	return err
}

func (w *ExportWorker) exportPayment(ctx context.Context, ev amqp.LedgerEvent) error {
	p := principal(ev.OrganizationID)
	pay, err := w.fees.GetFeePayment(ctx, p, ev.EntityID)
	if err != nil {
		return fmt.Errorf("get fee payment: %w", err)
	}
	entry, err := w.storage.Queries().GetTransactionByPayment(ctx, ev.OrganizationID, pay.ID)
	if err != nil {
		return fmt.Errorf("get payment transaction: %w", err)
	}

	ref, err := w.receipts.AppendReceipt(ctx, sheets.ReceiptRow{
		Kind:           sheets.RowPayment,
		Date:           pay.PaymentDate,
		OrganizationID: pay.OrganizationID,
		StudentID:      pay.StudentID,
		Reference:      pay.ID,
		Description:    entry.Description,
		Method:         pay.Method,
		Amount:         pay.Amount,
		Subtotal:       entry.Subtotal,
		VATAmount:      entry.VATAmount,
	})
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}

	slog.InfoContext(ctx, "Exported fee payment",
		"payment_id", pay.ID,
		"sheets_ref", ref,
		"amount", pay.Amount.String())
	return nil
}

func (w *ExportWorker) exportCancellation(ctx context.Context, ev amqp.LedgerEvent) error {
	fee, err := w.fees.GetStudentFee(ctx, principal(ev.OrganizationID), ev.EntityID)
	if err != nil {
		return fmt.Errorf("get student fee: %w", err)
	}
	if fee.Status != core.FeeCancelled {
		slog.WarnContext(ctx, "Cancellation event for a fee that is not cancelled",
			"student_fee_id", fee.ID,
			"status", fee.Status)
		return nil
	}

	date := core.DateOf(ev.Timestamp.UTC())
	if fee.CancelledAt != nil {
		date = core.DateOf(fee.CancelledAt.UTC())
	}
	refunded := core.Money{Cents: ev.AmountCents}
	split := core.SplitVAT(refunded, fee.VATRate)

	description := "Cancelled: " + fee.Description
	if fee.CancelReason != "" {
		description += " (" + fee.CancelReason + ")"
	}

	ref, err := w.receipts.AppendReceipt(ctx, sheets.ReceiptRow{
		Kind:           sheets.RowCancellation,
		Date:           date,
		OrganizationID: fee.OrganizationID,
		StudentID:      fee.StudentID,
		Reference:      fee.ID,
		Description:    description,
		Amount:         refunded,
		Subtotal:       split.Subtotal,
		VATAmount:      split.VATAmount,
	})
	if err != nil {
		return fmt.Errorf("append cancellation: %w", err)
	}

	slog.InfoContext(ctx, "Exported fee cancellation",
		"student_fee_id", fee.ID,
		"sheets_ref", ref,
		"refunded", refunded.String())
	return nil
}

// ExportYearReport rebuilds the annual report of one organization.
func (w *ExportWorker) ExportYearReport(ctx context.Context, orgID string, year int) error {
	p := principal(orgID)
	summary, err := w.reports.FinancialSummary(ctx, p, year)
	if err != nil {
		return fmt.Errorf("financial summary: %w", err)
	}
	trends, err := w.reports.MonthlyTrends(ctx, p, year)
	if err != nil {
		return fmt.Errorf("monthly trends: %w", err)
	}

	ref, err := w.writer.WriteYearReport(ctx, sheets.YearReport{
		OrganizationID: orgID,
		Summary:        summary,
		Trends:         trends,
	})
	if err != nil {
		return fmt.Errorf("write year report: %w", err)
	}

	slog.InfoContext(ctx, "Exported year report",
		"organization_id", orgID,
		"year", year,
		"sheets_ref", ref,
		"net_income", summary.NetIncome.String())
	return nil
}

// ExportReports rebuilds the current year's report for each organization and
// keeps going past failures.
func (w *ExportWorker) ExportReports(ctx context.Context, orgIDs []string) error {
	year := w.now().UTC().Year()
	var errs []error
	for _, org := range orgIDs {
		if err := w.ExportYearReport(ctx, org, year); err != nil {
			slog.ErrorContext(ctx, "Failed to export year report", "organization_id", org, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", org, err))
		}
	}
	return errors.Join(errs...)
}

// RunPeriodicExport calls ExportReports every interval until ctx is done.
func (w *ExportWorker) RunPeriodicExport(ctx context.Context, orgIDs []string, interval time.Duration) {
	if len(orgIDs) == 0 {
		slog.InfoContext(ctx, "No organizations configured for report export")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = w.ExportReports(ctx, orgIDs)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.ExportReports(ctx, orgIDs)
		}
	}
}
