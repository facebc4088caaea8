package sheets

import (
	"context"
	"errors"

	"feeledger/internal/core"
)

const (
	RowPayment      RowKind = "payment"
	RowCancellation RowKind = "cancellation"
)

type RowKind string

// ReceiptRow is one line of the receipt journal. Payments carry the VAT
// split of their ledger entry, cancellations the refunded amount.
type ReceiptRow struct {
	Kind           RowKind
	Date           core.Date
	OrganizationID string
	StudentID      string
	Reference      string
	Description    string
	Method         core.PaymentMethod
	Amount         core.Money
	Subtotal       core.Money
	VATAmount      core.Money
}

// YearReport is the annual summary written to the report sheet.
type YearReport struct {
	OrganizationID string
	Summary        core.FinancialSummary
	Trends         []core.MonthTrend
}

var ErrEmptyReference = errors.New("receipt row has no reference")

func (r ReceiptRow) Validate() error {
	if r.Reference == "" {
		return ErrEmptyReference
	}
	if r.Kind != RowPayment && r.Kind != RowCancellation {
		return errors.New("unknown receipt row kind")
	}
	return r.Date.Validate()
}

// Ports for outbound adapters.
type (
	ReceiptWriter interface {
		AppendReceipt(ctx context.Context, r ReceiptRow) (rowRef string, err error)
	}

	// ReportWriter replaces the annual report of one organization.
	ReportWriter interface {
		WriteYearReport(ctx context.Context, r YearReport) (rangeRef string, err error)
	}
)
