package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger/internal/core"
)

// Names of the categories the ledger creates on demand.
const (
	StudentFeeCategory       = "Student Fee"
	StudentFeeRefundCategory = "Student Fee Refund"
)

// BillingContext is everything needed to book a ledger entry for a payment
// or a refund. It is resolved once, from the fee when there is one, so an
// entry carries the VAT terms the fee was created with.
type BillingContext struct {
	VATRate      decimal.Decimal
	CategoryID   string
	ServiceID    string
	FeePaymentID string
	StudentFeeID string
	Description  string
}

// paymentBilling resolves the billing context of a fee payment. Payments not
// bound to an installment carry no VAT.
func paymentBilling(fee *core.StudentFee, paymentID, categoryID string) BillingContext {
	b := BillingContext{
		VATRate:      decimal.Zero,
		CategoryID:   categoryID,
		FeePaymentID: paymentID,
		Description:  "Student fee payment",
	}
	if fee != nil {
		b.VATRate = fee.VATRate
		b.ServiceID = fee.ServiceID
		if fee.Description != "" {
			b.Description = "Payment: " + fee.Description
		}
	}
	return b
}

// refundBilling resolves the billing context of a cancellation refund.
func refundBilling(fee core.StudentFee, categoryID string) BillingContext {
	desc := "Refund"
	if fee.Description != "" {
		desc = "Refund: " + fee.Description
	}
	return BillingContext{
		VATRate:      fee.VATRate,
		CategoryID:   categoryID,
		ServiceID:    fee.ServiceID,
		StudentFeeID: fee.ID,
		Description:  desc,
	}
}

// Entry builds the ledger entry for amount, splitting out VAT at the context rate.
func (b BillingContext) Entry(p core.Principal, typ core.EntryType, amount core.Money, accountID string, date core.Date, now time.Time) core.Transaction {
	split := core.SplitVAT(amount, b.VATRate)
	return core.Transaction{
		ID:              uuid.NewString(),
		OrganizationID:  p.OrganizationID,
		Type:            typ,
		Amount:          amount,
		Subtotal:        split.Subtotal,
		VATRate:         b.VATRate,
		VATAmount:       split.VATAmount,
		AccountID:       accountID,
		CategoryID:      b.CategoryID,
		ServiceID:       b.ServiceID,
		FeePaymentID:    b.FeePaymentID,
		StudentFeeID:    b.StudentFeeID,
		Description:     b.Description,
		TransactionDate: date,
		CreatedBy:       p.UserID,
		CreatedAt:       now,
	}
}
