package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	AccountCash AccountType = "cash"
	AccountBank AccountType = "bank"
	AccountPOS  AccountType = "pos"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	FeeActive    FeeStatus = "active"
	FeeCompleted FeeStatus = "completed"
	FeeCancelled FeeStatus = "cancelled"
)

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentPartial   InstallmentStatus = "partial"
	InstallmentPaid      InstallmentStatus = "paid"
	InstallmentOverdue   InstallmentStatus = "overdue"
	InstallmentCancelled InstallmentStatus = "cancelled"
)

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodOther        PaymentMethod = "other"
)

type (
	AccountType       string
	EntryType         string
	FeeStatus         string
	InstallmentStatus string
	PaymentMethod     string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	// Principal is the already authenticated caller. Every read and write is
	// scoped to its organization.
	Principal struct {
		OrganizationID string
		UserID         string
	}

	Account struct {
		ID             string      `json:"id"`
		OrganizationID string      `json:"organization_id"`
		Name           string      `json:"name"`
		Type           AccountType `json:"type"`
		OpeningBalance Money       `json:"opening_balance"`
		Balance        Money       `json:"balance"`
		Currency       string      `json:"currency"`
		IsActive       bool        `json:"is_active"`
		CreatedAt      time.Time   `json:"created_at"`
	}

	Category struct {
		ID             string    `json:"id"`
		OrganizationID string    `json:"organization_id"`
		Name           string    `json:"name"`
		Type           EntryType `json:"type"`
		Icon           string    `json:"icon,omitempty"`
		Color          string    `json:"color,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
	}

	// Service is a priced, VAT-rated catalog item.
	Service struct {
		ID             string          `json:"id"`
		OrganizationID string          `json:"organization_id"`
		Name           string          `json:"name"`
		Type           EntryType       `json:"type"`
		CategoryID     string          `json:"category_id,omitempty"`
		UnitPrice      Money           `json:"unit_price"`
		VATRate        decimal.Decimal `json:"vat_rate"`
		IsActive       bool            `json:"is_active"`
		Description    string          `json:"description,omitempty"`
		CreatedAt      time.Time       `json:"created_at"`
		UpdatedAt      time.Time       `json:"updated_at"`
	}

	// StudentFee is an obligation owed by a student. VATRate is captured
	// from the service when the fee is created.
	StudentFee struct {
		ID             string          `json:"id"`
		OrganizationID string          `json:"organization_id"`
		StudentID      string          `json:"student_id"`
		ServiceID      string          `json:"service_id,omitempty"`
		Description    string          `json:"description"`
		TotalAmount    Money           `json:"total_amount"`
		DiscountAmount Money           `json:"discount_amount"`
		NetAmount      Money           `json:"net_amount"`
		VATRate        decimal.Decimal `json:"vat_rate"`
		AcademicPeriod string          `json:"academic_period,omitempty"`
		Status         FeeStatus       `json:"status"`
		CancelReason   string          `json:"cancel_reason,omitempty"`
		CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
		Version        int64           `json:"version"`
		CreatedBy      string          `json:"created_by"`
		CreatedAt      time.Time       `json:"created_at"`
		Installments   []Installment   `json:"installments,omitempty"`
	}

	Installment struct {
		ID             string            `json:"id"`
		OrganizationID string            `json:"organization_id"`
		FeeID          string            `json:"student_fee_id"`
		StudentID      string            `json:"student_id"`
		Number         int               `json:"installment_no"`
		Amount         Money             `json:"amount"`
		PaidAmount     Money             `json:"paid_amount"`
		DueDate        Date              `json:"due_date"`
		Status         InstallmentStatus `json:"status"`
		PaidAt         *time.Time        `json:"paid_at,omitempty"`
		Version        int64             `json:"version"`
	}

	// FeePayment is an immutable receipt.
	FeePayment struct {
		ID             string        `json:"id"`
		OrganizationID string        `json:"organization_id"`
		StudentID      string        `json:"student_id"`
		InstallmentID  string        `json:"installment_id,omitempty"`
		AccountID      string        `json:"account_id"`
		Amount         Money         `json:"amount"`
		Method         PaymentMethod `json:"payment_method"`
		ReferenceNo    string        `json:"reference_no,omitempty"`
		Notes          string        `json:"notes,omitempty"`
		PaymentDate    Date          `json:"payment_date"`
		CreatedBy      string        `json:"created_by"`
		CreatedAt      time.Time     `json:"created_at"`
	}

	// Transaction is a ledger entry moving money into or out of an account.
	Transaction struct {
		ID              string          `json:"id"`
		OrganizationID  string          `json:"organization_id"`
		Type            EntryType       `json:"type"`
		Amount          Money           `json:"amount"`
		Subtotal        Money           `json:"subtotal"`
		VATRate         decimal.Decimal `json:"vat_rate"`
		VATAmount       Money           `json:"vat_amount"`
		AccountID       string          `json:"account_id"`
		CategoryID      string          `json:"category_id,omitempty"`
		ServiceID       string          `json:"service_id,omitempty"`
		FeePaymentID    string          `json:"fee_payment_id,omitempty"`
		StudentFeeID    string          `json:"student_fee_id,omitempty"`
		Description     string          `json:"description,omitempty"`
		TransactionDate Date            `json:"transaction_date"`
		CreatedBy       string          `json:"created_by"`
		CreatedAt       time.Time       `json:"created_at"`
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrMissingPrincipal = errors.New("missing organization or user")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// DaysSince returns the whole days from d to today.
func (d Date) DaysSince(today Date) int {
	return int(today.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (p Principal) Validate() error {
	if strings.TrimSpace(p.OrganizationID) == "" || strings.TrimSpace(p.UserID) == "" {
		return ErrMissingPrincipal
	}
	return nil
}

// Remaining is the unpaid part of the installment.
func (i Installment) Remaining() Money {
	return i.Amount.Sub(i.PaidAmount)
}

// IsManual reports whether the entry was booked directly rather than by a
// fee payment or a refund.
func (t Transaction) IsManual() bool {
	return t.FeePaymentID == "" && t.StudentFeeID == ""
}

// DeriveInstallmentStatus computes the status of an installment from its
// amounts and due date as seen on today.
func DeriveInstallmentStatus(amount, paid Money, due, today Date, cancelled bool) InstallmentStatus {
	switch {
	case cancelled:
		return InstallmentCancelled
	case paid.Cents >= amount.Cents:
		return InstallmentPaid
	case due.Before(today):
		return InstallmentOverdue
	case paid.Cents > 0:
		return InstallmentPartial
	default:
		return InstallmentPending
	}
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountPOS:
		return true
	}
	return false
}

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}
