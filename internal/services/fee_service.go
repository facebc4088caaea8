package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/storage"
)

type CreateStudentFeeInput struct {
	StudentID      string      `json:"student_id" validate:"required,max=100"`
	ServiceID      string      `json:"service_id"`
	Description    string      `json:"description" validate:"max=255"`
	TotalAmount    *core.Money `json:"total_amount" validate:"omitempty,gt=0"`
	DiscountAmount core.Money  `json:"discount_amount" validate:"gte=0"`
	AcademicPeriod string      `json:"academic_period" validate:"max=50"`
	// InstallmentCount is the number of installments, 1 to 60.
	InstallmentCount int         `json:"installment_count" validate:"required,min=1,max=60"`
	FirstDueDate     core.Date   `json:"first_due_date"`
	Frequency        Frequency   `json:"frequency" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	DueDates         []core.Date `json:"due_dates"`
}

type CreateFeePaymentInput struct {
	StudentID     string             `json:"student_id" validate:"required"`
	InstallmentID string             `json:"installment_id"`
	AccountID     string             `json:"account_id" validate:"required"`
	Amount        core.Money         `json:"amount" validate:"gt=0"`
	Method        core.PaymentMethod `json:"payment_method" validate:"required,oneof=cash bank_transfer credit_card other"`
	ReferenceNo   string             `json:"reference_no" validate:"max=100"`
	Notes         string             `json:"notes" validate:"max=500"`
	PaymentDate   core.Date          `json:"payment_date"`
}

type CancelStudentFeeInput struct {
	Refund          bool   `json:"refund"`
	RefundAccountID string `json:"refund_account_id"`
	Reason          string `json:"reason" validate:"max=500"`
}

// PaymentReceipt is what a recorded payment produced.
type PaymentReceipt struct {
	Payment     core.FeePayment   `json:"payment"`
	Transaction core.Transaction  `json:"transaction"`
	Installment *core.Installment `json:"installment,omitempty"`
	FeeStatus   core.FeeStatus    `json:"fee_status,omitempty"`
}

type CancellationResult struct {
	Fee                   core.StudentFee   `json:"fee"`
	TotalPaid             core.Money        `json:"total_paid"`
	Refund                *core.Transaction `json:"refund,omitempty"`
	CancelledInstallments int64             `json:"cancelled_installments"`
}

// FeeService owns student fees, their installments and the payments against
// them. Every mutation runs as one write transaction so balances, paid
// amounts and ledger entries move together.
type FeeService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	now       func() time.Time
}

func NewFeeService(storage *storage.SQLiteRepository, publisher EventPublisher) *FeeService {
	return &FeeService{storage: storage, publisher: publisher, now: time.Now}
}

// SetClock replaces the time source.
func (s *FeeService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *FeeService) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// CreateStudentFee records a fee and its installment schedule.
func (s *FeeService) CreateStudentFee(ctx context.Context, p core.Principal, in CreateStudentFeeInput) (core.StudentFee, error) {
	if err := p.Validate(); err != nil {
		return core.StudentFee{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.StudentFee{}, err
	}
	dueDates, err := scheduleFor(in)
	if err != nil {
		return core.StudentFee{}, err
	}

	now := s.now().UTC()
	var fee core.StudentFee
	err = s.storage.WithTx(ctx, func(q *storage.Queries) error {
		fee = core.StudentFee{
			ID:             uuid.NewString(),
			OrganizationID: p.OrganizationID,
			StudentID:      in.StudentID,
			ServiceID:      in.ServiceID,
			Description:    strings.TrimSpace(in.Description),
			DiscountAmount: in.DiscountAmount,
			VATRate:        decimal.Zero,
			AcademicPeriod: in.AcademicPeriod,
			Status:         core.FeeActive,
			Version:        1,
			CreatedBy:      p.UserID,
			CreatedAt:      now,
		}
		if in.TotalAmount != nil {
			fee.TotalAmount = *in.TotalAmount
		}

		if in.ServiceID != "" {
			svc, err := q.GetService(ctx, p.OrganizationID, in.ServiceID)
			if err != nil {
				return err
			}
			if !svc.IsActive {
				return core.Invalid("service_id", "service is inactive")
			}
			fee.VATRate = svc.VATRate
			if in.TotalAmount == nil {
				fee.TotalAmount = svc.UnitPrice
			}
			if fee.Description == "" {
				fee.Description = svc.Name
			}
		}

		if fee.Description == "" {
			return core.Invalid("description", "description is required")
		}
		if !fee.TotalAmount.IsPositive() {
			return core.Invalid("total_amount", "total_amount must be greater than 0")
		}
		if fee.DiscountAmount.Cents > fee.TotalAmount.Cents {
			return core.Invalid("discount_amount", "discount_amount cannot exceed total_amount")
		}
		fee.NetAmount = fee.TotalAmount.Sub(fee.DiscountAmount)
		if !fee.NetAmount.IsPositive() {
			return core.Invalid("discount_amount", "net amount must be greater than 0")
		}

		if err := q.CreateStudentFee(ctx, fee); err != nil {
			return err
		}
		for i, amount := range core.SplitInstallments(fee.NetAmount, len(dueDates)) {
			inst := core.Installment{
				ID:             uuid.NewString(),
				OrganizationID: p.OrganizationID,
				FeeID:          fee.ID,
				StudentID:      fee.StudentID,
				Number:         i + 1,
				Amount:         amount,
				DueDate:        dueDates[i],
				Status:         core.InstallmentPending,
				Version:        1,
			}
			if err := q.CreateInstallment(ctx, inst); err != nil {
				return err
			}
			fee.Installments = append(fee.Installments, inst)
		}
		return nil
	})
	if err != nil {
		return core.StudentFee{}, fmt.Errorf("create student fee: %w", err)
	}

	slog.InfoContext(ctx, "Student fee created",
		"organization_id", p.OrganizationID,
		"student_fee_id", fee.ID,
		"student_id", fee.StudentID,
		"net_amount", fee.NetAmount.String(),
		"installments", len(fee.Installments))
	return fee, nil
}

func scheduleFor(in CreateStudentFeeInput) ([]core.Date, error) {
	if len(in.DueDates) > 0 {
		if len(in.DueDates) != in.InstallmentCount {
			return nil, core.Invalid("due_dates", fmt.Sprintf("due_dates must have %d entries", in.InstallmentCount))
		}
		for _, d := range in.DueDates {
			if d.Validate() != nil {
				return nil, core.Invalid("due_dates", "due_dates must be valid dates")
			}
		}
		return in.DueDates, nil
	}
	if in.FirstDueDate.IsZero() {
		return nil, core.Invalid("first_due_date", "first_due_date or due_dates is required")
	}
	return BuildSchedule(in.FirstDueDate, in.InstallmentCount, in.Frequency)
}

// CreateFeePayment records a payment, books it as income on the receiving
// account and applies it to the installment when one is given. A payment
// larger than the installment's remaining balance is rejected before
// anything is written.
func (s *FeeService) CreateFeePayment(ctx context.Context, p core.Principal, in CreateFeePaymentInput) (PaymentReceipt, error) {
	if err := p.Validate(); err != nil {
		return PaymentReceipt{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return PaymentReceipt{}, err
	}

	now := s.now().UTC()
	date := in.PaymentDate
	if date.IsZero() {
		date = core.DateOf(now)
	}

	var receipt PaymentReceipt
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		receipt = PaymentReceipt{}

		account, err := q.GetAccount(ctx, p.OrganizationID, in.AccountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return core.Invalid("account_id", "account is inactive")
		}

		var (
			fee  *core.StudentFee
			inst *core.Installment
		)
		if in.InstallmentID != "" {
			i, err := q.GetInstallment(ctx, p.OrganizationID, in.InstallmentID)
			if err != nil {
				return err
			}
			if i.StudentID != in.StudentID {
				return core.Invalid("installment_id", "installment does not belong to the student")
			}
			if i.Status == core.InstallmentCancelled {
				return core.Invalid("installment_id", "installment is cancelled")
			}
			f, err := q.GetStudentFee(ctx, p.OrganizationID, i.FeeID)
			if err != nil {
				return err
			}
			if f.Status != core.FeeActive {
				return core.Invalid("installment_id", "student fee is "+string(f.Status))
			}
			if remaining := i.Remaining(); in.Amount.Cents > remaining.Cents {
				return &core.OverpaymentError{Requested: in.Amount, Remaining: remaining}
			}

			version, err := q.LockStudentFee(ctx, f)
			if err != nil {
				return err
			}
			f.Version = version
			fee, inst = &f, &i
		}

		payment := core.FeePayment{
			ID:             uuid.NewString(),
			OrganizationID: p.OrganizationID,
			StudentID:      in.StudentID,
			InstallmentID:  in.InstallmentID,
			AccountID:      account.ID,
			Amount:         in.Amount,
			Method:         in.Method,
			ReferenceNo:    in.ReferenceNo,
			Notes:          in.Notes,
			PaymentDate:    date,
			CreatedBy:      p.UserID,
			CreatedAt:      now,
		}
		if err := q.CreateFeePayment(ctx, payment); err != nil {
			return err
		}

		category, err := q.EnsureCategory(ctx, core.Category{
			ID:             uuid.NewString(),
			OrganizationID: p.OrganizationID,
			Name:           StudentFeeCategory,
			Type:           core.Income,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		entry := paymentBilling(fee, payment.ID, category.ID).Entry(p, core.Income, in.Amount, account.ID, date, now)
		if err := q.PostTransaction(ctx, entry); err != nil {
			return err
		}
		receipt.Payment, receipt.Transaction = payment, entry

		if inst == nil {
			return nil
		}

		inst.PaidAmount = inst.PaidAmount.Add(in.Amount)
		inst.Status = core.DeriveInstallmentStatus(inst.Amount, inst.PaidAmount, inst.DueDate, s.today(), false)
		if inst.Status == core.InstallmentPaid {
			paidAt := now
			inst.PaidAt = &paidAt
		}
		if err := q.ApplyInstallmentPayment(ctx, *inst); err != nil {
			return err
		}
		inst.Version++
		receipt.Installment = inst

		completed, err := feeFullyPaid(ctx, q, p.OrganizationID, fee.ID)
		if err != nil {
			return err
		}
		if completed {
			if err := q.SetStudentFeeStatus(ctx, p.OrganizationID, fee.ID, fee.Version, core.FeeCompleted); err != nil {
				return err
			}
			fee.Status = core.FeeCompleted
		}
		receipt.FeeStatus = fee.Status
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, fmt.Errorf("create fee payment: %w", err)
	}

	pay := receipt.Payment
	log.NewStructuredLogger(log.FromContext(ctx)).LogPaymentRecorded(ctx,
		p.OrganizationID, p.UserID, pay.ID, pay.StudentID, pay.InstallmentID, pay.AccountID, pay.Amount.String())
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.EventFeePaymentCreated,
		p.OrganizationID, pay.ID, pay.StudentID, pay.Amount.Cents))

	return receipt, nil
}

// feeFullyPaid reports whether every non-cancelled installment of the fee is paid.
func feeFullyPaid(ctx context.Context, q *storage.Queries, orgID, feeID string) (bool, error) {
	insts, err := q.ListInstallments(ctx, orgID, feeID)
	if err != nil {
		return false, err
	}
	open := 0
	for _, i := range insts {
		if i.Status == core.InstallmentCancelled {
			continue
		}
		if i.Status != core.InstallmentPaid {
			return false, nil
		}
		open++
	}
	return open > 0, nil
}

// CancelStudentFee cancels a fee and its unpaid installments. With Refund
// set, everything paid so far is booked back out as an expense, against
// RefundAccountID or else the account of the fee's first payment. The
// refund and the cancellation commit together or not at all.
func (s *FeeService) CancelStudentFee(ctx context.Context, p core.Principal, feeID string, in CancelStudentFeeInput) (CancellationResult, error) {
	if err := p.Validate(); err != nil {
		return CancellationResult{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return CancellationResult{}, err
	}

	now := s.now().UTC()
	var result CancellationResult
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		result = CancellationResult{}

		fee, err := q.GetStudentFee(ctx, p.OrganizationID, feeID)
		if err != nil {
			return err
		}
		if fee.Status == core.FeeCancelled {
			return core.Invalid("student_fee_id", "student fee is already cancelled")
		}
		insts, err := q.ListInstallments(ctx, p.OrganizationID, fee.ID)
		if err != nil {
			return err
		}
		for _, i := range insts {
			result.TotalPaid = result.TotalPaid.Add(i.PaidAmount)
		}

		if in.Refund && result.TotalPaid.IsPositive() {
			refund, err := s.bookRefund(ctx, q, p, fee, result.TotalPaid, in.RefundAccountID, now)
			if err != nil {
				return err
			}
			result.Refund = &refund
		}

		if err := q.CancelStudentFee(ctx, fee, in.Reason, now); err != nil {
			return err
		}
		if result.CancelledInstallments, err = q.CancelOpenInstallments(ctx, p.OrganizationID, fee.ID); err != nil {
			return err
		}

		fee, err = q.GetStudentFee(ctx, p.OrganizationID, fee.ID)
		if err != nil {
			return err
		}
		if fee.Installments, err = q.ListInstallments(ctx, p.OrganizationID, fee.ID); err != nil {
			return err
		}
		result.Fee = fee
		return nil
	})
	if err != nil {
		return CancellationResult{}, fmt.Errorf("cancel student fee: %w", err)
	}

	var refunded int64
	if result.Refund != nil {
		refunded = result.Refund.Amount.Cents
	}
	slog.InfoContext(ctx, "Student fee cancelled",
		"organization_id", p.OrganizationID,
		"user_id", p.UserID,
		"student_fee_id", feeID,
		"total_paid", result.TotalPaid.String(),
		"refunded", result.Refund != nil,
		"cancelled_installments", result.CancelledInstallments)
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.EventStudentFeeCancelled,
		p.OrganizationID, feeID, result.Fee.StudentID, refunded))

	return result, nil
}

func (s *FeeService) bookRefund(ctx context.Context, q *storage.Queries, p core.Principal, fee core.StudentFee, amount core.Money, accountID string, now time.Time) (core.Transaction, error) {
	if accountID == "" {
		first, err := q.FirstFeePayment(ctx, p.OrganizationID, fee.ID)
		var nf *core.NotFoundError
		if errors.As(err, &nf) {
			return core.Transaction{}, core.Invalid("refund_account_id", "no payment found on the fee; refund_account_id is required")
		}
		if err != nil {
			return core.Transaction{}, err
		}
		accountID = first.AccountID
	}
	if _, err := q.GetAccount(ctx, p.OrganizationID, accountID); err != nil {
		return core.Transaction{}, err
	}

	category, err := q.EnsureCategory(ctx, core.Category{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		Name:           StudentFeeRefundCategory,
		Type:           core.Expense,
		CreatedAt:      now,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	refund := refundBilling(fee, category.ID).Entry(p, core.Expense, amount, accountID, core.DateOf(now), now)
	if err := q.PostTransaction(ctx, refund); err != nil {
		return core.Transaction{}, err
	}
	return refund, nil
}

// GetStudentFee returns the fee with its installments.
func (s *FeeService) GetStudentFee(ctx context.Context, p core.Principal, id string) (core.StudentFee, error) {
	if err := p.Validate(); err != nil {
		return core.StudentFee{}, core.NewValidationError(err)
	}
	q := s.storage.Queries()
	fee, err := q.GetStudentFee(ctx, p.OrganizationID, id)
	if err != nil {
		return core.StudentFee{}, err
	}
	if fee.Installments, err = q.ListInstallments(ctx, p.OrganizationID, id); err != nil {
		return core.StudentFee{}, err
	}
	return fee, nil
}

func (s *FeeService) ListStudentFees(ctx context.Context, p core.Principal, filter storage.FeeFilter) ([]core.StudentFee, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	switch filter.Status {
	case "", core.FeeActive, core.FeeCompleted, core.FeeCancelled:
	default:
		return nil, core.Invalid("status", "status must be one of [active completed cancelled]")
	}
	return s.storage.Queries().ListStudentFees(ctx, p.OrganizationID, filter)
}

func (s *FeeService) ListInstallments(ctx context.Context, p core.Principal, feeID string) ([]core.Installment, error) {
	fee, err := s.GetStudentFee(ctx, p, feeID)
	if err != nil {
		return nil, err
	}
	return fee.Installments, nil
}

// ListFeePayments returns payments newest first, optionally for one student.
func (s *FeeService) ListFeePayments(ctx context.Context, p core.Principal, studentID string) ([]core.FeePayment, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	return s.storage.Queries().ListFeePayments(ctx, p.OrganizationID, studentID)
}

func (s *FeeService) GetFeePayment(ctx context.Context, p core.Principal, id string) (core.FeePayment, error) {
	if err := p.Validate(); err != nil {
		return core.FeePayment{}, core.NewValidationError(err)
	}
	return s.storage.Queries().GetFeePayment(ctx, p.OrganizationID, id)
}
