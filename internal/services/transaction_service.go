package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/storage"
)

// CreateTransactionInput books a manual income or expense. The VAT rate is
// VATRate when set, else the service's rate, else zero.
type CreateTransactionInput struct {
	Type            core.EntryType   `json:"type" validate:"required,oneof=income expense"`
	Amount          core.Money       `json:"amount" validate:"gt=0"`
	VATRate         *decimal.Decimal `json:"vat_rate" validate:"omitempty,percent"`
	ServiceID       string           `json:"service_id"`
	AccountID       string           `json:"account_id" validate:"required"`
	CategoryID      string           `json:"category_id"`
	Description     string           `json:"description" validate:"max=500"`
	TransactionDate core.Date        `json:"transaction_date"`
}

type TransactionService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewTransactionService(storage *storage.SQLiteRepository) *TransactionService {
	return &TransactionService{storage: storage, now: time.Now}
}

func (s *TransactionService) CreateTransaction(ctx context.Context, p core.Principal, in CreateTransactionInput) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	date := in.TransactionDate
	if date.IsZero() {
		date = core.DateOf(now)
	}

	var entry core.Transaction
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, p.OrganizationID, in.AccountID)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return core.Invalid("account_id", "account is inactive")
		}

		billing := BillingContext{
			VATRate:     decimal.Zero,
			CategoryID:  in.CategoryID,
			ServiceID:   in.ServiceID,
			Description: in.Description,
		}
		if in.ServiceID != "" {
			svc, err := q.GetService(ctx, p.OrganizationID, in.ServiceID)
			if err != nil {
				return err
			}
			billing.VATRate = svc.VATRate
			if billing.CategoryID == "" {
				billing.CategoryID = svc.CategoryID
			}
		}
		if in.VATRate != nil {
			billing.VATRate = *in.VATRate
		}
		if billing.CategoryID != "" {
			category, err := q.GetCategory(ctx, p.OrganizationID, billing.CategoryID)
			if err != nil {
				return err
			}
			if category.Type != in.Type {
				return core.Invalid("category_id", fmt.Sprintf("category is for %s entries", category.Type))
			}
		}

		entry = billing.Entry(p, in.Type, in.Amount, account.ID, date, now)
		return q.PostTransaction(ctx, entry)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"organization_id", p.OrganizationID,
		"transaction_id", entry.ID,
		"type", entry.Type,
		"amount", entry.Amount.String())
	return entry, nil
}

func (s *TransactionService) ListTransactions(ctx context.Context, p core.Principal, filter storage.TransactionFilter) ([]core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, core.Invalid("type", "type must be one of [income expense]")
	}
	return s.storage.Queries().ListTransactions(ctx, p.OrganizationID, filter)
}

// DeleteTransaction removes a manual entry and reverses its balance effect.
// Entries booked by payments and refunds are permanent.
func (s *TransactionService) DeleteTransaction(ctx context.Context, p core.Principal, id string) error {
	if err := p.Validate(); err != nil {
		return core.NewValidationError(err)
	}
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if !t.IsManual() {
			return core.Invalid("id", "transactions created by fee payments or refunds cannot be deleted")
		}
		return q.RemoveTransaction(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "organization_id", p.OrganizationID, "transaction_id", id)
	return nil
}
