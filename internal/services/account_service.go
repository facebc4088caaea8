package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
	"feeledger/internal/storage"
)

const DefaultCurrency = "TRY"

type CreateAccountInput struct {
	Name           string           `json:"name" validate:"required,max=100"`
	Type           core.AccountType `json:"type" validate:"required,oneof=cash bank pos"`
	OpeningBalance core.Money       `json:"opening_balance"`
	Currency       string           `json:"currency" validate:"omitempty,len=3,alpha"`
}

// UpdateAccountInput carries the fields to change. Nil fields are left alone.
type UpdateAccountInput struct {
	Name     *string           `json:"name" validate:"omitempty,min=1,max=100"`
	Type     *core.AccountType `json:"type" validate:"omitempty,oneof=cash bank pos"`
	Currency *string           `json:"currency" validate:"omitempty,len=3,alpha"`
	IsActive *bool             `json:"is_active"`
}

// AccountService manages cash, bank and POS accounts. Balances only move
// through ledger entries.
type AccountService struct {
	storage         *storage.SQLiteRepository
	defaultCurrency string
	now             func() time.Time
}

func NewAccountService(storage *storage.SQLiteRepository, defaultCurrency string) *AccountService {
	if defaultCurrency == "" {
		defaultCurrency = DefaultCurrency
	}
	return &AccountService{storage: storage, defaultCurrency: defaultCurrency, now: time.Now}
}

func (s *AccountService) CreateAccount(ctx context.Context, p core.Principal, in CreateAccountInput) (core.Account, error) {
	if err := p.Validate(); err != nil {
		return core.Account{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Account{}, err
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	a := core.Account{
		ID:             uuid.NewString(),
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
		Currency:       currency,
		IsActive:       true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.storage.Queries().CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"organization_id", p.OrganizationID,
		"account_id", a.ID,
		"type", a.Type)
	return a, nil
}

func (s *AccountService) UpdateAccount(ctx context.Context, p core.Principal, id string, in UpdateAccountInput) (core.Account, error) {
	if err := p.Validate(); err != nil {
		return core.Account{}, core.NewValidationError(err)
	}
	if err := core.ValidateStruct(in); err != nil {
		return core.Account{}, err
	}

	var updated core.Account
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		a, err := q.GetAccount(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			a.Name = strings.TrimSpace(*in.Name)
		}
		if in.Type != nil {
			a.Type = *in.Type
		}
		if in.Currency != nil {
			a.Currency = strings.ToUpper(*in.Currency)
		}
		if in.IsActive != nil {
			a.IsActive = *in.IsActive
		}
		updated = a
		return q.UpdateAccount(ctx, a)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	return updated, nil
}

func (s *AccountService) GetAccount(ctx context.Context, p core.Principal, id string) (core.Account, error) {
	if err := p.Validate(); err != nil {
		return core.Account{}, core.NewValidationError(err)
	}
	return s.storage.Queries().GetAccount(ctx, p.OrganizationID, id)
}

// ListAccounts returns the organization's accounts in creation order.
func (s *AccountService) ListAccounts(ctx context.Context, p core.Principal) ([]core.Account, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	return s.storage.Queries().ListAccounts(ctx, p.OrganizationID)
}

// DeleteAccount removes an account nothing refers to. Accounts with ledger
// history must be deactivated instead.
func (s *AccountService) DeleteAccount(ctx context.Context, p core.Principal, id string) error {
	if err := p.Validate(); err != nil {
		return core.NewValidationError(err)
	}
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, p.OrganizationID, id); err != nil {
			return err
		}
		txs, payments, err := q.CountAccountReferences(ctx, p.OrganizationID, id)
		if err != nil {
			return err
		}
		if txs > 0 || payments > 0 {
			return &core.ReferencedEntityError{
				Entity: "account",
				ID:     id,
				References: []core.Reference{
					{Kind: "transactions", Count: txs},
					{Kind: "fee payments", Count: payments},
				},
			}
		}
		return q.DeleteAccount(ctx, p.OrganizationID, id)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	slog.InfoContext(ctx, "Account deleted", "organization_id", p.OrganizationID, "account_id", id)
	return nil
}
