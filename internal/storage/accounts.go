package storage

import (
	"context"

	"feeledger/internal/core"
)

const accountColumns = `id, organization_id, name, type, opening_balance_cents, balance_cents, currency, is_active, created_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a         core.Account
		active    int64
		createdAt string
	)
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Type, &a.OpeningBalance.Cents,
		&a.Balance.Cents, &a.Currency, &active, &createdAt)
	a.IsActive = active == 1
	a.CreatedAt = parseTime(createdAt)
	return a, err
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO finance_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrganizationID, a.Name, a.Type, a.OpeningBalance.Cents, a.Balance.Cents,
		a.Currency, boolInt(a.IsActive), formatTime(a.CreatedAt))
	return storeErr("create account", err)
}

func (q *Queries) GetAccount(ctx context.Context, orgID, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM finance_accounts
		WHERE organization_id = ? AND id = ?`, orgID, id)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFoundOr("get account", "account", id, err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, orgID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM finance_accounts
		WHERE organization_id = ?
		ORDER BY created_at, rowid`, orgID)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("scan account", err)
		}
		out = append(out, a)
	}
	return out, storeErr("list accounts", rows.Err())
}

// UpdateAccount writes the descriptive fields. The balance is never written here.
func (q *Queries) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE finance_accounts SET name = ?, type = ?, currency = ?, is_active = ?
		WHERE organization_id = ? AND id = ?`,
		a.Name, a.Type, a.Currency, boolInt(a.IsActive), a.OrganizationID, a.ID)
	if err != nil {
		return storeErr("update account", err)
	}
	return expectOne(res, "account", a.ID)
}

func (q *Queries) DeleteAccount(ctx context.Context, orgID, id string) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM finance_accounts WHERE organization_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storeErr("delete account", err)
	}
	return expectOne(res, "account", id)
}

// adjustBalance moves the running balance by delta. Only the transaction
// posting path in this package calls it.
func (q *Queries) adjustBalance(ctx context.Context, orgID, id string, delta core.Money) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE finance_accounts SET balance_cents = balance_cents + ?
		WHERE organization_id = ? AND id = ?`, delta.Cents, orgID, id)
	if err != nil {
		return storeErr("adjust account balance", err)
	}
	return expectOne(res, "account", id)
}

// CountAccountReferences returns how many transactions and fee payments use the account.
func (q *Queries) CountAccountReferences(ctx context.Context, orgID, id string) (txs, payments int64, err error) {
	err = q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM finance_transactions WHERE organization_id = ? AND account_id = ?),
			(SELECT COUNT(*) FROM fee_payments WHERE organization_id = ? AND account_id = ?)`,
		orgID, id, orgID, id).Scan(&txs, &payments)
	return txs, payments, storeErr("count account references", err)
}
