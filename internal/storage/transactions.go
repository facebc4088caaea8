package storage

import (
	"context"
	"database/sql"

	"feeledger/internal/core"
)

const transactionColumns = `id, organization_id, type, amount_cents, subtotal_cents, vat_rate, vat_amount_cents,
	account_id, category_id, service_id, fee_payment_id, student_fee_id, description, transaction_date,
	created_by, created_at`

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                                core.Transaction
		categoryID, serviceID, paymentID sql.NullString
		feeID                            sql.NullString
		transactionDate, createdAt       string
	)
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Type, &t.Amount.Cents, &t.Subtotal.Cents, &t.VATRate,
		&t.VATAmount.Cents, &t.AccountID, &categoryID, &serviceID, &paymentID, &feeID, &t.Description,
		&transactionDate, &t.CreatedBy, &createdAt)
	t.CategoryID = categoryID.String
	t.ServiceID = serviceID.String
	t.FeePaymentID = paymentID.String
	t.StudentFeeID = feeID.String
	t.TransactionDate = parseDate(transactionDate)
	t.CreatedAt = parseTime(createdAt)
	return t, err
}

// signed is the effect of t on its account balance.
func signed(t core.Transaction) core.Money {
	if t.Type == core.Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// PostTransaction inserts t and applies it to the account balance. Both
// writes share the caller's transaction; this is the only path that moves
// an account balance forward.
func (q *Queries) PostTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO finance_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, t.Type, t.Amount.Cents, t.Subtotal.Cents, t.VATRate.String(),
		t.VATAmount.Cents, t.AccountID, nullString(t.CategoryID), nullString(t.ServiceID),
		nullString(t.FeePaymentID), nullString(t.StudentFeeID), t.Description,
		t.TransactionDate.String(), t.CreatedBy, formatTime(t.CreatedAt))
	if err != nil {
		return storeErr("insert transaction", err)
	}
	return q.adjustBalance(ctx, t.OrganizationID, t.AccountID, signed(t))
}

// RemoveTransaction deletes t and takes its effect off the account balance.
func (q *Queries) RemoveTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM finance_transactions WHERE organization_id = ? AND id = ?`, t.OrganizationID, t.ID)
	if err != nil {
		return storeErr("delete transaction", err)
	}
	if err := expectOne(res, "transaction", t.ID); err != nil {
		return err
	}
	return q.adjustBalance(ctx, t.OrganizationID, t.AccountID, signed(t).Neg())
}

func (q *Queries) GetTransaction(ctx context.Context, orgID, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM finance_transactions
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.Transaction{}, notFoundOr("get transaction", "transaction", id, err)
	}
	return t, nil
}

func (q *Queries) GetTransactionByPayment(ctx context.Context, orgID, paymentID string) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM finance_transactions
		WHERE organization_id = ? AND fee_payment_id = ?`, orgID, paymentID))
	if err != nil {
		return core.Transaction{}, notFoundOr("get transaction by payment", "transaction for payment", paymentID, err)
	}
	return t, nil
}

// TransactionFilter narrows ListTransactions. Zero fields match everything;
// From is inclusive and To exclusive.
type TransactionFilter struct {
	Type      core.EntryType
	AccountID string
	From      core.Date
	To        core.Date
}

func (q *Queries) ListTransactions(ctx context.Context, orgID string, f TransactionFilter) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM finance_transactions
		WHERE organization_id = ?
			AND (? = '' OR type = ?)
			AND (? = '' OR account_id = ?)
			AND (? = '' OR transaction_date >= ?)
			AND (? = '' OR transaction_date < ?)
		ORDER BY transaction_date DESC, created_at DESC`,
		orgID, f.Type, f.Type, f.AccountID, f.AccountID,
		f.From.String(), f.From.String(), f.To.String(), f.To.String())
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storeErr("scan transaction", err)
		}
		out = append(out, t)
	}
	return out, storeErr("list transactions", rows.Err())
}

// CountTransactions returns the number of ledger entries of the organization.
func (q *Queries) CountTransactions(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM finance_transactions WHERE organization_id = ?`, orgID).Scan(&n)
	return n, storeErr("count transactions", err)
}
