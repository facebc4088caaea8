package storage

import (
	"context"

	"feeledger/internal/core"
)

// SumTransactions totals entries of one type dated in [from, to). With
// excludePayments set, entries created by fee payments are left out.
func (q *Queries) SumTransactions(ctx context.Context, orgID string, typ core.EntryType, from, to core.Date, excludePayments bool) (core.Money, error) {
	var m core.Money
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM finance_transactions
		WHERE organization_id = ? AND type = ?
			AND transaction_date >= ? AND transaction_date < ?
			AND (? = 0 OR fee_payment_id IS NULL)`,
		orgID, typ, from.String(), to.String(), boolInt(excludePayments)).Scan(&m.Cents)
	return m, storeErr("sum transactions", err)
}

// SumFeePayments totals fee payments dated in [from, to).
func (q *Queries) SumFeePayments(ctx context.Context, orgID string, from, to core.Date) (core.Money, error) {
	var m core.Money
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM fee_payments
		WHERE organization_id = ? AND payment_date >= ? AND payment_date < ?`,
		orgID, from.String(), to.String()).Scan(&m.Cents)
	return m, storeErr("sum fee payments", err)
}

// InstallmentTotal is the amount and paid amount of installments in one status.
type InstallmentTotal struct {
	Status core.InstallmentStatus
	Amount core.Money
	Paid   core.Money
}

// InstallmentTotals groups installments of non-cancelled fees due in [from, to) by status.
func (q *Queries) InstallmentTotals(ctx context.Context, orgID string, from, to core.Date) ([]InstallmentTotal, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT i.status, COALESCE(SUM(i.amount_cents), 0), COALESCE(SUM(i.paid_amount_cents), 0)
		FROM fee_installments i
		JOIN student_fees f ON f.id = i.student_fee_id
		WHERE i.organization_id = ? AND f.status != 'cancelled'
			AND i.due_date >= ? AND i.due_date < ?
		GROUP BY i.status`,
		orgID, from.String(), to.String())
	if err != nil {
		return nil, storeErr("installment totals", err)
	}
	defer rows.Close()

	var out []InstallmentTotal
	for rows.Next() {
		var t InstallmentTotal
		if err := rows.Scan(&t.Status, &t.Amount.Cents, &t.Paid.Cents); err != nil {
			return nil, storeErr("scan installment total", err)
		}
		out = append(out, t)
	}
	return out, storeErr("installment totals", rows.Err())
}

// MonthAmount is a total for one calendar month (1-12) and entry type.
type MonthAmount struct {
	Month  int
	Type   core.EntryType
	Amount core.Money
}

// MonthlyTransactionTotals sums entries dated in [from, to) per month and
// type, leaving out entries created by fee payments.
func (q *Queries) MonthlyTransactionTotals(ctx context.Context, orgID string, from, to core.Date) ([]MonthAmount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT CAST(substr(transaction_date, 6, 2) AS INTEGER) AS month, type, SUM(amount_cents)
		FROM finance_transactions
		WHERE organization_id = ? AND transaction_date >= ? AND transaction_date < ?
			AND fee_payment_id IS NULL
		GROUP BY month, type`,
		orgID, from.String(), to.String())
	if err != nil {
		return nil, storeErr("monthly transaction totals", err)
	}
	defer rows.Close()

	var out []MonthAmount
	for rows.Next() {
		var m MonthAmount
		if err := rows.Scan(&m.Month, &m.Type, &m.Amount.Cents); err != nil {
			return nil, storeErr("scan monthly total", err)
		}
		out = append(out, m)
	}
	return out, storeErr("monthly transaction totals", rows.Err())
}

// MonthlyFeePayments sums fee payments dated in [from, to) per month.
func (q *Queries) MonthlyFeePayments(ctx context.Context, orgID string, from, to core.Date) ([]MonthAmount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT CAST(substr(payment_date, 6, 2) AS INTEGER) AS month, SUM(amount_cents)
		FROM fee_payments
		WHERE organization_id = ? AND payment_date >= ? AND payment_date < ?
		GROUP BY month`,
		orgID, from.String(), to.String())
	if err != nil {
		return nil, storeErr("monthly fee payments", err)
	}
	defer rows.Close()

	var out []MonthAmount
	for rows.Next() {
		m := MonthAmount{Type: core.Income}
		if err := rows.Scan(&m.Month, &m.Amount.Cents); err != nil {
			return nil, storeErr("scan monthly fee payments", err)
		}
		out = append(out, m)
	}
	return out, storeErr("monthly fee payments", rows.Err())
}

// CategoryTotals sums entries of one type dated in [from, to) by category,
// leaving out entries created by fee payments. Uncategorised entries have
// an empty name.
func (q *Queries) CategoryTotals(ctx context.Context, orgID string, typ core.EntryType, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT COALESCE(c.name, ''), COALESCE(c.icon, ''), COALESCE(c.color, ''), SUM(t.amount_cents) AS total
		FROM finance_transactions t
		LEFT JOIN finance_categories c ON c.id = t.category_id
		WHERE t.organization_id = ? AND t.type = ?
			AND t.transaction_date >= ? AND t.transaction_date < ?
			AND t.fee_payment_id IS NULL
		GROUP BY c.id
		ORDER BY total DESC`,
		orgID, typ, from.String(), to.String())
	if err != nil {
		return nil, storeErr("category totals", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var c core.CategoryAmount
		if err := rows.Scan(&c.Name, &c.Icon, &c.Color, &c.Amount.Cents); err != nil {
			return nil, storeErr("scan category total", err)
		}
		out = append(out, c)
	}
	return out, storeErr("category totals", rows.Err())
}

// OverdueInstallmentRows returns unpaid installments of non-cancelled fees
// due before today, oldest due date first.
func (q *Queries) OverdueInstallmentRows(ctx context.Context, orgID string, today core.Date) ([]core.OverdueInstallment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+prefixed("i", installmentColumns)+`, f.description
		FROM fee_installments i
		JOIN student_fees f ON f.id = i.student_fee_id
		WHERE i.organization_id = ? AND f.status != 'cancelled'
			AND i.status IN ('pending', 'partial', 'overdue') AND i.due_date < ?
		ORDER BY i.due_date, i.installment_no`,
		orgID, today.String())
	if err != nil {
		return nil, storeErr("overdue installments", err)
	}
	defer rows.Close()

	var out []core.OverdueInstallment
	for rows.Next() {
		var (
			o    core.OverdueInstallment
			desc string
		)
		inst, err := scanInstallment(rowWithTail{rows, &desc})
		if err != nil {
			return nil, storeErr("scan overdue installment", err)
		}
		o.Installment = inst
		o.FeeDescription = desc
		out = append(out, o)
	}
	return out, storeErr("overdue installments", rows.Err())
}

// rowWithTail scans extra trailing columns after the ones the wrapped scan asks for.
type rowWithTail struct {
	row  scanner
	tail *string
}

func (r rowWithTail) Scan(dest ...interface{}) error {
	return r.row.Scan(append(dest, r.tail)...)
}
