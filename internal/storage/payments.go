package storage

import (
	"context"
	"database/sql"

	"feeledger/internal/core"
)

const paymentColumns = `id, organization_id, student_id, installment_id, account_id, amount_cents,
	payment_method, reference_no, notes, payment_date, created_by, created_at`

func scanPayment(row scanner) (core.FeePayment, error) {
	var (
		p                      core.FeePayment
		installmentID          sql.NullString
		paymentDate, createdAt string
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.StudentID, &installmentID, &p.AccountID, &p.Amount.Cents,
		&p.Method, &p.ReferenceNo, &p.Notes, &paymentDate, &p.CreatedBy, &createdAt)
	p.InstallmentID = installmentID.String
	p.PaymentDate = parseDate(paymentDate)
	p.CreatedAt = parseTime(createdAt)
	return p, err
}

func (q *Queries) CreateFeePayment(ctx context.Context, p core.FeePayment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO fee_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, p.StudentID, nullString(p.InstallmentID), p.AccountID, p.Amount.Cents,
		p.Method, p.ReferenceNo, p.Notes, p.PaymentDate.String(), p.CreatedBy, formatTime(p.CreatedAt))
	return storeErr("create fee payment", err)
}

func (q *Queries) GetFeePayment(ctx context.Context, orgID, id string) (core.FeePayment, error) {
	p, err := scanPayment(q.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM fee_payments
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.FeePayment{}, notFoundOr("get fee payment", "fee payment", id, err)
	}
	return p, nil
}

// ListFeePayments returns payments newest first, optionally for one student.
func (q *Queries) ListFeePayments(ctx context.Context, orgID, studentID string) ([]core.FeePayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM fee_payments
		WHERE organization_id = ? AND (? = '' OR student_id = ?)
		ORDER BY payment_date DESC, created_at DESC`, orgID, studentID, studentID)
	if err != nil {
		return nil, storeErr("list fee payments", err)
	}
	defer rows.Close()

	var out []core.FeePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, storeErr("scan fee payment", err)
		}
		out = append(out, p)
	}
	return out, storeErr("list fee payments", rows.Err())
}

// FirstFeePayment returns the earliest payment made against any installment of the fee.
func (q *Queries) FirstFeePayment(ctx context.Context, orgID, feeID string) (core.FeePayment, error) {
	p, err := scanPayment(q.db.QueryRowContext(ctx, `
		SELECT `+prefixed("p", paymentColumns)+`
		FROM fee_payments p
		JOIN fee_installments i ON i.id = p.installment_id
		WHERE p.organization_id = ? AND i.student_fee_id = ?
		ORDER BY p.payment_date, p.created_at, p.rowid
		LIMIT 1`, orgID, feeID))
	if err != nil {
		return core.FeePayment{}, notFoundOr("first fee payment", "fee payment for student fee", feeID, err)
	}
	return p, nil
}
