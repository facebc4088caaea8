package storage

import (
	"context"
	"database/sql"
	"time"

	"feeledger/internal/core"
)

const feeColumns = `id, organization_id, student_id, service_id, description, total_amount_cents,
	discount_amount_cents, net_amount_cents, vat_rate, academic_period, status, cancel_reason,
	cancelled_at, version, created_by, created_at`

func scanFee(row scanner) (core.StudentFee, error) {
	var (
		f           core.StudentFee
		serviceID   sql.NullString
		cancelledAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&f.ID, &f.OrganizationID, &f.StudentID, &serviceID, &f.Description,
		&f.TotalAmount.Cents, &f.DiscountAmount.Cents, &f.NetAmount.Cents, &f.VATRate,
		&f.AcademicPeriod, &f.Status, &f.CancelReason, &cancelledAt, &f.Version, &f.CreatedBy, &createdAt)
	f.ServiceID = serviceID.String
	f.CancelledAt = parseNullTime(cancelledAt)
	f.CreatedAt = parseTime(createdAt)
	return f, err
}

func (q *Queries) CreateStudentFee(ctx context.Context, f core.StudentFee) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO student_fees (`+feeColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrganizationID, f.StudentID, nullString(f.ServiceID), f.Description,
		f.TotalAmount.Cents, f.DiscountAmount.Cents, f.NetAmount.Cents, f.VATRate.String(),
		f.AcademicPeriod, f.Status, f.CancelReason, nullTime(f.CancelledAt), f.Version,
		f.CreatedBy, formatTime(f.CreatedAt), formatTime(f.CreatedAt))
	return storeErr("create student fee", err)
}

func (q *Queries) GetStudentFee(ctx context.Context, orgID, id string) (core.StudentFee, error) {
	f, err := scanFee(q.db.QueryRowContext(ctx, `
		SELECT `+feeColumns+` FROM student_fees
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.StudentFee{}, notFoundOr("get student fee", "student fee", id, err)
	}
	return f, nil
}

// FeeFilter narrows ListStudentFees. Empty fields match everything.
type FeeFilter struct {
	StudentID string
	Status    core.FeeStatus
}

func (q *Queries) ListStudentFees(ctx context.Context, orgID string, f FeeFilter) ([]core.StudentFee, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+feeColumns+` FROM student_fees
		WHERE organization_id = ?
			AND (? = '' OR student_id = ?)
			AND (? = '' OR status = ?)
		ORDER BY created_at DESC, rowid DESC`,
		orgID, f.StudentID, f.StudentID, f.Status, f.Status)
	if err != nil {
		return nil, storeErr("list student fees", err)
	}
	defer rows.Close()

	var out []core.StudentFee
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, storeErr("scan student fee", err)
		}
		out = append(out, fee)
	}
	return out, storeErr("list student fees", rows.Err())
}

// LockStudentFee bumps the version of an active fee. It fails with a
// retryable conflict when the fee changed since it was read, and with a
// validation error when the fee is no longer active.
func (q *Queries) LockStudentFee(ctx context.Context, f core.StudentFee) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE student_fees SET version = version + 1, updated_at = ?
		WHERE organization_id = ? AND id = ? AND version = ? AND status = 'active'`,
		formatTime(time.Now()), f.OrganizationID, f.ID, f.Version)
	if err != nil {
		return 0, storeErr("lock student fee", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, q.feeWriteConflict(ctx, f)
	}
	return f.Version + 1, nil
}

func (q *Queries) feeWriteConflict(ctx context.Context, f core.StudentFee) error {
	current, err := q.GetStudentFee(ctx, f.OrganizationID, f.ID)
	if err != nil {
		return err
	}
	if current.Status != core.FeeActive {
		return core.Invalid("student_fee_id", "student fee is "+string(current.Status))
	}
	return conflict("update student fee")
}

// SetStudentFeeStatus moves the fee to status. version must be the current version.
func (q *Queries) SetStudentFeeStatus(ctx context.Context, orgID, id string, version int64, status core.FeeStatus) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE student_fees SET status = ?, version = version + 1, updated_at = ?
		WHERE organization_id = ? AND id = ? AND version = ?`,
		status, formatTime(time.Now()), orgID, id, version)
	if err != nil {
		return storeErr("set student fee status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflict("set student fee status")
	}
	return nil
}

// CancelStudentFee marks the fee cancelled. Cancelling twice is rejected.
func (q *Queries) CancelStudentFee(ctx context.Context, f core.StudentFee, reason string, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE student_fees
		SET status = 'cancelled', cancel_reason = ?, cancelled_at = ?, version = version + 1, updated_at = ?
		WHERE organization_id = ? AND id = ? AND version = ? AND status != 'cancelled'`,
		reason, formatTime(at), formatTime(at), f.OrganizationID, f.ID, f.Version)
	if err != nil {
		return storeErr("cancel student fee", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflict("cancel student fee")
	}
	return nil
}

const installmentColumns = `id, organization_id, student_fee_id, student_id, installment_no, amount_cents,
	paid_amount_cents, due_date, status, paid_at, version`

func scanInstallment(row scanner) (core.Installment, error) {
	var (
		i       core.Installment
		dueDate string
		paidAt  sql.NullString
	)
	err := row.Scan(&i.ID, &i.OrganizationID, &i.FeeID, &i.StudentID, &i.Number, &i.Amount.Cents,
		&i.PaidAmount.Cents, &dueDate, &i.Status, &paidAt, &i.Version)
	i.DueDate = parseDate(dueDate)
	i.PaidAt = parseNullTime(paidAt)
	return i, err
}

func (q *Queries) CreateInstallment(ctx context.Context, i core.Installment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO fee_installments (`+installmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.OrganizationID, i.FeeID, i.StudentID, i.Number, i.Amount.Cents, i.PaidAmount.Cents,
		i.DueDate.String(), i.Status, nullTime(i.PaidAt), i.Version)
	return storeErr("create installment", err)
}

func (q *Queries) GetInstallment(ctx context.Context, orgID, id string) (core.Installment, error) {
	i, err := scanInstallment(q.db.QueryRowContext(ctx, `
		SELECT `+installmentColumns+` FROM fee_installments
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.Installment{}, notFoundOr("get installment", "installment", id, err)
	}
	return i, nil
}

func (q *Queries) ListInstallments(ctx context.Context, orgID, feeID string) ([]core.Installment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+installmentColumns+` FROM fee_installments
		WHERE organization_id = ? AND student_fee_id = ?
		ORDER BY installment_no`, orgID, feeID)
	if err != nil {
		return nil, storeErr("list installments", err)
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func collectInstallments(rows *sql.Rows) ([]core.Installment, error) {
	var out []core.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, storeErr("scan installment", err)
		}
		out = append(out, i)
	}
	return out, storeErr("list installments", rows.Err())
}

// ApplyInstallmentPayment stores the new paid amount and status of i.
// It fails with a retryable conflict if i.Version is stale.
func (q *Queries) ApplyInstallmentPayment(ctx context.Context, i core.Installment) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE fee_installments
		SET paid_amount_cents = ?, status = ?, paid_at = COALESCE(paid_at, ?), version = version + 1
		WHERE organization_id = ? AND id = ? AND version = ?`,
		i.PaidAmount.Cents, i.Status, nullTime(i.PaidAt), i.OrganizationID, i.ID, i.Version)
	if err != nil {
		return storeErr("update installment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return conflict("update installment")
	}
	return nil
}

// CancelOpenInstallments cancels every installment of the fee that is not paid.
func (q *Queries) CancelOpenInstallments(ctx context.Context, orgID, feeID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE fee_installments SET status = 'cancelled', version = version + 1
		WHERE organization_id = ? AND student_fee_id = ? AND status NOT IN ('paid', 'cancelled')`,
		orgID, feeID)
	if err != nil {
		return 0, storeErr("cancel installments", err)
	}
	n, err := res.RowsAffected()
	return n, storeErr("cancel installments", err)
}

// MarkOverdueInstallments flags pending and partial installments of active
// fees whose due date is before today, across all organizations.
func (q *Queries) MarkOverdueInstallments(ctx context.Context, today core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE fee_installments SET status = 'overdue', version = version + 1
		WHERE status IN ('pending', 'partial') AND due_date < ?
			AND student_fee_id IN (SELECT id FROM student_fees WHERE status = 'active')`,
		today.String())
	if err != nil {
		return 0, storeErr("mark overdue installments", err)
	}
	n, err := res.RowsAffected()
	return n, storeErr("mark overdue installments", err)
}
