package storage

import (
	"context"
	"database/sql"

	"feeledger/internal/core"
)

const categoryColumns = `id, organization_id, name, type, icon, color, created_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Type, &c.Icon, &c.Color, &createdAt)
	c.CreatedAt = parseTime(createdAt)
	return c, err
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO finance_categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganizationID, c.Name, c.Type, c.Icon, c.Color, formatTime(c.CreatedAt))
	return storeErr("create category", err)
}

func (q *Queries) GetCategory(ctx context.Context, orgID, id string) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM finance_categories
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.Category{}, notFoundOr("get category", "category", id, err)
	}
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, orgID, name string, typ core.EntryType) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM finance_categories
		WHERE organization_id = ? AND name = ? AND type = ?`, orgID, name, typ))
	if err != nil {
		return core.Category{}, notFoundOr("get category by name", "category", name, err)
	}
	return c, nil
}

// EnsureCategory returns the category with c's organization, name and type,
// inserting c first when none exists. Concurrent callers converge on one row.
func (q *Queries) EnsureCategory(ctx context.Context, c core.Category) (core.Category, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO finance_categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, name, type) DO NOTHING`,
		c.ID, c.OrganizationID, c.Name, c.Type, c.Icon, c.Color, formatTime(c.CreatedAt))
	if err != nil {
		return core.Category{}, storeErr("ensure category", err)
	}
	return q.GetCategoryByName(ctx, c.OrganizationID, c.Name, c.Type)
}

// ListCategories returns the organization's categories, optionally of one type.
func (q *Queries) ListCategories(ctx context.Context, orgID string, typ core.EntryType) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM finance_categories
		WHERE organization_id = ? AND (? = '' OR type = ?)
		ORDER BY type, name`, orgID, typ, typ)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, storeErr("scan category", err)
		}
		out = append(out, c)
	}
	return out, storeErr("list categories", rows.Err())
}

const serviceColumns = `id, organization_id, name, type, category_id, unit_price_cents, vat_rate,
	is_active, description, created_at, updated_at`

func scanService(row scanner) (core.Service, error) {
	var (
		s                    core.Service
		categoryID           sql.NullString
		active               int64
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Type, &categoryID, &s.UnitPrice.Cents,
		&s.VATRate, &active, &s.Description, &createdAt, &updatedAt)
	s.CategoryID = categoryID.String
	s.IsActive = active == 1
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, err
}

func (q *Queries) CreateService(ctx context.Context, s core.Service) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO finance_services (`+serviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OrganizationID, s.Name, s.Type, nullString(s.CategoryID), s.UnitPrice.Cents,
		s.VATRate.String(), boolInt(s.IsActive), s.Description, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return storeErr("create service", err)
}

func (q *Queries) GetService(ctx context.Context, orgID, id string) (core.Service, error) {
	s, err := scanService(q.db.QueryRowContext(ctx, `
		SELECT `+serviceColumns+` FROM finance_services
		WHERE organization_id = ? AND id = ?`, orgID, id))
	if err != nil {
		return core.Service{}, notFoundOr("get service", "service", id, err)
	}
	return s, nil
}

func (q *Queries) ListServices(ctx context.Context, orgID string) ([]core.Service, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+serviceColumns+` FROM finance_services
		WHERE organization_id = ?
		ORDER BY name, rowid`, orgID)
	if err != nil {
		return nil, storeErr("list services", err)
	}
	defer rows.Close()

	var out []core.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, storeErr("scan service", err)
		}
		out = append(out, s)
	}
	return out, storeErr("list services", rows.Err())
}

func (q *Queries) UpdateService(ctx context.Context, s core.Service) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE finance_services
		SET name = ?, type = ?, category_id = ?, unit_price_cents = ?, vat_rate = ?,
			is_active = ?, description = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`,
		s.Name, s.Type, nullString(s.CategoryID), s.UnitPrice.Cents, s.VATRate.String(),
		boolInt(s.IsActive), s.Description, formatTime(s.UpdatedAt), s.OrganizationID, s.ID)
	if err != nil {
		return storeErr("update service", err)
	}
	return expectOne(res, "service", s.ID)
}

func (q *Queries) DeleteService(ctx context.Context, orgID, id string) error {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM finance_services WHERE organization_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return storeErr("delete service", err)
	}
	return expectOne(res, "service", id)
}

// CountServiceReferences returns how many transactions and student fees use the service.
func (q *Queries) CountServiceReferences(ctx context.Context, orgID, id string) (txs, fees int64, err error) {
	err = q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM finance_transactions WHERE organization_id = ? AND service_id = ?),
			(SELECT COUNT(*) FROM student_fees WHERE organization_id = ? AND service_id = ?)`,
		orgID, id, orgID, id).Scan(&txs, &fees)
	return txs, fees, storeErr("count service references", err)
}
