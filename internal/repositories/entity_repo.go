package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldledger/fieldledger/internal/models"
)

// PostgresEntityRepository applies change events to the canonical tables.
// The workspace id is stamped on every statement; create/update/delete for a
// row the workspace does not own cannot touch it.
type PostgresEntityRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEntityRepository(pool *pgxpool.Pool) *PostgresEntityRepository {
	return &PostgresEntityRepository{pool: pool}
}

func (r *PostgresEntityRepository) Create(ctx context.Context, workspaceID uuid.UUID, row models.EntityRow) error {
	var err error
	switch e := row.(type) {
	case *models.Customer:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO customers (id, workspace_id, name, email, phone, notes, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, workspaceID, e.Name, e.Email, e.Phone, e.Notes, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	case *models.Part:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO parts (id, workspace_id, name, part_number, unit_cost_cents, quantity, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, workspaceID, e.Name, e.PartNumber, e.UnitCostCents, e.Quantity, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	case *models.LaborItem:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO labor_items (id, workspace_id, description, rate_cents, hours, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, workspaceID, e.Description, e.RateCents, e.Hours, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	case *models.Job:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO jobs (id, workspace_id, customer_id, title, status, notes, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, workspaceID, nullableID(e.CustomerID), e.Title, e.Status, e.Notes, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	case *models.Quote:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO quotes (id, workspace_id, customer_id, job_id, status, total_cents, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, workspaceID, nullableID(e.CustomerID), nullableID(e.JobID), e.Status, e.TotalCents, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	case *models.Invoice:
		_, err = r.pool.Exec(ctx,
			`INSERT INTO invoices (id, workspace_id, customer_id, job_id, quote_id, status, total_cents, created_at, updated_at, deleted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, workspaceID, nullableID(e.CustomerID), nullableID(e.JobID), nullableID(e.QuoteID), e.Status, e.TotalCents, e.CreatedAt, e.UpdatedAt, e.DeletedAt)
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownKind, row.Kind())
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", row.Kind(), err)
	}
	return nil
}

func (r *PostgresEntityRepository) Update(ctx context.Context, workspaceID uuid.UUID, row models.EntityRow) error {
	var tag interface{ RowsAffected() int64 }
	var err error
	switch e := row.(type) {
	case *models.Customer:
		tag, err = r.pool.Exec(ctx,
			`UPDATE customers SET name = $1, email = $2, phone = $3, notes = $4, updated_at = $5, deleted_at = $6
			 WHERE id = $7 AND workspace_id = $8`,
			e.Name, e.Email, e.Phone, e.Notes, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	case *models.Part:
		tag, err = r.pool.Exec(ctx,
			`UPDATE parts SET name = $1, part_number = $2, unit_cost_cents = $3, quantity = $4, updated_at = $5, deleted_at = $6
			 WHERE id = $7 AND workspace_id = $8`,
			e.Name, e.PartNumber, e.UnitCostCents, e.Quantity, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	case *models.LaborItem:
		tag, err = r.pool.Exec(ctx,
			`UPDATE labor_items SET description = $1, rate_cents = $2, hours = $3, updated_at = $4, deleted_at = $5
			 WHERE id = $6 AND workspace_id = $7`,
			e.Description, e.RateCents, e.Hours, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	case *models.Job:
		tag, err = r.pool.Exec(ctx,
			`UPDATE jobs SET customer_id = $1, title = $2, status = $3, notes = $4, updated_at = $5, deleted_at = $6
			 WHERE id = $7 AND workspace_id = $8`,
			nullableID(e.CustomerID), e.Title, e.Status, e.Notes, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	case *models.Quote:
		tag, err = r.pool.Exec(ctx,
			`UPDATE quotes SET customer_id = $1, job_id = $2, status = $3, total_cents = $4, updated_at = $5, deleted_at = $6
			 WHERE id = $7 AND workspace_id = $8`,
			nullableID(e.CustomerID), nullableID(e.JobID), e.Status, e.TotalCents, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	case *models.Invoice:
		tag, err = r.pool.Exec(ctx,
			`UPDATE invoices SET customer_id = $1, job_id = $2, quote_id = $3, status = $4, total_cents = $5, updated_at = $6, deleted_at = $7
			 WHERE id = $8 AND workspace_id = $9`,
			nullableID(e.CustomerID), nullableID(e.JobID), nullableID(e.QuoteID), e.Status, e.TotalCents, e.UpdatedAt, e.DeletedAt, e.ID, workspaceID)
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownKind, row.Kind())
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", row.Kind(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEntityRepository) SoftDelete(ctx context.Context, workspaceID uuid.UUID, kind models.EntityKind, id string, deletedAt time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND workspace_id = $3 AND deleted_at IS NULL`,
		table)

	tag, err := r.pool.Exec(ctx, query, deletedAt, id, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns every non-deleted row of one kind in a workspace. Used
// by bootstrap pulls.
func (r *PostgresEntityRepository) ListActive(ctx context.Context, workspaceID uuid.UUID, kind models.EntityKind) ([]models.EntityRow, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	columns, err := columnsFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE workspace_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`,
		columns, table)

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []models.EntityRow
	for rows.Next() {
		row, err := scanEntity(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(kind models.EntityKind, sc rowScanner) (models.EntityRow, error) {
	switch kind {
	case models.KindCustomer:
		var e models.Customer
		err := sc.Scan(&e.ID, &e.WorkspaceID, &e.Name, &e.Email, &e.Phone, &e.Notes, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		return &e, err
	case models.KindPart:
		var e models.Part
		err := sc.Scan(&e.ID, &e.WorkspaceID, &e.Name, &e.PartNumber, &e.UnitCostCents, &e.Quantity, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		return &e, err
	case models.KindLaborItem:
		var e models.LaborItem
		err := sc.Scan(&e.ID, &e.WorkspaceID, &e.Description, &e.RateCents, &e.Hours, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		return &e, err
	case models.KindJob:
		var e models.Job
		var customerID *string
		err := sc.Scan(&e.ID, &e.WorkspaceID, &customerID, &e.Title, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		e.CustomerID = deref(customerID)
		return &e, err
	case models.KindQuote:
		var e models.Quote
		var customerID, jobID *string
		err := sc.Scan(&e.ID, &e.WorkspaceID, &customerID, &jobID, &e.Status, &e.TotalCents, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		e.CustomerID = deref(customerID)
		e.JobID = deref(jobID)
		return &e, err
	case models.KindInvoice:
		var e models.Invoice
		var customerID, jobID, quoteID *string
		err := sc.Scan(&e.ID, &e.WorkspaceID, &customerID, &jobID, &quoteID, &e.Status, &e.TotalCents, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
		e.CustomerID = deref(customerID)
		e.JobID = deref(jobID)
		e.QuoteID = deref(quoteID)
		return &e, err
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}
}

func tableFor(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindCustomer, models.KindPart, models.KindLaborItem, models.KindJob, models.KindQuote, models.KindInvoice:
		// Kind names are the table names. The switch keeps this from ever
		// interpolating an unvalidated string into SQL.
		return string(kind), nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}
}

func columnsFor(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindCustomer:
		return "id, workspace_id, name, email, phone, notes, created_at, updated_at, deleted_at", nil
	case models.KindPart:
		return "id, workspace_id, name, part_number, unit_cost_cents, quantity, created_at, updated_at, deleted_at", nil
	case models.KindLaborItem:
		return "id, workspace_id, description, rate_cents, hours, created_at, updated_at, deleted_at", nil
	case models.KindJob:
		return "id, workspace_id, customer_id, title, status, notes, created_at, updated_at, deleted_at", nil
	case models.KindQuote:
		return "id, workspace_id, customer_id, job_id, status, total_cents, created_at, updated_at, deleted_at", nil
	case models.KindInvoice:
		return "id, workspace_id, customer_id, job_id, quote_id, status, total_cents, created_at, updated_at, deleted_at", nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}
}

// nullableID maps an empty reference to NULL so foreign-key columns stay
// honest.
func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
