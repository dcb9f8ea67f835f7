package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/fee-ledger/internal/domain"
)

const assignmentColumns = `id, owner_kind, owner_id, charge_ref, period_month, period_year, base_amount, due_date,
		discount_amount, fine_amount, paid_amount, partial_allowed, provisional, package_id, status,
		deleted_at, created_at, updated_at`

type assignmentRepository struct {
	db sqlx.ExtContext
}

func NewAssignmentRepository(db sqlx.ExtContext) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :owner_kind, :owner_id, :charge_ref, :period_month, :period_year, :base_amount, :due_date,
			:discount_amount, :fine_amount, :paid_amount, :partial_allowed, :provisional, :package_id, :status,
			:deleted_at, :created_at, :updated_at)
	`

	_, err := sqlx.NamedExecContext(ctx, r.db, query, assignment)
	return err
}

func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []*domain.Assignment) error {
	for _, a := range assignments {
		if err := r.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE id = ? AND deleted_at IS NULL
	`

	var assignment domain.Assignment
	if err := sqlx.GetContext(ctx, r.db, &assignment, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &assignment, nil
}

func (r *assignmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE id = ?` + lockClause(r.db)

	var assignment domain.Assignment
	if err := sqlx.GetContext(ctx, r.db, &assignment, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &assignment, nil
}

func (r *assignmentRepository) ListByOwner(ctx context.Context, owner domain.Owner, unpaidOnly bool) ([]*domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL`
	args := []interface{}{owner.Kind, owner.ID}

	if unpaidOnly {
		query += ` AND status <> ?`
		args = append(args, domain.AssignmentStatusPaid)
	}
	query += ` ORDER BY due_date, period_year, period_month, charge_ref`

	var assignments []*domain.Assignment
	if err := sqlx.SelectContext(ctx, r.db, &assignments, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ListByPackage(ctx context.Context, owner domain.Owner, packageID domain.PackageID, lock bool) ([]*domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE package_id = ? AND owner_kind = ? AND owner_id = ? AND deleted_at IS NULL
		ORDER BY due_date, period_year, period_month, charge_ref`
	if lock {
		query += lockClause(r.db)
	}

	var assignments []*domain.Assignment
	err := sqlx.SelectContext(ctx, r.db, &assignments, r.db.Rebind(query), packageID, owner.Kind, owner.ID)
	if err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE deleted_at IS NULL AND status <> ? AND due_date < ?
		ORDER BY due_date, owner_kind, owner_id
	`

	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	var assignments []*domain.Assignment
	err := sqlx.SelectContext(ctx, r.db, &assignments, r.db.Rebind(query), domain.AssignmentStatusPaid, today)
	if err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) UpdateAmounts(ctx context.Context, assignment *domain.Assignment) error {
	query := `
		UPDATE assignments
		SET discount_amount = :discount_amount, fine_amount = :fine_amount, paid_amount = :paid_amount,
			status = :status, updated_at = :updated_at
		WHERE id = :id
	`

	result, err := sqlx.NamedExecContext(ctx, r.db, query, assignment)
	if err != nil {
		return err
	}
	return expectRows(result)
}

func (r *assignmentRepository) HardDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM assignments WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *assignmentRepository) SoftDelete(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`
		UPDATE assignments
		SET deleted_at = ?, updated_at = ?
		WHERE id IN (?) AND deleted_at IS NULL
	`, at, at, ids)
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *assignmentRepository) SoftDeleteByOwner(ctx context.Context, owner domain.Owner, provisionalOnly bool, at time.Time) (int64, error) {
	query := `
		UPDATE assignments
		SET deleted_at = ?, updated_at = ?
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL`
	args := []interface{}{at, at, owner.Kind, owner.ID}

	if provisionalOnly {
		query += ` AND provisional = ?`
		args = append(args, true)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *assignmentRepository) Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error) {
	query := `
		UPDATE assignments
		SET owner_kind = ?, owner_id = ?, provisional = ?, updated_at = ?
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), to.Kind, to.ID, false, at, from.Kind, from.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// expectRows turns an update that touched nothing into sql.ErrNoRows
func expectRows(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
