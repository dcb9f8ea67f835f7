package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/fee-ledger/internal/domain"
)

const transactionColumns = `id, assignment_id, owner_kind, owner_id, amount, discount_applied, fine_applied,
		payment_date, method, reference_number, note, collected_by, reversed, reversed_at, reversed_by,
		reversal_reason, deleted_at, created_at, updated_at`

type transactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (:id, :assignment_id, :owner_kind, :owner_id, :amount, :discount_applied, :fine_applied,
			:payment_date, :method, :reference_number, :note, :collected_by, :reversed, :reversed_at, :reversed_by,
			:reversal_reason, :deleted_at, :created_at, :updated_at)
	`

	_, err := sqlx.NamedExecContext(ctx, r.db, query, transaction)
	return err
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ? AND deleted_at IS NULL
	`

	var transaction domain.Transaction
	if err := sqlx.GetContext(ctx, r.db, &transaction, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = ? AND deleted_at IS NULL` + lockClause(r.db)

	var transaction domain.Transaction
	if err := sqlx.GetContext(ctx, r.db, &transaction, r.db.Rebind(query), id); err != nil {
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE assignment_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	var transactions []*domain.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &transactions, r.db.Rebind(query), assignmentID); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (r *transactionRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	var transactions []*domain.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &transactions, r.db.Rebind(query), owner.Kind, owner.ID); err != nil {
		return nil, err
	}

	return transactions, nil
}

// CountByAssignment includes reversed and deleted rows so reference ordinals never repeat.
func (r *transactionRepository) CountByAssignment(ctx context.Context, assignmentID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE assignment_id = ?`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), assignmentID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *transactionRepository) CountAdvances(ctx context.Context, owner domain.Owner) (int, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE assignment_id IS NULL AND owner_kind = ? AND owner_id = ?
	`

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), owner.Kind, owner.ID); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *transactionRepository) MarkReversed(ctx context.Context, id uuid.UUID, by, reason string, at time.Time) error {
	query := `
		UPDATE transactions
		SET reversed = ?, reversed_at = ?, reversed_by = ?, reversal_reason = ?, updated_at = ?
		WHERE id = ? AND reversed = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, at, by, reason, at, id, false)
	if err != nil {
		return err
	}
	return expectRows(result)
}

func (r *transactionRepository) PaymentFlags(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	flags := make(map[uuid.UUID]bool)
	if len(assignmentIDs) == 0 {
		return flags, nil
	}

	query, args, err := sqlx.In(`
		SELECT assignment_id, reversed
		FROM transactions
		WHERE assignment_id IN (?) AND deleted_at IS NULL
	`, assignmentIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		AssignmentID uuid.UUID `db:"assignment_id"`
		Reversed     bool      `db:"reversed"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	for _, row := range rows {
		flags[row.AssignmentID] = flags[row.AssignmentID] || !row.Reversed
	}
	return flags, nil
}

func (r *transactionRepository) SoftDeleteByOwner(ctx context.Context, owner domain.Owner, at time.Time) (int64, error) {
	query := `
		UPDATE transactions
		SET deleted_at = ?, updated_at = ?
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), at, at, owner.Kind, owner.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *transactionRepository) Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error) {
	query := `
		UPDATE transactions
		SET owner_kind = ?, owner_id = ?, updated_at = ?
		WHERE owner_kind = ? AND owner_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), to.Kind, to.ID, at, from.Kind, from.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
