package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/fee-ledger/internal/domain"
)

// AssignmentRepository defines the interface for assignment data operations
type AssignmentRepository interface {
	// Create inserts a new assignment
	Create(ctx context.Context, assignment *domain.Assignment) error

	// CreateBatch inserts several assignments, typically one package
	CreateBatch(ctx context.Context, assignments []*domain.Assignment) error

	// GetByID retrieves a non-deleted assignment
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)

	// GetForUpdate retrieves an assignment, deleted or not, and locks the row until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)

	// ListByOwner retrieves the owner's non-deleted assignments ordered by due date
	ListByOwner(ctx context.Context, owner domain.Owner, unpaidOnly bool) ([]*domain.Assignment, error)

	// ListByPackage retrieves the non-deleted assignments of one package, optionally locking them
	ListByPackage(ctx context.Context, owner domain.Owner, packageID domain.PackageID, lock bool) ([]*domain.Assignment, error)

	// ListOverdue retrieves unpaid assignments due before the given day
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error)

	// UpdateAmounts persists discount, fine, paid amount and status
	UpdateAmounts(ctx context.Context, assignment *domain.Assignment) error

	// HardDelete removes assignments permanently
	HardDelete(ctx context.Context, ids []uuid.UUID) (int64, error)

	// SoftDelete marks assignments deleted
	SoftDelete(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)

	// SoftDeleteByOwner marks all of an owner's assignments deleted
	SoftDeleteByOwner(ctx context.Context, owner domain.Owner, provisionalOnly bool, at time.Time) (int64, error)

	// Reassign moves every non-deleted assignment from one owner to another and clears the provisional flag
	Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error)
}

// TransactionRepository defines the interface for transaction journal operations
type TransactionRepository interface {
	// Create appends a transaction
	Create(ctx context.Context, transaction *domain.Transaction) error

	// GetByID retrieves a non-deleted transaction
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// GetForUpdate retrieves a non-deleted transaction and locks the row
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// ListByAssignment retrieves an assignment's transactions newest first, reversed ones included
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]*domain.Transaction, error)

	// ListByOwner retrieves an owner's transactions newest first, reversed ones included
	ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Transaction, error)

	// CountByAssignment counts every transaction ever written for an assignment
	CountByAssignment(ctx context.Context, assignmentID uuid.UUID) (int, error)

	// CountAdvances counts every advance transaction ever written for an owner
	CountAdvances(ctx context.Context, owner domain.Owner) (int, error)

	// MarkReversed flags an active transaction as reversed
	MarkReversed(ctx context.Context, id uuid.UUID, by, reason string, at time.Time) error

	// PaymentFlags reports, for each given assignment that has transactions, whether any is still active
	PaymentFlags(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]bool, error)

	// SoftDeleteByOwner marks all of an owner's transactions deleted
	SoftDeleteByOwner(ctx context.Context, owner domain.Owner, at time.Time) (int64, error)

	// Reassign moves every non-deleted transaction from one owner to another
	Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error)
}

// Repositories bundles the repositories bound to one connection or transaction
type Repositories struct {
	Assignments  AssignmentRepository
	Transactions TransactionRepository
}

// TxFunc is a unit of work. It may be invoked more than once when the store retries.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store hands out repositories and runs units of work atomically
type Store interface {
	// Repositories returns repositories outside any transaction, for reads
	Repositories() Repositories

	// WithTx runs fn in one database transaction, retrying the whole of fn on transient conflicts
	WithTx(ctx context.Context, fn TxFunc) error
}
