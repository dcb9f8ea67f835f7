package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/repository"
)

type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepository) CreateBatch(ctx context.Context, assignments []*domain.Assignment) error {
	args := m.Called(ctx, assignments)
	return args.Error(0)
}

func (m *MockAssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListByOwner(ctx context.Context, owner domain.Owner, unpaidOnly bool) ([]*domain.Assignment, error) {
	args := m.Called(ctx, owner, unpaidOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListByPackage(ctx context.Context, owner domain.Owner, packageID domain.PackageID, lock bool) ([]*domain.Assignment, error) {
	args := m.Called(ctx, owner, packageID, lock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Assignment), args.Error(1)
}

func (m *MockAssignmentRepository) UpdateAmounts(ctx context.Context, assignment *domain.Assignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockAssignmentRepository) HardDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAssignmentRepository) SoftDelete(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, ids, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAssignmentRepository) SoftDeleteByOwner(ctx context.Context, owner domain.Owner, provisionalOnly bool, at time.Time) (int64, error) {
	args := m.Called(ctx, owner, provisionalOnly, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAssignmentRepository) Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error) {
	args := m.Called(ctx, from, to, at)
	return args.Get(0).(int64), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, assignmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Transaction, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountByAssignment(ctx context.Context, assignmentID uuid.UUID) (int, error) {
	args := m.Called(ctx, assignmentID)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) CountAdvances(ctx context.Context, owner domain.Owner) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) MarkReversed(ctx context.Context, id uuid.UUID, by, reason string, at time.Time) error {
	args := m.Called(ctx, id, by, reason, at)
	return args.Error(0)
}

func (m *MockTransactionRepository) PaymentFlags(ctx context.Context, assignmentIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, assignmentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]bool), args.Error(1)
}

func (m *MockTransactionRepository) SoftDeleteByOwner(ctx context.Context, owner domain.Owner, at time.Time) (int64, error) {
	args := m.Called(ctx, owner, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) Reassign(ctx context.Context, from, to domain.Owner, at time.Time) (int64, error) {
	args := m.Called(ctx, from, to, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockStore runs units of work directly against its mock repositories.
type MockStore struct {
	Assignments  *MockAssignmentRepository
	Transactions *MockTransactionRepository
	TxErr        error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Assignments:  &MockAssignmentRepository{},
		Transactions: &MockTransactionRepository{},
	}
}

func (s *MockStore) Repositories() repository.Repositories {
	return repository.Repositories{Assignments: s.Assignments, Transactions: s.Transactions}
}

func (s *MockStore) WithTx(ctx context.Context, fn repository.TxFunc) error {
	if s.TxErr != nil {
		return s.TxErr
	}
	return fn(ctx, s.Repositories())
}
