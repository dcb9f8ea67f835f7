package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/segyhp/fee-ledger/internal/domain"
)

type MockBillingService struct {
	mock.Mock
}

// NewMockBillingService creates a new mock billing service instance
func NewMockBillingService() *MockBillingService {
	return &MockBillingService{}
}

func (m *MockBillingService) CreateAssignment(ctx context.Context, request *domain.CreateAssignmentRequest) (*domain.Assignment, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Assignment), args.Error(1)
}

func (m *MockBillingService) AssignFees(ctx context.Context, studentID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error) {
	args := m.Called(ctx, studentID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssignFeesResult), args.Error(1)
}

func (m *MockBillingService) AssignProvisionalFees(ctx context.Context, applicationID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error) {
	args := m.Called(ctx, applicationID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssignFeesResult), args.Error(1)
}

func (m *MockBillingService) GetSummary(ctx context.Context, assignmentID uuid.UUID, asOf time.Time) (*domain.FeeSummary, error) {
	args := m.Called(ctx, assignmentID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeSummary), args.Error(1)
}

func (m *MockBillingService) ListPending(ctx context.Context, owner domain.Owner, asOf time.Time) (*domain.PendingFees, error) {
	args := m.Called(ctx, owner, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingFees), args.Error(1)
}

func (m *MockBillingService) GetHistory(ctx context.Context, owner domain.Owner) (*domain.FeeHistory, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeHistory), args.Error(1)
}

func (m *MockBillingService) Reconcile(ctx context.Context, assignmentID uuid.UUID) (*domain.ReconcileReport, error) {
	args := m.Called(ctx, assignmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconcileReport), args.Error(1)
}

func (m *MockBillingService) ReplacePackage(ctx context.Context, studentID uuid.UUID, oldPackageID domain.PackageID, spec *domain.PackageSpec) (*domain.ReplacePackageResult, error) {
	args := m.Called(ctx, studentID, oldPackageID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReplacePackageResult), args.Error(1)
}

func (m *MockBillingService) DeleteOwnerFees(ctx context.Context, owner domain.Owner) (*domain.DeleteFeesResult, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeleteFeesResult), args.Error(1)
}

func (m *MockBillingService) ProcessPayment(ctx context.Context, request *domain.PaymentRequest) (*domain.PaymentResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

func (m *MockBillingService) ProcessMultiplePayments(ctx context.Context, studentID uuid.UUID, request *domain.BatchPaymentRequest) (*domain.BatchResult, error) {
	args := m.Called(ctx, studentID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchResult), args.Error(1)
}

func (m *MockBillingService) RevertPayment(ctx context.Context, transactionID uuid.UUID, request *domain.RevertRequest) (*domain.RevertResult, error) {
	args := m.Called(ctx, transactionID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RevertResult), args.Error(1)
}

func (m *MockBillingService) MigrateProvisionalFees(ctx context.Context, applicationID uuid.UUID, request *domain.MigrateRequest) (*domain.MigrationResult, error) {
	args := m.Called(ctx, applicationID, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MigrationResult), args.Error(1)
}

func (m *MockBillingService) WithdrawApplication(ctx context.Context, applicationID uuid.UUID) (*domain.WithdrawResult, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WithdrawResult), args.Error(1)
}

func (m *MockBillingService) StartBulkAssign(ctx context.Context, request *domain.BulkAssignRequest) (*domain.Job, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockBillingService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}
