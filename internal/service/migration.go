package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/repository"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
)

// MigrateProvisionalFees moves an applicant's assignments and payments to the enrolled student.
// Amounts and statuses are carried over untouched.
func (s *BillingService) MigrateProvisionalFees(ctx context.Context, applicationID uuid.UUID, request *domain.MigrateRequest) (*domain.MigrationResult, error) {
	if applicationID == uuid.Nil || request.StudentID == uuid.Nil {
		return nil, customError.WrapValidation("application id and student id are required")
	}

	from := domain.ApplicationOwner(applicationID)
	to := domain.StudentOwner(request.StudentID)

	if err := s.ensureOwner(ctx, to); err != nil {
		return nil, err
	}

	var result *domain.MigrationResult
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.now().UTC()
		result = &domain.MigrationResult{
			ApplicationID: applicationID,
			StudentID:     request.StudentID,
			AssignedTotal: decimal.Zero,
			PaidTotal:     decimal.Zero,
		}

		assignments, err := repos.Assignments.ListByOwner(ctx, from, false)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			result.AssignedTotal = result.AssignedTotal.Add(a.TotalDue())
			result.PaidTotal = result.PaidTotal.Add(a.PaidAmount)
		}

		moved, err := repos.Assignments.Reassign(ctx, from, to, now)
		if err != nil {
			return err
		}
		movedTxns, err := repos.Transactions.Reassign(ctx, from, to, now)
		if err != nil {
			return err
		}

		result.AssignmentsMoved = int(moved)
		result.TransactionsMoved = int(movedTxns)
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"audit":              "provisional_fees_migrated",
		"application_id":     applicationID.String(),
		"student_id":         request.StudentID.String(),
		"assignments_moved":  result.AssignmentsMoved,
		"transactions_moved": result.TransactionsMoved,
		"assigned_total":     result.AssignedTotal.StringFixed(2),
		"paid_total":         result.PaidTotal.StringFixed(2),
	}).Info("provisional fees migrated")

	return result, nil
}

// WithdrawApplication drops an applicant's provisional assignments. Payments stay in the journal.
func (s *BillingService) WithdrawApplication(ctx context.Context, applicationID uuid.UUID) (*domain.WithdrawResult, error) {
	if applicationID == uuid.Nil {
		return nil, customError.WrapValidation("application id is required")
	}
	owner := domain.ApplicationOwner(applicationID)

	result := &domain.WithdrawResult{ApplicationID: applicationID}
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		removed, err := repos.Assignments.SoftDeleteByOwner(ctx, owner, true, s.now().UTC())
		if err != nil {
			return err
		}
		retained, err := repos.Transactions.ListByOwner(ctx, owner)
		if err != nil {
			return err
		}

		result.AssignmentsRemoved = int(removed)
		result.TransactionsRetained = len(retained)
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"audit":                 "application_withdrawn",
		"application_id":        applicationID.String(),
		"assignments_removed":   result.AssignmentsRemoved,
		"transactions_retained": result.TransactionsRetained,
	}).Info("application withdrawn")

	return result, nil
}
