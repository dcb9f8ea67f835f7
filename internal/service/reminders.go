package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/policy"
	"github.com/segyhp/fee-ledger/internal/repository"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
)

// errSkip marks an assignment the fine run left alone after re-reading it under lock
var errSkip = errors.New("assignment no longer needs a fine")

// AssessOverdueFines locks the policy fine onto every overdue assignment that has none yet.
// A fine already in place is never changed.
func (s *BillingService) AssessOverdueFines(ctx context.Context, asOf time.Time) (*domain.Job, error) {
	overdue, err := s.store.Repositories().Assignments.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	job := s.startJob(ctx, domain.JobKindFineAssessment, len(overdue))
	assessed := 0

	for _, a := range overdue {
		if a.FineAmount.IsPositive() {
			job.Record(nil)
			continue
		}

		charge, err := s.lookupCharge(ctx, a.ChargeRef)
		if err != nil {
			job.Record(fmt.Errorf("assignment %s: %w", a.ID, err))
			continue
		}
		if policy.EvaluateFine(a, charge, asOf).IsZero() {
			job.Record(nil)
			continue
		}

		err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			locked, err := repos.Assignments.GetForUpdate(ctx, a.ID)
			if err != nil {
				return err
			}
			if locked.IsDeleted() || locked.FineAmount.IsPositive() || !locked.IsOverdue(asOf) {
				return errSkip
			}

			fine := policy.EvaluateFine(locked, charge, asOf)
			if fine.IsZero() {
				return errSkip
			}

			locked.FineAmount = fine
			locked.Status = locked.ComputeStatus()
			locked.UpdatedAt = s.now().UTC()
			return repos.Assignments.UpdateAmounts(ctx, locked)
		})
		switch {
		case errors.Is(err, errSkip):
			job.Record(nil)
		case err != nil:
			job.Record(fmt.Errorf("assignment %s: %w", a.ID, err))
		default:
			assessed++
			job.Record(nil)
		}
	}

	s.finishJob(ctx, job)

	s.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"overdue":  len(overdue),
		"assessed": assessed,
		"failed":   job.Failed,
	}).Info("overdue fine assessment finished")

	return job, nil
}

// SendOverdueReminders queues a reminder for every overdue assignment
func (s *BillingService) SendOverdueReminders(ctx context.Context, asOf time.Time) (*domain.Job, error) {
	overdue, err := s.store.Repositories().Assignments.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	job := s.startJob(ctx, domain.JobKindOverdueNotices, len(overdue))

	charges := make(map[string]*domain.Charge)
	for _, a := range overdue {
		charge, ok := charges[a.ChargeRef]
		if !ok {
			charge, err = s.lookupCharge(ctx, a.ChargeRef)
			if err != nil {
				job.Record(fmt.Errorf("assignment %s: %w", a.ID, err))
				continue
			}
			charges[a.ChargeRef] = charge
		}

		summary := summarize(a, charge, asOf)
		if s.notifier != nil {
			s.notifier.OverdueReminder(domain.OverdueNotice{
				Owner:        a.Owner(),
				AssignmentID: a.ID,
				ChargeRef:    a.ChargeRef,
				DueDate:      a.DueDate,
				BalanceDue:   summary.BalanceDue,
				Fine:         summary.EvaluatedFine,
				DaysOverdue:  summary.DaysOverdue,
			})
		}
		job.Record(nil)
	}

	s.finishJob(ctx, job)

	s.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"overdue": len(overdue),
	}).Info("overdue reminders queued")

	return job, nil
}
