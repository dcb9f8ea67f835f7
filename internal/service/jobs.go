package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/jobs"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
)

// StartBulkAssign assigns one package to many students in the background.
// It returns as soon as the job is recorded; progress is read with GetJob.
func (s *BillingService) StartBulkAssign(ctx context.Context, request *domain.BulkAssignRequest) (*domain.Job, error) {
	if s.jobs == nil {
		return nil, customError.WrapProcessingFailed(errors.New("job store is not configured"))
	}
	if len(request.StudentIDs) == 0 {
		return nil, customError.WrapValidation("at least one student id is required")
	}
	for i, id := range request.StudentIDs {
		if id == uuid.Nil {
			return nil, customError.WrapValidation(fmt.Sprintf("student %d: id is required", i))
		}
	}
	if len(request.Package.Items) == 0 {
		return nil, customError.WrapValidation("package must contain at least one item")
	}

	job, err := s.jobs.Create(ctx, domain.JobKindBulkAssign, len(request.StudentIDs))
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	snapshot := *job
	studentIDs := append([]uuid.UUID(nil), request.StudentIDs...)
	spec := request.Package

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBulkAssign(job, studentIDs, spec)
	}()

	return &snapshot, nil
}

func (s *BillingService) runBulkAssign(job *domain.Job, studentIDs []uuid.UUID, spec domain.PackageSpec) {
	ctx := context.Background()
	entry := s.log.WithFields(logrus.Fields{"job_id": job.ID, "kind": job.Kind})

	job.Status = domain.JobStatusRunning
	s.saveJob(ctx, job)

	for _, id := range studentIDs {
		itemSpec := spec
		_, err := s.AssignFees(ctx, id, &itemSpec)
		if err != nil {
			err = fmt.Errorf("student %s: %s", id, businessMessage(err))
		}
		job.Record(err)
		job.UpdatedAt = s.now().UTC()
		s.saveJob(ctx, job)
	}

	s.finishJob(ctx, job)
	entry.WithFields(logrus.Fields{
		"processed": job.Processed,
		"failed":    job.Failed,
		"status":    job.Status,
	}).Info("bulk assignment finished")
}

// GetJob reads a background job's progress
func (s *BillingService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	if s.jobs == nil {
		return nil, customError.WrapNotFound("Job", id)
	}

	job, err := s.jobs.Get(ctx, id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return nil, customError.WrapNotFound("Job", id)
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	return job, nil
}

// startJob records a scheduler run. Without a job store the run is still tracked in memory.
func (s *BillingService) startJob(ctx context.Context, kind string, total int) *domain.Job {
	now := s.now().UTC()
	fallback := &domain.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    domain.JobStatusRunning,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.jobs == nil {
		return fallback
	}

	job, err := s.jobs.Create(ctx, kind, total)
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("failed to record job start")
		return fallback
	}
	job.Status = domain.JobStatusRunning
	s.saveJob(ctx, job)
	return job
}

func (s *BillingService) finishJob(ctx context.Context, job *domain.Job) {
	job.Finish(s.now().UTC())
	s.saveJob(ctx, job)
}

func (s *BillingService) saveJob(ctx context.Context, job *domain.Job) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Warn("failed to save job progress")
	}
}
