package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/catalog"
	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/directory"
	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/jobs"
	"github.com/segyhp/fee-ledger/internal/policy"
	"github.com/segyhp/fee-ledger/internal/repository"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/utils"
)

const defaultDueDay = 1

// Notifier receives events once the ledger has committed them. Implementations must not block.
type Notifier interface {
	PaymentReceived(receipt domain.Receipt)
	OverdueReminder(notice domain.OverdueNotice)
}

type Option func(*BillingService)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *BillingService) {
		s.now = now
	}
}

type BillingService struct {
	store     repository.Store
	catalog   catalog.Resolver
	directory directory.Resolver
	notifier  Notifier
	jobs      jobs.Store
	config    *config.Config
	log       *logrus.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewBillingService wires the ledger. directory, notifier and jobs may be nil:
// owner checks are then skipped, notifications dropped and background jobs refused.
func NewBillingService(
	store repository.Store,
	catalog catalog.Resolver,
	directory directory.Resolver,
	notifier Notifier,
	jobs jobs.Store,
	config *config.Config,
	log *logrus.Logger,
	opts ...Option,
) *BillingService {
	s := &BillingService{
		store:     store,
		catalog:   catalog,
		directory: directory,
		notifier:  notifier,
		jobs:      jobs,
		config:    config,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until background jobs started by this service have finished
func (s *BillingService) Wait() {
	s.wg.Wait()
}

// CreateAssignment records a single obligation outside any package
func (s *BillingService) CreateAssignment(ctx context.Context, request *domain.CreateAssignmentRequest) (*domain.Assignment, error) {
	// 1. Validate request
	if !request.Owner.Valid() {
		return nil, customError.WrapValidation("owner kind and id are required")
	}
	if !request.Period.Valid() {
		return nil, customError.WrapValidation(fmt.Sprintf("invalid period %d/%d", request.Period.Month, request.Period.Year))
	}
	if request.ChargeRef == "" {
		return nil, customError.WrapValidation("charge_ref is required")
	}
	if !request.BaseAmount.IsPositive() {
		return nil, customError.WrapValidation("base_amount must be greater than zero")
	}
	if request.Discount.IsNegative() || request.Discount.GreaterThan(request.BaseAmount) {
		return nil, customError.WrapValidation("discount must be between zero and base_amount")
	}
	if request.DueDate.IsZero() {
		return nil, customError.WrapValidation("due_date is required")
	}

	// 2. Owner must exist
	if err := s.ensureOwner(ctx, request.Owner); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	assignment := &domain.Assignment{
		ID:             uuid.New(),
		ChargeRef:      request.ChargeRef,
		PeriodMonth:    request.Period.Month,
		PeriodYear:     request.Period.Year,
		BaseAmount:     utils.RoundMoney(request.BaseAmount),
		DueDate:        utils.DateOnly(request.DueDate),
		DiscountAmount: utils.RoundMoney(request.Discount),
		FineAmount:     decimal.Zero,
		PaidAmount:     decimal.Zero,
		PartialAllowed: request.PartialAllowed,
		Provisional:    request.Owner.Kind == domain.OwnerApplication,
		PackageID:      request.PackageID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	assignment.SetOwner(request.Owner)
	assignment.Status = assignment.ComputeStatus()

	// 3. Persist
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Assignments.Create(ctx, assignment)
	})
	if err != nil {
		return nil, customError.WrapProcessingFailed(err)
	}

	return assignment, nil
}

// AssignFees expands a charge-plan selection into a student's assignments
func (s *BillingService) AssignFees(ctx context.Context, studentID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error) {
	return s.assignPackage(ctx, domain.StudentOwner(studentID), spec)
}

// AssignProvisionalFees expands a package for an applicant; the rows stay provisional until migration
func (s *BillingService) AssignProvisionalFees(ctx context.Context, applicationID uuid.UUID, spec *domain.PackageSpec) (*domain.AssignFeesResult, error) {
	return s.assignPackage(ctx, domain.ApplicationOwner(applicationID), spec)
}

func (s *BillingService) assignPackage(ctx context.Context, owner domain.Owner, spec *domain.PackageSpec) (*domain.AssignFeesResult, error) {
	if owner.ID == uuid.Nil {
		return nil, customError.WrapValidation("owner id is required")
	}
	if err := s.ensureOwner(ctx, owner); err != nil {
		return nil, err
	}

	assignments, packageID, err := s.expandPackage(ctx, owner, spec)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Assignments.CreateBatch(ctx, assignments)
	})
	if err != nil {
		return nil, customError.WrapProcessingFailed(err)
	}

	total := decimal.Zero
	for _, a := range assignments {
		total = total.Add(a.FinalAmount())
	}

	s.log.WithFields(logrus.Fields{
		"owner":       owner.String(),
		"package_id":  packageID.String(),
		"assignments": len(assignments),
		"total":       total.StringFixed(2),
	}).Info("fee package assigned")

	return &domain.AssignFeesResult{
		PackageID:   packageID,
		Assignments: assignments,
		Total:       total,
	}, nil
}

// expandPackage resolves every plan item against the catalog and builds the rows.
// Nothing is written here.
func (s *BillingService) expandPackage(ctx context.Context, owner domain.Owner, spec *domain.PackageSpec) ([]*domain.Assignment, domain.PackageID, error) {
	if spec == nil || len(spec.Items) == 0 {
		return nil, "", customError.WrapValidation("package must contain at least one item")
	}
	if spec.Year < 1 {
		return nil, "", customError.WrapValidation("package year is required")
	}
	if spec.DueDay < 0 || spec.DueDay > 31 {
		return nil, "", customError.WrapValidation("due_day must be between 1 and 31")
	}

	packageID := domain.NewPackageID()
	if spec.PackageID != nil && *spec.PackageID != "" {
		packageID = *spec.PackageID
	}
	dueDay := spec.DueDay
	if dueDay == 0 {
		dueDay = defaultDueDay
	}

	now := s.now().UTC()
	var assignments []*domain.Assignment

	for i, item := range spec.Items {
		if item.ChargeRef == "" {
			return nil, "", customError.WrapValidation(fmt.Sprintf("item %d: charge_ref is required", i))
		}

		charge, err := s.catalog.Resolve(ctx, item.ChargeRef)
		if errors.Is(err, catalog.ErrChargeNotFound) {
			return nil, "", customError.WrapValidation(fmt.Sprintf("item %d: unknown charge %s", i, item.ChargeRef))
		}
		if err != nil {
			return nil, "", customError.WrapProcessingFailed(err)
		}

		base := charge.BaseAmount
		if item.BaseAmount != nil {
			base = *item.BaseAmount
		}
		base = utils.RoundMoney(base)
		if !base.IsPositive() {
			return nil, "", customError.WrapValidation(fmt.Sprintf("item %d: base amount must be greater than zero", i))
		}

		discount := utils.RoundMoney(item.Discount)
		if discount.IsNegative() || discount.GreaterThan(base) {
			return nil, "", customError.WrapValidation(fmt.Sprintf("item %d: discount must be between zero and the base amount", i))
		}
		if discount.IsPositive() && !charge.DiscountEligible {
			return nil, "", customError.WrapValidation(fmt.Sprintf("item %d: charge %s is not eligible for discounts", i, charge.Ref))
		}

		for _, period := range policy.ExpandPeriods(charge.Frequency, item.Months, spec.Year) {
			due := utils.CalculateDueDate(period.Year, period.Month, dueDay)
			if !period.Recurring() && item.DueDate != nil {
				due = utils.DateOnly(*item.DueDate)
			}

			a := &domain.Assignment{
				ID:             uuid.New(),
				ChargeRef:      charge.Ref,
				PeriodMonth:    period.Month,
				PeriodYear:     period.Year,
				BaseAmount:     base,
				DueDate:        due,
				DiscountAmount: discount,
				FineAmount:     decimal.Zero,
				PaidAmount:     decimal.Zero,
				PartialAllowed: item.PartialAllowed,
				Provisional:    owner.Kind == domain.OwnerApplication,
				PackageID:      &packageID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			a.SetOwner(owner)
			a.Status = a.ComputeStatus()
			assignments = append(assignments, a)
		}
	}

	return assignments, packageID, nil
}

// GetSummary returns the payable view of one assignment as of the given date
func (s *BillingService) GetSummary(ctx context.Context, assignmentID uuid.UUID, asOf time.Time) (*domain.FeeSummary, error) {
	repos := s.store.Repositories()

	assignment, err := repos.Assignments.GetByID(ctx, assignmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("Assignment", assignmentID.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	history, err := repos.Transactions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	charge, err := s.lookupCharge(ctx, assignment.ChargeRef)
	if err != nil {
		return nil, err
	}

	summary := summarize(assignment, charge, asOf)
	summary.History = history
	if summary.History == nil {
		summary.History = []*domain.Transaction{}
	}

	return summary, nil
}

// ListPending returns every unpaid assignment of an owner with running totals
func (s *BillingService) ListPending(ctx context.Context, owner domain.Owner, asOf time.Time) (*domain.PendingFees, error) {
	if !owner.Valid() {
		return nil, customError.WrapValidation("owner kind and id are required")
	}

	assignments, err := s.store.Repositories().Assignments.ListByOwner(ctx, owner, true)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	pending := &domain.PendingFees{
		Owner:        owner,
		Fees:         []*domain.FeeSummary{},
		TotalPending: decimal.Zero,
		TotalOverdue: decimal.Zero,
	}

	charges := make(map[string]*domain.Charge)
	for _, a := range assignments {
		if a.IsPaid() {
			continue
		}

		charge, ok := charges[a.ChargeRef]
		if !ok {
			charge, err = s.lookupCharge(ctx, a.ChargeRef)
			if err != nil {
				return nil, err
			}
			charges[a.ChargeRef] = charge
		}

		summary := summarize(a, charge, asOf)
		pending.Fees = append(pending.Fees, summary)
		pending.TotalPending = pending.TotalPending.Add(summary.BalanceDue)
		pending.PendingCount++

		if summary.IsOverdue {
			pending.TotalOverdue = pending.TotalOverdue.Add(summary.BalanceDue)
			pending.OverdueCount++
		}
	}

	return pending, nil
}

// GetHistory returns every transaction of an owner newest first; reversed ones are flagged, not hidden
func (s *BillingService) GetHistory(ctx context.Context, owner domain.Owner) (*domain.FeeHistory, error) {
	if !owner.Valid() {
		return nil, customError.WrapValidation("owner kind and id are required")
	}

	transactions, err := s.store.Repositories().Transactions.ListByOwner(ctx, owner)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}

	return &domain.FeeHistory{
		Owner:        owner,
		Transactions: transactions,
		TotalPaid:    activeTotal(transactions),
	}, nil
}

// Reconcile compares the stored paid amount with the journal
func (s *BillingService) Reconcile(ctx context.Context, assignmentID uuid.UUID) (*domain.ReconcileReport, error) {
	repos := s.store.Repositories()

	assignment, err := repos.Assignments.GetByID(ctx, assignmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapNotFound("Assignment", assignmentID.String())
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	transactions, err := repos.Transactions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	total := activeTotal(transactions)
	report := &domain.ReconcileReport{
		AssignmentID:     assignmentID,
		PaidAmount:       assignment.PaidAmount,
		TransactionTotal: total,
		Balanced:         assignment.PaidAmount.Equal(total),
	}

	if !report.Balanced {
		s.log.WithFields(logrus.Fields{
			"assignment_id":     assignmentID.String(),
			"paid_amount":       assignment.PaidAmount.StringFixed(2),
			"transaction_total": total.StringFixed(2),
		}).Error("assignment does not reconcile with its transactions")
	}

	return report, nil
}

// ReplacePackage swaps an unpaid package for a new selection atomically.
// Any live payment against the old package blocks the swap.
func (s *BillingService) ReplacePackage(ctx context.Context, studentID uuid.UUID, oldPackageID domain.PackageID, spec *domain.PackageSpec) (*domain.ReplacePackageResult, error) {
	owner := domain.StudentOwner(studentID)
	if oldPackageID == "" {
		return nil, customError.WrapValidation("package id is required")
	}
	if err := s.ensureOwner(ctx, owner); err != nil {
		return nil, err
	}

	created, newPackageID, err := s.expandPackage(ctx, owner, spec)
	if err != nil {
		return nil, err
	}

	var removed int
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		removed = 0

		current, err := repos.Assignments.ListByPackage(ctx, owner, oldPackageID, true)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return customError.WrapNotFound("Package", oldPackageID.String())
		}

		ids := make([]uuid.UUID, 0, len(current))
		for _, a := range current {
			ids = append(ids, a.ID)
		}

		flags, err := repos.Transactions.PaymentFlags(ctx, ids)
		if err != nil {
			return err
		}

		var hard, soft []uuid.UUID
		for _, id := range ids {
			active, paid := flags[id]
			switch {
			case active:
				return customError.WrapConflict(fmt.Sprintf("package %s has payments recorded and cannot be replaced", oldPackageID))
			case paid:
				// only reverted payments: keep the row so the journal keeps its parent
				soft = append(soft, id)
			default:
				hard = append(hard, id)
			}
		}

		now := s.now().UTC()
		if _, err := repos.Assignments.SoftDelete(ctx, soft, now); err != nil {
			return err
		}
		if _, err := repos.Assignments.HardDelete(ctx, hard); err != nil {
			return err
		}
		if err := repos.Assignments.CreateBatch(ctx, created); err != nil {
			return err
		}

		removed = len(current)
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"student_id":     studentID.String(),
		"old_package_id": oldPackageID.String(),
		"new_package_id": newPackageID.String(),
		"removed":        removed,
		"created":        len(created),
	}).Info("fee package replaced")

	return &domain.ReplacePackageResult{
		OldPackageID: oldPackageID,
		NewPackageID: newPackageID,
		Removed:      removed,
		Created:      created,
	}, nil
}

// DeleteOwnerFees soft-deletes an owner's assignments and every transaction with them
func (s *BillingService) DeleteOwnerFees(ctx context.Context, owner domain.Owner) (*domain.DeleteFeesResult, error) {
	if !owner.Valid() {
		return nil, customError.WrapValidation("owner kind and id are required")
	}

	result := &domain.DeleteFeesResult{Owner: owner}
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.now().UTC()

		assignments, err := repos.Assignments.SoftDeleteByOwner(ctx, owner, false, now)
		if err != nil {
			return err
		}
		transactions, err := repos.Transactions.SoftDeleteByOwner(ctx, owner, now)
		if err != nil {
			return err
		}

		result.AssignmentsRemoved = int(assignments)
		result.TransactionsRemoved = int(transactions)
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"owner":                owner.String(),
		"assignments_removed":  result.AssignmentsRemoved,
		"transactions_removed": result.TransactionsRemoved,
	}).Warn("owner fees deleted")

	return result, nil
}

// ensureOwner checks the directory when one is configured
func (s *BillingService) ensureOwner(ctx context.Context, owner domain.Owner) error {
	if s.directory == nil {
		return nil
	}

	party, err := s.directory.Resolve(ctx, owner)
	if err != nil {
		return customError.WrapProcessingFailed(err)
	}
	if !party.Exists {
		return customError.WrapNotFound(ownerLabel(owner.Kind), owner.ID.String())
	}
	return nil
}

// lookupCharge resolves a catalog entry. A charge missing from the catalog yields nil:
// the assignment is then treated as carrying no fine policy and no discount eligibility.
func (s *BillingService) lookupCharge(ctx context.Context, ref string) (*domain.Charge, error) {
	charge, err := s.catalog.Resolve(ctx, ref)
	if errors.Is(err, catalog.ErrChargeNotFound) {
		s.log.WithField("charge_ref", ref).Warn("charge missing from catalog, applying no fine or discount")
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapProcessingFailed(err)
	}
	return charge, nil
}

// ledgerError keeps business errors as they are and hides everything else behind PROCESSING_FAILED
func (s *BillingService) ledgerError(err error) error {
	if _, ok := customError.AsBusiness(err); ok {
		return err
	}
	s.log.WithError(err).Error("ledger operation failed")
	return customError.WrapProcessingFailed(err)
}

func summarize(a *domain.Assignment, charge *domain.Charge, asOf time.Time) *domain.FeeSummary {
	fine := policy.EvaluateFine(a, charge, asOf)
	balance := a.FinalAmount().Add(fine).Sub(a.PaidAmount)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	return &domain.FeeSummary{
		Assignment:    a,
		EvaluatedFine: fine,
		FinalAmount:   a.FinalAmount(),
		AlreadyPaid:   a.PaidAmount,
		BalanceDue:    balance,
		Status:        a.ComputeStatus(),
		IsOverdue:     a.IsOverdue(asOf),
		DaysOverdue:   policy.DaysOverdue(a, asOf),
	}
}

func activeTotal(transactions []*domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		if t.IsActive() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func ownerLabel(kind domain.OwnerKind) string {
	if kind == domain.OwnerApplication {
		return "Application"
	}
	return "Student"
}
