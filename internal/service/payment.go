package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
	"github.com/segyhp/fee-ledger/internal/policy"
	"github.com/segyhp/fee-ledger/internal/repository"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/utils"
)

// errNothingApplied rolls back a batch in which every item failed
var errNothingApplied = errors.New("no batch item applied")

type paymentInput struct {
	assignmentID    uuid.UUID
	amount          decimal.Decimal
	discountApplied decimal.Decimal
	fineApplied     decimal.Decimal
	method          domain.PaymentMethod
	reference       string
	note            string
	collectedBy     string
	paymentDate     time.Time
	now             time.Time
}

// ProcessPayment applies one payment to one assignment
func (s *BillingService) ProcessPayment(ctx context.Context, request *domain.PaymentRequest) (*domain.PaymentResult, error) {
	if err := validatePaymentMeta(request.Method, request.CollectedBy); err != nil {
		return nil, err
	}
	if err := validateAmounts(request.Amount, request.DiscountApplied, request.FineApplied); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	paidAt, err := paymentDate(request.PaymentDate, now)
	if err != nil {
		return nil, err
	}
	in := paymentInput{
		assignmentID:    request.AssignmentID,
		amount:          request.Amount,
		discountApplied: request.DiscountApplied,
		fineApplied:     request.FineApplied,
		method:          request.Method,
		reference:       request.Reference,
		note:            request.Note,
		collectedBy:     request.CollectedBy,
		paymentDate:     paidAt,
		now:             now,
	}

	var (
		result     *domain.PaymentResult
		assignment *domain.Assignment
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		result, assignment, err = s.applyPayment(ctx, repos, nil, in)
		return err
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"assignment_id":  result.AssignmentID.String(),
		"transaction_id": result.TransactionID.String(),
		"reference":      result.ReferenceNumber,
		"amount":         result.Amount.StringFixed(2),
		"status":         result.Status,
		"collected_by":   in.collectedBy,
	}).Info("payment recorded")

	s.notifyPayment(domain.Receipt{
		Owner:           assignment.Owner(),
		TransactionIDs:  []uuid.UUID{result.TransactionID},
		ReferenceNumber: result.ReferenceNumber,
		Amount:          result.Amount,
		BalanceDue:      result.BalanceDue,
		PaidAt:          in.paymentDate,
	})

	return result, nil
}

// ProcessMultiplePayments applies several payments for one student in a single transaction,
// optionally holding extra money as advance credit. Items that break a business rule are
// reported and skipped; if none apply, nothing is recorded.
func (s *BillingService) ProcessMultiplePayments(ctx context.Context, studentID uuid.UUID, request *domain.BatchPaymentRequest) (*domain.BatchResult, error) {
	// 1. Validate the whole batch up front
	if studentID == uuid.Nil {
		return nil, customError.WrapValidation("student id is required")
	}
	if len(request.Items) == 0 && request.AdvanceAmount == nil {
		return nil, customError.WrapValidation("batch needs at least one item or an advance amount")
	}
	if request.AdvanceAmount != nil && !request.AdvanceAmount.IsPositive() {
		return nil, customError.WrapValidation("advance amount must be greater than zero")
	}
	if err := validatePaymentMeta(request.Method, request.CollectedBy); err != nil {
		return nil, err
	}
	for i, item := range request.Items {
		if item.AssignmentID == uuid.Nil {
			return nil, customError.WrapValidation(fmt.Sprintf("item %d: assignment id is required", i))
		}
		if err := validateAmounts(item.Amount, item.DiscountApplied, item.FineApplied); err != nil {
			return nil, customError.WrapValidation(fmt.Sprintf("item %d: %s", i, businessMessage(err)))
		}
	}

	owner := domain.StudentOwner(studentID)
	now := s.now().UTC()
	paidAt, err := paymentDate(request.PaymentDate, now)
	if err != nil {
		return nil, err
	}

	// 2. Apply everything in one retried unit; the result is rebuilt on every attempt
	var result *domain.BatchResult
	err = s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result = &domain.BatchResult{
			TransactionIDs: []uuid.UUID{},
			Payments:       []domain.PaymentResult{},
			Errors:         []domain.ItemError{},
		}

		for i, item := range request.Items {
			payment, _, err := s.applyPayment(ctx, repos, &owner, paymentInput{
				assignmentID:    item.AssignmentID,
				amount:          item.Amount,
				discountApplied: item.DiscountApplied,
				fineApplied:     item.FineApplied,
				method:          request.Method,
				reference:       request.Reference,
				note:            request.Note,
				collectedBy:     request.CollectedBy,
				paymentDate:     paidAt,
				now:             now,
			})
			if err != nil {
				if !customError.IsRuleViolation(err) {
					return err
				}
				be, _ := customError.AsBusiness(err)
				result.Errors = append(result.Errors, domain.ItemError{
					Index:        i,
					AssignmentID: item.AssignmentID,
					Code:         be.Code,
					Message:      be.Message,
				})
				continue
			}

			result.Payments = append(result.Payments, *payment)
			result.TransactionIDs = append(result.TransactionIDs, payment.TransactionID)
		}

		if len(request.Items) > 0 && len(result.Payments) == 0 {
			return errNothingApplied
		}

		if request.AdvanceAmount != nil {
			advance, err := s.recordAdvance(ctx, repos, owner, *request.AdvanceAmount, request, paidAt, now)
			if err != nil {
				return err
			}
			result.AdvanceTransactionID = &advance.ID
			result.TransactionIDs = append(result.TransactionIDs, advance.ID)
		}

		return nil
	})

	if errors.Is(err, errNothingApplied) {
		result.Success = false
		result.Message = fmt.Sprintf("none of the %d payments could be applied", len(request.Items))
		result.TransactionIDs = []uuid.UUID{}
		result.AdvanceTransactionID = nil
		return result, customError.WrapBatchFailed(len(request.Items))
	}
	if err != nil {
		return nil, s.ledgerError(err)
	}

	result.Success = true
	result.Message = fmt.Sprintf("%d of %d payments recorded", len(result.Payments), len(request.Items))
	if result.AdvanceTransactionID != nil {
		result.Message += ", advance credit recorded"
	}

	// 3. One receipt for the whole batch
	total := decimal.Zero
	balance := decimal.Zero
	for _, p := range result.Payments {
		total = total.Add(p.Amount)
		balance = balance.Add(p.BalanceDue)
	}
	if request.AdvanceAmount != nil {
		total = total.Add(*request.AdvanceAmount)
	}
	reference := ""
	if len(result.Payments) > 0 {
		reference = result.Payments[0].ReferenceNumber
	}

	s.log.WithFields(logrus.Fields{
		"student_id":   studentID.String(),
		"applied":      len(result.Payments),
		"failed":       len(result.Errors),
		"total":        total.StringFixed(2),
		"collected_by": request.CollectedBy,
	}).Info("batch payment recorded")

	s.notifyPayment(domain.Receipt{
		Owner:           owner,
		TransactionIDs:  result.TransactionIDs,
		ReferenceNumber: reference,
		Amount:          total,
		BalanceDue:      balance,
		PaidAt:          paidAt,
	})

	return result, nil
}

// RevertPayment reverses a transaction and takes its amount back off the assignment.
// The transaction row stays in the journal, flagged.
func (s *BillingService) RevertPayment(ctx context.Context, transactionID uuid.UUID, request *domain.RevertRequest) (*domain.RevertResult, error) {
	if request.Actor == "" {
		return nil, customError.WrapValidation("actor is required")
	}
	if request.Reason == "" {
		return nil, customError.WrapValidation("reason is required")
	}

	var (
		result   *domain.RevertResult
		reverted *domain.Transaction
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := s.now().UTC()

		// Lock the parent before the transaction row, the same order payments take.
		peek, err := repos.Transactions.GetByID(ctx, transactionID)
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapNotFound("Transaction", transactionID.String())
		}
		if err != nil {
			return err
		}

		var parent *domain.Assignment
		if !peek.IsAdvance() {
			parent, err = repos.Assignments.GetForUpdate(ctx, peek.AssignmentID.UUID)
			if err != nil {
				return err
			}
		}

		txn, err := repos.Transactions.GetForUpdate(ctx, transactionID)
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapNotFound("Transaction", transactionID.String())
		}
		if err != nil {
			return err
		}
		if txn.Reversed {
			return customError.WrapNotFound("Transaction", transactionID.String())
		}

		if err := repos.Transactions.MarkReversed(ctx, txn.ID, request.Actor, request.Reason, now); err != nil {
			return err
		}

		result = &domain.RevertResult{TransactionID: txn.ID, Amount: txn.Amount}
		reverted = txn

		if parent == nil {
			return nil
		}

		paid := parent.PaidAmount.Sub(txn.Amount)
		discount := parent.DiscountAmount.Sub(txn.DiscountApplied)
		if paid.IsNegative() || discount.IsNegative() {
			s.log.WithFields(logrus.Fields{
				"assignment_id":  parent.ID.String(),
				"transaction_id": txn.ID.String(),
				"paid_amount":    parent.PaidAmount.StringFixed(2),
				"amount":         txn.Amount.StringFixed(2),
			}).Error("reversal would leave assignment below zero")
			return fmt.Errorf("reverting %s leaves assignment %s with paid %s and discount %s",
				txn.ID, parent.ID, paid.StringFixed(2), discount.StringFixed(2))
		}
		parent.PaidAmount = paid
		parent.DiscountAmount = discount
		parent.Status = parent.ComputeStatus()
		parent.UpdatedAt = now
		if err := repos.Assignments.UpdateAmounts(ctx, parent); err != nil {
			return err
		}

		result.AssignmentID = &parent.ID
		result.PaidAmount = &parent.PaidAmount
		result.Status = &parent.Status
		return nil
	})
	if err != nil {
		return nil, s.ledgerError(err)
	}

	s.log.WithFields(logrus.Fields{
		"audit":          "payment_reverted",
		"transaction_id": reverted.ID.String(),
		"reference":      reverted.ReferenceNumber,
		"amount":         reverted.Amount.StringFixed(2),
		"owner":          reverted.Owner().String(),
		"reversed_by":    request.Actor,
		"reason":         request.Reason,
	}).Warn("payment reverted")

	return result, nil
}

// applyPayment runs inside a store transaction. When owner is set, an assignment
// belonging to anyone else is reported as not found.
func (s *BillingService) applyPayment(ctx context.Context, repos repository.Repositories, owner *domain.Owner, in paymentInput) (*domain.PaymentResult, *domain.Assignment, error) {
	id := in.assignmentID.String()

	// 1. Lock the assignment row
	a, err := repos.Assignments.GetForUpdate(ctx, in.assignmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapNotFound("Assignment", id)
	}
	if err != nil {
		return nil, nil, customError.WrapProcessingFailed(err)
	}
	if a.IsDeleted() || (owner != nil && a.Owner() != *owner) {
		return nil, nil, customError.WrapNotFound("Assignment", id)
	}
	if a.IsPaid() {
		return nil, nil, customError.WrapAlreadySettled(id)
	}

	charge, err := s.lookupCharge(ctx, a.ChargeRef)
	if err != nil {
		return nil, nil, err
	}

	// 2. Fine in force: locked, desk-assessed, or from policy, always judged as of now.
	// The payment date is only the receipt date.
	fine := a.FineAmount
	newlyLocked := decimal.Zero
	if !fine.IsPositive() {
		switch {
		case in.fineApplied.IsPositive() && !a.IsOverdue(in.now):
			return nil, nil, customError.WrapValidation(fmt.Sprintf("assignment %s is not overdue; no fine can be applied", id))
		case in.fineApplied.IsPositive():
			newlyLocked = utils.RoundMoney(in.fineApplied)
		default:
			newlyLocked = policy.EvaluateFine(a, charge, in.now)
		}
		fine = newlyLocked
	}

	discountApplied := utils.RoundMoney(in.discountApplied)
	if err := policy.ValidateDiscount(charge, a, discountApplied); err != nil {
		return nil, nil, err
	}

	// 3. Amount against what is left
	finalDue := a.BaseAmount.Add(fine).Sub(a.DiscountAmount.Add(discountApplied)).Sub(a.PaidAmount)
	if in.amount.GreaterThan(finalDue) {
		return nil, nil, customError.WrapExceedsBalance(in.amount.StringFixed(2), finalDue.StringFixed(2))
	}
	if in.amount.LessThan(finalDue) && !a.PartialAllowed {
		return nil, nil, customError.WrapPartialNotAllowed(in.amount.StringFixed(2), finalDue.StringFixed(2))
	}

	// 4. Duplicate guard
	history, err := repos.Transactions.ListByAssignment(ctx, a.ID)
	if err != nil {
		return nil, nil, customError.WrapProcessingFailed(err)
	}
	window := s.config.Ledger.DuplicateWindow
	for _, t := range history {
		if t.IsActive() && t.Amount.Equal(in.amount) && in.now.Sub(t.CreatedAt) < window {
			return nil, nil, customError.WrapDuplicateSuspected(id, in.amount.StringFixed(2))
		}
	}

	// 5. Reference number from the ordinal of every transaction ever written here
	count, err := repos.Transactions.CountByAssignment(ctx, a.ID)
	if err != nil {
		return nil, nil, customError.WrapProcessingFailed(err)
	}
	reference := fmt.Sprintf("%s/%d", a.ID, count+1)
	if in.reference != "" {
		reference += "/" + in.reference
	}

	// 6. Journal entry, then the assignment
	txn := &domain.Transaction{
		ID:              uuid.New(),
		AssignmentID:    uuid.NullUUID{UUID: a.ID, Valid: true},
		Amount:          in.amount,
		DiscountApplied: discountApplied,
		FineApplied:     newlyLocked,
		PaymentDate:     in.paymentDate,
		Method:          in.method,
		ReferenceNumber: reference,
		Note:            in.note,
		CollectedBy:     in.collectedBy,
		CreatedAt:       in.now,
		UpdatedAt:       in.now,
	}
	txn.SetOwner(a.Owner())
	if err := repos.Transactions.Create(ctx, txn); err != nil {
		return nil, nil, customError.WrapProcessingFailed(err)
	}

	a.PaidAmount = a.PaidAmount.Add(in.amount)
	a.DiscountAmount = a.DiscountAmount.Add(discountApplied)
	a.FineAmount = fine
	a.Status = a.ComputeStatus()
	a.UpdatedAt = in.now
	if err := repos.Assignments.UpdateAmounts(ctx, a); err != nil {
		return nil, nil, customError.WrapProcessingFailed(err)
	}

	return &domain.PaymentResult{
		TransactionID:   txn.ID,
		ReferenceNumber: reference,
		AssignmentID:    a.ID,
		Amount:          in.amount,
		FineLocked:      a.FineAmount,
		PaidAmount:      a.PaidAmount,
		BalanceDue:      a.Balance(),
		Status:          a.Status,
	}, a, nil
}

func (s *BillingService) recordAdvance(
	ctx context.Context,
	repos repository.Repositories,
	owner domain.Owner,
	amount decimal.Decimal,
	request *domain.BatchPaymentRequest,
	paidAt, now time.Time,
) (*domain.Transaction, error) {
	count, err := repos.Transactions.CountAdvances(ctx, owner)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("ADV/%s/%d", owner.ID, count+1)
	if request.Reference != "" {
		reference += "/" + request.Reference
	}

	advance := &domain.Transaction{
		ID:              uuid.New(),
		Amount:          amount,
		DiscountApplied: decimal.Zero,
		FineApplied:     decimal.Zero,
		PaymentDate:     paidAt,
		Method:          request.Method,
		ReferenceNumber: reference,
		Note:            request.Note,
		CollectedBy:     request.CollectedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	advance.SetOwner(owner)

	if err := repos.Transactions.Create(ctx, advance); err != nil {
		return nil, err
	}
	return advance, nil
}

func (s *BillingService) notifyPayment(receipt domain.Receipt) {
	if s.notifier == nil {
		return
	}
	s.notifier.PaymentReceived(receipt)
}

func validatePaymentMeta(method domain.PaymentMethod, collectedBy string) error {
	if !method.Valid() {
		return customError.WrapValidation(fmt.Sprintf("unknown payment method %q", method))
	}
	if collectedBy == "" {
		return customError.WrapValidation("collected_by is required")
	}
	return nil
}

func validateAmounts(amount, discountApplied, fineApplied decimal.Decimal) error {
	if !amount.IsPositive() {
		return customError.WrapValidation("amount must be greater than zero")
	}
	if discountApplied.IsNegative() {
		return customError.WrapValidation("discount_applied cannot be negative")
	}
	if fineApplied.IsNegative() {
		return customError.WrapValidation("fine_applied cannot be negative")
	}
	return nil
}

// paymentDate defaults to now and refuses dates after today
func paymentDate(requested *time.Time, now time.Time) (time.Time, error) {
	if requested == nil || requested.IsZero() {
		return now, nil
	}
	date := requested.UTC()
	if utils.DateOnly(date).After(utils.DateOnly(now)) {
		return time.Time{}, customError.WrapValidation(fmt.Sprintf("payment_date %s is in the future", date.Format("2006-01-02")))
	}
	return date, nil
}

func businessMessage(err error) string {
	if be, ok := customError.AsBusiness(err); ok {
		return be.Message
	}
	return err.Error()
}
