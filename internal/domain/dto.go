package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for requests and responses

type CreateAssignmentRequest struct {
	Owner          Owner           `json:"owner"`
	ChargeRef      string          `json:"charge_ref" validate:"required"`
	Period         Period          `json:"period"`
	BaseAmount     decimal.Decimal `json:"base_amount" validate:"decimal_gt0"`
	DueDate        time.Time       `json:"due_date" validate:"required"`
	Discount       decimal.Decimal `json:"discount" validate:"decimal_gte0"`
	PartialAllowed bool            `json:"partial_allowed"`
	PackageID      *PackageID      `json:"package_id,omitempty"`
}

type PaymentRequest struct {
	AssignmentID    uuid.UUID       `json:"assignment_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	DiscountApplied decimal.Decimal `json:"discount_applied" validate:"decimal_gte0"`
	FineApplied     decimal.Decimal `json:"fine_applied" validate:"decimal_gte0"`
	Method          PaymentMethod   `json:"method" validate:"required"`
	Reference       string          `json:"reference,omitempty" validate:"max=64"`
	Note            string          `json:"note,omitempty" validate:"max=500"`
	CollectedBy     string          `json:"collected_by" validate:"required"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`
}

type PaymentResult struct {
	TransactionID   uuid.UUID        `json:"transaction_id"`
	ReferenceNumber string           `json:"reference_number"`
	AssignmentID    uuid.UUID        `json:"assignment_id"`
	Amount          decimal.Decimal  `json:"amount"`
	FineLocked      decimal.Decimal  `json:"fine_locked"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	BalanceDue      decimal.Decimal  `json:"balance_due"`
	Status          AssignmentStatus `json:"status"`
}

type BatchPaymentItem struct {
	AssignmentID    uuid.UUID       `json:"assignment_id"`
	Amount          decimal.Decimal `json:"amount"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	FineApplied     decimal.Decimal `json:"fine_applied"`
}

type BatchPaymentRequest struct {
	Items         []BatchPaymentItem `json:"items"`
	AdvanceAmount *decimal.Decimal   `json:"advance_amount,omitempty"`
	Method        PaymentMethod      `json:"method" validate:"required"`
	Reference     string             `json:"reference,omitempty" validate:"max=64"`
	Note          string             `json:"note,omitempty" validate:"max=500"`
	CollectedBy   string             `json:"collected_by" validate:"required"`
	PaymentDate   *time.Time         `json:"payment_date,omitempty"`
}

// ItemError reports why one batch item was skipped
type ItemError struct {
	Index        int       `json:"index"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

type BatchResult struct {
	Success              bool            `json:"success"`
	Message              string          `json:"message"`
	TransactionIDs       []uuid.UUID     `json:"transaction_ids"`
	AdvanceTransactionID *uuid.UUID      `json:"advance_transaction_id,omitempty"`
	Payments             []PaymentResult `json:"payments"`
	Errors               []ItemError     `json:"errors"`
}

type RevertRequest struct {
	Actor  string `json:"actor" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

type RevertResult struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	AssignmentID  *uuid.UUID        `json:"assignment_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	PaidAmount    *decimal.Decimal  `json:"paid_amount,omitempty"`
	Status        *AssignmentStatus `json:"status,omitempty"`
}

// FeeSummary is the payable view of one assignment as of a date.
type FeeSummary struct {
	Assignment    *Assignment      `json:"assignment"`
	EvaluatedFine decimal.Decimal  `json:"evaluated_fine"`
	FinalAmount   decimal.Decimal  `json:"final_amount"`
	AlreadyPaid   decimal.Decimal  `json:"already_paid"`
	BalanceDue    decimal.Decimal  `json:"balance_due"`
	Status        AssignmentStatus `json:"status"`
	IsOverdue     bool             `json:"is_overdue"`
	DaysOverdue   int              `json:"days_overdue"`
	History       []*Transaction   `json:"history"`
}

type PendingFees struct {
	Owner        Owner           `json:"owner"`
	Fees         []*FeeSummary   `json:"fees"`
	TotalPending decimal.Decimal `json:"total_pending"`
	TotalOverdue decimal.Decimal `json:"total_overdue"`
	PendingCount int             `json:"pending_count"`
	OverdueCount int             `json:"overdue_count"`
}

type FeeHistory struct {
	Owner        Owner           `json:"owner"`
	Transactions []*Transaction  `json:"transactions"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
}

type ReconcileReport struct {
	AssignmentID     uuid.UUID       `json:"assignment_id"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	TransactionTotal decimal.Decimal `json:"transaction_total"`
	Balanced         bool            `json:"balanced"`
}

type ReplacePackageResult struct {
	OldPackageID PackageID     `json:"old_package_id"`
	NewPackageID PackageID     `json:"new_package_id"`
	Removed      int           `json:"removed"`
	Created      []*Assignment `json:"created"`
}

type AssignFeesResult struct {
	PackageID   PackageID       `json:"package_id"`
	Assignments []*Assignment   `json:"assignments"`
	Total       decimal.Decimal `json:"total"`
}

type MigrateRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

type MigrationResult struct {
	ApplicationID     uuid.UUID       `json:"application_id"`
	StudentID         uuid.UUID       `json:"student_id"`
	AssignmentsMoved  int             `json:"assignments_moved"`
	TransactionsMoved int             `json:"transactions_moved"`
	AssignedTotal     decimal.Decimal `json:"assigned_total"`
	PaidTotal         decimal.Decimal `json:"paid_total"`
}

type WithdrawResult struct {
	ApplicationID        uuid.UUID `json:"application_id"`
	AssignmentsRemoved   int       `json:"assignments_removed"`
	TransactionsRetained int       `json:"transactions_retained"`
}

type BulkAssignRequest struct {
	StudentIDs []uuid.UUID `json:"student_ids" validate:"required,min=1"`
	Package    PackageSpec `json:"package"`
}

// Receipt is what the payer is told after a successful payment
type Receipt struct {
	Owner           Owner           `json:"owner"`
	TransactionIDs  []uuid.UUID     `json:"transaction_ids"`
	ReferenceNumber string          `json:"reference_number"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	PaidAt          time.Time       `json:"paid_at"`
}

// OverdueNotice is what the payer is told about an overdue assignment
type OverdueNotice struct {
	Owner        Owner           `json:"owner"`
	AssignmentID uuid.UUID       `json:"assignment_id"`
	ChargeRef    string          `json:"charge_ref"`
	DueDate      time.Time       `json:"due_date"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
	Fine         decimal.Decimal `json:"fine"`
	DaysOverdue  int             `json:"days_overdue"`
}

type DeleteFeesResult struct {
	Owner               Owner `json:"owner"`
	AssignmentsRemoved  int   `json:"assignments_removed"`
	TransactionsRemoved int   `json:"transactions_removed"`
}
