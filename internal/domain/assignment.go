package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/segyhp/fee-ledger/pkg/utils"
)

// AssignmentStatus is the payment progress of an assignment
type AssignmentStatus string

const (
	AssignmentStatusPending AssignmentStatus = "pending"
	AssignmentStatusPartial AssignmentStatus = "partial"
	AssignmentStatusPaid    AssignmentStatus = "paid"
)

// PackageID groups assignments created together from one charge-plan selection.
type PackageID string

// NewPackageID returns a fresh package identifier
func NewPackageID() PackageID {
	return PackageID(uuid.NewString())
}

func (p PackageID) String() string {
	return string(p)
}

// Period is the billing period of an assignment. Month 0 marks a non-recurring charge.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Valid reports whether the month is within 0-12 and the year is set
func (p Period) Valid() bool {
	return p.Month >= 0 && p.Month <= 12 && p.Year > 0
}

func (p Period) Recurring() bool {
	return p.Month > 0
}

// Assignment is a single money obligation owed for one billing period.
type Assignment struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	OwnerKind      OwnerKind        `json:"owner_kind" db:"owner_kind"`
	OwnerID        uuid.UUID        `json:"owner_id" db:"owner_id"`
	ChargeRef      string           `json:"charge_ref" db:"charge_ref"`
	PeriodMonth    int              `json:"period_month" db:"period_month"`
	PeriodYear     int              `json:"period_year" db:"period_year"`
	BaseAmount     decimal.Decimal  `json:"base_amount" db:"base_amount"`
	DueDate        time.Time        `json:"due_date" db:"due_date"`
	DiscountAmount decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	FineAmount     decimal.Decimal  `json:"fine_amount" db:"fine_amount"`
	PaidAmount     decimal.Decimal  `json:"paid_amount" db:"paid_amount"`
	PartialAllowed bool             `json:"partial_allowed" db:"partial_allowed"`
	Provisional    bool             `json:"provisional" db:"provisional"`
	PackageID      *PackageID       `json:"package_id,omitempty" db:"package_id"`
	Status         AssignmentStatus `json:"status" db:"status"`
	DeletedAt      *time.Time       `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Owner returns the tagged owner of the assignment
func (a *Assignment) Owner() Owner {
	return Owner{Kind: a.OwnerKind, ID: a.OwnerID}
}

// SetOwner replaces both owner columns at once
func (a *Assignment) SetOwner(o Owner) {
	a.OwnerKind = o.Kind
	a.OwnerID = o.ID
}

func (a *Assignment) Period() Period {
	return Period{Month: a.PeriodMonth, Year: a.PeriodYear}
}

// FinalAmount is the base amount after discount
func (a *Assignment) FinalAmount() decimal.Decimal {
	return a.BaseAmount.Sub(a.DiscountAmount)
}

// TotalDue is the final amount plus the locked-in fine
func (a *Assignment) TotalDue() decimal.Decimal {
	return a.FinalAmount().Add(a.FineAmount)
}

// Balance is what is still owed; it never goes below zero.
func (a *Assignment) Balance() decimal.Decimal {
	b := a.TotalDue().Sub(a.PaidAmount)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

func (a *Assignment) IsPaid() bool {
	return a.PaidAmount.GreaterThanOrEqual(a.TotalDue())
}

func (a *Assignment) IsPartial() bool {
	return a.PaidAmount.IsPositive() && a.PaidAmount.LessThan(a.TotalDue())
}

// IsOverdue compares calendar days: due today is not overdue yet.
func (a *Assignment) IsOverdue(asOf time.Time) bool {
	return utils.IsDateOverdue(a.DueDate, asOf) && !a.IsPaid()
}

// ComputeStatus derives the status from the persisted amounts
func (a *Assignment) ComputeStatus() AssignmentStatus {
	switch {
	case a.IsPaid():
		return AssignmentStatusPaid
	case a.IsPartial():
		return AssignmentStatusPartial
	default:
		return AssignmentStatusPending
	}
}

func (a *Assignment) IsDeleted() bool {
	return a.DeletedAt != nil
}
