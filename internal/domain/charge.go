package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinePolicy selects how an overdue penalty is computed for a charge
type FinePolicy string

const (
	FinePolicyNone       FinePolicy = "none"
	FinePolicyFixed      FinePolicy = "fixed"
	FinePolicyPercentage FinePolicy = "percentage"
	FinePolicyDaily      FinePolicy = "daily"
)

// Frequency controls how a plan item expands into billing periods
type Frequency string

const (
	FrequencyOnce      Frequency = "once"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// Charge is a catalog entry: a fee type paired with its policy. Read-only to the ledger.
type Charge struct {
	Ref              string          `json:"ref" db:"ref"`
	Name             string          `json:"name" db:"name"`
	BaseAmount       decimal.Decimal `json:"base_amount" db:"base_amount"`
	Frequency        Frequency       `json:"frequency" db:"frequency"`
	FinePolicy       FinePolicy      `json:"fine_policy" db:"fine_policy"`
	FineAmount       decimal.Decimal `json:"fine_amount" db:"fine_amount"`
	FinePercentage   decimal.Decimal `json:"fine_percentage" db:"fine_percentage"`
	DiscountEligible bool            `json:"discount_eligible" db:"discount_eligible"`
}

// PackageSpec is a charge-plan selection to expand into assignments.
type PackageSpec struct {
	PackageID *PackageID `json:"package_id,omitempty"`
	Year      int        `json:"year" validate:"required,gte=2000,lte=2100"`
	DueDay    int        `json:"due_day" validate:"omitempty,gte=1,lte=31"`
	Items     []PlanItem `json:"items" validate:"required,min=1,dive"`
}

// PlanItem selects one charge inside a package.
type PlanItem struct {
	ChargeRef      string           `json:"charge_ref" validate:"required"`
	Months         []int            `json:"months,omitempty" validate:"omitempty,dive,gte=1,lte=12"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	BaseAmount     *decimal.Decimal `json:"base_amount,omitempty"`
	Discount       decimal.Decimal  `json:"discount"`
	PartialAllowed bool             `json:"partial_allowed"`
}

// Party is what the directory knows about a student or applicant
type Party struct {
	Owner       Owner  `json:"owner"`
	Exists      bool   `json:"exists"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
