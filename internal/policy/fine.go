// Package policy evaluates catalog fine and discount rules against assignments.
// Everything here is pure: no store access, no clock reads.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/segyhp/fee-ledger/internal/domain"
	customError "github.com/segyhp/fee-ledger/pkg/errors"
	"github.com/segyhp/fee-ledger/pkg/utils"
)

var hundred = decimal.NewFromInt(100)

// EvaluateFine returns the fine payable on an assignment as of the given date.
// A fine already persisted on the assignment is returned unchanged: once locked in it
// must not grow while a balance is outstanding.
func EvaluateFine(a *domain.Assignment, charge *domain.Charge, asOf time.Time) decimal.Decimal {
	if a.FineAmount.IsPositive() {
		return a.FineAmount
	}
	if !a.IsOverdue(asOf) || charge == nil {
		return decimal.Zero
	}

	switch charge.FinePolicy {
	case domain.FinePolicyFixed:
		return utils.RoundMoney(charge.FineAmount)
	case domain.FinePolicyPercentage:
		return utils.RoundMoney(a.BaseAmount.Mul(charge.FinePercentage).Div(hundred))
	case domain.FinePolicyDaily:
		// The catalog accepts this value but no accrual rule exists for it yet.
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// DaysOverdue is zero for assignments that are settled or not yet past due
func DaysOverdue(a *domain.Assignment, asOf time.Time) int {
	if !a.IsOverdue(asOf) {
		return 0
	}
	return utils.DaysOverdue(a.DueDate, asOf)
}

// ValidateDiscount checks an incremental discount against the catalog and the assignment.
func ValidateDiscount(charge *domain.Charge, a *domain.Assignment, discountApplied decimal.Decimal) error {
	if discountApplied.IsNegative() {
		return customError.WrapValidation("discount cannot be negative")
	}
	if discountApplied.IsZero() {
		return nil
	}
	if charge == nil || !charge.DiscountEligible {
		return customError.WrapValidation(fmt.Sprintf("charge %s is not eligible for discounts", a.ChargeRef))
	}
	if a.DiscountAmount.Add(discountApplied).GreaterThan(a.BaseAmount) {
		return customError.WrapValidation(fmt.Sprintf("discount %s exceeds remaining amount %s",
			discountApplied.StringFixed(2), a.FinalAmount().StringFixed(2)))
	}
	return nil
}

// ExpandPeriods turns a charge frequency into the billing periods of one year.
// Explicit months override the frequency defaults for recurring charges.
func ExpandPeriods(freq domain.Frequency, months []int, year int) []domain.Period {
	switch freq {
	case domain.FrequencyMonthly, domain.FrequencyQuarterly:
		selected := months
		if len(selected) == 0 {
			selected = defaultMonths(freq)
		}
		selected = uniqueSorted(selected)

		periods := make([]domain.Period, 0, len(selected))
		for _, m := range selected {
			periods = append(periods, domain.Period{Month: m, Year: year})
		}
		return periods
	default:
		return []domain.Period{{Month: 0, Year: year}}
	}
}

func defaultMonths(freq domain.Frequency) []int {
	if freq == domain.FrequencyQuarterly {
		return []int{1, 4, 7, 10}
	}
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

func uniqueSorted(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, m := range in {
		if m < 1 || m > 12 || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}
