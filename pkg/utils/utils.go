package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateOnly strips the clock from t, keeping its calendar day in UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalculateDueDate returns the due date for a billing month.
// The day is clamped to the last day of the month, so day 31 in February lands on the 28th/29th.
func CalculateDueDate(year int, month int, day int) time.Time {
	if month < 1 {
		month = 1
	}
	if day < 1 {
		day = 1
	}
	last := DaysInMonth(year, time.Month(month))
	if day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysOverdue counts whole calendar days between the due date and asOf.
// A date that is not yet past due yields 0.
func DaysOverdue(dueDate time.Time, asOf time.Time) int {
	days := int(DateOnly(asOf).Sub(DateOnly(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsDateOverdue checks if a due date is strictly before the day of asOf
func IsDateOverdue(dueDate time.Time, asOf time.Time) bool {
	return DateOnly(dueDate).Before(DateOnly(asOf))
}

// RoundMoney rounds to 2 decimal places for currency
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
