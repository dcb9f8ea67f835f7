package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newAssignment(base, discount, fine, paid int64) *Assignment {
	return &Assignment{
		ID:             uuid.New(),
		BaseAmount:     decimal.NewFromInt(base),
		DiscountAmount: decimal.NewFromInt(discount),
		FineAmount:     decimal.NewFromInt(fine),
		PaidAmount:     decimal.NewFromInt(paid),
		DueDate:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssignment_DerivedAmounts(t *testing.T) {
	a := newAssignment(5000, 500, 100, 1000)

	assert.True(t, a.FinalAmount().Equal(decimal.NewFromInt(4500)))
	assert.True(t, a.TotalDue().Equal(decimal.NewFromInt(4600)))
	assert.True(t, a.Balance().Equal(decimal.NewFromInt(3600)))
	assert.True(t, a.IsPartial())
	assert.False(t, a.IsPaid())
}

func TestAssignment_ComputeStatus(t *testing.T) {
	tests := []struct {
		name     string
		paid     int64
		expected AssignmentStatus
	}{
		{"nothing paid", 0, AssignmentStatusPending},
		{"some paid", 2000, AssignmentStatusPartial},
		{"exactly paid", 5000, AssignmentStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssignment(5000, 0, 0, tt.paid)
			assert.Equal(t, tt.expected, a.ComputeStatus())
		})
	}
}

func TestAssignment_IsOverdue(t *testing.T) {
	a := newAssignment(1000, 0, 0, 0)

	assert.False(t, a.IsOverdue(a.DueDate.Add(20*time.Hour)), "due today is not overdue")
	assert.True(t, a.IsOverdue(a.DueDate.AddDate(0, 0, 1)))

	a.PaidAmount = decimal.NewFromInt(1000)
	assert.False(t, a.IsOverdue(a.DueDate.AddDate(0, 0, 30)), "a settled fee is never overdue")
}

func TestAssignment_OwnerRoundTrip(t *testing.T) {
	a := newAssignment(1, 0, 0, 0)
	owner := ApplicationOwner(uuid.New())

	a.SetOwner(owner)

	assert.Equal(t, owner, a.Owner())
	assert.True(t, a.Owner().Valid())
	assert.False(t, Owner{}.Valid())
	assert.True(t, Owner{}.IsZero())
}

func TestParseOwnerKind(t *testing.T) {
	k, err := ParseOwnerKind("student")
	assert.NoError(t, err)
	assert.Equal(t, OwnerStudent, k)

	_, err = ParseOwnerKind("guardian")
	assert.Error(t, err)
}
