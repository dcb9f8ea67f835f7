package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how money reached the collection desk
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney,
		PaymentMethodCard, PaymentMethodCheque, PaymentMethodOther:
		return true
	}
	return false
}

// Transaction is one payment event. A NULL assignment marks advance credit.
type Transaction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	AssignmentID    uuid.NullUUID   `json:"assignment_id" db:"assignment_id"`
	OwnerKind       OwnerKind       `json:"owner_kind" db:"owner_kind"`
	OwnerID         uuid.UUID       `json:"owner_id" db:"owner_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	DiscountApplied decimal.Decimal `json:"discount_applied" db:"discount_applied"`
	FineApplied     decimal.Decimal `json:"fine_applied" db:"fine_applied"`
	PaymentDate     time.Time       `json:"payment_date" db:"payment_date"`
	Method          PaymentMethod   `json:"method" db:"method"`
	ReferenceNumber string          `json:"reference_number" db:"reference_number"`
	Note            string          `json:"note" db:"note"`
	CollectedBy     string          `json:"collected_by" db:"collected_by"`
	Reversed        bool            `json:"reversed" db:"reversed"`
	ReversedAt      *time.Time      `json:"reversed_at,omitempty" db:"reversed_at"`
	ReversedBy      *string         `json:"reversed_by,omitempty" db:"reversed_by"`
	ReversalReason  *string         `json:"reversal_reason,omitempty" db:"reversal_reason"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

func (t *Transaction) Owner() Owner {
	return Owner{Kind: t.OwnerKind, ID: t.OwnerID}
}

func (t *Transaction) SetOwner(o Owner) {
	t.OwnerKind = o.Kind
	t.OwnerID = o.ID
}

// IsAdvance reports whether the transaction is credit held for future dues
func (t *Transaction) IsAdvance() bool {
	return !t.AssignmentID.Valid
}

// IsActive reports whether the transaction still counts towards paid amounts
func (t *Transaction) IsActive() bool {
	return !t.Reversed && t.DeletedAt == nil
}
