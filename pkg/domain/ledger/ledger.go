package ledger

import (
	"errors"
	"time"
)

var (
	ErrQuotaExhausted      = errors.New("anonymous quota exhausted")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnknownOperation    = errors.New("unknown ledger operation")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
)

// QuotaRecord is the per-device anonymous usage counter. FreeUsed only ever
// grows and is bounded by the configured free quota.
type QuotaRecord struct {
	DeviceID  string    `json:"device_id" gorm:"primaryKey"`
	FreeUsed  int       `json:"free_used"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditGrant is one purchased unit of capacity. Amount is immutable;
// Remaining only ever decreases, except through refunds bounded by what the
// grant was actually debited.
type CreditGrant struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	BalanceID string     `json:"balance_id" gorm:"index"`
	Amount    int64      `json:"amount"`
	Remaining int64      `json:"remaining"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}

func (g CreditGrant) ExpiredAt(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionRefund TransactionType = "refund"
)

// Transaction is the append-only ledger row recorded with every debit and
// refund. OperationID carries the idempotency key: the unique index on
// (operation_id, type) means at most one debit and one refund can ever exist
// for an operation, no matter how many writers race.
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	OperationID string          `json:"operation_id" gorm:"uniqueIndex:idx_ledger_transactions_op_type"`
	BalanceID   string          `json:"balance_id" gorm:"index"`
	Type        TransactionType `json:"type" gorm:"uniqueIndex:idx_ledger_transactions_op_type"`
	Amount      int64           `json:"amount"`
	Debits      string          `json:"debits"` // JSON-encoded []GrantDebit
	CreatedAt   time.Time       `json:"created_at"`
}

// GrantDebit records how much of one debit landed on one grant.
type GrantDebit struct {
	GrantID string `json:"grant_id"`
	Amount  int64  `json:"amount"`
}

// PlanDebit selects grants in creation order and splits amount across them.
// Grants must already be filtered to unexpired ones and sorted oldest first.
// Returns ErrInsufficientCredits when the grants cannot cover the amount; no
// partial plan is ever returned.
func PlanDebit(grants []CreditGrant, amount int64) ([]GrantDebit, error) {
	if amount <= 0 {
		return nil, ErrUnknownOperation
	}

	var plan []GrantDebit
	left := amount
	for _, g := range grants {
		if left == 0 {
			break
		}
		if g.Remaining <= 0 {
			continue
		}
		take := g.Remaining
		if take > left {
			take = left
		}
		plan = append(plan, GrantDebit{GrantID: g.ID, Amount: take})
		left -= take
	}
	if left > 0 {
		return nil, ErrInsufficientCredits
	}
	return plan, nil
}
