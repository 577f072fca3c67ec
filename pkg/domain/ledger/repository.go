package ledger

import "context"

//go:generate mockery --name=Repository --dir=. --output=../../../mocks --filename=ledger_repository_mock.go --case=underscore --with-expecter
type Repository interface {
	// Reserve increments the device's free-usage counter if it is still below
	// bound. Returns ErrQuotaExhausted once the bound is reached. The
	// increment is linearizable per device.
	Reserve(ctx context.Context, deviceID string, bound int) error

	// Debit consumes amount credits from the balance, oldest unexpired grants
	// first, inside one transaction. Either every touched grant is decremented
	// and a debit transaction row recorded, or nothing is.
	Debit(ctx context.Context, balanceID, operationID string, amount int64) ([]GrantDebit, error)

	// Refund restores the grants touched by the operation's debit. Invoking it
	// again for the same operation is a no-op.
	Refund(ctx context.Context, operationID string) error

	// Grants returns the balance's grants oldest first, for inspection.
	Grants(ctx context.Context, balanceID string) ([]CreditGrant, error)
}
