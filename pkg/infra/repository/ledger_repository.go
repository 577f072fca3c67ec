package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/ledger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewLedgerRepository(db *gorm.DB, logger *logrus.Logger) ledger.Repository {
	return &ledgerRepository{db: db, logger: logger}
}

// Reserve bumps the device's free-usage counter with a conditional update so
// concurrent reservations can never push the counter past bound.
func (r *ledgerRepository) Reserve(ctx context.Context, deviceID string, bound int) error {
	record := ledger.QuotaRecord{DeviceID: deviceID}
	if err := r.db.WithContext(ctx).
		Where(ledger.QuotaRecord{DeviceID: deviceID}).
		FirstOrCreate(&record).Error; err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}

	result := r.db.WithContext(ctx).
		Model(&ledger.QuotaRecord{}).
		Where("device_id = ? AND free_used < ?", deviceID, bound).
		Update("free_used", gorm.Expr("free_used + 1"))
	if result.Error != nil {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrQuotaExhausted
	}
	return nil
}

func (r *ledgerRepository) Debit(
	ctx context.Context,
	balanceID, operationID string,
	amount int64,
) ([]ledger.GrantDebit, error) {
	var plan []ledger.GrantDebit

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grants []ledger.CreditGrant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("balance_id = ? AND remaining > 0", balanceID).
			Order("created_at ASC").
			Find(&grants).Error; err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}

		now := time.Now()
		usable := make([]ledger.CreditGrant, 0, len(grants))
		for _, g := range grants {
			if !g.ExpiredAt(now) {
				usable = append(usable, g)
			}
		}

		var planErr error
		plan, planErr = ledger.PlanDebit(usable, amount)
		if planErr != nil {
			return planErr
		}

		for _, d := range plan {
			result := tx.Model(&ledger.CreditGrant{}).
				Where("id = ? AND remaining >= ?", d.GrantID, d.Amount).
				Update("remaining", gorm.Expr("remaining - ?", d.Amount))
			if result.Error != nil {
				return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, result.Error)
			}
			if result.RowsAffected == 0 {
				return ledger.ErrInsufficientCredits
			}
		}

		debits, err := json.Marshal(plan)
		if err != nil {
			return err
		}

		row := ledger.Transaction{
			ID:          uuid.New().String(),
			OperationID: operationID,
			BalanceID:   balanceID,
			Type:        ledger.TransactionDebit,
			Amount:      amount,
			Debits:      string(debits),
			CreatedAt:   now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Refund restores the grants touched by the operation's debit. A second call
// for the same operation finds the existing refund row and does nothing; two
// concurrent calls race on the unique (operation_id, type) index and the
// loser rolls back.
func (r *ledgerRepository) Refund(ctx context.Context, operationID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ledger.Transaction
		err := tx.Where("operation_id = ? AND type = ?", operationID, ledger.TransactionRefund).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}

		var debit ledger.Transaction
		err = tx.Where("operation_id = ? AND type = ?", operationID, ledger.TransactionDebit).
			First(&debit).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrUnknownOperation
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}

		var plan []ledger.GrantDebit
		if err := json.Unmarshal([]byte(debit.Debits), &plan); err != nil {
			return fmt.Errorf("corrupt debit record for operation %s: %w", operationID, err)
		}

		for _, d := range plan {
			result := tx.Model(&ledger.CreditGrant{}).
				Where("id = ?", d.GrantID).
				Update("remaining", gorm.Expr("remaining + ?", d.Amount))
			if result.Error != nil {
				return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, result.Error)
			}
		}

		row := ledger.Transaction{
			ID:          uuid.New().String(),
			OperationID: operationID,
			BalanceID:   debit.BalanceID,
			Type:        ledger.TransactionRefund,
			Amount:      debit.Amount,
			Debits:      debit.Debits,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
		}
		return nil
	})
	return refundErr(err)
}

// refundErr collapses a lost refund race into success: the unique index kept
// the second refund row out and its grant re-credits rolled back with the
// transaction, so the operation is already refunded.
func refundErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *ledgerRepository) Grants(ctx context.Context, balanceID string) ([]ledger.CreditGrant, error) {
	var grants []ledger.CreditGrant
	err := r.db.WithContext(ctx).
		Where("balance_id = ?", balanceID).
		Order("created_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	return grants, nil
}
