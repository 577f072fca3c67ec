package repository

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Concurrent refunds for the same operation serialize on a unique index, not
// on a read-then-insert check. Without it two refunds passing the existence
// check at the same time would both re-credit the grants.
func TestTransactionSchemaEnforcesOneRefundPerOperation(t *testing.T) {
	s, err := schema.Parse(&ledger.Transaction{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	idx, ok := s.ParseIndexes()["idx_ledger_transactions_op_type"]
	require.True(t, ok, "ledger transactions need a composite index on operation id and type")
	assert.Equal(t, "UNIQUE", idx.Class)

	var columns []string
	for _, f := range idx.Fields {
		columns = append(columns, f.DBName)
	}
	assert.ElementsMatch(t, []string{"operation_id", "type"}, columns)
}

func TestRefundErrTreatsDuplicateRowAsAlreadyRefunded(t *testing.T) {
	assert.NoError(t, refundErr(nil))
	assert.NoError(t, refundErr(gorm.ErrDuplicatedKey))
	assert.NoError(t, refundErr(fmt.Errorf("insert refund: %w", gorm.ErrDuplicatedKey)))

	assert.ErrorIs(t, refundErr(ledger.ErrUnknownOperation), ledger.ErrUnknownOperation)
	assert.ErrorIs(t, refundErr(ledger.ErrStoreUnavailable), ledger.ErrStoreUnavailable)
}
