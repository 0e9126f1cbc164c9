package ledger_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain/ledger"
)

func testMovement() *ledger.Movement {
	return &ledger.Movement{
		ID:                 id.New(),
		ProductID:          id.New(),
		Type:               ledger.MovementAdjustment,
		Quantity:           3,
		Reason:             ledger.ReasonManual,
		PreviousStock:      10,
		NewStock:           7,
		ReservedAtMovement: 0,
		UnitCostAtMovement: types.MustMoney("4.50"),
		Note:               "cycle count",
		CreatedBy:          "cashier-1",
		CreatedAt:          time.Now().UTC(),
	}
}

// The reference columns are nullable: a manual adjustment carries no
// originating document, and the insert must pass NULL for both rather
// than rely on a column default.
func TestMovementRowWithoutReference(t *testing.T) {
	m := testMovement()
	m.SetReference(ledger.Reference{})

	row := movementRow(m)
	require.Len(t, row, len(movementColumns))

	assert.Equal(t, "reference_kind", movementColumns[9])
	assert.Equal(t, "reference_id", movementColumns[10])
	assert.Nil(t, m.ReferenceKind)
	assert.Nil(t, m.ReferenceID)
	assert.Equal(t, (*ledger.ReferenceKind)(nil), row[9])
	assert.Equal(t, (*id.ID)(nil), row[10])
}

func TestMovementRowWithReference(t *testing.T) {
	m := testMovement()
	orderID := id.New()
	m.SetReference(ledger.PurchaseOrderRef(orderID))

	row := movementRow(m)
	require.Len(t, row, len(movementColumns))

	kind, ok := row[9].(*ledger.ReferenceKind)
	require.True(t, ok)
	require.NotNil(t, kind)
	assert.Equal(t, ledger.RefPurchaseOrder, *kind)

	refID, ok := row[10].(*id.ID)
	require.True(t, ok)
	require.NotNil(t, refID)
	assert.Equal(t, orderID, *refID)
}
