package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv/internal/core/id"
	"tpv/internal/core/types"
)

func TestComputeTotals(t *testing.T) {
	taxRate := types.MustMoney("0.16")

	t.Run("tax applies to the discounted base", func(t *testing.T) {
		sale := NewSale(id.New(), PaymentCash, "")
		sale.Items = []Item{
			{Quantity: 2, UnitPrice: types.MustMoney("50.00"), Discount: types.MustMoney("10.00")},
			{Quantity: 1, UnitPrice: types.MustMoney("25.50"), Discount: types.Zero()},
		}

		sale.ComputeTotals(taxRate)

		assert.True(t, sale.Subtotal.Equal(types.MustMoney("125.50")), "subtotal %s", sale.Subtotal)
		assert.True(t, sale.DiscountAmount.Equal(types.MustMoney("10.00")))
		// (125.50 - 10.00) * 0.16 = 18.48
		assert.True(t, sale.TaxAmount.Equal(types.MustMoney("18.48")), "tax %s", sale.TaxAmount)
		assert.True(t, sale.TotalAmount.Equal(types.MustMoney("133.98")), "total %s", sale.TotalAmount)
	})

	t.Run("rounding happens once at two decimals", func(t *testing.T) {
		sale := NewSale(id.New(), PaymentCard, "")
		sale.Items = []Item{
			{Quantity: 3, UnitPrice: types.MustMoney("3.33"), Discount: types.Zero()},
		}

		sale.ComputeTotals(taxRate)

		// 9.99 * 0.16 = 1.5984 -> 1.60
		assert.True(t, sale.TaxAmount.Equal(types.MustMoney("1.60")), "tax %s", sale.TaxAmount)
		assert.True(t, sale.TotalAmount.Equal(types.MustMoney("11.59")), "total %s", sale.TotalAmount)
	})

	t.Run("line subtotal nets out the line discount", func(t *testing.T) {
		sale := NewSale(id.New(), PaymentCash, "")
		sale.Items = []Item{
			{Quantity: 4, UnitPrice: types.MustMoney("12.25"), Discount: types.MustMoney("2.00")},
		}

		sale.ComputeTotals(types.Zero())

		assert.True(t, sale.Items[0].Subtotal.Equal(types.MustMoney("47.00")))
		assert.True(t, sale.TotalAmount.Equal(types.MustMoney("47.00")))
	})
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusDelivered, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSaleValidate(t *testing.T) {
	ctx := context.Background()

	sale := NewSale(id.New(), PaymentCash, "")
	sale.Items = []Item{{Quantity: 1, UnitPrice: types.MustMoney("5.00")}}
	require.NoError(t, sale.Validate(ctx))

	t.Run("requires items", func(t *testing.T) {
		s := NewSale(id.New(), PaymentCash, "")
		require.Error(t, s.Validate(ctx))
	})

	t.Run("rejects unknown tender", func(t *testing.T) {
		s := NewSale(id.New(), PaymentMethod("check"), "")
		s.Items = []Item{{Quantity: 1, UnitPrice: types.MustMoney("5.00")}}
		require.Error(t, s.Validate(ctx))
	})

	t.Run("requires customer", func(t *testing.T) {
		s := NewSale(id.Nil(), PaymentCash, "")
		s.Items = []Item{{Quantity: 1, UnitPrice: types.MustMoney("5.00")}}
		require.Error(t, s.Validate(ctx))
	})
}
