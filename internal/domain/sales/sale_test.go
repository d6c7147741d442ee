package sales

import (
	"testing"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cashier = shared.UserActor("cashier-1")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustItem(t *testing.T, price, rate string, qty int) SaleItem {
	t.Helper()
	item, err := NewSaleItem(uuid.New(), "item", "", d(price), d("0"), d(rate), qty)
	require.NoError(t, err)
	return item
}

func newTestSale(t *testing.T) *Sale {
	t.Helper()
	sale, err := NewSale([]SaleItem{
		mustItem(t, "100", "16", 2),
		mustItem(t, "50", "0", 1),
	}, decimal.Zero, Customer{}, "", cashier)
	require.NoError(t, err)
	return sale
}

func TestNewSale_Totals(t *testing.T) {
	sale := newTestSale(t)

	assert.True(t, d("250").Equal(sale.Subtotal), "subtotal %s", sale.Subtotal)
	assert.True(t, d("32").Equal(sale.TaxAmount), "tax %s", sale.TaxAmount)
	assert.True(t, d("282").Equal(sale.Total), "total %s", sale.Total)
	assert.Equal(t, SaleStatusPending, sale.Status)
	assert.Equal(t, PaymentStatusUnpaid, sale.PaymentStatus)
	assert.Regexp(t, `^SALE-\d{8}-[0-9A-F]{6}$`, sale.SaleNumber)
	for _, item := range sale.Items {
		assert.Equal(t, sale.ID, item.SaleID)
	}
}

func TestNewSaleItem_RoundsPerLine(t *testing.T) {
	item, err := NewSaleItem(uuid.New(), "gum", "", d("0.335"), d("0"), d("16"), 3)
	require.NoError(t, err)
	assert.Equal(t, "1.01", item.Subtotal.StringFixed(2))
	assert.Equal(t, "0.16", item.TaxAmount.StringFixed(2))
	assert.Equal(t, "1.17", item.Total.StringFixed(2))
}

func TestNewSale_Validation(t *testing.T) {
	_, err := NewSale(nil, decimal.Zero, Customer{}, "", cashier)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewSaleItem(uuid.New(), "x", "", d("1"), d("0"), d("0"), 0)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewSale([]SaleItem{mustItem(t, "10", "0", 1)}, d("11"), Customer{}, "", cashier)
	assert.ErrorIs(t, err, shared.ErrValidation)

	sale, err := NewSale([]SaleItem{mustItem(t, "100", "16", 2), mustItem(t, "50", "0", 1)}, d("2"), Customer{}, "", cashier)
	require.NoError(t, err)
	assert.True(t, d("280").Equal(sale.Total))
}

func TestSale_ApplyPayment(t *testing.T) {
	sale := newTestSale(t)

	require.NoError(t, sale.ApplyPayment(d("100"), cashier))
	assert.Equal(t, PaymentStatusPartial, sale.PaymentStatus)
	assert.Equal(t, SaleStatusPending, sale.Status)

	err := sale.ApplyPayment(d("183"), cashier)
	assert.ErrorIs(t, err, shared.ErrOverPayment)
	assert.True(t, d("100").Equal(sale.AmountPaid), "rejected payment must not change amount paid")

	require.NoError(t, sale.ApplyPayment(d("182"), cashier))
	assert.Equal(t, PaymentStatusPaid, sale.PaymentStatus)
	assert.Equal(t, SaleStatusCompleted, sale.Status)
	assert.NotNil(t, sale.CompletedAt)

	var completed int
	for _, e := range sale.GetDomainEvents() {
		if e.EventType() == EventTypeSaleCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	assert.ErrorIs(t, sale.ApplyPayment(d("0.01"), cashier), shared.ErrOverPayment)
	assert.ErrorIs(t, sale.ApplyPayment(d("-1"), cashier), shared.ErrValidation)
}

func TestSale_TenderCash(t *testing.T) {
	sale := newTestSale(t)
	require.NoError(t, sale.TenderCash(d("300"), cashier))

	assert.True(t, d("282").Equal(sale.AmountPaid))
	assert.True(t, d("18").Equal(sale.ChangeAmount))
	assert.Equal(t, PaymentStatusPaid, sale.PaymentStatus)
	assert.Equal(t, SaleStatusCompleted, sale.Status)

	partial := newTestSale(t)
	require.NoError(t, partial.TenderCash(d("82"), cashier))
	assert.Equal(t, PaymentStatusPartial, partial.PaymentStatus)
	assert.True(t, partial.ChangeAmount.IsZero())
}

func TestSale_Cancel(t *testing.T) {
	t.Run("unpaid sale can be cancelled once", func(t *testing.T) {
		sale := newTestSale(t)
		assert.True(t, sale.CanCancel())
		require.NoError(t, sale.Cancel(cashier))
		assert.Equal(t, SaleStatusCancelled, sale.Status)
		assert.Equal(t, "user:cashier-1", sale.CancelledBy)

		assert.ErrorIs(t, sale.Cancel(cashier), shared.ErrInvalidTransition)
		assert.ErrorIs(t, sale.ApplyPayment(d("1"), cashier), shared.ErrInvalidTransition)
	})

	t.Run("partially paid sale can be cancelled", func(t *testing.T) {
		sale := newTestSale(t)
		require.NoError(t, sale.ApplyPayment(d("10"), cashier))
		assert.NoError(t, sale.Cancel(cashier))
	})

	t.Run("paid sale cannot be cancelled", func(t *testing.T) {
		sale := newTestSale(t)
		require.NoError(t, sale.ApplyPayment(sale.Total, cashier))
		assert.False(t, sale.CanCancel())
		assert.ErrorIs(t, sale.Cancel(cashier), shared.ErrInvalidTransition)
		assert.Equal(t, SaleStatusCompleted, sale.Status)
	})

	t.Run("partially refunded sale stays terminal", func(t *testing.T) {
		sale := newTestSale(t)
		require.NoError(t, sale.ApplyPayment(sale.Total, cashier))
		require.NoError(t, sale.ApplyRefund(d("50")))
		assert.False(t, sale.CanCancel())
		assert.ErrorIs(t, sale.Cancel(cashier), shared.ErrInvalidTransition)
	})

	t.Run("fully refunded completed sale can be cancelled", func(t *testing.T) {
		sale := newTestSale(t)
		require.NoError(t, sale.ApplyPayment(sale.Total, cashier))
		require.NoError(t, sale.ApplyRefund(sale.Total))
		assert.Equal(t, PaymentStatusRefunded, sale.PaymentStatus)
		assert.Equal(t, SaleStatusCompleted, sale.Status)

		assert.True(t, sale.CanCancel())
		require.NoError(t, sale.Cancel(cashier))
		assert.Equal(t, SaleStatusCancelled, sale.Status)
	})
}

func TestSale_ApplyRefund(t *testing.T) {
	sale := newTestSale(t)
	require.NoError(t, sale.ApplyPayment(sale.Total, cashier))

	require.NoError(t, sale.ApplyRefund(d("82")))
	assert.Equal(t, PaymentStatusPaid, sale.PaymentStatus)

	assert.ErrorIs(t, sale.ApplyRefund(d("201")), shared.ErrRefundExceedsBalance)

	require.NoError(t, sale.ApplyRefund(d("200")))
	assert.Equal(t, PaymentStatusRefunded, sale.PaymentStatus)
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		paid, refunded, total string
		want                  PaymentStatus
	}{
		{"0", "0", "10", PaymentStatusUnpaid},
		{"5", "0", "10", PaymentStatusPartial},
		{"10", "0", "10", PaymentStatusPaid},
		{"10", "10", "10", PaymentStatusRefunded},
		{"10", "4", "10", PaymentStatusPaid},
		{"0", "0", "0", PaymentStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.paid+"/"+tt.refunded+"/"+tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentStatus(d(tt.paid), d(tt.refunded), d(tt.total)))
		})
	}
}
