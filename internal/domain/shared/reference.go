package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reference prefixes and their timestamp layouts
const (
	PrefixPayment    = "PAY"
	PrefixRefund     = "REF"
	PrefixStockCount = "COUNT"
	PrefixSale       = "SALE"

	LayoutSecond = "20060102150405"
	LayoutDay    = "20060102"
)

// NewReference returns "<prefix>-<now formatted with layout>-<6 uppercase hex>".
// The random suffix comes from a fresh UUID so references stay unique across
// concurrent callers within the same second.
func NewReference(prefix, layout string, now time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	return prefix + "-" + now.Format(layout) + "-" + suffix
}

// NewPaymentReference returns PAY-yyyyMMddHHmmss-XXXXXX
func NewPaymentReference(now time.Time) string {
	return NewReference(PrefixPayment, LayoutSecond, now)
}

// NewRefundReference returns REF-yyyyMMddHHmmss-XXXXXX
func NewRefundReference(now time.Time) string {
	return NewReference(PrefixRefund, LayoutSecond, now)
}

// NewStockCountNumber returns COUNT-yyyyMMdd-XXXXXX
func NewStockCountNumber(now time.Time) string {
	return NewReference(PrefixStockCount, LayoutDay, now)
}

// NewSaleNumber returns SALE-yyyyMMdd-XXXXXX
func NewSaleNumber(now time.Time) string {
	return NewReference(PrefixSale, LayoutDay, now)
}
