package finance

import (
	"time"

	"github.com/google/uuid"
)

// MetadataKey names a gateway correlation value stored beside a payment.
// Keys are closed: adapters may only write the ones declared here.
type MetadataKey string

const (
	// MetadataCheckoutRequestID is the M-Pesa STK CheckoutRequestID; callbacks are matched on it
	MetadataCheckoutRequestID MetadataKey = "checkout_request_id"
	// MetadataMerchantRequestID is the M-Pesa MerchantRequestID, kept for support queries
	MetadataMerchantRequestID MetadataKey = "merchant_request_id"
	// MetadataAirtelTransactionID is the id Airtel assigned to the collection request
	MetadataAirtelTransactionID MetadataKey = "airtel_transaction_id"
	// MetadataGatewayTransactionID is the card processor's transaction id
	MetadataGatewayTransactionID MetadataKey = "gateway_transaction_id"
	// MetadataPaymentURL is the hosted card page the customer completes payment on
	MetadataPaymentURL MetadataKey = "payment_url"
)

// IsValid returns true for declared keys
func (k MetadataKey) IsValid() bool {
	switch k {
	case MetadataCheckoutRequestID, MetadataMerchantRequestID, MetadataAirtelTransactionID,
		MetadataGatewayTransactionID, MetadataPaymentURL:
		return true
	}
	return false
}

// String returns the string representation of MetadataKey
func (k MetadataKey) String() string {
	return string(k)
}

// PaymentMetadata is a typed side-record of a payment, unique per (payment, key)
type PaymentMetadata struct {
	PaymentID uuid.UUID
	Key       MetadataKey
	Value     string
	CreatedAt time.Time
}
