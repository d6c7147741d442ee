package finance

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewPaymentCallback(t *testing.T) {
	t.Run("parse failure is stored processed and unsuccessful", func(t *testing.T) {
		cb := NewPaymentCallback(PaymentMethodMpesa, []byte("{not json"), nil, errors.New("invalid character"))
		assert.True(t, cb.Processed)
		assert.False(t, cb.Success)
		assert.Equal(t, CorrelationNone, cb.CorrelationKind)
		assert.Equal(t, "{not json", cb.RawPayload)
		assert.Equal(t, "invalid character", cb.ErrorMessage)
	})

	t.Run("parsed callback awaits processing", func(t *testing.T) {
		cb := NewPaymentCallback(PaymentMethodMpesa, []byte(`{}`), &CallbackNotification{
			CorrelationKind:  CorrelationMetadata,
			CorrelationKey:   MetadataCheckoutRequestID,
			CorrelationValue: "ws_CO_1",
			Outcome:          OutcomeSuccess,
			ResultCode:       "0",
		}, nil)
		assert.False(t, cb.Processed)
		assert.Equal(t, MetadataCheckoutRequestID, cb.CorrelationKey)

		cb.RecordAttempt("db down")
		assert.Equal(t, 1, cb.Attempts)

		pid := uuid.New()
		cb.MarkMatched(pid, true, "")
		assert.True(t, cb.Processed)
		assert.True(t, cb.Success)
		assert.Equal(t, pid, *cb.PaymentID)
	})

	t.Run("unmatched", func(t *testing.T) {
		cb := NewPaymentCallback(PaymentMethodAirtel, []byte(`{}`), &CallbackNotification{CorrelationKind: CorrelationTransactionReference}, nil)
		cb.MarkUnmatched()
		assert.True(t, cb.Processed)
		assert.False(t, cb.Success)
		assert.Nil(t, cb.PaymentID)
	})
}
