package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/retailpos/backend/internal/infrastructure/config"
)

func TestCashGateway(t *testing.T) {
	gw := NewCashGateway()
	ctx := context.Background()

	res, err := gw.Initiate(ctx, &finance.InitiateRequest{TransactionReference: "PAY-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Settled)
	assert.Equal(t, "CASH-PAY-1", res.ExternalReference)

	v, err := gw.Verify(ctx, &finance.VerifyRequest{TransactionReference: "PAY-1"})
	require.NoError(t, err)
	assert.Equal(t, finance.OutcomeSuccess, v.Outcome)

	r, err := gw.Refund(ctx, &finance.RefundRequest{RefundReference: "REF-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.True(t, r.Completed)
	assert.Equal(t, "CASH-REF-1", r.ExternalReference)
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("cash only by default", func(t *testing.T) {
		reg, err := NewRegistryFromConfig(config.GatewaysConfig{}, nil)
		require.NoError(t, err)
		assert.Equal(t, []finance.PaymentMethod{finance.PaymentMethodCash}, reg.Methods())

		_, err = reg.Get(finance.PaymentMethodMpesa)
		assert.ErrorIs(t, err, shared.ErrGatewayUnsupported)
	})

	t.Run("enabled gateways keep callback parsing", func(t *testing.T) {
		cfg := config.GatewaysConfig{
			Mpesa: config.MpesaConfig{
				Enabled: true, Environment: "sandbox", ConsumerKey: "k", ConsumerSecret: "s",
				Shortcode: "174379", Passkey: "p", CallbackURL: "https://pos.example.com/cb/mpesa", Timeout: 5 * time.Second,
			},
			Airtel: config.AirtelConfig{
				Enabled: true, BaseURL: "https://openapiuat.airtel.africa", ClientID: "c", ClientSecret: "s",
				Country: "KE", Currency: "KES",
			},
			Card: config.CardConfig{
				Enabled: true, BaseURL: "https://card.example.com", APIKey: "pk", Secret: "sk",
			},
		}
		reg, err := NewRegistryFromConfig(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, reg.Methods(), 4)

		for _, m := range []finance.PaymentMethod{finance.PaymentMethodMpesa, finance.PaymentMethodAirtel, finance.PaymentMethodCard} {
			_, err := reg.CallbackParser(m)
			assert.NoError(t, err, m.String())
		}
		_, err = reg.CallbackParser(finance.PaymentMethodCash)
		assert.Error(t, err)
	})

	t.Run("enabled gateway with missing credentials fails", func(t *testing.T) {
		cfg := config.GatewaysConfig{Card: config.CardConfig{Enabled: true, BaseURL: "https://card.example.com"}}
		_, err := NewRegistryFromConfig(cfg, nil)
		assert.ErrorIs(t, err, ErrCardMissingCredentials)
	})
}

func TestInstrument_LogsRefusal(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gw := Instrument(refusingGateway{}, zap.New(core))

	res, err := gw.Initiate(context.Background(), &finance.InitiateRequest{TransactionReference: "PAY-9"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	entries := logs.FilterMessage("Gateway refused payment").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "PAY-9", entries[0].ContextMap()["payment_ref"])
	assert.Equal(t, "card", entries[0].ContextMap()["gateway"])

	_, isParser := gw.(finance.CallbackParser)
	assert.False(t, isParser)
}

type refusingGateway struct{ CashGateway }

func (refusingGateway) Method() finance.PaymentMethod { return finance.PaymentMethodCard }

func (refusingGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	return &finance.InitiateResult{Accepted: false, Message: "declined"}, nil
}
