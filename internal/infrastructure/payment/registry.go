package payment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/retailpos/backend/internal/infrastructure/config"
)

// NewRegistryFromConfig builds the gateway registry. Cash is always
// available; mobile money and card adapters are registered when enabled.
func NewRegistryFromConfig(cfg config.GatewaysConfig, logger *zap.Logger, opts ...Option) (*finance.GatewayRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := finance.NewGatewayRegistry(Instrument(NewCashGateway(), logger))

	if cfg.Mpesa.Enabled {
		gw, err := NewMpesaGateway(&MpesaConfig{
			BaseURL:        cfg.Mpesa.MpesaBaseURL(),
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			Shortcode:      cfg.Mpesa.Shortcode,
			Passkey:        cfg.Mpesa.Passkey,
			CallbackURL:    cfg.Mpesa.CallbackURL,
			Timeout:        cfg.Mpesa.Timeout,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("mpesa gateway: %w", err)
		}
		registry.Register(Instrument(gw, logger))
	}

	if cfg.Airtel.Enabled {
		gw, err := NewAirtelGateway(&AirtelConfig{
			BaseURL:      cfg.Airtel.BaseURL,
			ClientID:     cfg.Airtel.ClientID,
			ClientSecret: cfg.Airtel.ClientSecret,
			Country:      cfg.Airtel.Country,
			Currency:     cfg.Airtel.Currency,
			Timeout:      cfg.Airtel.Timeout,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("airtel gateway: %w", err)
		}
		registry.Register(Instrument(gw, logger))
	}

	if cfg.Card.Enabled {
		gw, err := NewCardGateway(&CardConfig{
			BaseURL:     cfg.Card.BaseURL,
			APIKey:      cfg.Card.APIKey,
			Secret:      cfg.Card.Secret,
			Currency:    cfg.Card.Currency,
			CallbackURL: cfg.Card.CallbackURL,
			Timeout:     cfg.Card.Timeout,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("card gateway: %w", err)
		}
		registry.Register(Instrument(gw, logger))
	}

	methods := make([]string, 0, 4)
	for _, m := range registry.Methods() {
		methods = append(methods, m.String())
	}
	logger.Info("Payment gateways registered", zap.Strings("methods", methods))
	return registry, nil
}
