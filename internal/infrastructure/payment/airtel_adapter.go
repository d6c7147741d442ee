package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/retailpos/backend/internal/domain/finance"
)

const (
	airtelTokenPath   = "/auth/oauth2/token"
	airtelPaymentPath = "/merchant/v1/payments/"
	airtelStatusPath  = "/standard/v1/payments/%s"
)

// Airtel transaction status codes
const (
	airtelStatusSuccess  = "TS"
	airtelStatusFailed   = "TF"
	airtelStatusDeclined = "TD"
)

// AirtelConfig contains Airtel Money collection credentials
type AirtelConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Country      string
	Currency     string
	Timeout      time.Duration
}

// Errors for Airtel configuration validation
var (
	ErrAirtelMissingBaseURL     = errors.New("airtel: missing base URL")
	ErrAirtelMissingCredentials = errors.New("airtel: missing client id or secret")
	ErrAirtelMissingMarket      = errors.New("airtel: missing country or currency")
)

// Validate validates the configuration
func (c *AirtelConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrAirtelMissingBaseURL
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrAirtelMissingCredentials
	}
	if c.Country == "" || c.Currency == "" {
		return ErrAirtelMissingMarket
	}
	return nil
}

// AirtelGateway collects payments with Airtel Money USSD push
type AirtelGateway struct {
	config *AirtelConfig
	client *jsonClient
	tokens *tokenCache
}

// NewAirtelGateway creates a new Airtel Money adapter
func NewAirtelGateway(config *AirtelConfig, opts ...Option) (*AirtelGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(config.Timeout, opts)
	g := &AirtelGateway{
		config: config,
		client: &jsonClient{name: "airtel", baseURL: config.BaseURL, httpClient: o.httpClient},
	}
	g.tokens = &tokenCache{now: o.now, fetch: g.fetchToken}
	return g, nil
}

// Method returns the payment method served by this gateway
func (g *AirtelGateway) Method() finance.PaymentMethod {
	return finance.PaymentMethodAirtel
}

// Initiate pushes a payment prompt to the subscriber. Our PAY- reference is
// sent as the transaction id so callbacks and status queries can use it.
func (g *AirtelGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	msisdn := NormalizeKenyanMSISDN(req.PhoneNumber)
	if msisdn == "" {
		return &finance.InitiateResult{Accepted: false, Message: "phone number is required for Airtel Money"}, nil
	}

	body := airtelPaymentRequest{Reference: req.TransactionReference}
	body.Subscriber.Country = g.config.Country
	body.Subscriber.Currency = g.config.Currency
	// Airtel expects the subscriber number without the country code
	body.Subscriber.MSISDN = strings.TrimPrefix(msisdn, "254")
	body.Transaction.Amount = req.Amount.StringFixed(2)
	body.Transaction.Country = g.config.Country
	body.Transaction.Currency = g.config.Currency
	body.Transaction.ID = req.TransactionReference

	raw, err := g.call(ctx, http.MethodPost, airtelPaymentPath, body)
	if err != nil && !errors.Is(err, ErrGatewayRequestFailed) {
		return nil, err
	}

	var resp airtelPaymentResponse
	if decodeErr := decode("airtel", raw, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, decodeErr
	}

	if err != nil || !resp.Status.ok() {
		msg := resp.Status.Message
		if msg == "" {
			msg = "Airtel request failed"
		}
		return &finance.InitiateResult{Accepted: false, Message: msg}, nil
	}

	airtelID := resp.Data.Transaction.ID
	if airtelID == "" {
		airtelID = req.TransactionReference
	}
	return &finance.InitiateResult{
		Accepted: true,
		Metadata: map[finance.MetadataKey]string{finance.MetadataAirtelTransactionID: airtelID},
		Message:  resp.Status.Message,
	}, nil
}

// Verify queries the collection status by our transaction reference
func (g *AirtelGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	if req.TransactionReference == "" {
		return nil, fmt.Errorf("%w: airtel: missing transaction reference", finance.ErrGatewayNotConfigured)
	}

	raw, err := g.call(ctx, http.MethodGet, fmt.Sprintf(airtelStatusPath, url.PathEscape(req.TransactionReference)), nil)
	if err != nil {
		return nil, err
	}

	var resp airtelStatusResponse
	if err := decode("airtel", raw, &resp); err != nil {
		return nil, err
	}

	tx := resp.Data.Transaction
	return &finance.VerifyResult{
		Outcome:           mapAirtelStatus(tx.Status.Code),
		ExternalReference: tx.AirtelMoneyID,
		Message:           firstNonEmpty(tx.Message, tx.Status.Message, resp.Status.Message),
	}, nil
}

// Refund is not offered: Airtel reversals are handled manually by the merchant desk.
func (g *AirtelGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	return nil, finance.ErrRefundUnsupported
}

// ParseCallback reads an Airtel collection callback, which correlates by our
// transaction reference (transaction.id)
func (g *AirtelGateway) ParseCallback(payload []byte) (*finance.CallbackNotification, error) {
	var cb airtelCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: airtel: %v", finance.ErrGatewayInvalidCallback, err)
	}
	tx := cb.Transaction
	code := tx.Status.Code
	if code == "" {
		code = tx.StatusCode
	}
	if tx.ID == "" || code == "" {
		return nil, fmt.Errorf("%w: airtel: missing transaction id or status", finance.ErrGatewayInvalidCallback)
	}

	return &finance.CallbackNotification{
		CorrelationKind:  finance.CorrelationTransactionReference,
		CorrelationValue: tx.ID,
		Outcome:          mapAirtelStatus(code),
		ResultCode:       code,
		ResultMessage:    firstNonEmpty(tx.Message, tx.Status.Message),
		TransactionID:    tx.AirtelMoneyID,
		Amount:           decimalFromFlex(tx.Amount),
		PhoneNumber:      tx.MSISDN,
	}, nil
}

// AcknowledgeCallback renders the reply body Airtel expects
func (g *AirtelGateway) AcknowledgeCallback(accepted bool, message string) []byte {
	status := "success"
	if !accepted {
		status = "error"
	}
	body, _ := json.Marshal(map[string]string{"status": status, "message": message})
	return body
}

func (g *AirtelGateway) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := g.tokens.get(ctx)
		if err != nil {
			return nil, err
		}
		headers := map[string]string{
			"Authorization": bearer(token),
			"X-Country":     g.config.Country,
			"X-Currency":    g.config.Currency,
		}
		raw, _, err := g.client.do(ctx, method, path, headers, body)
		if errors.Is(err, ErrGatewayAuthFailed) && attempt == 0 {
			g.tokens.invalidate()
			continue
		}
		return raw, err
	}
}

func (g *AirtelGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	raw, _, err := g.client.do(ctx, http.MethodPost, airtelTokenPath, nil, map[string]string{
		"client_id":     g.config.ClientID,
		"client_secret": g.config.ClientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", 0, fmt.Errorf("airtel: access token: %w", err)
	}
	var resp oauthTokenResponse
	if err := decode("airtel", raw, &resp); err != nil {
		return "", 0, err
	}
	return resp.AccessToken, resp.ttl(), nil
}

// mapAirtelStatus maps Airtel transaction status codes to payment outcomes.
// TA (ambiguous) and TIP (in progress) stay pending until the next query.
func mapAirtelStatus(code string) finance.Outcome {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case airtelStatusSuccess:
		return finance.OutcomeSuccess
	case airtelStatusFailed, airtelStatusDeclined:
		return finance.OutcomeFailed
	default:
		return finance.OutcomePending
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
