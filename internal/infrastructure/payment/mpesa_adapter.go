package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/retailpos/backend/internal/domain/finance"
)

const (
	mpesaTokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	mpesaSTKPushPath  = "/mpesa/stkpush/v1/processrequest"
	mpesaSTKQueryPath = "/mpesa/stkpushquery/v1/query"
	mpesaTimestamp    = "20060102150405"

	// Daraja result codes with a fixed meaning
	mpesaResultSuccess   = "0"
	mpesaResultCancelled = "1032"
)

// MpesaConfig contains Daraja STK push credentials
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// Errors for M-Pesa configuration validation
var (
	ErrMpesaMissingBaseURL     = errors.New("mpesa: missing base URL")
	ErrMpesaMissingCredentials = errors.New("mpesa: missing consumer key or secret")
	ErrMpesaMissingShortcode   = errors.New("mpesa: missing shortcode or passkey")
	ErrMpesaMissingCallbackURL = errors.New("mpesa: missing callback URL")
)

// Validate validates the configuration
func (c *MpesaConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrMpesaMissingBaseURL
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return ErrMpesaMissingCredentials
	}
	if c.Shortcode == "" || c.Passkey == "" {
		return ErrMpesaMissingShortcode
	}
	if c.CallbackURL == "" {
		return ErrMpesaMissingCallbackURL
	}
	return nil
}

// MpesaGateway collects payments with Lipa na M-Pesa Online (STK push)
type MpesaGateway struct {
	config *MpesaConfig
	client *jsonClient
	tokens *tokenCache
	now    func() time.Time
}

// NewMpesaGateway creates a new M-Pesa adapter
func NewMpesaGateway(config *MpesaConfig, opts ...Option) (*MpesaGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(config.Timeout, opts)
	g := &MpesaGateway{
		config: config,
		client: &jsonClient{name: "mpesa", baseURL: config.BaseURL, httpClient: o.httpClient},
		now:    o.now,
	}
	g.tokens = &tokenCache{now: o.now, fetch: g.fetchToken}
	return g, nil
}

// Method returns the payment method served by this gateway
func (g *MpesaGateway) Method() finance.PaymentMethod {
	return finance.PaymentMethodMpesa
}

// Initiate sends an STK push prompt to the customer's phone
func (g *MpesaGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	if !req.Amount.Equal(req.Amount.Truncate(0)) {
		return &finance.InitiateResult{Accepted: false, Message: "M-Pesa amounts must be whole shillings"}, nil
	}
	phone := NormalizeKenyanMSISDN(req.PhoneNumber)
	if phone == "" {
		return &finance.InitiateResult{Accepted: false, Message: "phone number is required for M-Pesa"}, nil
	}

	timestamp := g.now().Format(mpesaTimestamp)
	accountRef := req.AccountNumber
	if accountRef == "" {
		accountRef = req.TransactionReference
	}
	desc := req.Description
	if desc == "" {
		desc = "Payment " + req.TransactionReference
	}
	body := mpesaSTKPushRequest{
		BusinessShortCode: g.config.Shortcode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.IntPart(),
		PartyA:            phone,
		PartyB:            g.config.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       g.config.CallbackURL,
		AccountReference:  truncate(accountRef, 12),
		TransactionDesc:   truncate(desc, 13),
	}

	raw, err := g.call(ctx, mpesaSTKPushPath, body)
	if err != nil && !errors.Is(err, ErrGatewayRequestFailed) {
		return nil, err
	}

	var resp mpesaSTKPushResponse
	if decodeErr := decode("mpesa", raw, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, decodeErr
	}

	if err != nil || string(resp.ResponseCode) != mpesaResultSuccess {
		msg := resp.ResponseDescription
		if msg == "" {
			msg = resp.ErrorMessage
		}
		if msg == "" {
			msg = "M-Pesa request failed"
		}
		return &finance.InitiateResult{Accepted: false, Message: msg}, nil
	}
	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: mpesa: missing CheckoutRequestID", finance.ErrGatewayInvalidResponse)
	}

	metadata := map[finance.MetadataKey]string{
		finance.MetadataCheckoutRequestID: resp.CheckoutRequestID,
	}
	if resp.MerchantRequestID != "" {
		metadata[finance.MetadataMerchantRequestID] = resp.MerchantRequestID
	}
	return &finance.InitiateResult{
		Accepted: true,
		Metadata: metadata,
		Message:  resp.CustomerMessage,
	}, nil
}

// Verify queries the STK push status by CheckoutRequestID. A query Daraja
// cannot answer yet (errorCode in the body) reports OutcomePending.
func (g *MpesaGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	checkoutID := req.Metadata[finance.MetadataCheckoutRequestID]
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: mpesa: payment has no checkout request id", finance.ErrGatewayNotConfigured)
	}

	timestamp := g.now().Format(mpesaTimestamp)
	raw, err := g.call(ctx, mpesaSTKQueryPath, mpesaSTKQueryRequest{
		BusinessShortCode: g.config.Shortcode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutID,
	})

	var resp mpesaSTKQueryResponse
	if raw == nil || decode("mpesa", raw, &resp) != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: mpesa: unreadable query response", finance.ErrGatewayInvalidResponse)
	}
	if resp.ErrorCode != "" {
		return &finance.VerifyResult{Outcome: finance.OutcomePending, Message: resp.ErrorMessage}, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.ResultCode == "" {
		return &finance.VerifyResult{Outcome: finance.OutcomePending, Message: resp.ResponseDescription}, nil
	}

	return &finance.VerifyResult{
		Outcome: mapMpesaResultCode(string(resp.ResultCode)),
		Message: resp.ResultDesc,
	}, nil
}

// Refund is not offered: M-Pesa reversals go through the B2C API, which
// this deployment does not hold credentials for.
func (g *MpesaGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	return nil, finance.ErrRefundUnsupported
}

// ParseCallback reads a Daraja STK callback body
func (g *MpesaGateway) ParseCallback(payload []byte) (*finance.CallbackNotification, error) {
	var cb mpesaCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: mpesa: %v", finance.ErrGatewayInvalidCallback, err)
	}
	stk := cb.Body.STKCallback
	if stk.CheckoutRequestID == "" || stk.ResultCode == "" {
		return nil, fmt.Errorf("%w: mpesa: missing CheckoutRequestID or ResultCode", finance.ErrGatewayInvalidCallback)
	}

	n := &finance.CallbackNotification{
		CorrelationKind:  finance.CorrelationMetadata,
		CorrelationKey:   finance.MetadataCheckoutRequestID,
		CorrelationValue: stk.CheckoutRequestID,
		Outcome:          mapMpesaResultCode(string(stk.ResultCode)),
		ResultCode:       string(stk.ResultCode),
		ResultMessage:    stk.ResultDesc,
	}
	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			n.TransactionID = string(item.Value)
		case "Amount":
			n.Amount = decimalFromFlex(item.Value)
		case "PhoneNumber":
			n.PhoneNumber = string(item.Value)
		}
	}
	return n, nil
}

// AcknowledgeCallback renders the body Daraja expects in reply
func (g *MpesaGateway) AcknowledgeCallback(accepted bool, message string) []byte {
	code := 0
	if !accepted {
		code = 1
	}
	if message == "" {
		message = "Accepted"
	}
	body, _ := json.Marshal(map[string]any{"ResultCode": code, "ResultDesc": message})
	return body
}

// call posts body with a bearer token, retrying once when the token was rejected
func (g *MpesaGateway) call(ctx context.Context, path string, body any) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := g.tokens.get(ctx)
		if err != nil {
			return nil, err
		}
		raw, _, err := g.client.do(ctx, http.MethodPost, path, map[string]string{"Authorization": bearer(token)}, body)
		if errors.Is(err, ErrGatewayAuthFailed) && attempt == 0 {
			g.tokens.invalidate()
			continue
		}
		return raw, err
	}
}

func (g *MpesaGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(g.config.ConsumerKey + ":" + g.config.ConsumerSecret))
	raw, _, err := g.client.do(ctx, http.MethodGet, mpesaTokenPath, map[string]string{"Authorization": "Basic " + basic}, nil)
	if err != nil {
		return "", 0, fmt.Errorf("mpesa: access token: %w", err)
	}
	var resp oauthTokenResponse
	if err := decode("mpesa", raw, &resp); err != nil {
		return "", 0, err
	}
	return resp.AccessToken, resp.ttl(), nil
}

// password is base64(shortcode + passkey + timestamp)
func (g *MpesaGateway) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.config.Shortcode + g.config.Passkey + timestamp))
}

// mapMpesaResultCode maps Daraja result codes to payment outcomes
func mapMpesaResultCode(code string) finance.Outcome {
	switch strings.TrimSpace(code) {
	case mpesaResultSuccess:
		return finance.OutcomeSuccess
	case mpesaResultCancelled:
		return finance.OutcomeCancelled
	default: // 1037 (no response from phone), 1 (insufficient funds), 2001 (wrong PIN)
		return finance.OutcomeFailed
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
