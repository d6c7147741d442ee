package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	cardInitiatePath = "/v1/payments/initiate"
	cardVerifyPath   = "/v1/payments/verify/%s"
	cardRefundPath   = "/v1/refunds/initiate"
)

// CardConfig contains hosted card processor credentials
type CardConfig struct {
	BaseURL     string
	APIKey      string
	Secret      string
	Currency    string
	CallbackURL string
	Timeout     time.Duration
}

// Errors for card configuration validation
var (
	ErrCardMissingBaseURL     = errors.New("card: missing base URL")
	ErrCardMissingCredentials = errors.New("card: missing API key or secret")
	ErrCardInvalidSignature   = errors.New("card: callback signature mismatch")
)

// Validate validates the configuration
func (c *CardConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrCardMissingBaseURL
	}
	if c.APIKey == "" || c.Secret == "" {
		return ErrCardMissingCredentials
	}
	return nil
}

// CardGateway sends customers to a hosted card page and learns the result
// from a signed callback
type CardGateway struct {
	config *CardConfig
	client *jsonClient
}

// NewCardGateway creates a new card processor adapter
func NewCardGateway(config *CardConfig, opts ...Option) (*CardGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Currency == "" {
		config.Currency = "KES"
	}
	o := buildOptions(config.Timeout, opts)
	return &CardGateway{
		config: config,
		client: &jsonClient{name: "card", baseURL: config.BaseURL, httpClient: o.httpClient},
	}, nil
}

// Method returns the payment method served by this gateway
func (g *CardGateway) Method() finance.PaymentMethod {
	return finance.PaymentMethodCard
}

// Initiate registers the payment with the processor and returns the hosted page URL
func (g *CardGateway) Initiate(ctx context.Context, req *finance.InitiateRequest) (*finance.InitiateResult, error) {
	amount := req.Amount.StringFixed(2)
	body := cardInitiateRequest{
		APIKey:        g.config.APIKey,
		Amount:        amount,
		Currency:      g.config.Currency,
		TransactionID: req.TransactionReference,
		CallbackURL:   g.config.CallbackURL,
		CustomerPhone: req.PhoneNumber,
		Description:   req.Description,
		Signature:     g.sign(g.config.APIKey, amount, g.config.Currency, req.TransactionReference),
	}

	raw, _, err := g.client.do(ctx, http.MethodPost, cardInitiatePath, nil, body)
	if err != nil && !errors.Is(err, ErrGatewayRequestFailed) {
		return nil, err
	}
	var resp cardResponse
	if decodeErr := decode("card", raw, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, decodeErr
	}
	if err != nil || resp.Status != "success" {
		return &finance.InitiateResult{Accepted: false, Message: firstNonEmpty(resp.Message, "card gateway request failed")}, nil
	}
	if resp.Data.PaymentURL == "" {
		return nil, fmt.Errorf("%w: card: missing payment_url", finance.ErrGatewayInvalidResponse)
	}

	metadata := map[finance.MetadataKey]string{finance.MetadataPaymentURL: resp.Data.PaymentURL}
	if resp.Data.TransactionID != "" {
		metadata[finance.MetadataGatewayTransactionID] = resp.Data.TransactionID
	}
	return &finance.InitiateResult{Accepted: true, Metadata: metadata, Message: resp.Message}, nil
}

// Verify asks the processor for the payment status by our transaction reference
func (g *CardGateway) Verify(ctx context.Context, req *finance.VerifyRequest) (*finance.VerifyResult, error) {
	path := fmt.Sprintf(cardVerifyPath, url.PathEscape(req.TransactionReference))
	raw, _, err := g.client.do(ctx, http.MethodGet, path, map[string]string{"Authorization": bearer(g.config.APIKey)}, nil)
	if err != nil {
		return nil, err
	}
	var resp cardResponse
	if err := decode("card", raw, &resp); err != nil {
		return nil, err
	}
	return &finance.VerifyResult{
		Outcome:           mapCardStatus(resp.Status),
		ExternalReference: resp.Data.GatewayTransactionID,
		Message:           resp.Message,
	}, nil
}

// Refund returns money through the processor's refund API
func (g *CardGateway) Refund(ctx context.Context, req *finance.RefundRequest) (*finance.RefundResult, error) {
	if req.ExternalReference == "" {
		return nil, fmt.Errorf("%w: card: payment has no gateway transaction id", finance.ErrGatewayNotConfigured)
	}
	amount := req.Amount.StringFixed(2)
	body := cardRefundRequest{
		APIKey:        g.config.APIKey,
		TransactionID: req.ExternalReference,
		Reference:     req.RefundReference,
		Amount:        amount,
		Reason:        req.Reason,
		Signature:     g.sign(g.config.APIKey, req.ExternalReference, amount),
	}

	raw, _, err := g.client.do(ctx, http.MethodPost, cardRefundPath, nil, body)
	if err != nil && !errors.Is(err, ErrGatewayRequestFailed) {
		return nil, err
	}
	var resp cardResponse
	if decodeErr := decode("card", raw, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, decodeErr
	}
	if err != nil || resp.Status != "success" {
		return &finance.RefundResult{Completed: false, Message: firstNonEmpty(resp.Message, "refund declined")}, nil
	}
	return &finance.RefundResult{
		Completed:         true,
		ExternalReference: resp.Data.RefundID,
		Message:           resp.Message,
	}, nil
}

// ParseCallback reads and authenticates a processor callback. The signature
// covers transaction_id, status and amount.
func (g *CardGateway) ParseCallback(payload []byte) (*finance.CallbackNotification, error) {
	var cb cardCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: card: %v", finance.ErrGatewayInvalidCallback, err)
	}
	if cb.TransactionID == "" || cb.Status == "" {
		return nil, fmt.Errorf("%w: card: missing transaction_id or status", finance.ErrGatewayInvalidCallback)
	}
	expected := g.sign(cb.TransactionID, cb.Status, string(cb.Amount))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(cb.Signature))) {
		return nil, fmt.Errorf("%w: %w", finance.ErrGatewayInvalidCallback, ErrCardInvalidSignature)
	}

	return &finance.CallbackNotification{
		CorrelationKind:  finance.CorrelationTransactionReference,
		CorrelationValue: cb.TransactionID,
		Outcome:          mapCardStatus(cb.Status),
		ResultCode:       cb.Status,
		ResultMessage:    cb.Message,
		TransactionID:    cb.GatewayTransactionID,
		Amount:           decimalFromFlex(cb.Amount),
		PhoneNumber:      cb.CustomerPhone,
	}, nil
}

// AcknowledgeCallback renders the reply body the processor expects
func (g *CardGateway) AcknowledgeCallback(accepted bool, message string) []byte {
	status := "received"
	if !accepted {
		status = "rejected"
	}
	body, _ := json.Marshal(map[string]string{"status": status, "message": message})
	return body
}

// sign is hex(HMAC-SHA256(secret, concatenated parts))
func (g *CardGateway) sign(parts ...string) string {
	mac := hmac.New(sha256.New, []byte(g.config.Secret))
	mac.Write([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(mac.Sum(nil))
}

// mapCardStatus maps processor statuses to payment outcomes
func mapCardStatus(status string) finance.Outcome {
	switch strings.ToLower(status) {
	case "success", "successful", "completed":
		return finance.OutcomeSuccess
	case "failed", "declined":
		return finance.OutcomeFailed
	case "cancelled", "canceled":
		return finance.OutcomeCancelled
	default:
		return finance.OutcomePending
	}
}
