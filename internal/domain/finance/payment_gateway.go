package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Gateway adapter errors
var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
	ErrGatewayInvalidCallback = errors.New("payment: invalid callback payload")
	ErrRefundUnsupported      = errors.New("payment: gateway does not support refunds")
)

// InitiateRequest asks a gateway to start collecting a payment
type InitiateRequest struct {
	TransactionReference string
	Amount               decimal.Decimal
	PhoneNumber          string
	AccountNumber        string
	Description          string
}

// InitiateResult is the gateway's answer to InitiateRequest.
// Accepted=false means the gateway refused the request; Settled=true means
// the money is already collected (no callback will follow).
type InitiateResult struct {
	Accepted          bool
	Settled           bool
	ExternalReference string
	Metadata          map[MetadataKey]string
	Message           string
}

// VerifyRequest asks a gateway for the current status of a payment
type VerifyRequest struct {
	TransactionReference string
	ExternalReference    string
	Metadata             map[MetadataKey]string
}

// VerifyResult reports the gateway's view of a payment. OutcomePending
// leaves the payment untouched.
type VerifyResult struct {
	Outcome           Outcome
	ExternalReference string
	Message           string
}

// RefundRequest asks a gateway to return money on a settled payment
type RefundRequest struct {
	RefundReference      string
	TransactionReference string
	ExternalReference    string
	Amount               decimal.Decimal
	Reason               string
	PhoneNumber          string
}

// RefundResult reports whether the gateway returned the money
type RefundResult struct {
	Completed         bool
	ExternalReference string
	Message           string
}

// PaymentGateway is the port every payment method adapter implements.
// Implementations live in the infrastructure layer and never touch storage.
type PaymentGateway interface {
	// Method returns the payment method served by this gateway
	Method() PaymentMethod

	// Initiate starts collection for a payment
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error)

	// Verify queries the current outcome of a payment
	Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error)

	// Refund returns money for a settled payment; ErrRefundUnsupported when
	// the provider has no refund API
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
}

// CallbackParser is implemented by gateways that push asynchronous results
type CallbackParser interface {
	// ParseCallback reads a raw notification body
	ParseCallback(payload []byte) (*CallbackNotification, error)

	// AcknowledgeCallback renders the body the provider expects in reply
	AcknowledgeCallback(accepted bool, message string) []byte
}

// GatewayRegistry maps each payment method to its adapter
type GatewayRegistry struct {
	mu       sync.RWMutex
	gateways map[PaymentMethod]PaymentGateway
}

// NewGatewayRegistry creates a registry holding the given gateways
func NewGatewayRegistry(gateways ...PaymentGateway) *GatewayRegistry {
	r := &GatewayRegistry{gateways: make(map[PaymentMethod]PaymentGateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds or replaces the adapter for its method
func (r *GatewayRegistry) Register(g PaymentGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Method()] = g
}

// Get returns the adapter for method
func (r *GatewayRegistry) Get(method PaymentMethod) (PaymentGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[method]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeGatewayUnsupported,
			fmt.Sprintf("Payment method %q is not enabled", method))
	}
	return g, nil
}

// CallbackParser returns the callback parser for method, if the gateway has one
func (r *GatewayRegistry) CallbackParser(method PaymentMethod) (CallbackParser, error) {
	g, err := r.Get(method)
	if err != nil {
		return nil, err
	}
	p, ok := g.(CallbackParser)
	if !ok {
		return nil, shared.NewDomainError(shared.CodeGatewayUnsupported,
			fmt.Sprintf("Payment method %q does not accept callbacks", method))
	}
	return p, nil
}

// Methods lists the registered methods in stable order
func (r *GatewayRegistry) Methods() []PaymentMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PaymentMethod, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
