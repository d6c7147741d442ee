package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/backend/internal/domain/finance"
)

// Transport errors shared by the HTTP adapters
var (
	ErrGatewayUnavailable   = errors.New("payment: gateway unavailable")
	ErrGatewayRequestFailed = errors.New("payment: gateway request failed")
	ErrGatewayAuthFailed    = errors.New("payment: gateway authentication failed")
)

const defaultGatewayTimeout = 30 * time.Second

// Option customises an adapter
type Option func(*adapterOptions)

type adapterOptions struct {
	httpClient *http.Client
	now        func() time.Time
}

// WithHTTPClient replaces the adapter's HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *adapterOptions) { o.httpClient = c }
}

// WithClock replaces time.Now, used for Daraja timestamps and token expiry
func WithClock(now func() time.Time) Option {
	return func(o *adapterOptions) { o.now = now }
}

func buildOptions(timeout time.Duration, opts []Option) adapterOptions {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	o := adapterOptions{
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// jsonClient performs JSON requests against one provider
type jsonClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// do sends body (if any) as JSON and returns the raw response. Responses
// with status >= 500 are transport failures; 4xx bodies are returned
// together with ErrGatewayRequestFailed so callers can read the provider's
// error description.
func (c *jsonClient) do(ctx context.Context, method, path string, headers map[string]string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: failed to marshal request: %w", c.name, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to create request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s: failed to read response: %w", c.name, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return respBody, resp.StatusCode, fmt.Errorf("%w: %s: HTTP %d", ErrGatewayUnavailable, c.name, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return respBody, resp.StatusCode, fmt.Errorf("%w: %s: HTTP %d", ErrGatewayAuthFailed, c.name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return respBody, resp.StatusCode, fmt.Errorf("%w: %s: HTTP %d", ErrGatewayRequestFailed, c.name, resp.StatusCode)
	}
	return respBody, resp.StatusCode, nil
}

// decode unmarshals a provider response, wrapping ErrGatewayInvalidResponse
func decode(name string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("%w: %s: %v (%q)", finance.ErrGatewayInvalidResponse, name, err, snippet)
	}
	return nil
}

// oauthTokenResponse is the client-credentials reply of both mobile money providers
type oauthTokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   flexString `json:"expires_in"`
}

func (r oauthTokenResponse) ttl() time.Duration {
	secs := decimalFromFlex(r.ExpiresIn)
	if secs == nil {
		return 0
	}
	return time.Duration(secs.IntPart()) * time.Second
}

// tokenCache holds one OAuth bearer token and refreshes it shortly before expiry
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
	fetch   func(ctx context.Context) (string, time.Duration, error)
}

func (t *tokenCache) get(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expires) {
		return t.token, nil
	}
	token, ttl, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGatewayAuthFailed)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	t.token = token
	// refresh a minute early so in-flight requests never carry an expired token
	t.expires = t.now().Add(ttl - time.Minute)
	return token, nil
}

// invalidate drops the cached token after the provider rejected it
func (t *tokenCache) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

// NormalizeKenyanMSISDN converts 07XXXXXXXX, +2547XXXXXXXX or 7XXXXXXXX to 2547XXXXXXXX
func NormalizeKenyanMSISDN(phone string) string {
	p := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(phone))
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "254"):
		return p
	case strings.HasPrefix(p, "0"):
		return "254" + p[1:]
	default:
		return "254" + p
	}
}

// flexString accepts a JSON string or number, the way providers mix them
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

// decimalFromFlex parses an amount that may have arrived as string or number
func decimalFromFlex(f flexString) *decimal.Decimal {
	if f == "" {
		return nil
	}
	d, err := decimal.NewFromString(string(f))
	if err != nil {
		return nil
	}
	return &d
}

// bearer formats an Authorization header value
func bearer(token string) string {
	return "Bearer " + token
}
