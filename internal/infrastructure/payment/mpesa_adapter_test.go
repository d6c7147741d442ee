package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpos/backend/internal/domain/finance"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

type darajaStub struct {
	tokens      atomic.Int32
	rejectFirst atomic.Bool
	push        func(w http.ResponseWriter, body mpesaSTKPushRequest)
	query       func(w http.ResponseWriter, body mpesaSTKQueryRequest)
}

func (s *darajaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		n := s.tokens.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc(mpesaSTKPushPath, func(w http.ResponseWriter, r *http.Request) {
		if s.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":"404.001.03","errorMessage":"Invalid Access Token"}`))
			return
		}
		var body mpesaSTKPushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.push(w, body)
	})
	mux.HandleFunc(mpesaSTKQueryPath, func(w http.ResponseWriter, r *http.Request) {
		var body mpesaSTKQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		s.query(w, body)
	})
	return mux
}

func newTestMpesa(t *testing.T, stub *darajaStub) *MpesaGateway {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	gw, err := NewMpesaGateway(&MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://pos.example.com/api/v1/payments/callback/mpesa",
	}, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return gw
}

func TestMpesaConfig_Validate(t *testing.T) {
	valid := MpesaConfig{BaseURL: "https://sandbox.safaricom.co.ke", ConsumerKey: "k", ConsumerSecret: "s", Shortcode: "174379", Passkey: "p", CallbackURL: "https://x"}

	tests := []struct {
		name    string
		mutate  func(c *MpesaConfig)
		wantErr error
	}{
		{"valid", func(c *MpesaConfig) {}, nil},
		{"missing base url", func(c *MpesaConfig) { c.BaseURL = "" }, ErrMpesaMissingBaseURL},
		{"missing secret", func(c *MpesaConfig) { c.ConsumerSecret = "" }, ErrMpesaMissingCredentials},
		{"missing passkey", func(c *MpesaConfig) { c.Passkey = "" }, ErrMpesaMissingShortcode},
		{"missing callback", func(c *MpesaConfig) { c.CallbackURL = "" }, ErrMpesaMissingCallbackURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMpesaGateway_Initiate(t *testing.T) {
	t.Run("accepted push stores checkout ids", func(t *testing.T) {
		stub := &darajaStub{}
		var got mpesaSTKPushRequest
		stub.push = func(w http.ResponseWriter, body mpesaSTKPushRequest) {
			got = body
			_, _ = w.Write([]byte(`{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
		}
		gw := newTestMpesa(t, stub)

		res, err := gw.Initiate(context.Background(), &finance.InitiateRequest{
			TransactionReference: "PAY-20240301-ABCDEF",
			Amount:               decimal.NewFromInt(150),
			PhoneNumber:          "0712 345 678",
			AccountNumber:        "SALE-20240301-000042",
		})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.False(t, res.Settled)
		assert.Equal(t, "ws_CO_191220191020363925", res.Metadata[finance.MetadataCheckoutRequestID])
		assert.Equal(t, "29115-34620561-1", res.Metadata[finance.MetadataMerchantRequestID])

		assert.Equal(t, "254712345678", got.PhoneNumber)
		assert.Equal(t, "254712345678", got.PartyA)
		assert.Equal(t, int64(150), got.Amount)
		assert.Equal(t, "20240301093015", got.Timestamp)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20240301093015")), got.Password)
		assert.Equal(t, "SALE-2024030", got.AccountReference)
		assert.LessOrEqual(t, len(got.TransactionDesc), 13)
	})

	t.Run("fractional amount is refused without a call", func(t *testing.T) {
		stub := &darajaStub{push: func(w http.ResponseWriter, _ mpesaSTKPushRequest) {
			t.Fatal("push must not be sent")
		}}
		gw := newTestMpesa(t, stub)

		res, err := gw.Initiate(context.Background(), &finance.InitiateRequest{
			TransactionReference: "PAY-1",
			Amount:               decimal.RequireFromString("10.50"),
			PhoneNumber:          "0712345678",
		})
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Contains(t, res.Message, "whole shillings")
	})

	t.Run("provider 400 is a refusal carrying the error message", func(t *testing.T) {
		stub := &darajaStub{push: func(w http.ResponseWriter, _ mpesaSTKPushRequest) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
		}}
		gw := newTestMpesa(t, stub)

		res, err := gw.Initiate(context.Background(), &finance.InitiateRequest{
			TransactionReference: "PAY-1", Amount: decimal.NewFromInt(1), PhoneNumber: "0712345678",
		})
		require.NoError(t, err)
		assert.False(t, res.Accepted)
		assert.Equal(t, "Bad Request - Invalid PhoneNumber", res.Message)
	})

	t.Run("provider 5xx is an error", func(t *testing.T) {
		stub := &darajaStub{push: func(w http.ResponseWriter, _ mpesaSTKPushRequest) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}}
		gw := newTestMpesa(t, stub)

		_, err := gw.Initiate(context.Background(), &finance.InitiateRequest{
			TransactionReference: "PAY-1", Amount: decimal.NewFromInt(1), PhoneNumber: "0712345678",
		})
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("rejected token is refreshed once", func(t *testing.T) {
		stub := &darajaStub{push: func(w http.ResponseWriter, _ mpesaSTKPushRequest) {
			_, _ = w.Write([]byte(`{"CheckoutRequestID":"ws_CO_1","ResponseCode":"0"}`))
		}}
		stub.rejectFirst.Store(true)
		gw := newTestMpesa(t, stub)

		res, err := gw.Initiate(context.Background(), &finance.InitiateRequest{
			TransactionReference: "PAY-1", Amount: decimal.NewFromInt(1), PhoneNumber: "0712345678",
		})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, int32(2), stub.tokens.Load())
	})

	t.Run("token is cached between calls", func(t *testing.T) {
		stub := &darajaStub{push: func(w http.ResponseWriter, _ mpesaSTKPushRequest) {
			_, _ = w.Write([]byte(`{"CheckoutRequestID":"ws_CO_1","ResponseCode":"0"}`))
		}}
		gw := newTestMpesa(t, stub)
		req := &finance.InitiateRequest{TransactionReference: "PAY-1", Amount: decimal.NewFromInt(1), PhoneNumber: "0712345678"}

		_, err := gw.Initiate(context.Background(), req)
		require.NoError(t, err)
		_, err = gw.Initiate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int32(1), stub.tokens.Load())
	})
}

func TestMpesaGateway_Verify(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		status  int
		outcome finance.Outcome
	}{
		{"paid", `{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`, 200, finance.OutcomeSuccess},
		{"cancelled by user", `{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`, 200, finance.OutcomeCancelled},
		{"insufficient funds", `{"ResponseCode":"0","ResultCode":1,"ResultDesc":"The balance is insufficient"}`, 200, finance.OutcomeFailed},
		{"still processing", `{"requestId":"1","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`, 500, finance.OutcomePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &darajaStub{query: func(w http.ResponseWriter, body mpesaSTKQueryRequest) {
				assert.Equal(t, "ws_CO_1", body.CheckoutRequestID)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.reply))
			}}
			gw := newTestMpesa(t, stub)

			res, err := gw.Verify(context.Background(), &finance.VerifyRequest{
				TransactionReference: "PAY-1",
				Metadata:             map[finance.MetadataKey]string{finance.MetadataCheckoutRequestID: "ws_CO_1"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
		})
	}

	t.Run("missing checkout id", func(t *testing.T) {
		gw := newTestMpesa(t, &darajaStub{})
		_, err := gw.Verify(context.Background(), &finance.VerifyRequest{TransactionReference: "PAY-1"})
		assert.ErrorIs(t, err, finance.ErrGatewayNotConfigured)
	})
}

func TestMpesaGateway_Refund(t *testing.T) {
	gw := newTestMpesa(t, &darajaStub{})
	_, err := gw.Refund(context.Background(), &finance.RefundRequest{RefundReference: "REF-1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, finance.ErrRefundUnsupported)
}

func TestMpesaGateway_ParseCallback(t *testing.T) {
	gw := newTestMpesa(t, &darajaStub{})

	t.Run("successful payment", func(t *testing.T) {
		payload := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":150.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`)

		n, err := gw.ParseCallback(payload)
		require.NoError(t, err)
		assert.Equal(t, finance.CorrelationMetadata, n.CorrelationKind)
		assert.Equal(t, finance.MetadataCheckoutRequestID, n.CorrelationKey)
		assert.Equal(t, "ws_CO_191220191020363925", n.CorrelationValue)
		assert.Equal(t, finance.OutcomeSuccess, n.Outcome)
		assert.Equal(t, "NLJ7RT61SV", n.TransactionID)
		assert.Equal(t, "254708374149", n.PhoneNumber)
		require.NotNil(t, n.Amount)
		assert.True(t, n.Amount.Equal(decimal.NewFromInt(150)))
	})

	t.Run("cancelled payment has no metadata", func(t *testing.T) {
		payload := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"1","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

		n, err := gw.ParseCallback(payload)
		require.NoError(t, err)
		assert.Equal(t, finance.OutcomeCancelled, n.Outcome)
		assert.Equal(t, "1032", n.ResultCode)
		assert.Nil(t, n.Amount)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := gw.ParseCallback([]byte(`{"Body":`))
		assert.ErrorIs(t, err, finance.ErrGatewayInvalidCallback)
	})

	t.Run("missing checkout id", func(t *testing.T) {
		_, err := gw.ParseCallback([]byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`))
		assert.ErrorIs(t, err, finance.ErrGatewayInvalidCallback)
	})
}

func TestMpesaGateway_AcknowledgeCallback(t *testing.T) {
	gw := newTestMpesa(t, &darajaStub{})

	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, string(gw.AcknowledgeCallback(true, "")))
	assert.JSONEq(t, `{"ResultCode":1,"ResultDesc":"unknown payment"}`, string(gw.AcknowledgeCallback(false, "unknown payment")))
}

func TestNormalizeKenyanMSISDN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0712 345-678", "254712345678"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKenyanMSISDN(tt.in))
		})
	}
}
