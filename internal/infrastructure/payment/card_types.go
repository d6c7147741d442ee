package payment

type cardInitiateRequest struct {
	APIKey        string `json:"api_key"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transaction_id"`
	CallbackURL   string `json:"callback_url"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Description   string `json:"description,omitempty"`
	Signature     string `json:"signature"`
}

type cardRefundRequest struct {
	APIKey        string `json:"api_key"`
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason,omitempty"`
	Signature     string `json:"signature"`
}

// cardResponse is the envelope shared by initiate, verify and refund replies
type cardResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransactionID        string `json:"transaction_id"`
		PaymentURL           string `json:"payment_url"`
		GatewayTransactionID string `json:"gateway_transaction_id"`
		RefundID             string `json:"refund_id"`
	} `json:"data"`
}

type cardCallback struct {
	TransactionID        string     `json:"transaction_id"`
	Status               string     `json:"status"`
	GatewayTransactionID string     `json:"gateway_transaction_id"`
	Amount               flexString `json:"amount"`
	Message              string     `json:"message"`
	CustomerPhone        string     `json:"customer_phone"`
	Signature            string     `json:"signature"`
}
