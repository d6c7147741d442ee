package payment

import (
	"encoding/json"
	"strings"
)

type airtelPaymentRequest struct {
	Reference  string `json:"reference"`
	Subscriber struct {
		Country  string `json:"country"`
		Currency string `json:"currency"`
		MSISDN   string `json:"msisdn"`
	} `json:"subscriber"`
	Transaction struct {
		Amount   string `json:"amount"`
		Country  string `json:"country"`
		Currency string `json:"currency"`
		ID       string `json:"id"`
	} `json:"transaction"`
}

// airtelResponseStatus is the envelope status every Airtel reply carries
type airtelResponseStatus struct {
	Code    flexString `json:"code"`
	Message string     `json:"message"`
	Success *bool      `json:"success"`
}

func (s airtelResponseStatus) ok() bool {
	if s.Success != nil {
		return *s.Success
	}
	return string(s.Code) == "200"
}

type airtelPaymentResponse struct {
	Data struct {
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status airtelResponseStatus `json:"status"`
}

// airtelTxStatus accepts "status":"TS" as well as "status":{"code":"TS","message":"..."}
type airtelTxStatus struct {
	Code    string
	Message string
}

func (s *airtelTxStatus) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(b, &s.Code)
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.Code, s.Message = obj.Code, obj.Message
	return nil
}

type airtelStatusResponse struct {
	Data struct {
		Transaction struct {
			ID            string         `json:"id"`
			AirtelMoneyID string         `json:"airtel_money_id"`
			Message       string         `json:"message"`
			Status        airtelTxStatus `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status airtelResponseStatus `json:"status"`
}

// airtelCallback is the collection result Airtel posts to the merchant callback URL
type airtelCallback struct {
	Transaction struct {
		ID            string         `json:"id"`
		Message       string         `json:"message"`
		StatusCode    string         `json:"status_code"`
		Status        airtelTxStatus `json:"status"`
		AirtelMoneyID string         `json:"airtel_money_id"`
		Amount        flexString     `json:"amount"`
		MSISDN        string         `json:"msisdn"`
	} `json:"transaction"`
}
