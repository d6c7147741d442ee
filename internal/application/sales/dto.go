package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SaleItemRequest is one product line of a new sale
type SaleItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateSaleRequest represents a till sale. AmountPaid is cash tendered at
// the till; anything above the total is returned as change.
type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	Discount      decimal.Decimal   `json:"discount"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	CustomerName  string            `json:"customer_name" binding:"max=200"`
	CustomerPhone string            `json:"customer_phone" binding:"max=20"`
	Notes         string            `json:"notes" binding:"max=500"`
}

// SaleItemResponse represents a sale line in API responses
type SaleItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Barcode     string          `json:"barcode,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID             uuid.UUID          `json:"id"`
	SaleNumber     string             `json:"sale_number"`
	CashierID      string             `json:"cashier_id"`
	CustomerName   string             `json:"customer_name,omitempty"`
	CustomerPhone  string             `json:"customer_phone,omitempty"`
	Status         string             `json:"status"`
	PaymentStatus  string             `json:"payment_status"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	Discount       decimal.Decimal    `json:"discount"`
	Total          decimal.Decimal    `json:"total"`
	AmountPaid     decimal.Decimal    `json:"amount_paid"`
	AmountRefunded decimal.Decimal    `json:"amount_refunded"`
	Balance        decimal.Decimal    `json:"balance"`
	ChangeAmount   decimal.Decimal    `json:"change_amount"`
	Notes          string             `json:"notes,omitempty"`
	Items          []SaleItemResponse `json:"items"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy    string             `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Version        int                `json:"version"`
}

// ToSaleResponse converts a domain Sale to SaleResponse
func ToSaleResponse(s *sales.Sale) SaleResponse {
	items := make([]SaleItemResponse, len(s.Items))
	for i, item := range s.Items {
		items[i] = SaleItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Barcode:     item.Barcode,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal,
			TaxAmount:   item.TaxAmount,
			Total:       item.Total,
		}
	}
	return SaleResponse{
		ID:             s.ID,
		SaleNumber:     s.SaleNumber,
		CashierID:      s.CashierID,
		CustomerName:   s.Customer.Name,
		CustomerPhone:  s.Customer.Phone,
		Status:         string(s.Status),
		PaymentStatus:  string(s.PaymentStatus),
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		Discount:       s.Discount,
		Total:          s.Total,
		AmountPaid:     s.AmountPaid,
		AmountRefunded: s.AmountRefunded,
		Balance:        s.Balance(),
		ChangeAmount:   s.ChangeAmount,
		Notes:          s.Notes,
		Items:          items,
		CompletedAt:    s.CompletedAt,
		CancelledAt:    s.CancelledAt,
		CancelledBy:    s.CancelledBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	}
}
