package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// MovementResponse represents a ledger entry in API responses
type MovementResponse struct {
	ID              uuid.UUID        `json:"id"`
	ProductID       uuid.UUID        `json:"product_id"`
	MovementType    string           `json:"movement_type"`
	Quantity        int              `json:"quantity"`
	StockBefore     int              `json:"stock_before"`
	StockAfter      int              `json:"stock_after"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedBy       string           `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ToMovementResponse converts a domain movement to a response DTO
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:              m.ID,
		ProductID:       m.ProductID,
		MovementType:    string(m.MovementType),
		Quantity:        m.Quantity,
		StockBefore:     m.StockBefore,
		StockAfter:      m.StockAfter,
		ReferenceNumber: m.ReferenceNumber,
		UnitCost:        m.UnitCost,
		Notes:           m.Notes,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(ms []inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i := range ms {
		out[i] = ToMovementResponse(&ms[i])
	}
	return out
}

// AlertResponse represents a low-stock alert in API responses
type AlertResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	CurrentStock int        `json:"current_stock"`
	Threshold    int        `json:"threshold"`
	Status       string     `json:"status"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToAlertResponse converts a domain alert to a response DTO
func ToAlertResponse(a *inventory.StockAlert) AlertResponse {
	return AlertResponse{
		ID:           a.ID,
		ProductID:    a.ProductID,
		CurrentStock: a.CurrentStock,
		Threshold:    a.Threshold,
		Status:       string(a.Status),
		ResolvedBy:   a.ResolvedBy,
		ResolvedAt:   a.ResolvedAt,
		CreatedAt:    a.CreatedAt,
	}
}

// StockCountItemResponse represents a count line in API responses
type StockCountItemResponse struct {
	ID               uuid.UUID `json:"id"`
	ProductID        uuid.UUID `json:"product_id"`
	SystemQuantity   int       `json:"system_quantity"`
	PhysicalQuantity int       `json:"physical_quantity"`
	Variance         int       `json:"variance"`
	Notes            string    `json:"notes,omitempty"`
}

// StockCountResponse represents a count in API responses
type StockCountResponse struct {
	ID          uuid.UUID                `json:"id"`
	CountNumber string                   `json:"count_number"`
	Description string                   `json:"description,omitempty"`
	Status      string                   `json:"status"`
	StartedBy   string                   `json:"started_by"`
	CompletedBy string                   `json:"completed_by,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	Items       []StockCountItemResponse `json:"items"`
	CreatedAt   time.Time                `json:"created_at"`
	Version     int                      `json:"version"`
}

// ToStockCountResponse converts a domain count to a response DTO
func ToStockCountResponse(c *inventory.StockCount) StockCountResponse {
	items := make([]StockCountItemResponse, len(c.Items))
	for i, item := range c.Items {
		items[i] = StockCountItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			SystemQuantity:   item.SystemQuantity,
			PhysicalQuantity: item.PhysicalQuantity,
			Variance:         item.Variance,
			Notes:            item.Notes,
		}
	}
	return StockCountResponse{
		ID:          c.ID,
		CountNumber: c.CountNumber,
		Description: c.Description,
		Status:      string(c.Status),
		StartedBy:   c.StartedBy,
		CompletedBy: c.CompletedBy,
		CompletedAt: c.CompletedAt,
		Notes:       c.Notes,
		Items:       items,
		CreatedAt:   c.CreatedAt,
		Version:     c.Version,
	}
}

// RecordMovementRequest is a manual stock movement (receiving, damage, ...)
type RecordMovementRequest struct {
	ProductID       uuid.UUID        `json:"product_id" binding:"required"`
	MovementType    string           `json:"movement_type" binding:"required,oneof=purchase adjustment return damage transfer"`
	Quantity        int              `json:"quantity" binding:"required"`
	ReferenceNumber string           `json:"reference_number" binding:"max=100"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	Notes           string           `json:"notes" binding:"max=500"`
}

// StartCountRequest starts a physical count
type StartCountRequest struct {
	Description string `json:"description" binding:"max=500"`
}

// AddCountItemRequest records the physical quantity for one product
type AddCountItemRequest struct {
	ProductID        uuid.UUID `json:"product_id" binding:"required"`
	PhysicalQuantity *int      `json:"physical_quantity" binding:"required,min=0"`
	Notes            string    `json:"notes" binding:"max=500"`
}

// CancelCountRequest cancels a count
type CancelCountRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// LedgerCheckResponse reports whether a product's stock matches its ledger
type LedgerCheckResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Stock        int       `json:"stock"`
	LedgerSum    int64     `json:"ledger_sum"`
	IsConsistent bool      `json:"is_consistent"`
}
