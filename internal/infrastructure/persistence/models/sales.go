package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate root.
type SaleModel struct {
	AggregateModel
	SaleNumber     string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	CashierID      string              `gorm:"type:varchar(100);not null;index"`
	CustomerName   string              `gorm:"type:varchar(200)"`
	CustomerPhone  string              `gorm:"type:varchar(20)"`
	Status         sales.SaleStatus    `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentStatus  sales.PaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid';index"`
	Subtotal       decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	TaxAmount      decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Discount       decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Total          decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	AmountPaid     decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	AmountRefunded decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	ChangeAmount   decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Notes          string              `gorm:"type:text"`
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CancelledBy    string `gorm:"type:varchar(100)"`
	// Associations
	Items []SaleItemModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale.
func (m *SaleModel) ToDomain() *sales.Sale {
	sale := &sales.Sale{
		BaseAggregateRoot: m.ToAggregateRoot(),
		SaleNumber:        m.SaleNumber,
		CashierID:         m.CashierID,
		Customer:          sales.Customer{Name: m.CustomerName, Phone: m.CustomerPhone},
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		Subtotal:          m.Subtotal,
		TaxAmount:         m.TaxAmount,
		Discount:          m.Discount,
		Total:             m.Total,
		AmountPaid:        m.AmountPaid,
		AmountRefunded:    m.AmountRefunded,
		ChangeAmount:      m.ChangeAmount,
		Notes:             m.Notes,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		CancelledBy:       m.CancelledBy,
		Items:             make([]sales.SaleItem, len(m.Items)),
	}
	for i, item := range m.Items {
		sale.Items[i] = item.ToDomain()
	}
	return sale
}

// FromDomain populates the persistence model from a domain Sale.
func (m *SaleModel) FromDomain(s *sales.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.SaleNumber = s.SaleNumber
	m.CashierID = s.CashierID
	m.CustomerName = s.Customer.Name
	m.CustomerPhone = s.Customer.Phone
	m.Status = s.Status
	m.PaymentStatus = s.PaymentStatus
	m.Subtotal = s.Subtotal
	m.TaxAmount = s.TaxAmount
	m.Discount = s.Discount
	m.Total = s.Total
	m.AmountPaid = s.AmountPaid
	m.AmountRefunded = s.AmountRefunded
	m.ChangeAmount = s.ChangeAmount
	m.Notes = s.Notes
	m.CompletedAt = s.CompletedAt
	m.CancelledAt = s.CancelledAt
	m.CancelledBy = s.CancelledBy
	m.Items = make([]SaleItemModel, len(s.Items))
	for i := range s.Items {
		m.Items[i] = *SaleItemModelFromDomain(s.ID, &s.Items[i], s.CreatedAt)
	}
}

// SaleModelFromDomain creates a persistence model from a domain Sale.
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// SaleItemModel is an immutable sale line snapshot.
type SaleItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Barcode     string          `gorm:"type:varchar(50)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Quantity    int             `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// ToDomain converts the persistence model to a domain SaleItem.
func (m *SaleItemModel) ToDomain() sales.SaleItem {
	return sales.SaleItem{
		ID:          m.ID,
		SaleID:      m.SaleID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Barcode:     m.Barcode,
		UnitPrice:   m.UnitPrice,
		CostPrice:   m.CostPrice,
		TaxRate:     m.TaxRate,
		Quantity:    m.Quantity,
		Subtotal:    m.Subtotal,
		TaxAmount:   m.TaxAmount,
		Total:       m.Total,
	}
}

// SaleItemModelFromDomain creates a persistence model for a sale line.
func SaleItemModelFromDomain(saleID uuid.UUID, item *sales.SaleItem, createdAt time.Time) *SaleItemModel {
	return &SaleItemModel{
		ID:          item.ID,
		SaleID:      saleID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Barcode:     item.Barcode,
		UnitPrice:   item.UnitPrice,
		CostPrice:   item.CostPrice,
		TaxRate:     item.TaxRate,
		Quantity:    item.Quantity,
		Subtotal:    item.Subtotal,
		TaxAmount:   item.TaxAmount,
		Total:       item.Total,
		CreatedAt:   createdAt,
	}
}
