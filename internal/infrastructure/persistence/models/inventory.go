package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/inventory"
	"github.com/retailpos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockMovementModel is the persistence model for a ledger entry. Rows are
// append-only.
type StockMovementModel struct {
	ID              uuid.UUID              `gorm:"type:uuid;primary_key"`
	ProductID       uuid.UUID              `gorm:"type:uuid;not null;index:idx_stock_movement_product_created,priority:1"`
	MovementType    inventory.MovementType `gorm:"type:varchar(20);not null;index"`
	Quantity        int                    `gorm:"not null"`
	StockBefore     int                    `gorm:"not null"`
	StockAfter      int                    `gorm:"not null"`
	ReferenceNumber string                 `gorm:"type:varchar(100);index"`
	UnitCost        *decimal.Decimal       `gorm:"type:decimal(18,2)"`
	Notes           string                 `gorm:"type:text"`
	CreatedBy       string                 `gorm:"type:varchar(100);not null"`
	CreatedAt       time.Time              `gorm:"not null;index:idx_stock_movement_product_created,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:              m.ID,
		ProductID:       m.ProductID,
		MovementType:    m.MovementType,
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

// StockMovementModelFromDomain creates a persistence model from a domain StockMovement.
func StockMovementModelFromDomain(mv *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:              mv.ID,
		ProductID:       mv.ProductID,
		MovementType:    mv.MovementType,
		Quantity:        mv.Quantity,
		StockBefore:     mv.StockBefore,
		StockAfter:      mv.StockAfter,
		ReferenceNumber: mv.ReferenceNumber,
		UnitCost:        mv.UnitCost,
		Notes:           mv.Notes,
		CreatedBy:       mv.CreatedBy,
		CreatedAt:       mv.CreatedAt,
	}
}

// StockAlertModel is the persistence model for the StockAlert aggregate root.
// The migration adds a partial unique index so a product has at most one
// active alert.
type StockAlertModel struct {
	AggregateModel
	ProductID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	CurrentStock int                   `gorm:"not null"`
	Threshold    int                   `gorm:"not null"`
	Status       inventory.AlertStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	ResolvedBy   string                `gorm:"type:varchar(100)"`
	ResolvedAt   *time.Time
}

// TableName returns the table name for GORM
func (StockAlertModel) TableName() string {
	return "stock_alerts"
}

// ToDomain converts the persistence model to a domain StockAlert.
func (m *StockAlertModel) ToDomain() *inventory.StockAlert {
	return &inventory.StockAlert{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ProductID:         m.ProductID,
		CurrentStock:      m.CurrentStock,
		Threshold:         m.Threshold,
		Status:            m.Status,
		ResolvedBy:        m.ResolvedBy,
		ResolvedAt:        m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain StockAlert.
func (m *StockAlertModel) FromDomain(a *inventory.StockAlert) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.ProductID = a.ProductID
	m.CurrentStock = a.CurrentStock
	m.Threshold = a.Threshold
	m.Status = a.Status
	m.ResolvedBy = a.ResolvedBy
	m.ResolvedAt = a.ResolvedAt
}

// StockAlertModelFromDomain creates a persistence model from a domain StockAlert.
func StockAlertModelFromDomain(a *inventory.StockAlert) *StockAlertModel {
	m := &StockAlertModel{}
	m.FromDomain(a)
	return m
}

// StockCountModel is the persistence model for the StockCount aggregate root.
type StockCountModel struct {
	AggregateModel
	CountNumber string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	Description string                `gorm:"type:text"`
	Status      inventory.CountStatus `gorm:"type:varchar(20);not null;default:'in_progress';index"`
	StartedBy   string                `gorm:"type:varchar(100);not null"`
	CompletedBy string                `gorm:"type:varchar(100)"`
	CompletedAt *time.Time
	Notes       string `gorm:"type:text"`
	// Associations
	Items []StockCountItemModel `gorm:"foreignKey:CountID;references:ID"`
}

// TableName returns the table name for GORM
func (StockCountModel) TableName() string {
	return "stock_counts"
}

// ToDomain converts the persistence model to a domain StockCount.
func (m *StockCountModel) ToDomain() *inventory.StockCount {
	count := &inventory.StockCount{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CountNumber:       m.CountNumber,
		Description:       m.Description,
		Status:            m.Status,
		StartedBy:         m.StartedBy,
		CompletedBy:       m.CompletedBy,
		CompletedAt:       m.CompletedAt,
		Notes:             m.Notes,
		Items:             make([]inventory.StockCountItem, len(m.Items)),
	}
	for i, item := range m.Items {
		count.Items[i] = item.ToDomain()
	}
	return count
}

// FromDomain populates the persistence model from a domain StockCount.
func (m *StockCountModel) FromDomain(c *inventory.StockCount) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CountNumber = c.CountNumber
	m.Description = c.Description
	m.Status = c.Status
	m.StartedBy = c.StartedBy
	m.CompletedBy = c.CompletedBy
	m.CompletedAt = c.CompletedAt
	m.Notes = c.Notes
	m.Items = make([]StockCountItemModel, len(c.Items))
	for i := range c.Items {
		m.Items[i] = *StockCountItemModelFromDomain(c.ID, &c.Items[i])
	}
}

// StockCountModelFromDomain creates a persistence model from a domain StockCount.
func StockCountModelFromDomain(c *inventory.StockCount) *StockCountModel {
	m := &StockCountModel{}
	m.FromDomain(c)
	return m
}

// StockCountItemModel is one counted product. (count_id, product_id) is unique.
type StockCountItemModel struct {
	BaseModel
	CountID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_count_item_product,priority:1"`
	ProductID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_count_item_product,priority:2"`
	SystemQuantity   int       `gorm:"not null"`
	PhysicalQuantity int       `gorm:"not null"`
	Variance         int       `gorm:"not null"`
	Notes            string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StockCountItemModel) TableName() string {
	return "stock_count_items"
}

// ToDomain converts the persistence model to a domain StockCountItem.
func (m *StockCountItemModel) ToDomain() inventory.StockCountItem {
	return inventory.StockCountItem{
		ID:               m.ID,
		CountID:          m.CountID,
		ProductID:        m.ProductID,
		SystemQuantity:   m.SystemQuantity,
		PhysicalQuantity: m.PhysicalQuantity,
		Variance:         m.Variance,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// StockCountItemModelFromDomain creates a persistence model for a count line.
func StockCountItemModelFromDomain(countID uuid.UUID, item *inventory.StockCountItem) *StockCountItemModel {
	m := &StockCountItemModel{
		CountID:          countID,
		ProductID:        item.ProductID,
		SystemQuantity:   item.SystemQuantity,
		PhysicalQuantity: item.PhysicalQuantity,
		Variance:         item.Variance,
		Notes:            item.Notes,
	}
	m.FromDomainBaseEntity(shared.BaseEntity{ID: item.ID, CreatedAt: item.CreatedAt, UpdatedAt: item.UpdatedAt})
	return m
}
