package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailpos/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	SaleID               uuid.UUID             `gorm:"type:uuid;not null;index"`
	Method               finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount               decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status               finance.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	TransactionReference string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	ExternalReference    string                `gorm:"type:varchar(100);index"`
	PhoneNumber          string                `gorm:"type:varchar(20)"`
	AccountNumber        string                `gorm:"type:varchar(50)"`
	ErrorMessage         string                `gorm:"type:text"`
	InitiatedBy          string                `gorm:"type:varchar(100);not null"`
	InitiatedAt          *time.Time
	CompletedAt          *time.Time
	// Associations
	Metadata []PaymentMetadataModel `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *finance.Payment {
	p := &finance.Payment{
		BaseAggregateRoot:    m.ToAggregateRoot(),
		SaleID:               m.SaleID,
		Method:               m.Method,
		Amount:               m.Amount,
		Status:               m.Status,
		TransactionReference: m.TransactionReference,
		ExternalReference:    m.ExternalReference,
		PhoneNumber:          m.PhoneNumber,
		AccountNumber:        m.AccountNumber,
		ErrorMessage:         m.ErrorMessage,
		InitiatedBy:          m.InitiatedBy,
		InitiatedAt:          m.InitiatedAt,
		CompletedAt:          m.CompletedAt,
		Metadata:             make([]finance.PaymentMetadata, len(m.Metadata)),
	}
	for i, md := range m.Metadata {
		p.Metadata[i] = md.ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.SaleID = p.SaleID
	m.Method = p.Method
	m.Amount = p.Amount
	m.Status = p.Status
	m.TransactionReference = p.TransactionReference
	m.ExternalReference = p.ExternalReference
	m.PhoneNumber = p.PhoneNumber
	m.AccountNumber = p.AccountNumber
	m.ErrorMessage = p.ErrorMessage
	m.InitiatedBy = p.InitiatedBy
	m.InitiatedAt = p.InitiatedAt
	m.CompletedAt = p.CompletedAt
	m.Metadata = make([]PaymentMetadataModel, len(p.Metadata))
	for i := range p.Metadata {
		m.Metadata[i] = *PaymentMetadataModelFromDomain(p.ID, &p.Metadata[i])
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment.
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentMetadataModel is a typed correlation record of a payment.
// (payment_id, key) is the primary key; (key, value) is indexed for callback
// matching.
type PaymentMetadataModel struct {
	PaymentID uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Key       finance.MetadataKey `gorm:"column:key;type:varchar(50);primaryKey;index:idx_payment_metadata_lookup,priority:1"`
	Value     string              `gorm:"type:varchar(255);not null;index:idx_payment_metadata_lookup,priority:2"`
	CreatedAt time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentMetadataModel) TableName() string {
	return "payment_metadata"
}

// ToDomain converts the persistence model to a domain PaymentMetadata.
func (m *PaymentMetadataModel) ToDomain() finance.PaymentMetadata {
	return finance.PaymentMetadata{
		PaymentID: m.PaymentID,
		Key:       m.Key,
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
	}
}

// PaymentMetadataModelFromDomain creates a persistence model for a metadata record.
func PaymentMetadataModelFromDomain(paymentID uuid.UUID, md *finance.PaymentMetadata) *PaymentMetadataModel {
	return &PaymentMetadataModel{
		PaymentID: paymentID,
		Key:       md.Key,
		Value:     md.Value,
		CreatedAt: md.CreatedAt,
	}
}

// PaymentCallbackModel is the persistence model for a raw gateway
// notification. Only the processing columns are ever updated.
type PaymentCallbackModel struct {
	ID               uuid.UUID               `gorm:"type:uuid;primary_key"`
	Method           finance.PaymentMethod   `gorm:"type:varchar(20);not null;index"`
	RawPayload       string                  `gorm:"type:text;not null"`
	CorrelationKind  finance.CorrelationKind `gorm:"type:varchar(30);not null"`
	CorrelationKey   finance.MetadataKey     `gorm:"type:varchar(50)"`
	CorrelationValue string                  `gorm:"type:varchar(255);index"`
	Outcome          finance.Outcome         `gorm:"type:varchar(20)"`
	ResultCode       string                  `gorm:"type:varchar(50)"`
	ResultMessage    string                  `gorm:"type:text"`
	TransactionID    string                  `gorm:"type:varchar(100)"`
	Amount           *decimal.Decimal        `gorm:"type:decimal(18,2)"`
	PhoneNumber      string                  `gorm:"type:varchar(20)"`
	PaymentID        *uuid.UUID              `gorm:"type:uuid;index"`
	Success          bool                    `gorm:"not null;default:false"`
	Processed        bool                    `gorm:"not null;default:false;index:idx_payment_callback_unprocessed,priority:1"`
	ProcessedAt      *time.Time
	ErrorMessage     string    `gorm:"type:text"`
	Attempts         int       `gorm:"not null;default:0"`
	ReceivedAt       time.Time `gorm:"not null;index:idx_payment_callback_unprocessed,priority:2"`
}

// TableName returns the table name for GORM
func (PaymentCallbackModel) TableName() string {
	return "payment_callbacks"
}

// ToDomain converts the persistence model to a domain PaymentCallback.
func (m *PaymentCallbackModel) ToDomain() *finance.PaymentCallback {
	return &finance.PaymentCallback{
		ID:               m.ID,
		Method:           m.Method,
		RawPayload:       m.RawPayload,
		CorrelationKind:  m.CorrelationKind,
		CorrelationKey:   m.CorrelationKey,
		CorrelationValue: m.CorrelationValue,
		Outcome:          m.Outcome,
		ResultCode:       m.ResultCode,
		ResultMessage:    m.ResultMessage,
		TransactionID:    m.TransactionID,
		Amount:           m.Amount,
		PhoneNumber:      m.PhoneNumber,
		PaymentID:        m.PaymentID,
		Success:          m.Success,
		Processed:        m.Processed,
		ProcessedAt:      m.ProcessedAt,
		ErrorMessage:     m.ErrorMessage,
		Attempts:         m.Attempts,
		ReceivedAt:       m.ReceivedAt,
	}
}

// PaymentCallbackModelFromDomain creates a persistence model from a domain PaymentCallback.
func PaymentCallbackModelFromDomain(c *finance.PaymentCallback) *PaymentCallbackModel {
	return &PaymentCallbackModel{
		ID:               c.ID,
		Method:           c.Method,
		RawPayload:       c.RawPayload,
		CorrelationKind:  c.CorrelationKind,
		CorrelationKey:   c.CorrelationKey,
		CorrelationValue: c.CorrelationValue,
		Outcome:          c.Outcome,
		ResultCode:       c.ResultCode,
		ResultMessage:    c.ResultMessage,
		TransactionID:    c.TransactionID,
		Amount:           c.Amount,
		PhoneNumber:      c.PhoneNumber,
		PaymentID:        c.PaymentID,
		Success:          c.Success,
		Processed:        c.Processed,
		ProcessedAt:      c.ProcessedAt,
		ErrorMessage:     c.ErrorMessage,
		Attempts:         c.Attempts,
		ReceivedAt:       c.ReceivedAt,
	}
}

// RefundModel is the persistence model for the Refund aggregate root.
type RefundModel struct {
	AggregateModel
	PaymentID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Reason            string               `gorm:"type:text;not null"`
	Status            finance.RefundStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	RefundReference   string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	ExternalReference string               `gorm:"type:varchar(100)"`
	RequestedBy       string               `gorm:"type:varchar(100);not null"`
	ApprovedBy        string               `gorm:"type:varchar(100)"`
	CompletedAt       *time.Time
	ErrorMessage      string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund.
func (m *RefundModel) ToDomain() *finance.Refund {
	return &finance.Refund{
		BaseAggregateRoot: m.ToAggregateRoot(),
		PaymentID:         m.PaymentID,
		Amount:            m.Amount,
		Reason:            m.Reason,
		Status:            m.Status,
		RefundReference:   m.RefundReference,
		ExternalReference: m.ExternalReference,
		RequestedBy:       m.RequestedBy,
		ApprovedBy:        m.ApprovedBy,
		CompletedAt:       m.CompletedAt,
		ErrorMessage:      m.ErrorMessage,
	}
}

// FromDomain populates the persistence model from a domain Refund.
func (m *RefundModel) FromDomain(r *finance.Refund) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.PaymentID = r.PaymentID
	m.Amount = r.Amount
	m.Reason = r.Reason
	m.Status = r.Status
	m.RefundReference = r.RefundReference
	m.ExternalReference = r.ExternalReference
	m.RequestedBy = r.RequestedBy
	m.ApprovedBy = r.ApprovedBy
	m.CompletedAt = r.CompletedAt
	m.ErrorMessage = r.ErrorMessage
}

// RefundModelFromDomain creates a persistence model from a domain Refund.
func RefundModelFromDomain(r *finance.Refund) *RefundModel {
	m := &RefundModel{}
	m.FromDomain(r)
	return m
}
