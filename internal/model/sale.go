package model

import (
	"time"

	"go-retail-ledger/pkg/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleFinalized SaleStatus = "FINALIZED"
	SaleCanceled  SaleStatus = "CANCELED"
)

type DiscountMode string

const (
	DiscountNone    DiscountMode = "NONE"
	DiscountValue   DiscountMode = "VALUE"
	DiscountPercent DiscountMode = "PERCENT"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentDebit       PaymentMethod = "DEBIT"
	PaymentCredit      PaymentMethod = "CREDIT"
	PaymentPix         PaymentMethod = "PIX"
	PaymentVR          PaymentMethod = "VR"
	PaymentVA          PaymentMethod = "VA"
	PaymentStoreCredit PaymentMethod = "STORE_CREDIT"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentCredit, PaymentPix, PaymentVR, PaymentVA, PaymentStoreCredit:
		return true
	}
	return false
}

type FiscalMode string

const (
	FiscalNone FiscalMode = "none"
	FiscalNFCe FiscalMode = "nfce"
)

type FiscalStatus string

const (
	FiscalSkipped FiscalStatus = "SKIPPED"
	FiscalEmitted FiscalStatus = "EMITTED"
	FiscalFailed  FiscalStatus = "FAILED"
)

type Sale struct {
	BaseModel
	TenantID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_sales_tenant_number,priority:1;uniqueIndex:idx_sales_tenant_idempotency,priority:1" json:"tenantId"`
	Number         int64        `gorm:"not null;uniqueIndex:idx_sales_tenant_number,priority:2" json:"number"`
	CashSessionID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"cashSessionId"`
	LocationID     uuid.UUID    `gorm:"type:uuid;not null" json:"locationId"`
	CreatedByID    uuid.UUID    `gorm:"type:uuid;not null" json:"createdById"`
	Status         SaleStatus   `gorm:"type:varchar(16);not null;index" json:"status"`
	SubtotalCents  int64        `gorm:"not null" json:"subtotalCents"`
	DiscountMode   DiscountMode `gorm:"type:varchar(10);not null" json:"discountMode"`
	DiscountCents  int64        `gorm:"not null" json:"discountCents"`
	TotalCents     int64        `gorm:"not null" json:"totalCents"`
	PaidCents      int64        `gorm:"not null" json:"paidCents"`
	ChangeCents    int64        `gorm:"not null" json:"changeCents"`
	IdempotencyKey *string      `gorm:"type:varchar(128);uniqueIndex:idx_sales_tenant_idempotency,priority:2" json:"idempotencyKey,omitempty"`

	FiscalMode   FiscalMode   `gorm:"type:varchar(16);not null" json:"fiscalMode"`
	FiscalStatus FiscalStatus `gorm:"type:varchar(16);not null" json:"fiscalStatus"`
	FiscalKey    *string      `gorm:"type:varchar(64)" json:"fiscalKey,omitempty"`
	FiscalError  string       `gorm:"type:text" json:"fiscalError,omitempty"`

	ApprovedByID *uuid.UUID `gorm:"type:uuid" json:"approvedById,omitempty"`
	CanceledAt   *time.Time `json:"canceledAt,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancelReason,omitempty"`
	CanceledByID *uuid.UUID `gorm:"type:uuid" json:"canceledById,omitempty"`

	Items    []SaleItem `gorm:"foreignKey:SaleID" json:"items"`
	Payments []Payment  `gorm:"foreignKey:SaleID" json:"payments"`
}

func (s *Sale) IsCanceled() bool {
	return s.Status == SaleCanceled
}

// SaleItem is owned by a tenant through its sale
type SaleItem struct {
	BaseModel
	SaleID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"saleId"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null" json:"productId"`
	Quantity       decimal.Decimal `gorm:"type:numeric(18,3);not null" json:"quantity"`
	UnitPriceCents int64           `gorm:"not null" json:"unitPriceCents"`
	BaseCents      int64           `gorm:"not null" json:"baseCents"`
	DiscountMode   DiscountMode    `gorm:"type:varchar(10);not null" json:"discountMode"`
	DiscountCents  int64           `gorm:"not null" json:"discountCents"`
	TotalCents     int64           `gorm:"not null" json:"totalCents"`
}

func (SaleItem) TenantParent() tenant.Parent {
	return tenant.Parent{ForeignKey: "sale_id", Table: "sales"}
}

// Payment is owned by a tenant through its sale
type Payment struct {
	BaseModel
	SaleID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"saleId"`
	Method      PaymentMethod `gorm:"type:varchar(16);not null" json:"method"`
	AmountCents int64         `gorm:"not null" json:"amountCents"`
	ProviderRef *string       `gorm:"type:varchar(128)" json:"providerRef,omitempty"`
}

func (Payment) TenantParent() tenant.Parent {
	return tenant.Parent{ForeignKey: "sale_id", Table: "sales"}
}

// SaleCounter holds the next sale number of a tenant
type SaleCounter struct {
	TenantID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"tenantId"`
	NextNumber int64     `gorm:"not null" json:"nextNumber"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ProcessedSaleStatus string

const (
	ProcessedPending ProcessedSaleStatus = "PENDING"
	ProcessedDone    ProcessedSaleStatus = "DONE"
	ProcessedError   ProcessedSaleStatus = "ERROR"
)

// ProcessedSale is the dedup marker of the offline-sync debit path
type ProcessedSale struct {
	BaseModel
	TenantID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_processed_sales_key,priority:1" json:"tenantId"`
	ExternalSaleID string              `gorm:"type:varchar(128);not null;uniqueIndex:idx_processed_sales_key,priority:2" json:"externalSaleId"`
	Status         ProcessedSaleStatus `gorm:"type:varchar(10);not null" json:"status"`
	Error          string              `gorm:"type:text" json:"error,omitempty"`
}
