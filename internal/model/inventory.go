package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Inventory is the balance of one product at one location.
// It is only mutated through the ledger's locked update path and may go negative.
type Inventory struct {
	BaseModel
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_key,priority:1" json:"tenantId"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_key,priority:2" json:"productId"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_key,priority:3;index" json:"locationId"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,3);not null" json:"quantity"`
}

func (Inventory) TableName() string {
	return "inventories"
}

type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
	MovementCancel MovementType = "CANCEL"
)

// StockMovement is an append-only ledger entry. Quantity is the signed delta applied
// to the matching inventory row.
type StockMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_movements_key,priority:1" json:"tenantId"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_movements_key,priority:2" json:"productId"`
	LocationID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_movements_key,priority:3" json:"locationId"`
	Type        MovementType    `gorm:"type:varchar(10);not null" json:"type"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,3);not null" json:"quantity"`
	Reference   *string         `gorm:"type:varchar(128);index" json:"reference,omitempty"`
	CreatedByID uuid.UUID       `gorm:"type:uuid" json:"createdById"`
	CreatedAt   time.Time       `gorm:"index" json:"createdAt"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
