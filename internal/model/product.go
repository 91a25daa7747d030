package model

import "github.com/google/uuid"

type Product struct {
	BaseModel
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_products_tenant_sku,priority:1" json:"tenantId"`
	SKU        string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_products_tenant_sku,priority:2" json:"sku" validate:"required"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Unit       string    `gorm:"type:varchar(20)" json:"unit"`
	PriceCents int64     `gorm:"not null;default:0" json:"priceCents" validate:"gte=0"`
	IsActive   bool      `gorm:"not null" json:"isActive"`
}

// StockLocation is a warehouse, shelf or store front holding inventory
type StockLocation struct {
	TenantModel
	Name         string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	IsSaleSource bool   `gorm:"not null" json:"isSaleSource"`
}
