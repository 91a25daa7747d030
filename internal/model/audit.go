package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionSaleCreate = "SALE_CREATE"
	ActionSaleCancel = "SALE_CANCEL"
)

// AuditLog is an append-only record. Entries carrying an idempotency key double as
// dedup markers, unique per (tenant, key, action).
type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_audit_dedup,priority:1" json:"tenantId"`
	IdempotencyKey *string    `gorm:"type:varchar(128);uniqueIndex:idx_audit_dedup,priority:2" json:"idempotencyKey,omitempty"`
	Action         string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_audit_dedup,priority:3" json:"action"`
	EntityID       *uuid.UUID `gorm:"type:uuid" json:"entityId,omitempty"`
	UserID         uuid.UUID  `gorm:"type:uuid" json:"userId"`
	Detail         string     `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
