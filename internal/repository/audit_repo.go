package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository interface {
	// Record appends an entry. A second entry with the same (key, action) fails with a
	// unique violation.
	Record(ctx context.Context, tenantID uuid.UUID, entry *model.AuditLog) error
	FindByKey(ctx context.Context, tenantID uuid.UUID, key, action string) (*model.AuditLog, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db}
}

func (r *auditRepo) Record(ctx context.Context, tenantID uuid.UUID, entry *model.AuditLog) error {
	return scoped(r.db, ctx, tenantID).Create(entry).Error
}

func (r *auditRepo) FindByKey(ctx context.Context, tenantID uuid.UUID, key, action string) (*model.AuditLog, error) {
	var entry model.AuditLog
	err := scoped(r.db, ctx, tenantID).
		Where("idempotency_key = ? AND action = ?", key, action).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
