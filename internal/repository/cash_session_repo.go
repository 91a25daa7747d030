package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CashSessionRepository interface {
	WithTx(tx *gorm.DB) CashSessionRepository

	Create(ctx context.Context, tenantID uuid.UUID, session *model.CashSession) error
	// Close persists the close fields and the frozen snapshot
	Close(ctx context.Context, tenantID uuid.UUID, session *model.CashSession) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error)
	FindOpen(ctx context.Context, tenantID uuid.UUID) ([]model.CashSession, error)
	CountOpen(ctx context.Context, tenantID uuid.UUID) (int64, error)
	IsLabelInUse(ctx context.Context, tenantID uuid.UUID, label string) (bool, error)

	CreateWithdrawal(ctx context.Context, tenantID uuid.UUID, w *model.CashWithdrawal) error
	FindWithdrawals(ctx context.Context, tenantID, sessionID uuid.UUID) ([]model.CashWithdrawal, error)
}

type cashSessionRepo struct {
	db *gorm.DB
}

func NewCashSessionRepo(db *gorm.DB) CashSessionRepository {
	return &cashSessionRepo{db}
}

func (r *cashSessionRepo) WithTx(tx *gorm.DB) CashSessionRepository {
	return &cashSessionRepo{tx}
}

func (r *cashSessionRepo) Create(ctx context.Context, tenantID uuid.UUID, session *model.CashSession) error {
	return scoped(r.db, ctx, tenantID).Create(session).Error
}

func (r *cashSessionRepo) Close(ctx context.Context, tenantID uuid.UUID, session *model.CashSession) error {
	return scoped(r.db, ctx, tenantID).
		Model(session).
		Select("ClosedAt", "ClosingCents", "ClosedByID", "ApprovedByID", "ApprovalMethod", "Snapshot").
		Updates(session).Error
}

func (r *cashSessionRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error) {
	var session model.CashSession
	if err := scoped(r.db, ctx, tenantID).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *cashSessionRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error) {
	var session model.CashSession
	if err := forUpdate(scoped(r.db, ctx, tenantID)).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *cashSessionRepo) FindOpen(ctx context.Context, tenantID uuid.UUID) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := scoped(r.db, ctx, tenantID).
		Where("closed_at IS NULL").
		Order("opened_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *cashSessionRepo) CountOpen(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := scoped(r.db, ctx, tenantID).
		Model(&model.CashSession{}).
		Where("closed_at IS NULL").
		Count(&count).Error
	return count, err
}

func (r *cashSessionRepo) IsLabelInUse(ctx context.Context, tenantID uuid.UUID, label string) (bool, error) {
	var count int64
	err := scoped(r.db, ctx, tenantID).
		Model(&model.CashSession{}).
		Where("closed_at IS NULL AND register_label = ?", label).
		Count(&count).Error
	return count > 0, err
}

func (r *cashSessionRepo) CreateWithdrawal(ctx context.Context, tenantID uuid.UUID, w *model.CashWithdrawal) error {
	return scoped(r.db, ctx, tenantID).Create(w).Error
}

func (r *cashSessionRepo) FindWithdrawals(ctx context.Context, tenantID, sessionID uuid.UUID) ([]model.CashWithdrawal, error) {
	var withdrawals []model.CashWithdrawal
	err := scoped(r.db, ctx, tenantID).
		Where("cash_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&withdrawals).Error
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}
