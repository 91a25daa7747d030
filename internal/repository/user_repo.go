package repository

import (
	"context"

	"go-retail-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository

	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*model.User, error)
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.User, error)
	// FindByIDs resolves many users in one query
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.User, error)
	FindActiveByRoles(ctx context.Context, tenantID uuid.UUID, roles []model.Role) ([]model.User, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.User, error)
	Create(ctx context.Context, tenantID uuid.UUID, user *model.User) error
	UpdatePassword(ctx context.Context, tenantID, userID uuid.UUID, hashedPassword string) error
	UpdatePIN(ctx context.Context, tenantID, userID uuid.UUID, pin string) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) WithTx(tx *gorm.DB) UserRepository {
	return &userRepo{tx}
}

func (r *userRepo) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*model.User, error) {
	var user model.User
	if err := scoped(r.db, ctx, tenantID).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := scoped(r.db, ctx, tenantID).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := scoped(r.db, ctx, tenantID).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) FindActiveByRoles(ctx context.Context, tenantID uuid.UUID, roles []model.Role) ([]model.User, error) {
	var users []model.User
	err := scoped(r.db, ctx, tenantID).
		Where("role IN ? AND is_active = ?", roles, true).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := scoped(r.db, ctx, tenantID).Order("full_name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Create(ctx context.Context, tenantID uuid.UUID, user *model.User) error {
	return scoped(r.db, ctx, tenantID).Create(user).Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, tenantID, userID uuid.UUID, hashedPassword string) error {
	return scoped(r.db, ctx, tenantID).Model(&model.User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

func (r *userRepo) UpdatePIN(ctx context.Context, tenantID, userID uuid.UUID, pin string) error {
	res := scoped(r.db, ctx, tenantID).Model(&model.User{}).Where("id = ?", userID).Update("supervisor_pin", pin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
