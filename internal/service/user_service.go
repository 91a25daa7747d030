package service

import (
	"context"
	"fmt"
	"strings"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrEmailExists = apperror.Conflict("EMAIL_EXISTS", "email already exists")
)

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*model.User, error)
	SetSupervisorPIN(ctx context.Context, userID uuid.UUID, req *SetPINRequest) error
	GetAllUsers(ctx context.Context) ([]model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	FullName string     `json:"fullName" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=OPERATOR MANAGER OWNER"`
	PIN      string     `json:"pin" validate:"omitempty,numeric,min=4,max=8"`
}

type SetPINRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.User, error) {
	// 1. Normalize and validate request
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleOwner {
		return nil, ErrRoleForbidden
	}

	// 2. Check if email already exists
	email := req.Email
	existing, err := s.userRepo.FindByEmail(ctx, actor.TenantID, email)
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	// 3. Build user with hashed credentials
	user := &model.User{
		TenantID: actor.TenantID,
		Email:    email,
		FullName: req.FullName,
		Role:     req.Role,
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if req.PIN != "" {
		if err := user.SetPIN(req.PIN); err != nil {
			return nil, fmt.Errorf("hash pin: %w", err)
		}
	}

	// 4. Save to database
	if err := s.userRepo.Create(ctx, actor.TenantID, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	return user, nil
}

// SetSupervisorPIN replaces a user's PIN with a bcrypt hash. Legacy plain PINs are
// upgraded this way.
func (s *userService) SetSupervisorPIN(ctx context.Context, userID uuid.UUID, req *SetPINRequest) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if actor.Role != model.RoleOwner {
		return ErrRoleForbidden
	}

	var u model.User
	if err := u.SetPIN(req.PIN); err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	if err := s.userRepo.UpdatePIN(ctx, actor.TenantID, userID, u.SupervisorPIN); err != nil {
		if database.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.userRepo.FindAll(ctx, actor.TenantID)
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
