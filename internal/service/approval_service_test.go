package service

import (
	"context"
	"testing"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) WithTx(tx *gorm.DB) repository.UserRepository { return m }

func (m *mockUserRepo) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*model.User, error) {
	args := m.Called(ctx, tenantID, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, tenantID, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.User, error) {
	args := m.Called(ctx, tenantID, ids)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) FindActiveByRoles(ctx context.Context, tenantID uuid.UUID, roles []model.Role) ([]model.User, error) {
	args := m.Called(ctx, tenantID, roles)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) FindAll(ctx context.Context, tenantID uuid.UUID) ([]model.User, error) {
	args := m.Called(ctx, tenantID)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, tenantID uuid.UUID, user *model.User) error {
	return m.Called(ctx, tenantID, user).Error(0)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, tenantID, userID uuid.UUID, hashedPassword string) error {
	return m.Called(ctx, tenantID, userID, hashedPassword).Error(0)
}

func (m *mockUserRepo) UpdatePIN(ctx context.Context, tenantID, userID uuid.UUID, pin string) error {
	return m.Called(ctx, tenantID, userID, pin).Error(0)
}

func supervisor(t *testing.T, name string, role model.Role, password, pin string) model.User {
	t.Helper()
	u := model.User{FullName: name, Role: role, IsActive: true}
	u.ID = uuid.New()
	require.NoError(t, u.SetPassword(password))
	if pin != "" {
		require.NoError(t, u.SetPIN(pin))
	}
	return u
}

func TestApprove_BlankCredentialSkipsLookup(t *testing.T) {
	repo := new(mockUserRepo)
	svc := NewApprovalService(repo)

	_, err := svc.Approve(context.Background(), uuid.New(), "   ", ActionCashClose)
	assert.ErrorIs(t, err, ErrCredentialRequired)
	repo.AssertNotCalled(t, "FindActiveByRoles", mock.Anything, mock.Anything, mock.Anything)
}

func TestApprove_PINBeatsPassword(t *testing.T) {
	tenantID := uuid.New()
	// the owner's password equals the manager's PIN; the PIN match wins
	owner := supervisor(t, "Olga", model.RoleOwner, "2468", "")
	manager := supervisor(t, "Mario", model.RoleManager, "manager-secret", "2468")

	repo := new(mockUserRepo)
	repo.On("FindActiveByRoles", mock.Anything, tenantID, model.PrivilegedRoles).
		Return([]model.User{owner, manager}, nil)

	approval, err := NewApprovalService(repo).Approve(context.Background(), tenantID, "2468", ActionSaleCancel)
	require.NoError(t, err)
	assert.Equal(t, manager.ID, approval.UserID)
	assert.Equal(t, ApprovalByPIN, approval.Method)
	assert.Equal(t, model.RoleManager, approval.Role)
	repo.AssertExpectations(t)
}

func TestApprove_PasswordFallback(t *testing.T) {
	tenantID := uuid.New()
	owner := supervisor(t, "Olga", model.RoleOwner, "owner-secret", "")

	repo := new(mockUserRepo)
	repo.On("FindActiveByRoles", mock.Anything, tenantID, model.PrivilegedRoles).
		Return([]model.User{owner}, nil)

	approval, err := NewApprovalService(repo).Approve(context.Background(), tenantID, "owner-secret", ActionCashWithdrawal)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, approval.UserID)
	assert.Equal(t, ApprovalByPassword, approval.Method)
	assert.Equal(t, "Olga", approval.Name)
}

func TestApprove_LegacyPlainPIN(t *testing.T) {
	tenantID := uuid.New()
	prefixed := supervisor(t, "Ana", model.RoleManager, "a-password", "")
	prefixed.SupervisorPIN = "plain:1111"
	bare := supervisor(t, "Bia", model.RoleManager, "b-password", "")
	bare.SupervisorPIN = "2222"

	repo := new(mockUserRepo)
	repo.On("FindActiveByRoles", mock.Anything, tenantID, model.PrivilegedRoles).
		Return([]model.User{prefixed, bare}, nil)
	svc := NewApprovalService(repo)

	approval, err := svc.Approve(context.Background(), tenantID, "1111", ActionSaleDiscount)
	require.NoError(t, err)
	assert.Equal(t, prefixed.ID, approval.UserID)

	approval, err = svc.Approve(context.Background(), tenantID, "2222", ActionSaleDiscount)
	require.NoError(t, err)
	assert.Equal(t, bare.ID, approval.UserID)
	assert.Equal(t, ApprovalByPIN, approval.Method)
}

func TestApprove_Mismatch(t *testing.T) {
	tenantID := uuid.New()
	manager := supervisor(t, "Mario", model.RoleManager, "manager-secret", "4321")

	repo := new(mockUserRepo)
	repo.On("FindActiveByRoles", mock.Anything, tenantID, model.PrivilegedRoles).
		Return([]model.User{manager}, nil)

	_, err := NewApprovalService(repo).Approve(context.Background(), tenantID, "0000", ActionCashClose)
	require.ErrorIs(t, err, ErrApprovalFailed)
	assert.Contains(t, err.Error(), ActionCashClose)
}
