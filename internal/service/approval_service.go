package service

import (
	"context"
	"fmt"
	"strings"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"

	"github.com/google/uuid"
)

type ApprovalMethod string

const (
	ApprovalByPIN      ApprovalMethod = "PIN"
	ApprovalByPassword ApprovalMethod = "PASSWORD"
)

// Actions that require a supervisor
const (
	ActionSaleDiscount   = "SALE_DISCOUNT"
	ActionSaleCancel     = "SALE_CANCEL"
	ActionCashWithdrawal = "CASH_WITHDRAWAL"
	ActionCashClose      = "CASH_CLOSE"
)

// Approval identifies the supervisor who authorized an action
type Approval struct {
	UserID uuid.UUID      `json:"userId"`
	Role   model.Role     `json:"role"`
	Method ApprovalMethod `json:"method"`
	Name   string         `json:"name"`
}

type ApprovalService interface {
	Approve(ctx context.Context, tenantID uuid.UUID, credential, action string) (*Approval, error)
}

type approvalService struct {
	userRepo repository.UserRepository
}

func NewApprovalService(userRepo repository.UserRepository) ApprovalService {
	return &approvalService{userRepo: userRepo}
}

// Approve matches the credential against every active manager and owner of the tenant,
// trying all supervisor PINs before any account password.
func (s *approvalService) Approve(ctx context.Context, tenantID uuid.UUID, credential, action string) (*Approval, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrCredentialRequired.WithDetails(map[string]interface{}{"action": action})
	}

	supervisors, err := s.userRepo.FindActiveByRoles(ctx, tenantID, model.PrivilegedRoles)
	if err != nil {
		return nil, fmt.Errorf("load supervisors: %w", err)
	}

	for i := range supervisors {
		if supervisors[i].CheckPIN(credential) {
			return newApproval(&supervisors[i], ApprovalByPIN), nil
		}
	}
	for i := range supervisors {
		if supervisors[i].CheckPassword(credential) {
			return newApproval(&supervisors[i], ApprovalByPassword), nil
		}
	}

	failed := *ErrApprovalFailed
	failed.Message = fmt.Sprintf("supervisor approval failed for %s", action)
	return nil, failed.WithDetails(map[string]interface{}{"action": action})
}

func newApproval(u *model.User, method ApprovalMethod) *Approval {
	return &Approval{
		UserID: u.ID,
		Role:   u.Role,
		Method: method,
		Name:   u.FullName,
	}
}
