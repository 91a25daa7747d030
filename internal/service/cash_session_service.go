package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/internal/repository"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/logger"
	"go-retail-ledger/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CashSessionService interface {
	Open(ctx context.Context, req *OpenCashSessionRequest) (*model.CashSession, error)
	Withdraw(ctx context.Context, sessionID uuid.UUID, req *WithdrawRequest) (*WithdrawResult, error)
	Close(ctx context.Context, sessionID uuid.UUID, req *CloseCashSessionRequest) (*model.CashSession, error)
	Report(ctx context.Context, sessionID uuid.UUID) (*CashSessionReport, error)
	ListOpen(ctx context.Context) ([]model.CashSession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error)
}

type OpenCashSessionRequest struct {
	OpeningCents  int64  `json:"openingCents" validate:"gte=0"`
	RegisterLabel string `json:"registerLabel" validate:"max=64"`
}

type WithdrawRequest struct {
	AmountCents          int64  `json:"amountCents" validate:"gt=0"`
	Reason               string `json:"reason" validate:"max=255"`
	SupervisorCredential string `json:"supervisorCredential"`
}

type WithdrawResult struct {
	Withdrawal *model.CashWithdrawal `json:"withdrawal"`
	ApprovedBy *Approval             `json:"approvedBy"`
}

type CloseCashSessionRequest struct {
	ClosingCents         int64  `json:"closingCents" validate:"gte=0"`
	SupervisorCredential string `json:"supervisorCredential"`
}

// CashSessionReport is the frozen snapshot of a closed session, or a live preview
// for an open one
type CashSessionReport struct {
	Snapshot *model.CloseSnapshot `json:"snapshot"`
	Preview  bool                 `json:"preview"`
}

type cashSessionService struct {
	db          *gorm.DB
	tenantRepo  repository.TenantRepository
	sessionRepo repository.CashSessionRepository
	saleRepo    repository.SaleRepository
	userRepo    repository.UserRepository
	approval    ApprovalService
	log         logger.Logger
}

func NewCashSessionService(
	db *gorm.DB,
	tenantRepo repository.TenantRepository,
	sessionRepo repository.CashSessionRepository,
	saleRepo repository.SaleRepository,
	userRepo repository.UserRepository,
	approval ApprovalService,
	log logger.Logger,
) CashSessionService {
	return &cashSessionService{
		db:          db,
		tenantRepo:  tenantRepo,
		sessionRepo: sessionRepo,
		saleRepo:    saleRepo,
		userRepo:    userRepo,
		approval:    approval,
		log:         log,
	}
}

// Open starts a drawer session. The tenant row is locked so the open-session cap and
// label checks cannot race with another open.
func (s *cashSessionService) Open(ctx context.Context, req *OpenCashSessionRequest) (*model.CashSession, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	label := optional(strings.TrimSpace(req.RegisterLabel))

	session := &model.CashSession{
		TenantID:      actor.TenantID,
		RegisterLabel: label,
		OpenedByID:    actor.UserID,
		OpeningCents:  req.OpeningCents,
		OpenedAt:      time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)

		t, err := s.tenantRepo.WithTx(tx).FindByIDForUpdate(ctx, actor.TenantID)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrTenantNotFound
			}
			return err
		}
		if !t.IsActive {
			return ErrTenantInactive
		}

		open, err := sessions.CountOpen(ctx, actor.TenantID)
		if err != nil {
			return err
		}
		if limit := t.OpenSessionLimit(); open >= int64(limit) {
			return ErrMaxOpenCashSessions.WithDetails(map[string]interface{}{"max": limit, "open": open})
		}

		if label != nil {
			inUse, err := sessions.IsLabelInUse(ctx, actor.TenantID, *label)
			if err != nil {
				return err
			}
			if inUse {
				return ErrRegisterLabelInUse.WithDetails(map[string]interface{}{"registerLabel": *label})
			}
		}

		return sessions.Create(ctx, actor.TenantID, session)
	})
	if err != nil {
		if label != nil && database.IsUniqueViolation(err) {
			return nil, ErrRegisterLabelInUse.WithDetails(map[string]interface{}{"registerLabel": *label})
		}
		return nil, persistenceError("open cash session", err)
	}

	s.log.Info("cash session opened", "tenant_id", actor.TenantID, "session_id", session.ID, "user_id", actor.UserID)
	return session, nil
}

func (s *cashSessionService) Withdraw(ctx context.Context, sessionID uuid.UUID, req *WithdrawRequest) (*WithdrawResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	approval, err := s.approval.Approve(ctx, actor.TenantID, req.SupervisorCredential, ActionCashWithdrawal)
	if err != nil {
		return nil, err
	}

	withdrawal := &model.CashWithdrawal{
		CashSessionID: sessionID,
		AmountCents:   req.AmountCents,
		Reason:        req.Reason,
		CreatedByID:   actor.UserID,
		ApprovedByID:  approval.UserID,
	}
	withdrawal.TenantID = actor.TenantID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)
		session, err := sessions.FindByIDForUpdate(ctx, actor.TenantID, sessionID)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrCashSessionNotFound
			}
			return err
		}
		if !session.IsOpen() {
			return ErrCashSessionClosed
		}
		return sessions.CreateWithdrawal(ctx, actor.TenantID, withdrawal)
	})
	if err != nil {
		return nil, persistenceError("record withdrawal", err)
	}

	return &WithdrawResult{Withdrawal: withdrawal, ApprovedBy: approval}, nil
}

// Close reconciles the drawer and freezes the snapshot in the same transaction as the
// close fields.
func (s *cashSessionService) Close(ctx context.Context, sessionID uuid.UUID, req *CloseCashSessionRequest) (*model.CashSession, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	approval, err := s.approval.Approve(ctx, actor.TenantID, req.SupervisorCredential, ActionCashClose)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "cash_session.close")
	defer span.End()

	var session *model.CashSession
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)

		var err error
		session, err = sessions.FindByIDForUpdate(ctx, actor.TenantID, sessionID)
		if err != nil {
			if database.IsNotFound(err) {
				return ErrCashSessionNotFound
			}
			return err
		}
		if !session.IsOpen() {
			return ErrCashSessionAlreadyClosed
		}

		closedAt := time.Now()
		closing := req.ClosingCents
		session.ClosedAt = &closedAt
		session.ClosingCents = &closing
		session.ClosedByID = &actor.UserID
		session.ApprovedByID = &approval.UserID
		session.ApprovalMethod = string(approval.Method)

		snapshot, err := s.buildSnapshot(ctx, tx, actor.TenantID, session, closing)
		if err != nil {
			return err
		}
		session.Snapshot = snapshot

		return sessions.Close(ctx, actor.TenantID, session)
	})
	if err != nil {
		span.RecordError(err)
		return nil, persistenceError("close cash session", err)
	}

	s.log.Info("cash session closed",
		"tenant_id", actor.TenantID,
		"session_id", session.ID,
		"expected_cents", session.Snapshot.ExpectedCashCents,
		"difference_cents", session.Snapshot.DifferenceCents)
	return session, nil
}

// Report returns the frozen snapshot of a closed session unchanged. Open sessions get
// a preview that assumes the drawer holds exactly the expected cash.
func (s *cashSessionService) Report(ctx context.Context, sessionID uuid.UUID) (*CashSessionReport, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() && session.Snapshot != nil {
		return &CashSessionReport{Snapshot: session.Snapshot}, nil
	}

	snapshot, err := s.buildSnapshot(ctx, s.db, actor.TenantID, session, 0)
	if err != nil {
		return nil, fmt.Errorf("build preview: %w", err)
	}
	snapshot.ClosedAt = time.Now()
	snapshot.ClosingCents = snapshot.ExpectedCashCents
	snapshot.DifferenceCents = 0
	return &CashSessionReport{Snapshot: snapshot, Preview: true}, nil
}

func (s *cashSessionService) ListOpen(ctx context.Context) ([]model.CashSession, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessionRepo.FindOpen(ctx, actor.TenantID)
}

func (s *cashSessionService) Get(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.FindByID(ctx, actor.TenantID, sessionID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrCashSessionNotFound
		}
		return nil, fmt.Errorf("load cash session: %w", err)
	}
	return session, nil
}

// buildSnapshot loads the session's sales and withdrawals through db and reconciles them
func (s *cashSessionService) buildSnapshot(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, session *model.CashSession, closingCents int64) (*model.CloseSnapshot, error) {
	sales, err := s.saleRepo.WithTx(db).FindFinalizedBySession(ctx, tenantID, session.ID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.sessionRepo.WithTx(db).FindWithdrawals(ctx, tenantID, session.ID)
	if err != nil {
		return nil, err
	}

	ids := []uuid.UUID{session.OpenedByID}
	if session.ClosedByID != nil {
		ids = append(ids, *session.ClosedByID)
	}
	if session.ApprovedByID != nil {
		ids = append(ids, *session.ApprovedByID)
	}
	for _, w := range withdrawals {
		ids = append(ids, w.CreatedByID)
	}
	users, err := s.userRepo.WithTx(db).FindByIDs(ctx, tenantID, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}

	closedAt := time.Time{}
	if session.ClosedAt != nil {
		closedAt = *session.ClosedAt
	}
	return reconcile(session, sales, withdrawals, names, closingCents, closedAt), nil
}

// reconcile computes the closing snapshot from already loaded rows
func reconcile(session *model.CashSession, sales []model.Sale, withdrawals []model.CashWithdrawal, names map[uuid.UUID]string, closingCents int64, closedAt time.Time) *model.CloseSnapshot {
	ref := func(id uuid.UUID) model.UserRef {
		return model.UserRef{ID: id, Name: names[id]}
	}
	optionalRef := func(id *uuid.UUID) *model.UserRef {
		if id == nil {
			return nil
		}
		r := ref(*id)
		return &r
	}

	snap := &model.CloseSnapshot{
		SessionID:      session.ID,
		RegisterLabel:  session.RegisterLabel,
		OpenedAt:       session.OpenedAt,
		ClosedAt:       closedAt,
		OpenedBy:       ref(session.OpenedByID),
		ClosedBy:       optionalRef(session.ClosedByID),
		ApprovedBy:     optionalRef(session.ApprovedByID),
		ApprovalMethod: session.ApprovalMethod,
		OpeningCents:   session.OpeningCents,
		ClosingCents:   closingCents,
		TotalsByMethod: map[model.PaymentMethod]int64{},
		StoreCredit:    []model.StoreCreditEntry{},
		Withdrawals:    []model.WithdrawalLine{},
	}

	credit := map[string]*model.StoreCreditEntry{}
	for _, sale := range sales {
		snap.SalesCount++
		snap.TotalSalesCents += sale.TotalCents
		snap.TotalChangeCents += sale.ChangeCents
		for _, p := range sale.Payments {
			snap.TotalsByMethod[p.Method] += p.AmountCents
			if p.Method != model.PaymentStoreCredit {
				continue
			}
			reference := fmt.Sprintf("Sale #%d", sale.Number)
			if p.ProviderRef != nil && strings.TrimSpace(*p.ProviderRef) != "" {
				reference = strings.TrimSpace(*p.ProviderRef)
			}
			entry, ok := credit[reference]
			if !ok {
				entry = &model.StoreCreditEntry{Reference: reference}
				credit[reference] = entry
			}
			entry.TotalCents += p.AmountCents
			entry.Count++
			snap.StoreCreditTotalCents += p.AmountCents
		}
	}
	for _, entry := range credit {
		snap.StoreCredit = append(snap.StoreCredit, *entry)
	}
	sort.Slice(snap.StoreCredit, func(i, j int) bool {
		return snap.StoreCredit[i].Reference < snap.StoreCredit[j].Reference
	})

	for _, w := range withdrawals {
		snap.TotalWithdrawalsCents += w.AmountCents
		snap.Withdrawals = append(snap.Withdrawals, model.WithdrawalLine{
			ID:            w.ID,
			AmountCents:   w.AmountCents,
			Reason:        w.Reason,
			CreatedByID:   w.CreatedByID,
			CreatedByName: names[w.CreatedByID],
			CreatedAt:     w.CreatedAt,
		})
	}

	snap.CashSalesNetCents = max(snap.TotalsByMethod[model.PaymentCash]-snap.TotalChangeCents, 0)
	snap.ExpectedCashCents = snap.OpeningCents + snap.CashSalesNetCents - snap.TotalWithdrawalsCents
	snap.DifferenceCents = snap.ClosingCents - snap.ExpectedCashCents
	return snap
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
