package service

import (
	"context"
	"testing"
	"time"

	"go-retail-ledger/internal/model"
	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EnforcesOpenSessionCap(t *testing.T) {
	f := newFixture(t)
	first := f.openSession(t, f.operator, 0)

	_, err := f.sessions.Open(f.as(f.manager), &OpenCashSessionRequest{})
	require.ErrorIs(t, err, ErrMaxOpenCashSessions)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 1, appErr.Details["max"])
	assert.Equal(t, int64(1), appErr.Details["open"])

	_, err = f.sessions.Close(f.as(f.operator), first.ID, &CloseCashSessionRequest{SupervisorCredential: managerPIN})
	require.NoError(t, err)

	second := f.openSession(t, f.manager, 500)
	assert.True(t, second.IsOpen())

	open, err := f.sessions.ListOpen(f.as(f.owner))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}

func TestOpen_RegisterLabelUniqueAmongOpen(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&model.Tenant{}).Where("id = ?", f.tenant.ID).Update("max_open_cash_sessions", 3).Error)

	a, err := f.sessions.Open(f.as(f.operator), &OpenCashSessionRequest{RegisterLabel: "POS-1"})
	require.NoError(t, err)

	_, err = f.sessions.Open(f.as(f.manager), &OpenCashSessionRequest{RegisterLabel: " POS-1 "})
	assert.ErrorIs(t, err, ErrRegisterLabelInUse)

	_, err = f.sessions.Open(f.as(f.manager), &OpenCashSessionRequest{RegisterLabel: "POS-2"})
	require.NoError(t, err)

	// a closed session frees its label
	_, err = f.sessions.Close(f.as(f.operator), a.ID, &CloseCashSessionRequest{SupervisorCredential: managerPIN})
	require.NoError(t, err)
	_, err = f.sessions.Open(f.as(f.owner), &OpenCashSessionRequest{RegisterLabel: "POS-1"})
	require.NoError(t, err)
}

func TestOpen_InactiveTenant(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&model.Tenant{}).Where("id = ?", f.tenant.ID).Update("is_active", false).Error)

	_, err := f.sessions.Open(f.as(f.operator), &OpenCashSessionRequest{})
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	session := f.openSession(t, f.operator, 10000)

	_, err := f.sessions.Withdraw(f.as(f.operator), session.ID, &WithdrawRequest{AmountCents: 1000, SupervisorCredential: "nope"})
	assert.ErrorIs(t, err, ErrApprovalFailed)

	_, err = f.sessions.Withdraw(f.as(f.operator), session.ID, &WithdrawRequest{AmountCents: 0, SupervisorCredential: managerPIN})
	assert.Equal(t, "INVALID_INPUT", codeOf(err))

	res, err := f.sessions.Withdraw(f.as(f.operator), session.ID, &WithdrawRequest{AmountCents: 1000, Reason: "bank run", SupervisorCredential: managerPIN})
	require.NoError(t, err)
	assert.Equal(t, f.manager.ID, res.Withdrawal.ApprovedByID)
	assert.Equal(t, f.operator.ID, res.Withdrawal.CreatedByID)
	assert.Equal(t, f.tenant.ID, res.Withdrawal.TenantID)

	_, err = f.sessions.Close(f.as(f.operator), session.ID, &CloseCashSessionRequest{ClosingCents: 9000, SupervisorCredential: managerPIN})
	require.NoError(t, err)

	_, err = f.sessions.Withdraw(f.as(f.operator), session.ID, &WithdrawRequest{AmountCents: 1000, SupervisorCredential: managerPIN})
	assert.ErrorIs(t, err, ErrCashSessionClosed)
}

// The canonical drawer day: open 100.00, sell 2 x 25.00 in cash, withdraw 15.00, close with 135.00
func TestCashSession_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.store, 10)
	ctx := f.as(f.operator)

	session := f.openSession(t, f.operator, 10000)

	sale, err := f.sales.CreateSale(ctx, f.cashSale(session, 2, 5000))
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sale.Sale.TotalCents)

	_, err = f.sessions.Withdraw(ctx, session.ID, &WithdrawRequest{AmountCents: 1500, Reason: "change run", SupervisorCredential: managerPIN})
	require.NoError(t, err)

	preview, err := f.sessions.Report(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, preview.Preview)
	assert.Equal(t, int64(13500), preview.Snapshot.ExpectedCashCents)
	assert.Zero(t, preview.Snapshot.DifferenceCents)

	closed, err := f.sessions.Close(ctx, session.ID, &CloseCashSessionRequest{ClosingCents: 13500, SupervisorCredential: managerPIN})
	require.NoError(t, err)
	require.NotNil(t, closed.Snapshot)

	snap := closed.Snapshot
	assert.Equal(t, int64(10000), snap.OpeningCents)
	assert.Equal(t, 1, snap.SalesCount)
	assert.Equal(t, int64(5000), snap.TotalSalesCents)
	assert.Equal(t, int64(5000), snap.TotalsByMethod[model.PaymentCash])
	assert.Equal(t, int64(5000), snap.CashSalesNetCents)
	assert.Equal(t, int64(1500), snap.TotalWithdrawalsCents)
	assert.Equal(t, int64(13500), snap.ExpectedCashCents)
	assert.Equal(t, int64(13500), snap.ClosingCents)
	assert.Zero(t, snap.DifferenceCents)
	assert.Equal(t, "Otto Operator", snap.OpenedBy.Name)
	require.NotNil(t, snap.ApprovedBy)
	assert.Equal(t, "Mario Manager", snap.ApprovedBy.Name)
	assert.Equal(t, string(ApprovalByPIN), snap.ApprovalMethod)
	require.Len(t, snap.Withdrawals, 1)
	assert.Equal(t, "Otto Operator", snap.Withdrawals[0].CreatedByName)

	_, err = f.sessions.Close(ctx, session.ID, &CloseCashSessionRequest{ClosingCents: 13500, SupervisorCredential: managerPIN})
	assert.ErrorIs(t, err, ErrCashSessionAlreadyClosed)
}

func TestCashSession_CanceledSalesLeaveTheDrawer(t *testing.T) {
	f := newFixture(t)
	f.stock(t, f.store, 10)
	ctx := f.as(f.operator)
	session := f.openSession(t, f.operator, 0)

	kept, err := f.sales.CreateSale(ctx, f.cashSale(session, 1, 3000))
	require.NoError(t, err)
	voided, err := f.sales.CreateSale(ctx, f.cashSale(session, 2, 5000))
	require.NoError(t, err)
	_, err = f.sales.CancelSale(ctx, voided.Sale.ID, &CancelSaleRequest{Reason: "wrong item", SupervisorCredential: managerPIN})
	require.NoError(t, err)

	closed, err := f.sessions.Close(ctx, session.ID, &CloseCashSessionRequest{ClosingCents: 2000, SupervisorCredential: managerPIN})
	require.NoError(t, err)
	assert.Equal(t, 1, closed.Snapshot.SalesCount)
	assert.Equal(t, kept.Sale.TotalCents, closed.Snapshot.TotalSalesCents)
	assert.Equal(t, int64(500), closed.Snapshot.TotalChangeCents)
	assert.Equal(t, int64(2500), closed.Snapshot.ExpectedCashCents)
	assert.Equal(t, int64(-500), closed.Snapshot.DifferenceCents)
}

func TestReport_ClosedSnapshotIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := f.as(f.operator)
	session := f.openSession(t, f.operator, 2000)

	_, err := f.sessions.Close(ctx, session.ID, &CloseCashSessionRequest{ClosingCents: 2100, SupervisorCredential: managerPIN})
	require.NoError(t, err)

	before, err := f.sessions.Report(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, before.Preview)

	// later changes to the underlying rows do not leak into the stored report
	scope := tenant.WithTenant(context.Background(), f.tenant.ID)
	require.NoError(t, f.db.WithContext(scope).Model(&model.User{}).Where("id = ?", f.operator.ID).Update("full_name", "Renamed").Error)
	late := model.CashWithdrawal{CashSessionID: session.ID, AmountCents: 700, CreatedByID: f.operator.ID, ApprovedByID: f.manager.ID}
	require.NoError(t, f.db.WithContext(scope).Create(&late).Error)

	after, err := f.sessions.Report(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, after.Preview)
	assert.Equal(t, "Otto Operator", after.Snapshot.OpenedBy.Name)
	assert.Zero(t, after.Snapshot.TotalWithdrawalsCents)
	assert.Equal(t, int64(2000), after.Snapshot.ExpectedCashCents)
	assert.Equal(t, int64(100), after.Snapshot.DifferenceCents)
	assert.Equal(t, before.Snapshot.ClosedAt.Unix(), after.Snapshot.ClosedAt.Unix())
}

func TestReport_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Report(f.as(f.manager), uuid.New())
	assert.ErrorIs(t, err, ErrCashSessionNotFound)
}

func TestReconcile_StoreCreditItemization(t *testing.T) {
	operator := uuid.New()
	session := &model.CashSession{OpenedByID: operator, OpeningCents: 1000}
	session.ID = uuid.New()
	ref := func(s string) *string { return &s }

	sales := []model.Sale{
		{Number: 1, TotalCents: 3000, ChangeCents: 0, Payments: []model.Payment{
			{Method: model.PaymentStoreCredit, AmountCents: 2000, ProviderRef: ref("Maria")},
			{Method: model.PaymentCash, AmountCents: 1000},
		}},
		{Number: 2, TotalCents: 1500, ChangeCents: 500, Payments: []model.Payment{
			{Method: model.PaymentCash, AmountCents: 2000},
		}},
		{Number: 3, TotalCents: 800, Payments: []model.Payment{
			{Method: model.PaymentStoreCredit, AmountCents: 800, ProviderRef: ref(" Maria ")},
		}},
		{Number: 4, TotalCents: 400, Payments: []model.Payment{
			{Method: model.PaymentStoreCredit, AmountCents: 400},
		}},
		{Number: 5, TotalCents: 900, Payments: []model.Payment{
			{Method: model.PaymentPix, AmountCents: 900},
		}},
	}
	withdrawals := []model.CashWithdrawal{{AmountCents: 300, CreatedByID: operator}}
	names := map[uuid.UUID]string{operator: "Otto"}
	closedAt := time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC)

	snap := reconcile(session, sales, withdrawals, names, 3200, closedAt)

	assert.Equal(t, 5, snap.SalesCount)
	assert.Equal(t, int64(6600), snap.TotalSalesCents)
	assert.Equal(t, int64(3000), snap.TotalsByMethod[model.PaymentCash])
	assert.Equal(t, int64(900), snap.TotalsByMethod[model.PaymentPix])
	assert.Equal(t, int64(3200), snap.TotalsByMethod[model.PaymentStoreCredit])
	assert.Equal(t, int64(2500), snap.CashSalesNetCents)
	assert.Equal(t, int64(3200), snap.ExpectedCashCents)
	assert.Zero(t, snap.DifferenceCents)
	assert.Equal(t, closedAt, snap.ClosedAt)

	assert.Equal(t, int64(3200), snap.StoreCreditTotalCents)
	assert.Equal(t, []model.StoreCreditEntry{
		{Reference: "Maria", TotalCents: 2800, Count: 2},
		{Reference: "Sale #4", TotalCents: 400, Count: 1},
	}, snap.StoreCredit)

	require.Len(t, snap.Withdrawals, 1)
	assert.Equal(t, "Otto", snap.Withdrawals[0].CreatedByName)
	assert.Nil(t, snap.ClosedBy)
}

func TestReconcile_CashNetNeverNegative(t *testing.T) {
	session := &model.CashSession{OpeningCents: 500}
	sales := []model.Sale{{TotalCents: 1000, ChangeCents: 200, Payments: []model.Payment{
		{Method: model.PaymentDebit, AmountCents: 1000},
	}}}

	snap := reconcile(session, sales, nil, nil, 500, time.Time{})
	assert.Zero(t, snap.CashSalesNetCents)
	assert.Equal(t, int64(500), snap.ExpectedCashCents)
	assert.NotNil(t, snap.StoreCredit)
	assert.NotNil(t, snap.Withdrawals)
}
