package model

import (
	"time"

	"github.com/google/uuid"
)

// CashSession is a single drawer shift from open to close.
// Label uniqueness among open sessions is backed by a partial unique index.
type CashSession struct {
	BaseModel
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_cash_sessions_open_label,priority:1,where:closed_at IS NULL" json:"tenantId"`
	RegisterLabel  *string    `gorm:"type:varchar(64);uniqueIndex:idx_cash_sessions_open_label,priority:2" json:"registerLabel,omitempty"`
	OpenedByID     uuid.UUID  `gorm:"type:uuid;not null" json:"openedById"`
	OpeningCents   int64      `gorm:"not null" json:"openingCents"`
	OpenedAt       time.Time  `gorm:"not null" json:"openedAt"`
	ClosedAt       *time.Time `gorm:"index" json:"closedAt,omitempty"`
	ClosingCents   *int64     `json:"closingCents,omitempty"`
	ClosedByID     *uuid.UUID `gorm:"type:uuid" json:"closedById,omitempty"`
	ApprovedByID   *uuid.UUID `gorm:"type:uuid" json:"approvedById,omitempty"`
	ApprovalMethod string     `gorm:"type:varchar(10)" json:"approvalMethod,omitempty"`

	Snapshot *CloseSnapshot `gorm:"type:jsonb;serializer:json" json:"snapshot,omitempty"`
}

func (s *CashSession) IsOpen() bool {
	return s.ClosedAt == nil
}

// CashWithdrawal removes cash from an open drawer with supervisor approval
type CashWithdrawal struct {
	TenantModel
	CashSessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"cashSessionId"`
	AmountCents   int64     `gorm:"not null" json:"amountCents"`
	Reason        string    `gorm:"type:text" json:"reason"`
	CreatedByID   uuid.UUID `gorm:"type:uuid;not null" json:"createdById"`
	ApprovedByID  uuid.UUID `gorm:"type:uuid;not null" json:"approvedById"`
}

// CloseSnapshot is the frozen reconciliation written when a session closes.
// Its JSON shape is a stable external contract.
type CloseSnapshot struct {
	SessionID      uuid.UUID `json:"sessionId"`
	RegisterLabel  *string   `json:"registerLabel,omitempty"`
	OpenedAt       time.Time `json:"openedAt"`
	ClosedAt       time.Time `json:"closedAt"`
	OpenedBy       UserRef   `json:"openedBy"`
	ClosedBy       *UserRef  `json:"closedBy,omitempty"`
	ApprovedBy     *UserRef  `json:"approvedBy,omitempty"`
	ApprovalMethod string    `json:"approvalMethod,omitempty"`

	OpeningCents int64 `json:"openingCents"`
	ClosingCents int64 `json:"closingCents"`

	TotalsByMethod        map[PaymentMethod]int64 `json:"totalsByMethod"`
	SalesCount            int                     `json:"salesCount"`
	TotalSalesCents       int64                   `json:"totalSalesCents"`
	TotalChangeCents      int64                   `json:"totalChangeCents"`
	TotalWithdrawalsCents int64                   `json:"totalWithdrawalsCents"`
	CashSalesNetCents     int64                   `json:"cashSalesNetCents"`
	ExpectedCashCents     int64                   `json:"expectedCashCents"`
	DifferenceCents       int64                   `json:"differenceCents"`

	StoreCredit           []StoreCreditEntry `json:"storeCredit"`
	StoreCreditTotalCents int64              `json:"storeCreditTotalCents"`
	Withdrawals           []WithdrawalLine   `json:"withdrawals"`
}

type StoreCreditEntry struct {
	Reference  string `json:"reference"`
	TotalCents int64  `json:"totalCents"`
	Count      int    `json:"count"`
}

type WithdrawalLine struct {
	ID            uuid.UUID `json:"id"`
	AmountCents   int64     `json:"amountCents"`
	Reason        string    `json:"reason"`
	CreatedByID   uuid.UUID `json:"createdById"`
	CreatedByName string    `json:"createdByName"`
	CreatedAt     time.Time `json:"createdAt"`
}
