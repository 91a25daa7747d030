package model

// Tenant is a store. It is not tenant-scoped itself.
type Tenant struct {
	BaseModel
	Name                string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email               string `gorm:"type:varchar(255)" json:"email" validate:"omitempty,email"`
	TaxID               string `gorm:"type:varchar(32)" json:"taxId"`
	IsActive            bool   `gorm:"not null" json:"isActive"`
	MaxOpenCashSessions int    `gorm:"not null;default:1" json:"maxOpenCashSessions"`
}

const DefaultMaxOpenCashSessions = 1

// OpenSessionLimit returns the configured cap, falling back to the default for unset rows
func (t *Tenant) OpenSessionLimit() int {
	if t.MaxOpenCashSessions <= 0 {
		return DefaultMaxOpenCashSessions
	}
	return t.MaxOpenCashSessions
}
