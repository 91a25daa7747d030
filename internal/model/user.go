package model

import (
	"crypto/subtle"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// legacyPINPrefix marks PINs stored before hashing was introduced
const legacyPINPrefix = "plain:"

// User belongs to exactly one tenant
type User struct {
	BaseModel
	TenantID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_users_tenant_email,priority:1" json:"tenantId"`
	Email         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_tenant_email,priority:2" json:"email" validate:"required,email"`
	Password      string    `gorm:"type:varchar(255);not null" json:"-"`
	SupervisorPIN string    `gorm:"type:varchar(255)" json:"-"`
	FullName      string    `gorm:"type:varchar(255)" json:"fullName" validate:"required"`
	Role          Role      `gorm:"type:varchar(20);not null;index" json:"role" validate:"required,oneof=OPERATOR MANAGER OWNER"`
	IsActive      bool      `gorm:"not null" json:"isActive"`
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// SetPIN hashes and sets the supervisor PIN
func (u *User) SetPIN(pin string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.SupervisorPIN = string(hashed)
	return nil
}

// CheckPIN verifies a supervisor PIN. Stored values that are not bcrypt hashes are
// legacy plain-text PINs, optionally carrying the "plain:" prefix.
func (u *User) CheckPIN(pin string) bool {
	stored := u.SupervisorPIN
	if stored == "" || pin == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil
	}
	stored = strings.TrimPrefix(stored, legacyPINPrefix)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1
}

// HasLegacyPIN reports whether the PIN is still stored in plain text
func (u *User) HasLegacyPIN() bool {
	return u.SupervisorPIN != "" && !isBcryptHash(u.SupervisorPIN)
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// UserRef is the minimal user projection stored in snapshots
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.FullName}
}
