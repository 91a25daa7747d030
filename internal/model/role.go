package model

// Role is the fixed privilege level of a user inside a tenant
type Role string

// Role codes as constants
const (
	RoleOperator Role = "OPERATOR"
	RoleManager  Role = "MANAGER"
	RoleOwner    Role = "OWNER"
)

// PrivilegedRoles are the roles allowed to approve supervisor actions
var PrivilegedRoles = []Role{RoleManager, RoleOwner}

func (r Role) IsValid() bool {
	switch r {
	case RoleOperator, RoleManager, RoleOwner:
		return true
	}
	return false
}

// IsPrivileged reports whether the role is one of the two highest
func (r Role) IsPrivileged() bool {
	return r == RoleManager || r == RoleOwner
}
