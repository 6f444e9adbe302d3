package models

import "time"

// AdminRole represents the available roles for the RBAC system.
type AdminRole string

const (
	RoleSuperAdmin  AdminRole = "SUPER_ADMIN"
	RoleCampusAdmin AdminRole = "CAMPUS_ADMIN"
	RoleDeptAdmin   AdminRole = "DEPT_ADMIN"
)

// Admin represents an administrator stored in the admins table.
type Admin struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         AdminRole  `db:"role" json:"role"`
	CampusID     *string    `db:"campus_id" json:"campus_id,omitempty"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// QueryScope narrows grievance queries to what the acting admin may see.
// Zero values mean unscoped. The tracking engine never inspects roles
// directly; handlers resolve claims to a scope before reaching it.
type QueryScope struct {
	CampusID     string
	DepartmentID string
}

// Unscoped reports whether the scope applies no filter at all.
func (s QueryScope) Unscoped() bool {
	return s.CampusID == "" && s.DepartmentID == ""
}

// ScopeForClaims maps an admin role to its query scope.
func ScopeForClaims(claims *JWTClaims) QueryScope {
	if claims == nil {
		return QueryScope{}
	}
	switch claims.Role {
	case RoleCampusAdmin:
		return QueryScope{CampusID: claims.CampusID}
	case RoleDeptAdmin:
		return QueryScope{CampusID: claims.CampusID, DepartmentID: claims.DepartmentID}
	default:
		return QueryScope{}
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
