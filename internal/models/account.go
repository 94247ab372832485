package models

import "time"

// Role identifies one of the catalog roles an account may hold.
type Role string

const (
	RoleStudent Role = "Student"
	RoleTutor   Role = "Tutor"
	RoleAdmin   Role = "Admin"
)

// CatalogRoles lists every role the catalog ships with.
var CatalogRoles = []Role{RoleStudent, RoleTutor, RoleAdmin}

// Account represents a login identity stored in the accounts table.
// Role memberships live in account_roles and are loaded separately.
type Account struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Surname      string    `db:"surname" json:"surname"`
	IsApproved   bool      `db:"is_approved" json:"is_approved"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	// Roles is populated from account_roles when listing; not a column.
	Roles []Role `db:"-" json:"roles"`
}

// FullName joins the name parts for display.
func (a *Account) FullName() string {
	if a.FirstName == "" {
		return a.Surname
	}
	if a.Surname == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.Surname
}

// HasRole reports whether the loaded membership set contains the role.
func (a *Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Approved  *bool
	Role      *Role
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
