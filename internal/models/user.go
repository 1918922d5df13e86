package models

import "strings"

// Role is the authorization level stored on an identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
	RoleNone     Role = "none"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleNone:
		return true
	default:
		return false
	}
}

// Theme is the storefront colour scheme a user prefers.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// User represents an identity provisioned from the external OAuth provider.
// Email is the natural key and is always stored lower-cased.
type User struct {
	BaseModel
	Email    string  `gorm:"uniqueIndex;not null" json:"email"`
	Name     string  `json:"name"`
	Avatar   string  `json:"avatar,omitempty"`
	Role     Role    `gorm:"type:varchar(16);not null;default:customer;index" json:"role"`
	GoogleID *string `gorm:"index" json:"-"`
	Theme    Theme   `gorm:"type:varchar(8);not null;default:light" json:"theme"`
}

// IsAdmin reports whether the stored role is admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail case-folds and trims an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
