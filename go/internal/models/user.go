package models

import (
	"time"
)

// UserRole distinguishes global admins from regular users
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

// User represents a registered participant. Credentials live with the auth layer.
type User struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	TeamName  string    `json:"teamName"`
	Logo      string    `json:"logo"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
