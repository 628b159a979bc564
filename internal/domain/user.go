package domain

import "time"

// Role governs which transitions and assignments a user may perform.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleAnalyst   Role = "ANALYST"
	RoleManager   Role = "MANAGER"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleAnalyst, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is a person who raises, works or supervises cases.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
