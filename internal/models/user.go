package models

import "time"

// UserRole represents the profile a user registered with.
type UserRole string

const (
	RoleStudent   UserRole = "STUDENT"
	RoleProfessor UserRole = "PROFESSOR"
	RoleOrganizer UserRole = "ORGANIZER"
)

// Valid reports whether the role is one of the known profiles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleOrganizer:
		return true
	}
	return false
}

// Label returns the display name used in audit messages.
func (r UserRole) Label() string {
	switch r {
	case RoleStudent:
		return "Aluno"
	case RoleProfessor:
		return "Professor"
	case RoleOrganizer:
		return "Organizador"
	}
	return string(r)
}

// User represents an application user stored in the users table.
type User struct {
	ID               string     `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Phone            string     `db:"phone" json:"phone"`
	Institution      string     `db:"institution" json:"institution"`
	Email            string     `db:"email" json:"email"`
	Login            string     `db:"login" json:"login"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	Role             UserRole   `db:"role" json:"role"`
	Active           bool       `db:"active" json:"active"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at" json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// EmailConfirmed reports whether the activation link was already used.
func (u *User) EmailConfirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil
}
