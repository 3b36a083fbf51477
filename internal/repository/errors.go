package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var (
	// ErrEmailTaken is returned when the users.email unique constraint fires.
	ErrEmailTaken = errors.New("email already registered")
	// ErrLoginTaken is returned when the users.login unique constraint fires.
	ErrLoginTaken = errors.New("login already registered")
	// ErrEnrollmentDuplicate is returned when the user already holds an enrollment.
	ErrEnrollmentDuplicate = errors.New("enrollment already exists")
	// ErrEnrollmentCapacityReached is returned when the event has no seat left.
	ErrEnrollmentCapacityReached = errors.New("event capacity reached")
	// ErrCertificateExists blocks clearing attendance of a certified enrollment.
	ErrCertificateExists = errors.New("certificate exists for enrollment")
)

const (
	constraintUsersEmail           = "users_email_key"
	constraintUsersLogin           = "users_login_key"
	constraintEnrollmentsUserEvent = "uq_enrollments_user_event"
)

// uniqueViolation reports whether err is a PostgreSQL unique violation and
// returns the offending constraint name.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
