package models

import "time"

// Enrollment is a user's registration in an event. At most one exists per
// (user, event) pair.
type Enrollment struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	EventID             string    `db:"event_id" json:"event_id"`
	AttendanceConfirmed bool      `db:"attendance_confirmed" json:"attendance_confirmed"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with user and event info.
type EnrollmentDetail struct {
	Enrollment
	UserName       string    `db:"user_name" json:"user_name"`
	UserEmail      string    `db:"user_email" json:"user_email"`
	EventName      string    `db:"event_name" json:"event_name"`
	EventStartDate time.Time `db:"event_start_date" json:"event_start_date"`
	HasCertificate bool      `db:"has_certificate" json:"has_certificate"`
}
