package models

import "time"

// CertificateStatus tracks issuance of a certificate.
type CertificateStatus string

const (
	CertificateStatusPending CertificateStatus = "PENDING"
	CertificateStatusIssued  CertificateStatus = "ISSUED"
)

// Certificate belongs to exactly one enrollment with confirmed attendance.
type Certificate struct {
	ID           string            `db:"id" json:"id"`
	EnrollmentID string            `db:"enrollment_id" json:"enrollment_id"`
	IssuedOn     time.Time         `db:"issued_on" json:"issued_on"`
	Text         string            `db:"text" json:"text"`
	Status       CertificateStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// CertificateDetail joins the certificate with its enrollment context.
type CertificateDetail struct {
	Certificate
	UserID    string `db:"user_id" json:"user_id"`
	UserName  string `db:"user_name" json:"user_name"`
	EventID   string `db:"event_id" json:"event_id"`
	EventName string `db:"event_name" json:"event_name"`
}

// IssuableEnrollment is a confirmed enrollment still lacking a certificate.
type IssuableEnrollment struct {
	EnrollmentID  string `db:"enrollment_id"`
	UserName      string `db:"user_name"`
	EventName     string `db:"event_name"`
	OrganizerName string `db:"organizer_name"`
}

// IssuanceResult summarises one issuance pass.
type IssuanceResult struct {
	EventID string `json:"event_id"`
	Issued  int    `json:"issued"`
}

// CertificateDownload is the rendered plain-text certificate.
type CertificateDownload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
