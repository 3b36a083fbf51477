package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sgea-api/internal/models"
)

const certificateDetailSelect = `SELECT c.id, c.enrollment_id, c.issued_on, c.text, c.status, c.created_at,
en.user_id, u.name AS user_name, en.event_id, e.name AS event_name
FROM certificates c
JOIN enrollments en ON en.id = c.enrollment_id
JOIN users u ON u.id = en.user_id
JOIN events e ON e.id = en.event_id`

// CertificateRepository stores issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// ListIssuable returns confirmed enrollments of the event that lack a
// certificate, with the names needed to compose the certificate text.
func (r *CertificateRepository) ListIssuable(ctx context.Context, eventID string) ([]models.IssuableEnrollment, error) {
	const query = `SELECT en.id AS enrollment_id, u.name AS user_name, e.name AS event_name, o.name AS organizer_name
FROM enrollments en
JOIN users u ON u.id = en.user_id
JOIN events e ON e.id = en.event_id
JOIN users o ON o.id = e.organizer_id
WHERE en.event_id = $1 AND en.attendance_confirmed = TRUE
AND NOT EXISTS (SELECT 1 FROM certificates c WHERE c.enrollment_id = en.id)
ORDER BY u.name ASC`
	var rows []models.IssuableEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list issuable enrollments: %w", err)
	}
	return rows, nil
}

// CreateIfConfirmed inserts the certificate only when its enrollment still has
// confirmed attendance and no certificate yet. The enrollment row is share
// locked so a concurrent attendance clear waits for this insert. It reports
// whether a row was written.
func (r *CertificateRepository) CreateIfConfirmed(ctx context.Context, cert *models.Certificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, enrollment_id, issued_on, text, status, created_at)
SELECT $1, en.id, $3, $4, $5, $6 FROM enrollments en WHERE en.id = $2 AND en.attendance_confirmed = TRUE FOR SHARE
ON CONFLICT (enrollment_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, cert.ID, cert.EnrollmentID, cert.IssuedOn.Format(models.DateLayout), cert.Text, cert.Status, cert.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create certificate rows: %w", err)
	}
	return affected == 1, nil
}

// FindDetail returns a certificate joined with its owner and event.
func (r *CertificateRepository) FindDetail(ctx context.Context, id string) (*models.CertificateDetail, error) {
	query := certificateDetailSelect + ` WHERE c.id = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &detail, nil
}

// ListForUser returns the user's certificates, most recent first.
func (r *CertificateRepository) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	query := certificateDetailSelect + ` WHERE en.user_id = $1 ORDER BY c.issued_on DESC, e.name ASC`
	var rows []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list certificates for user: %w", err)
	}
	return rows, nil
}
