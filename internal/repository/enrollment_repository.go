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

const enrollmentDetailSelect = `SELECT en.id, en.user_id, en.event_id, en.attendance_confirmed, en.created_at,
u.name AS user_name, u.email AS user_email, e.name AS event_name, e.start_date AS event_start_date,
EXISTS (SELECT 1 FROM certificates c WHERE c.enrollment_id = en.id) AS has_certificate
FROM enrollments en
JOIN users u ON u.id = en.user_id
JOIN events e ON e.id = en.event_id`

// EnrollmentRepository is the enrollment ledger store.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, event_id, attendance_confirmed, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByUserAndEvent returns the user's enrollment in the event.
func (r *EnrollmentRepository) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, event_id, attendance_confirmed, created_at FROM enrollments WHERE user_id = $1 AND event_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by user and event: %w", err)
	}
	return &enrollment, nil
}

// CreateWithinCapacity inserts the enrollment while holding a row lock on the
// event, so the duplicate and capacity checks cannot interleave with another
// insert for the same event. It returns sql.ErrNoRows when the event does not
// exist.
func (r *EnrollmentRepository) CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	const lockQuery = `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &capacity, lockQuery, enrollment.EventID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock event: %w", err)
	}

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND event_id = $2)`
	if err = tx.GetContext(ctx, &exists, existsQuery, enrollment.UserID, enrollment.EventID); err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if exists {
		err = ErrEnrollmentDuplicate
		return err
	}

	var taken int
	const countQuery = `SELECT COUNT(*) FROM enrollments WHERE event_id = $1`
	if err = tx.GetContext(ctx, &taken, countQuery, enrollment.EventID); err != nil {
		return fmt.Errorf("count enrollments: %w", err)
	}
	if taken >= capacity {
		err = ErrEnrollmentCapacityReached
		return err
	}

	const insertQuery = `INSERT INTO enrollments (id, user_id, event_id, attendance_confirmed, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.UserID, enrollment.EventID, enrollment.AttendanceConfirmed, enrollment.CreatedAt); err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintEnrollmentsUserEvent {
			err = ErrEnrollmentDuplicate
			return err
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintEnrollmentsUserEvent {
			return ErrEnrollmentDuplicate
		}
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment; certificates cascade.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateAttendance sets the attendance flag. Clearing it is refused with
// ErrCertificateExists while a certificate references the enrollment. The
// enrollment row stays locked until commit, and issuance takes a share lock on
// the same row, so a clear and an issuance cannot both succeed.
func (r *EnrollmentRepository) UpdateAttendance(ctx context.Context, id string, confirmed bool) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current bool
	const lockQuery = `SELECT attendance_confirmed FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	if !confirmed {
		var issued bool
		const issuedQuery = `SELECT EXISTS (SELECT 1 FROM certificates WHERE enrollment_id = $1)`
		if err = tx.GetContext(ctx, &issued, issuedQuery, id); err != nil {
			return fmt.Errorf("check certificate: %w", err)
		}
		if issued {
			err = ErrCertificateExists
			return err
		}
	}

	const updateQuery = `UPDATE enrollments SET attendance_confirmed = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, confirmed); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}

// ListForEvent returns the event roster ordered by participant name.
func (r *EnrollmentRepository) ListForEvent(ctx context.Context, eventID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE en.event_id = $1 ORDER BY u.name ASC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list enrollments for event: %w", err)
	}
	return rows, nil
}

// ListForUser returns the user's enrollments ordered by event start date.
func (r *EnrollmentRepository) ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE en.user_id = $1 ORDER BY e.start_date ASC, e.name ASC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments for user: %w", err)
	}
	return rows, nil
}
