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

const eventColumns = `id, name, type, start_date, end_date, schedule, location, capacity, organizer_id, responsible_professor_id, banner_url, created_at, updated_at`

// EventRepository persists the event catalog.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts an event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `INSERT INTO events (id, name, type, start_date, end_date, schedule, location, capacity, organizer_id, responsible_professor_id, banner_url, created_at, updated_at) VALUES (:id, :name, :type, :start_date, :end_date, :schedule, :location, :capacity, :organizer_id, :responsible_professor_id, :banner_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an event. The organizer never changes.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET name = :name, type = :type, start_date = :start_date, end_date = :end_date, schedule = :schedule, location = :location, capacity = :capacity, responsible_professor_id = :responsible_professor_id, banner_url = :banner_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns the event or sql.ErrNoRows.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 LIMIT 1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	return &event, nil
}

// ListUpcoming returns events whose start date is after `after`, ordered by
// start date. When viewerID is set, events the viewer is enrolled in are left
// out.
func (r *EventRepository) ListUpcoming(ctx context.Context, after time.Time, viewerID string) ([]models.EventSummary, error) {
	query := `SELECT e.id, e.name, e.location, e.start_date, u.name AS organizer_name FROM events e JOIN users u ON u.id = e.organizer_id WHERE e.start_date > $1`
	args := []interface{}{after.Format(models.DateLayout)}
	if viewerID != "" {
		query += ` AND NOT EXISTS (SELECT 1 FROM enrollments en WHERE en.event_id = e.id AND en.user_id = $2)`
		args = append(args, viewerID)
	}
	query += ` ORDER BY e.start_date ASC, e.name ASC`

	var events []models.EventSummary
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// ListByOrganizer returns the organizer's events ordered by start date.
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 ORDER BY start_date ASC, name ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, organizerID); err != nil {
		return nil, fmt.Errorf("list events by organizer: %w", err)
	}
	return events, nil
}

// CountEnrollments returns how many seats of the event are taken.
func (r *EventRepository) CountEnrollments(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE event_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count event enrollments: %w", err)
	}
	return count, nil
}
