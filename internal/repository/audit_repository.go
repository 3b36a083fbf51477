package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sgea-api/internal/models"
)

// AuditRepository appends and queries audit entries. It never updates or
// deletes rows.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_entries (id, actor_id, action, category, created_at) VALUES (:id, :actor_id, :action, :category, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, newest first. Filter.Limit must be
// positive.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.Date != nil {
		y, m, d := filter.Date.Date()
		from := time.Date(y, m, d, 0, 0, 0, 0, filter.Date.Location())
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d AND a.created_at < $%d", len(args)+1, len(args)+2))
		args = append(args, from, from.AddDate(0, 0, 1))
	}
	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("a.actor_id = $%d", len(args)+1))
		args = append(args, filter.ActorID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("a.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}

	query := `SELECT a.id, a.actor_id, u.name AS actor_name, a.action, a.category, a.created_at FROM audit_entries a LEFT JOIN users u ON u.id = a.actor_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT %d", filter.Limit)

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
