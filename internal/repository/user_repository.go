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

const userColumns = `id, name, phone, institution, email, login, password_hash, role, active, email_confirmed_at, created_at, updated_at`

// UserRepository provides database access for the identity store.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByLogin returns a user by login name.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, login); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	return &user, nil
}

// ExistsEmailOrLogin reports which of the two identifiers are already taken.
func (r *UserRepository) ExistsEmailOrLogin(ctx context.Context, email, login string) (emailTaken, loginTaken bool, err error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)) AS email_taken, EXISTS (SELECT 1 FROM users WHERE login = $2) AS login_taken`
	var row struct {
		EmailTaken bool `db:"email_taken"`
		LoginTaken bool `db:"login_taken"`
	}
	if err := r.db.GetContext(ctx, &row, query, email, login); err != nil {
		return false, false, fmt.Errorf("check user identifiers: %w", err)
	}
	return row.EmailTaken, row.LoginTaken, nil
}

// Create inserts a new user. Unique violations surface as ErrEmailTaken or
// ErrLoginTaken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, name, phone, institution, email, login, password_hash, role, active, email_confirmed_at, created_at, updated_at) VALUES (:id, :name, :phone, :institution, :email, :login, :password_hash, :role, :active, :email_confirmed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case constraintUsersEmail:
				return ErrEmailTaken
			case constraintUsersLogin:
				return ErrLoginTaken
			}
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Activate marks the account active and stamps the e-mail confirmation.
func (r *UserRepository) Activate(ctx context.Context, id string, confirmedAt time.Time) error {
	const query = `UPDATE users SET active = TRUE, email_confirmed_at = $2, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, confirmedAt)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByRole returns users of the given role ordered by name.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY name ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}
