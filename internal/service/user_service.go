package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/repository"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/token"
)

var (
	phonePattern    = regexp2.MustCompile(`^\(\d{2}\) \d{4,5}-\d{4}$`, regexp2.None)
	passwordPattern = regexp2.MustCompile(`^(?=.*[A-Za-z])(?=.*\d)(?=.*[^A-Za-z0-9]).{8,}$`, regexp2.Singleline)
)

const (
	tokenStatePending   = "pending"
	tokenStateConfirmed = "confirmed"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsEmailOrLogin(ctx context.Context, email, login string) (bool, bool, error)
	Create(ctx context.Context, user *models.User) error
	Activate(ctx context.Context, id string, confirmedAt time.Time) error
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// RegisterUserRequest is the sign-up payload.
type RegisterUserRequest struct {
	Name                 string          `json:"name" validate:"required,max=255"`
	Phone                string          `json:"phone" validate:"required"`
	Institution          string          `json:"institution" validate:"max=255"`
	Email                string          `json:"email" validate:"required,email,max=255"`
	Login                string          `json:"login" validate:"required,max=150"`
	Role                 models.UserRole `json:"role" validate:"required,oneof=STUDENT PROFESSOR ORGANIZER"`
	Password             string          `json:"password" validate:"required"`
	PasswordConfirmation string          `json:"password_confirmation" validate:"required"`
}

// RegistrationConfig controls sign-up behaviour.
type RegistrationConfig struct {
	ActivateOnSignup bool
	APIPrefix        string
}

// UserService is the identity store: registration, activation and lookups.
type UserService struct {
	repo      userRepository
	tokens    *token.Signer
	notifier  Notifier
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    RegistrationConfig
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, tokens *token.Signer, notifier Notifier, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg RegistrationConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, tokens: tokens, notifier: notifier, audit: audit, validator: validate, logger: logger, config: cfg}
}

// Register creates an account and sends the activation link. A notifier
// failure is logged and never undoes the registration.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest, baseURL string) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Login = strings.TrimSpace(req.Login)
	req.Institution = strings.TrimSpace(req.Institution)

	if err := s.validateRegistration(ctx, req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Phone:        req.Phone,
		Institution:  req.Institution,
		Email:        req.Email,
		Login:        req.Login,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       s.config.ActivateOnSignup,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, appErrors.Validation("registration rejected", map[string]string{"email": "already registered"})
		case errors.Is(err, repository.ErrLoginTaken):
			return nil, appErrors.Validation("registration rejected", map[string]string{"login": "already registered"})
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit.Record(ctx, &user.ID, userCreationAction(user))
	s.sendActivation(ctx, user, baseURL)
	return user, nil
}

// ConfirmEmail validates the activation token and activates the account.
// Tokens are bound to the unconfirmed state, so each works once.
func (s *UserService) ConfirmEmail(ctx context.Context, userID, tok string, now time.Time) (*models.User, error) {
	invalid := appErrors.Validation("invalid or expired activation link", map[string]string{"token": "invalid or expired"})

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invalid
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if err := s.tokens.Verify(tok, user.ID, tokenState(user), now); err != nil {
		s.logger.Info("activation token rejected", zap.String("user_id", user.ID), zap.Error(err))
		return nil, invalid
	}

	confirmedAt := now.UTC()
	if err := s.repo.Activate(ctx, user.ID, confirmedAt); err != nil {
		return nil, appErrors.Internal(err, "failed to activate user")
	}
	user.Active = true
	user.EmailConfirmedAt = &confirmedAt

	s.audit.Record(ctx, &user.ID, activationAction(user))
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Role returns the role of a user.
func (s *UserService) Role(ctx context.Context, id string) (models.UserRole, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// ListProfessors returns the users eligible as responsible professor.
func (s *UserService) ListProfessors(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListByRole(ctx, models.RoleProfessor)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list professors")
	}
	return users, nil
}

// ActivationLink builds the confirmation URL for user.
func (s *UserService) ActivationLink(user *models.User, baseURL string, now time.Time) (string, error) {
	tok, _, err := s.tokens.Generate(user.ID, tokenState(user), now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/auth/confirm/%s/%s", strings.TrimRight(baseURL, "/"), s.config.APIPrefix, user.ID, tok), nil
}

func (s *UserService) sendActivation(ctx context.Context, user *models.User, baseURL string) {
	link, err := s.ActivationLink(user, baseURL, time.Now())
	if err != nil {
		s.logger.Error("failed to build activation link", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRegistration(ctx, user, link); err != nil {
		s.logger.Warn("registration notification failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *UserService) validateRegistration(ctx context.Context, req RegisterUserRequest) error {
	var details map[string]string
	if err := s.validator.Struct(req); err != nil {
		details = validationError(err, "").Details
	}

	if req.Phone != "" && !matches(phonePattern, req.Phone) {
		details = mergeDetails(details, "phone", "must use the format (XX) XXXX-XXXX or (XX) XXXXX-XXXX")
	}
	if req.Password != "" && !matches(passwordPattern, req.Password) {
		details = mergeDetails(details, "password", "must have at least 8 characters with letters, digits and special characters")
	}
	if req.PasswordConfirmation != "" && req.Password != req.PasswordConfirmation {
		details = mergeDetails(details, "password_confirmation", "does not match password")
	}
	if (req.Role == models.RoleStudent || req.Role == models.RoleProfessor) && req.Institution == "" {
		details = mergeDetails(details, "institution", "is required for students and professors")
	}

	if req.Email != "" && req.Login != "" {
		emailTaken, loginTaken, err := s.repo.ExistsEmailOrLogin(ctx, req.Email, req.Login)
		if err != nil {
			return appErrors.Internal(err, "failed to check user identifiers")
		}
		if emailTaken {
			details = mergeDetails(details, "email", "already registered")
		}
		if loginTaken {
			details = mergeDetails(details, "login", "already registered")
		}
	}

	if len(details) > 0 {
		return appErrors.Validation("registration rejected", details)
	}
	return nil
}

func tokenState(user *models.User) string {
	if user.EmailConfirmed() {
		return tokenStateConfirmed
	}
	return tokenStatePending
}

func matches(re *regexp2.Regexp, value string) bool {
	ok, err := re.MatchString(value)
	return err == nil && ok
}
