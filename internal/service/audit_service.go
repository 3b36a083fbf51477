package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

// auditRecorder is the write side used by the other services.
type auditRecorder interface {
	Record(ctx context.Context, actorID *string, action string)
}

// AuditConfig bounds audit queries and fixes the calendar used by date filters.
type AuditConfig struct {
	DefaultLimit int
	MaxLimit     int
	Location     *time.Location
}

// AuditQuery filters the audit log. Date uses the YYYY-MM-DD layout.
type AuditQuery struct {
	Date     string `form:"date"`
	ActorID  string `form:"user_id"`
	Category string `form:"category"`
	Limit    int    `form:"limit"`
}

// AuditService appends to and reads the audit log.
type AuditService struct {
	repo    auditRepository
	metrics *MetricsService
	logger  *zap.Logger
	config  AuditConfig
}

// NewAuditService constructs AuditService.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 200
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger, config: cfg}
}

// Record appends an entry. It never fails the caller: persistence errors are
// logged and counted. The write outlives a cancelled request context.
func (s *AuditService) Record(ctx context.Context, actorID *string, action string) {
	ctx = context.WithoutCancel(ctx)
	entry := &models.AuditEntry{ActorID: actorID, Action: action}
	if category, ok := models.ClassifyAction(action); ok {
		entry.Category = &category
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.metrics.IncAuditWriteFailure()
		fields := []zap.Field{zap.String("action", action), zap.Error(err)}
		if actorID != nil {
			fields = append(fields, zap.String("actor_id", *actorID))
		}
		s.logger.Warn("failed to record audit entry", fields...)
	}
}

// Query returns entries newest first, capped at the configured limits.
func (s *AuditService) Query(ctx context.Context, q AuditQuery) ([]models.AuditEntry, error) {
	filter := models.AuditFilter{ActorID: q.ActorID, Limit: q.Limit}

	if q.Date != "" {
		day, err := time.ParseInLocation(models.DateLayout, q.Date, s.config.Location)
		if err != nil {
			return nil, appErrors.Validation("invalid audit filter", map[string]string{"date": "must use YYYY-MM-DD"})
		}
		filter.Date = &day
	}
	if q.Category != "" {
		category := models.AuditCategory(q.Category)
		if !category.Valid() {
			return nil, appErrors.Validation("invalid audit filter", map[string]string{"category": "unknown category"})
		}
		filter.Category = category
	}
	if filter.Limit <= 0 {
		filter.Limit = s.config.DefaultLimit
	}
	if filter.Limit > s.config.MaxLimit {
		filter.Limit = s.config.MaxLimit
	}

	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to query audit log")
	}
	return entries, nil
}

func enrollmentAction(eventName string) string {
	return "Inscrição no evento: " + eventName
}

func cancellationAction(eventName string) string {
	return "Cancelamento de inscrição no evento: " + eventName
}

func userCreationAction(user *models.User) string {
	return fmt.Sprintf("Criação de usuário: %s (%s)", user.Name, user.Role.Label())
}

func activationAction(user *models.User) string {
	return "Ativação de conta: " + user.Name
}

func eventCreationAction(eventName string) string {
	return "Criação de evento: " + eventName
}

func eventUpdateAction(eventName string) string {
	return "Edição de evento: " + eventName
}

func issuanceAction(count int, eventName string) string {
	return fmt.Sprintf("Emissão MANUAL de %d certificados para o evento %s", count, eventName)
}

func downloadAction(certificateID, eventName string) string {
	return fmt.Sprintf("Download do certificado %s para o evento %s", certificateID, eventName)
}

func apiLoginAction(login string) string {
	return "Login via API: " + login
}

func apiEventListAction() string {
	return "Consulta à lista de eventos via API"
}
