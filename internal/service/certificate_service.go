package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

const (
	certificateHeader      = "SGEA - Sistema de Gestão de Eventos Acadêmicos"
	certificateDateLayout  = "02/01/2006"
	certificateContentType = "text/plain; charset=utf-8"
)

var certificateRule = strings.Repeat("_", 66)

type certificateRepository interface {
	ListIssuable(ctx context.Context, eventID string) ([]models.IssuableEnrollment, error)
	CreateIfConfirmed(ctx context.Context, cert *models.Certificate) (bool, error)
	FindDetail(ctx context.Context, id string) (*models.CertificateDetail, error)
	ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error)
}

// CertificateService issues certificates for confirmed attendance and renders
// them for download.
type CertificateService struct {
	repo     certificateRepository
	authz    authorizer
	audit    auditRecorder
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(repo certificateRepository, events eventReader, audit auditRecorder, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CertificateService{
		repo:     repo,
		authz:    authorizer{events: events},
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		location: loc,
	}
}

// CertificateText is the deterministic body of a certificate.
func CertificateText(userName, eventName, organizerName string) string {
	return fmt.Sprintf("Certificamos que %s participou do evento %s, organizado por %s.", userName, eventName, organizerName)
}

// IssueForEvent writes a certificate for every confirmed enrollment of the
// event that has none yet. Only rows actually inserted are counted, so
// repeated or concurrent calls never double-issue.
func (s *CertificateService) IssueForEvent(ctx context.Context, organizerID, eventID string, now time.Time) (*models.IssuanceResult, error) {
	event, err := s.authz.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.ListIssuable(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list issuable enrollments")
	}

	issuedOn := now.In(s.location)
	issuedOn = time.Date(issuedOn.Year(), issuedOn.Month(), issuedOn.Day(), 0, 0, 0, 0, time.UTC)

	issued := 0
	for _, candidate := range pending {
		cert := &models.Certificate{
			EnrollmentID: candidate.EnrollmentID,
			IssuedOn:     issuedOn,
			Text:         CertificateText(candidate.UserName, candidate.EventName, candidate.OrganizerName),
			Status:       models.CertificateStatusIssued,
			CreatedAt:    now.UTC(),
		}
		created, err := s.repo.CreateIfConfirmed(ctx, cert)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to issue certificate")
		}
		if created {
			issued++
		}
	}

	s.metrics.AddCertificatesIssued(issued)
	s.audit.Record(ctx, &organizerID, issuanceAction(issued, event.Name))
	s.logger.Info("certificates issued", zap.String("event_id", event.ID), zap.Int("issued", issued), zap.Int("candidates", len(pending)))

	return &models.IssuanceResult{EventID: event.ID, Issued: issued}, nil
}

// RenderDownload renders the user's certificate as a plain-text file. A
// certificate owned by someone else is reported as not found.
func (s *CertificateService) RenderDownload(ctx context.Context, userID, certificateID string) (*models.CertificateDownload, error) {
	detail, err := s.repo.FindDetail(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Internal(err, "failed to load certificate")
	}
	if detail.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}

	s.audit.Record(ctx, &userID, downloadAction(detail.ID, detail.EventName))

	return &models.CertificateDownload{
		Filename:    certificateFilename(detail.EventName, detail.UserName),
		ContentType: certificateContentType,
		Content:     []byte(renderCertificate(detail)),
	}, nil
}

// ListForUser returns the certificates held by the user.
func (s *CertificateService) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list certificates")
	}
	return rows, nil
}

func renderCertificate(detail *models.CertificateDetail) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(certificateHeader + "\n")
	b.WriteString(certificateRule + "\n\n")
	b.WriteString(detail.Text + "\n\n")
	b.WriteString("Data de Emissão: " + detail.IssuedOn.Format(certificateDateLayout) + "\n")
	b.WriteString("Status: Emitido e Válido.\n")
	b.WriteString(certificateRule + "\n\n")
	return b.String()
}

func certificateFilename(eventName, userName string) string {
	return fmt.Sprintf("certificado_%s_%s.txt", strings.ReplaceAll(eventName, " ", "_"), strings.ReplaceAll(userName, " ", "_"))
}
