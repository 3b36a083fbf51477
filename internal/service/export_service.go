package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/export"
)

var rosterHeaders = []string{"Nome", "E-mail", "Data de inscrição", "Presença confirmada", "Certificado"}

type rosterSource interface {
	ListForEvent(ctx context.Context, eventID string) ([]models.EnrollmentDetail, error)
}

// ExportResult is a rendered file ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders participant rosters for event organizers.
type ExportService struct {
	enrollments rosterSource
	authz       authorizer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments rosterSource, events eventReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{enrollments: enrollments, authz: authorizer{events: events}, logger: logger}
}

// Roster renders the participant list of an event owned by organizerID.
func (s *ExportService) Roster(ctx context.Context, organizerID, eventID string, format export.Format) (*ExportResult, error) {
	exporter, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Validation("unsupported export format", map[string]string{"format": "must be one of: csv pdf"})
	}
	event, err := s.authz.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	details, err := s.enrollments.ListForEvent(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Title:   "Lista de participantes - " + event.Name,
		Headers: rosterHeaders,
		Rows:    make([][]string, 0, len(details)),
	}
	for _, d := range details {
		dataset.Rows = append(dataset.Rows, []string{
			d.UserName,
			d.UserEmail,
			d.CreatedAt.Format("02/01/2006"),
			yesNo(d.AttendanceConfirmed),
			yesNo(d.HasCertificate),
		})
	}

	content, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}

	s.logger.Info("roster exported", zap.String("event_id", event.ID), zap.Int("participants", len(details)))
	return &ExportResult{
		Filename:    fmt.Sprintf("inscritos_%s.%s", strings.ReplaceAll(event.Name, " ", "_"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}

func yesNo(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}
