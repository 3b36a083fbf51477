package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/repository"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByUserAndEvent(ctx context.Context, userID, eventID string) (*models.Enrollment, error)
	CreateWithinCapacity(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	UpdateAttendance(ctx context.Context, id string, confirmed bool) error
	ListForEvent(ctx context.Context, eventID string) ([]models.EnrollmentDetail, error)
	ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error)
}

type eventSeatReader interface {
	eventReader
	CountEnrollments(ctx context.Context, eventID string) (int, error)
}

// EnrollmentService is the enrollment ledger: it admits, cancels and tracks
// attendance of participants.
type EnrollmentService struct {
	repo     enrollmentRepository
	events   eventSeatReader
	authz    authorizer
	audit    auditRecorder
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewEnrollmentService constructs EnrollmentService. loc is the calendar in
// which event dates are interpreted.
func NewEnrollmentService(repo enrollmentRepository, users userReader, events eventSeatReader, audit auditRecorder, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EnrollmentService{
		repo:     repo,
		events:   events,
		authz:    authorizer{users: users, events: events},
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		location: loc,
	}
}

// Enroll registers userID in eventID. Checks run in order: role, event open,
// duplicate, capacity. The last two are repeated under the event row lock.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, eventID string, now time.Time) (*models.Enrollment, error) {
	enrollment, err := s.enroll(ctx, userID, eventID, now)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	s.metrics.RecordEnrollment(EnrollmentOutcomeCreated, "")
	return enrollment, nil
}

func (s *EnrollmentService) enroll(ctx context.Context, userID, eventID string, now time.Time) (*models.Enrollment, error) {
	user, err := s.authz.actor(ctx, userID, models.RoleStudent, models.RoleProfessor)
	if err != nil {
		return nil, err
	}
	event, err := s.authz.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.AcceptsEnrollment(now, s.location) {
		return nil, appErrors.Clone(appErrors.ErrEventClosed, "enrollment closed: event already started")
	}

	if _, err := s.repo.FindByUserAndEvent(ctx, user.ID, event.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}

	taken, err := s.events.CountEnrollments(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count enrollments")
	}
	if taken >= event.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}

	enrollment := &models.Enrollment{UserID: user.ID, EventID: event.ID, CreatedAt: now.UTC()}
	if err := s.repo.CreateWithinCapacity(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentDuplicate):
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		case errors.Is(err, repository.ErrEnrollmentCapacityReached):
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}

	s.audit.Record(ctx, &user.ID, enrollmentAction(event.Name))
	s.logger.Info("enrollment created", zap.String("user_id", user.ID), zap.String("event_id", event.ID))
	return enrollment, nil
}

// Cancel removes the user's enrollment while the event has not started.
func (s *EnrollmentService) Cancel(ctx context.Context, userID, eventID string, now time.Time) error {
	user, err := s.authz.actor(ctx, userID)
	if err != nil {
		return err
	}
	event, err := s.authz.event(ctx, eventID)
	if err != nil {
		return err
	}

	enrollment, err := s.repo.FindByUserAndEvent(ctx, user.ID, event.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotEnrolled, "")
		}
		return appErrors.Internal(err, "failed to load enrollment")
	}
	if event.Started(now, s.location) {
		return appErrors.Clone(appErrors.ErrEventClosed, "cancellation closed: event already started")
	}

	if err := s.repo.Delete(ctx, enrollment.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotEnrolled, "")
		}
		return appErrors.Internal(err, "failed to cancel enrollment")
	}

	s.metrics.RecordEnrollment(EnrollmentOutcomeCancelled, "")
	s.audit.Record(ctx, &user.ID, cancellationAction(event.Name))
	return nil
}

// ConfirmAttendance sets the attendance flag of an enrollment. Only the
// organizer of the event may do it; an unchanged value is a no-op.
func (s *EnrollmentService) ConfirmAttendance(ctx context.Context, organizerID, enrollmentID string, confirmed bool) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if _, err := s.authz.ownedEvent(ctx, organizerID, enrollment.EventID); err != nil {
		return nil, err
	}
	if enrollment.AttendanceConfirmed == confirmed {
		return enrollment, nil
	}

	if err := s.repo.UpdateAttendance(ctx, enrollment.ID, confirmed); err != nil {
		switch {
		case errors.Is(err, repository.ErrCertificateExists):
			return nil, appErrors.Clone(appErrors.ErrCertificateIssued, "attendance cannot be cleared after certificate issuance")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to update attendance")
	}
	enrollment.AttendanceConfirmed = confirmed
	return enrollment, nil
}

// ListForEvent returns the roster of an event owned by organizerID, sorted by
// participant name.
func (s *EnrollmentService) ListForEvent(ctx context.Context, organizerID, eventID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.authz.ownedEvent(ctx, organizerID, eventID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return rows, nil
}

// ListForUser returns the user's enrollments sorted by event start date.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return rows, nil
}

// AvailableSeats returns capacity minus enrollments, never below zero.
func (s *EnrollmentService) AvailableSeats(ctx context.Context, eventID string) (int, error) {
	event, err := s.authz.event(ctx, eventID)
	if err != nil {
		return 0, err
	}
	taken, err := s.events.CountEnrollments(ctx, event.ID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count enrollments")
	}
	if free := event.Capacity - taken; free > 0 {
		return free, nil
	}
	return 0, nil
}

func (s *EnrollmentService) recordRejection(err error) {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		s.metrics.RecordEnrollment(EnrollmentOutcomeRejected, appErr.Code)
		return
	}
	s.metrics.RecordEnrollment(EnrollmentOutcomeRejected, appErrors.ErrInternal.Code)
}
