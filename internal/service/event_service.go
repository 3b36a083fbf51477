package service

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	ListUpcoming(ctx context.Context, after time.Time, viewerID string) ([]models.EventSummary, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	CountEnrollments(ctx context.Context, eventID string) (int, error)
}

// EventRequest is the payload for creating or editing an event.
type EventRequest struct {
	Name                   string           `json:"name" validate:"required,max=200"`
	Type                   models.EventType `json:"type" validate:"required,oneof=Palestra Seminário Minicurso 'Semana Acadêmica'"`
	StartDate              string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate                string           `json:"end_date" validate:"required,datetime=2006-01-02"`
	Schedule               string           `json:"schedule" validate:"required,max=50"`
	Location               string           `json:"location" validate:"required,max=200"`
	Capacity               int              `json:"capacity" validate:"gt=0"`
	ResponsibleProfessorID string           `json:"responsible_professor_id" validate:"required"`
	BannerURL              *string          `json:"banner_url" validate:"omitempty,url"`
}

// CreateEventRequest is the payload of EventService.Create.
type CreateEventRequest = EventRequest

// UpdateEventRequest is the payload of EventService.Update.
type UpdateEventRequest = EventRequest

// EventService is the event catalog.
type EventService struct {
	repo      eventRepository
	authz     authorizer
	audit     auditRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
	location  *time.Location
}

// NewEventService constructs EventService.
func NewEventService(repo eventRepository, users userReader, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EventService{
		repo:      repo,
		authz:     authorizer{users: users, events: repo},
		audit:     audit,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		location:  loc,
	}
}

// Create publishes a new event owned by organizerID.
func (s *EventService) Create(ctx context.Context, organizerID string, req CreateEventRequest, now time.Time) (*models.Event, error) {
	organizer, err := s.authz.actor(ctx, organizerID, models.RoleOrganizer)
	if err != nil {
		return nil, err
	}

	event := &models.Event{OrganizerID: organizer.ID}
	if err := s.apply(ctx, event, req, now, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Internal(err, "failed to create event")
	}

	s.audit.Record(ctx, &organizer.ID, eventCreationAction(event.Name))
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("organizer_id", organizer.ID))
	return event, nil
}

// Update edits an event. Only its organizer may do so, and capacity may not
// drop below the seats already taken.
func (s *EventService) Update(ctx context.Context, organizerID, eventID string, req UpdateEventRequest, now time.Time) (*models.Event, error) {
	if _, err := s.authz.actor(ctx, organizerID, models.RoleOrganizer); err != nil {
		return nil, err
	}
	event, err := s.authz.ownedEvent(ctx, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.CountEnrollments(ctx, event.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count enrollments")
	}
	if err := s.apply(ctx, event, req, now, taken); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Internal(err, "failed to update event")
	}

	s.audit.Record(ctx, &organizerID, eventUpdateAction(event.Name))
	s.logger.Info("event updated", zap.String("event_id", event.ID))
	return event, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.authz.event(ctx, id)
}

// ListUpcoming returns events starting after today, leaving out the ones
// viewerID is already enrolled in.
func (s *EventService) ListUpcoming(ctx context.Context, viewerID string, now time.Time) ([]models.EventSummary, error) {
	events, err := s.repo.ListUpcoming(ctx, now.In(s.location), viewerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list events")
	}
	return events, nil
}

// ListUpcomingViaAPI is ListUpcoming for the public API, which also leaves an
// audit entry attributed to the viewer.
func (s *EventService) ListUpcomingViaAPI(ctx context.Context, viewerID string, now time.Time) ([]models.EventSummary, error) {
	events, err := s.ListUpcoming(ctx, viewerID, now)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, &viewerID, apiEventListAction())
	return events, nil
}

// ListByOrganizer returns the events organized by organizerID.
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list events")
	}
	return events, nil
}

// apply validates req and copies it onto event. minCapacity is the number of
// seats already taken.
func (s *EventService) apply(ctx context.Context, event *models.Event, req EventRequest, now time.Time, minCapacity int) error {
	req.Name = s.clean(req.Name)
	req.Schedule = s.clean(req.Schedule)
	req.Location = s.clean(req.Location)

	var details map[string]string
	if err := s.validator.Struct(req); err != nil {
		details = validationError(err, "").Details
	}

	start, startErr := time.ParseInLocation(models.DateLayout, req.StartDate, s.location)
	end, endErr := time.ParseInLocation(models.DateLayout, req.EndDate, s.location)
	if startErr == nil {
		y, m, d := now.In(s.location).Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, s.location)
		if start.Before(today) {
			details = mergeDetails(details, "start_date", "must not be in the past")
		}
	}
	if startErr == nil && endErr == nil && end.Before(start) {
		details = mergeDetails(details, "end_date", "must not be before start_date")
	}
	if req.Capacity > 0 && req.Capacity < minCapacity {
		details = mergeDetails(details, "capacity", "must not be lower than the current enrollments")
	}

	if req.ResponsibleProfessorID != "" {
		professor, err := s.authz.users.FindByID(ctx, req.ResponsibleProfessorID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			details = mergeDetails(details, "responsible_professor_id", "user not found")
		case err != nil:
			return appErrors.Internal(err, "failed to load responsible professor")
		case professor.Role != models.RoleProfessor:
			details = mergeDetails(details, "responsible_professor_id", "must be a professor")
		}
	}

	if len(details) > 0 {
		return appErrors.Validation("invalid event", details)
	}

	event.Name = req.Name
	event.Type = req.Type
	event.StartDate = dateOnly(start)
	event.EndDate = dateOnly(end)
	event.Schedule = req.Schedule
	event.Location = req.Location
	event.Capacity = req.Capacity
	event.ResponsibleProfessorID = req.ResponsibleProfessorID
	event.BannerURL = req.BannerURL
	return nil
}

// clean strips markup from free text. Entities produced by the sanitizer are
// decoded again because names end up in plain-text certificates and rosters.
func (s *EventService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

// dateOnly stores a calendar date as UTC midnight so the DATE column keeps the
// same day regardless of the session time zone.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
