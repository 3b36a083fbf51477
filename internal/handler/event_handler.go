package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/service"
	"github.com/noah-isme/sgea-api/pkg/export"
	"github.com/noah-isme/sgea-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, organizerID string, req service.CreateEventRequest, now time.Time) (*models.Event, error)
	Update(ctx context.Context, organizerID, eventID string, req service.UpdateEventRequest, now time.Time) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	ListUpcomingViaAPI(ctx context.Context, viewerID string, now time.Time) ([]models.EventSummary, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
}

type rosterService interface {
	ListForEvent(ctx context.Context, organizerID, eventID string) ([]models.EnrollmentDetail, error)
	AvailableSeats(ctx context.Context, eventID string) (int, error)
	Cancel(ctx context.Context, userID, eventID string, now time.Time) error
}

type rosterExporter interface {
	Roster(ctx context.Context, organizerID, eventID string, format export.Format) (*service.ExportResult, error)
}

type certificateIssuer interface {
	IssueForEvent(ctx context.Context, organizerID, eventID string, now time.Time) (*models.IssuanceResult, error)
}

// EventHandler exposes the event catalog and the per-event organizer actions.
type EventHandler struct {
	events       eventService
	enrollments  rosterService
	exports      rosterExporter
	certificates certificateIssuer
}

// NewEventHandler builds an EventHandler.
func NewEventHandler(events eventService, enrollments rosterService, exports rosterExporter, certificates certificateIssuer) *EventHandler {
	return &EventHandler{events: events, enrollments: enrollments, exports: exports, certificates: certificates}
}

// List godoc
// @Summary List upcoming events
// @Description Events starting after today that the caller is not enrolled in
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	events, err := h.events.ListUpcomingViaAPI(c.Request.Context(), claims.UserID, time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events, map[string]interface{}{"count": len(events)})
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	event, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	seats, err := h.enrollments.AvailableSeats(c.Request.Context(), event.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event, map[string]interface{}{"available_seats": seats})
}

// Create godoc
// @Summary Create event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	req, ok := bindEvent(c)
	if !ok {
		return
	}
	event, err := h.events.Create(c.Request.Context(), claims.UserID, req, time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Update event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param payload body service.EventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	req, ok := bindEvent(c)
	if !ok {
		return
	}
	event, err := h.events.Update(c.Request.Context(), claims.UserID, eventID, req, time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Mine godoc
// @Summary List events organized by the caller
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /organizer/events [get]
func (h *EventHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	events, err := h.events.ListByOrganizer(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events)
}

// Enrollments godoc
// @Summary List event participants
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/enrollments [get]
func (h *EventHandler) Enrollments(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	rows, err := h.enrollments.ListForEvent(c.Request.Context(), claims.UserID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// Roster godoc
// @Summary Export participant roster
// @Tags Events
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/roster [get]
func (h *EventHandler) Roster(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	result, err := h.exports.Roster(c.Request.Context(), claims.UserID, eventID, export.Format(c.DefaultQuery("format", string(export.FormatCSV))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Content)
}

// IssueCertificates godoc
// @Summary Issue certificates
// @Description Issue certificates for every confirmed participant without one
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/certificates [post]
func (h *EventHandler) IssueCertificates(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	result, err := h.certificates.IssueForEvent(c.Request.Context(), claims.UserID, eventID, time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// CancelEnrollment godoc
// @Summary Cancel own enrollment
// @Tags Enrollments
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/enrollment [delete]
func (h *EventHandler) CancelEnrollment(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := pathID(c, "id", "event")
	if !ok {
		return
	}
	if err := h.enrollments.Cancel(c.Request.Context(), claims.UserID, eventID, time.Now()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// bindEvent decodes an event payload and normalises the professor reference.
func bindEvent(c *gin.Context) (service.EventRequest, bool) {
	var req service.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid event payload"))
		return req, false
	}
	professorID, appErr := payloadID(req.ResponsibleProfessorID, "responsible_professor_id")
	if appErr != nil {
		response.Error(c, appErr)
		return req, false
	}
	req.ResponsibleProfessorID = professorID
	return req, true
}
