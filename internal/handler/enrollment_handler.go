package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/pkg/response"
)

const enrollmentCreatedMessage = "Inscrição realizada com sucesso!"

type enrollmentService interface {
	Enroll(ctx context.Context, userID, eventID string, now time.Time) (*models.Enrollment, error)
	ConfirmAttendance(ctx context.Context, organizerID, enrollmentID string, confirmed bool) (*models.Enrollment, error)
	ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error)
}

// CreateEnrollmentRequest is the body of POST /enrollments.
type CreateEnrollmentRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// AttendanceRequest is the body of PATCH /enrollments/{id}/attendance.
type AttendanceRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

// EnrollmentHandler exposes the enrollment ledger.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds an EnrollmentHandler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Create godoc
// @Summary Enroll in event
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CreateEnrollmentRequest true "Event to enroll in"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "event_id is required"))
		return
	}
	eventID, appErr := payloadID(req.EventID, "event_id")
	if appErr != nil {
		response.Error(c, appErr)
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), claims.UserID, eventID, time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"mensagem": enrollmentCreatedMessage, "enrollment": enrollment})
}

// Mine godoc
// @Summary List own enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	rows, err := h.service.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// Attendance godoc
// @Summary Set attendance
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body AttendanceRequest true "Attendance flag"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/attendance [patch]
func (h *EnrollmentHandler) Attendance(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	enrollmentID, ok := pathID(c, "id", "enrollment")
	if !ok {
		return
	}
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "confirmed is required"))
		return
	}

	enrollment, err := h.service.ConfirmAttendance(c.Request.Context(), claims.UserID, enrollmentID, *req.Confirmed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}
