package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/service"
	"github.com/noah-isme/sgea-api/pkg/response"
)

type auditService interface {
	Query(ctx context.Context, q service.AuditQuery) ([]models.AuditEntry, error)
}

// AuditHandler exposes the audit log.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler builds an AuditHandler.
func NewAuditHandler(svc auditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Query audit log
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param user_id query string false "Actor ID"
// @Param category query string false "USER_CREATION, EVENT_MANAGEMENT, API, CERTIFICATE or ENROLLMENT"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var q service.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid audit filter"))
		return
	}
	if q.ActorID != "" {
		actorID, appErr := payloadID(q.ActorID, "user_id")
		if appErr != nil {
			response.Error(c, appErr)
			return
		}
		q.ActorID = actorID
	}
	entries, err := h.service.Query(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries, map[string]interface{}{"count": len(entries)})
}
