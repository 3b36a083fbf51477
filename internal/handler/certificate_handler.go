package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/pkg/response"
)

type certificateService interface {
	RenderDownload(ctx context.Context, userID, certificateID string) (*models.CertificateDownload, error)
	ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error)
}

// CertificateHandler serves a participant's certificates.
type CertificateHandler struct {
	service certificateService
}

// NewCertificateHandler builds a CertificateHandler.
func NewCertificateHandler(svc certificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// Mine godoc
// @Summary List own certificates
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/certificates [get]
func (h *CertificateHandler) Mine(c *gin.Context) {
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

// Download godoc
// @Summary Download certificate
// @Tags Certificates
// @Produce plain
// @Security BearerAuth
// @Param id path string true "Certificate ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	certificateID, ok := pathID(c, "id", "certificate")
	if !ok {
		return
	}
	file, err := h.service.RenderDownload(c.Request.Context(), claims.UserID, certificateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
