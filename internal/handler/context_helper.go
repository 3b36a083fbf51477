package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sgea-api/internal/middleware"
	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/response"
)

// currentUser returns the session claims or writes 401 and reports false.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func invalidPayload(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// pathID reads a UUID path parameter. A malformed id names no row, so it is
// answered with 404 before reaching the database.
func pathID(c *gin.Context, name, resource string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, resource+" not found"))
		return "", false
	}
	return id.String(), true
}

// payloadID validates a UUID carried in a request body or query field.
func payloadID(value, field string) (string, *appErrors.Error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return "", appErrors.Validation("invalid payload", map[string]string{field: "must be a valid UUID"})
	}
	return id.String(), nil
}
