package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/service"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

type registrationService interface {
	Register(ctx context.Context, req service.RegisterUserRequest, baseURL string) (*models.User, error)
	ConfirmEmail(ctx context.Context, userID, token string, now time.Time) (*models.User, error)
}

// AuthHandler wires HTTP endpoints to the auth and identity services.
type AuthHandler struct {
	auth    authService
	users   registrationService
	baseURL string
}

// NewAuthHandler creates a new handler. baseURL prefixes activation links.
func NewAuthHandler(auth authService, users registrationService, baseURL string) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, baseURL: baseURL}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by login name and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Register godoc
// @Summary Register user
// @Description Create an account and send the activation link
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body service.RegisterUserRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid registration payload"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req, h.baseURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Confirm godoc
// @Summary Confirm e-mail
// @Description Activate an account through the link sent on registration
// @Tags Authentication
// @Produce json
// @Param uid path string true "User ID"
// @Param token path string true "Activation token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/confirm/{uid}/{token} [get]
func (h *AuthHandler) Confirm(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		response.Error(c, appErrors.Validation("invalid or expired activation link", nil))
		return
	}
	user, err := h.users.ConfirmEmail(c.Request.Context(), userID.String(), c.Param("token"), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"user_id": user.ID, "active": user.Active, "mensagem": "Conta ativada com sucesso!"})
}
