package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/evently/booking-engine/internal/model"
	"github.com/evently/booking-engine/internal/service"
	"github.com/evently/booking-engine/internal/utils"
)

// AuthAPI is the slice of the auth service the HTTP layer depends on.
type AuthAPI interface {
	Register(ctx context.Context, email, name, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (utils.AccessToken, *model.User, error)
	GetUser(ctx context.Context, id uint64) (*model.User, error)
}

// AuthHandler exposes registration, login and the current-user lookup.
type AuthHandler struct {
	Auth AuthAPI
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth AuthAPI) *AuthHandler {
	if auth == nil {
		panic("nil auth service passed to NewAuthHandler")
	}
	return &AuthHandler{Auth: auth}
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	body.Name = strings.TrimSpace(body.Name)
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "a valid email is required")
	}
	if len(body.Password) < 8 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters")
	}
	user, err := h.Auth.Register(c.Request().Context(), body.Email, body.Name, body.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Login handles POST /v1/auth/login, returning a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}
	token, user, err := h.Auth.Login(c.Request().Context(), strings.TrimSpace(strings.ToLower(body.Email)), body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return jsonError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token.Token,
		"expires_at":   token.Exp,
		"user":         user,
	})
}

// Me handles GET /v1/auth/me for the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return jsonError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	user, err := h.Auth.GetUser(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
