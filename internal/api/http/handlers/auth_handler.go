package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gate/internal/api/dto"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/service"
	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

// AuthFlows is the part of service.AuthService the handler drives.
type AuthFlows interface {
	Signup(ctx context.Context, in service.SignupInput) (*domain.Identity, error)
	Signin(ctx context.Context, username, password string) (*service.SigninResult, error)
}

// AuthHandler exposes sign-up and sign-in.
type AuthHandler struct {
	auth AuthFlows
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService AuthFlows) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}

	_, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		if errors.Is(err, domain.ErrIdentityExists) {
			return apperrors.NewConflict(err.Error(), nil)
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.MessageResponse{Message: "identity registered successfully"})
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}

	result, err := h.auth.Signin(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized(service.ErrInvalidCredentials.Error())
		}
		return err
	}

	identity := result.Identity
	return c.JSON(dto.SigninResponse{
		Token:     result.Token.Value,
		Type:      "Bearer",
		ID:        identity.ID,
		Username:  identity.Username,
		Email:     identity.Email,
		Roles:     roleNames(identity.Roles),
		ExpiresAt: result.Token.ExpiresAt,
	})
}

func roleNames(roles []domain.RoleName) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}
