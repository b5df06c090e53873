package v1

import (
	"context"
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Login(ctx context.Context, req service.LoginRequest) (*domain.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, caller domain.Identity, access *domain.Claims, refreshToken string) error
	Me(ctx context.Context, caller domain.Identity) (*domain.User, error)
	ChangePassword(ctx context.Context, caller domain.Identity, currentPassword, newPassword string) error
	EnrollMFA(ctx context.Context, caller domain.Identity) (*auth.TOTPEnrollment, error)
	VerifyMFA(ctx context.Context, caller domain.Identity, code string) error
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.svc.Login(c.Request.Context(), service.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		MFACode:  req.MFACode,
		IP:       c.ClientIP(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

// Logout revokes the presented access token and, when supplied, the refresh
// token. An empty body is accepted.
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	claims, _ := middleware.ClaimsFrom(c)

	var req logoutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Logout(c.Request.Context(), id, claims, req.RefreshToken); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	u, err := h.svc.Me(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toUserResponse(u))
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) EnrollMFA(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	e, err := h.svc.EnrollMFA(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, e)
}

func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req mfaVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.VerifyMFA(c.Request.Context(), id, req.Code); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
