package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bozorly/bozorly_api/internal/identity"
)

// Handler exposes auth endpoints for register/login-method/login/logout.
type Handler struct {
	svc *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	DeviceID    string `json:"device_id"`
	TrustDevice bool   `json:"trust_device"`
}

type loginMethodRequest struct {
	Phone    string `json:"phone"`
	DeviceID string `json:"device_id"`
}

type loginRequest struct {
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	DeviceID    string `json:"device_id"`
	TrustDevice bool   `json:"trust_device"`
}

type authResponse struct {
	IdentityID string `json:"identity_id"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Token      string `json:"token"`
}

// Register handles customer onboarding and returns the first session token.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Register(c.UserContext(), RegisterInput{
		Phone:       req.Phone,
		Password:    req.Password,
		Name:        req.Name,
		Language:    req.Language,
		DeviceID:    req.DeviceID,
		TrustDevice: req.TrustDevice,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(authResponse{
		IdentityID: res.Identity.ID,
		Phone:      res.Identity.Phone,
		Name:       res.Identity.Name,
		Token:      res.Token,
	})
}

// LoginMethod reports which credential the caller must present.
func (h *Handler) LoginMethod(c *fiber.Ctx) error {
	var req loginMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	method, err := h.svc.LoginMethod(c.UserContext(), req.Phone, req.DeviceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"method": method})
}

// Login verifies the required credential and returns a session token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Login(c.UserContext(), Credentials{
		Phone:       req.Phone,
		Password:    req.Password,
		Code:        req.Code,
		DeviceID:    req.DeviceID,
		TrustDevice: req.TrustDevice,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(authResponse{
		IdentityID: res.Identity.ID,
		Phone:      res.Identity.Phone,
		Name:       res.Identity.Name,
		Token:      res.Token,
	})
}

// Logout revokes the authenticated identity's current session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	identityID, _ := c.Locals("identity_id").(string)
	if identityID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	if err := h.svc.Logout(c.UserContext(), identityID); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// respondError maps the error taxonomy onto kind-tagged HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "validation_failed", "field": ve.Field, "reason": ve.Reason,
		})
	}
	var be *BlockedError
	if errors.As(err, &be) {
		return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{
			"error": "user_blocked", "retry_after_seconds": int(be.RetryAfter.Seconds()),
		})
	}

	kind, status := "internal_error", http.StatusInternalServerError
	switch {
	case errors.Is(err, identity.ErrNotFound):
		kind, status = "identity_not_found", http.StatusNotFound
	case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, identity.ErrPhoneTaken):
		kind, status = "already_registered", http.StatusConflict
	case errors.Is(err, ErrWrongPassword):
		kind, status = "wrong_password", http.StatusUnauthorized
	case errors.Is(err, ErrWrongOTP):
		kind, status = "wrong_otp", http.StatusUnauthorized
	case errors.Is(err, ErrExpiredOTP):
		kind, status = "expired_otp", http.StatusUnauthorized
	case errors.Is(err, ErrSessionInvalid):
		kind, status = "session_invalid", http.StatusUnauthorized
	case errors.Is(err, identity.ErrAssetOperation):
		kind, status = "asset_operation_failed", http.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": kind})
}
