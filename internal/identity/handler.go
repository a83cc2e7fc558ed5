package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes profile endpoints for the authenticated identity.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type profileResponse struct {
	IdentityID string     `json:"identity_id"`
	Phone      string     `json:"phone"`
	Name       string     `json:"name"`
	Gender     string     `json:"gender,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	ImageKey   string     `json:"image_key,omitempty"`
	Language   string     `json:"language"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Me returns the authenticated identity's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	identityID, _ := c.Locals("identity_id").(string)
	if identityID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	ident, err := h.service.Get(c.UserContext(), identityID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toProfile(ident))
}

// UpdateProfile applies profile field changes; an optional multipart "image"
// part replaces the stored profile asset.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	identityID, _ := c.Locals("identity_id").(string)
	if identityID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}

	var upd ProfileUpdate
	if v := c.FormValue("name"); v != "" {
		upd.Name = &v
	}
	if v := c.FormValue("gender"); v != "" {
		upd.Gender = &v
	}
	if v := c.FormValue("language"); v != "" {
		upd.Language = &v
	}
	if v := c.FormValue("birth_date"); v != "" {
		birth, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		}
		upd.BirthDate = &birth
	}

	var image *ImageUpload
	if file, err := c.FormFile("image"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "unreadable image")
		}
		defer src.Close()
		image = &ImageUpload{Reader: src, Size: file.Size, Name: file.Filename}
	}

	ident, err := h.service.UpdateProfile(c.UserContext(), identityID, upd, image)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toProfile(ident))
}

func toProfile(ident Identity) profileResponse {
	return profileResponse{
		IdentityID: ident.ID,
		Phone:      ident.Phone,
		Name:       ident.Name,
		Gender:     ident.Gender,
		BirthDate:  ident.BirthDate,
		ImageKey:   ident.ImageKey,
		Language:   ident.Language,
		CreatedAt:  ident.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "identity not found")
	case errors.Is(err, ErrAssetOperation):
		return fiber.NewError(http.StatusBadGateway, "asset operation failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
