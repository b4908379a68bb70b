package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/services/credits"
)

type CreditHandler struct {
	service    credits.Service
	adminToken string
}

func NewCreditHandler(service credits.Service, adminToken string) *CreditHandler {
	return &CreditHandler{service: service, adminToken: adminToken}
}

func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "User ID is required",
		}
	}

	balance, err := h.service.GetBalance(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    balance,
	})
}

func (h *CreditHandler) History(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "User ID is required",
		}
	}

	transactions, err := h.service.GetHistory(c.Context(),
		userID, c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    transactions,
	})
}

// RequireAdmin gates the administrative credit routes behind the shared
// token. An unset token disables the routes entirely.
func (h *CreditHandler) RequireAdmin(c *fiber.Ctx) error {
	const op = "CreditHandler.RequireAdmin"

	token := c.Get("X-Admin-Token")
	if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		return errors.Unauthorized(op, nil, "Invalid admin token")
	}
	return c.Next()
}

func (h *CreditHandler) Grant(c *fiber.Ctx) error {
	var req models.AdminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request body",
		}
	}
	if req.UserID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "User ID is required",
		}
	}

	tx, err := h.service.Grant(c.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tx,
	})
}

func (h *CreditHandler) Deduct(c *fiber.Ctx) error {
	var req models.AdminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request body",
		}
	}

	if req.AllUsers {
		affected, err := h.service.DeductAll(c.Context(), req.Amount, req.Description)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"affected_users": affected},
		})
	}

	if req.UserID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "User ID is required",
		}
	}

	tx, err := h.service.Deduct(c.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tx,
	})
}
