package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/sirupsen/logrus"
)

// ErrorHandler is the central fiber error handler. AppError carries its own
// status code; anything else renders as a 500 without leaking internals.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*errors.AppError); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"request_id": c.Get("X-Request-ID"),
		"path":       c.Path(),
		"method":     c.Method(),
		"status":     code,
	}).WithError(err).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"success":    false,
		"error":      message,
		"request_id": c.Get("X-Request-ID"),
	})
}
