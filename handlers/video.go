package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/services/video"
)

type VideoHandler struct {
	service video.Service
}

func NewVideoHandler(service video.Service) *VideoHandler {
	return &VideoHandler{service: service}
}

func (h *VideoHandler) Submit(c *fiber.Ctx) error {
	var req models.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request body",
		}
	}

	job, err := h.service.Submit(c.Context(), &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(job),
	})
}

func (h *VideoHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "ID is required",
		}
	}

	job, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(job),
	})
}

func (h *VideoHandler) List(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	status := models.Status(c.Query("status"))
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	jobs, err := h.service.List(c.Context(), userID, status, limit, offset)
	if err != nil {
		return err
	}

	responses := make([]*models.VideoResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, models.NewVideoResponse(job))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    responses,
	})
}

// Advance runs the next pipeline stage for a job, picked from its current
// status. A terminal job comes back unchanged.
func (h *VideoHandler) Advance(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "ID is required",
		}
	}

	job, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}

	switch job.Status {
	case models.StatusPending:
		job, err = h.service.ProcessDownload(c.Context(), id)
	case models.StatusDownloaded:
		job, err = h.service.ProcessTranscription(c.Context(), id)
	case models.StatusTranscribing:
		job, err = h.service.CheckCompletion(c.Context(), id)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(job),
	})
}

// Process drives the job through every remaining stage before responding.
func (h *VideoHandler) Process(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "ID is required",
		}
	}

	job, err := h.service.ProcessAll(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(job),
	})
}
