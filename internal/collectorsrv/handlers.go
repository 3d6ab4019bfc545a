package collectorsrv

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/push", func(c *fiber.Ctx) error {
		var req PushRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}

		recordedAt := time.Now()
		if req.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, req.Timestamp)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "timestamp must be RFC3339")
			}
			recordedAt = parsed
		}

		record, err := svc.Push(c.Context(), Record{
			UserID:    req.UserID,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Accuracy:  req.Accuracy,
			Timestamp: recordedAt,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(record)
	})

	r.Get("/history/:identity", func(c *fiber.Ctx) error {
		records, err := svc.History(c.Context(), c.Params("identity"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	})
}
