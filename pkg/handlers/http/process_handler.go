package http

import (
	"errors"

	"github.com/ShieldWorks/AdmitGate/pkg/app/processing"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ProcessHandler is the protected operation itself. It only ever runs behind
// the admission and quota middlewares.
type ProcessHandler struct {
	logger    *logrus.Logger
	processor processing.Processor
}

func NewProcessHandler(logger *logrus.Logger, processor processing.Processor) *ProcessHandler {
	return &ProcessHandler{logger: logger, processor: processor}
}

func (h *ProcessHandler) Handle(c *fiber.Ctx) error {
	fileName := c.Get("X-File-Name")
	if fileName == "" {
		fileName = "upload"
	}

	result, err := h.processor.Process(c.Context(), processing.Request{
		FileName: fileName,
		Payload:  c.Body(),
	})
	if errors.Is(err, processing.ErrEmptyPayload) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "empty payload",
		})
	}
	if err != nil {
		h.logger.WithError(err).Error("processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "processing failed",
		})
	}

	return c.JSON(result)
}
