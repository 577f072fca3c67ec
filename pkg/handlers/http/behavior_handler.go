package http

import (
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/behavior"
	infrabehavior "github.com/ShieldWorks/AdmitGate/pkg/infra/behavior"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const maxEventsPerRequest = 200

// BehaviorHandler ingests client interaction events into the extractor
// queue. Ingestion is fire-and-forget; the caller gets a 202 whether or not
// individual events survive queue pressure.
type BehaviorHandler struct {
	logger    *logrus.Logger
	extractor infrabehavior.Extractor
}

func NewBehaviorHandler(logger *logrus.Logger, extractor infrabehavior.Extractor) *BehaviorHandler {
	return &BehaviorHandler{logger: logger, extractor: extractor}
}

type behaviorRequest struct {
	SessionID string           `json:"session_id"`
	Events    []behavior.Event `json:"events"`
}

func (h *BehaviorHandler) Handle(c *fiber.Ctx) error {
	var req behaviorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.SessionID == "" {
		req.SessionID = c.Get(common.SessionHeader)
	}
	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id required",
		})
	}

	events := req.Events
	if len(events) > maxEventsPerRequest {
		events = events[:maxEventsPerRequest]
	}

	for _, event := range events {
		h.extractor.Ingest(req.SessionID, event)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": len(events),
	})
}
