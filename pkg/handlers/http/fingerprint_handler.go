package http

import (
	"github.com/ShieldWorks/AdmitGate/pkg/app/assessment"
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FingerprintHandler accepts the client's full signal bag and returns the
// derived identity plus the current admission verdict for the device.
type FingerprintHandler struct {
	logger   *logrus.Logger
	assessor assessment.Service
}

func NewFingerprintHandler(logger *logrus.Logger, assessor assessment.Service) *FingerprintHandler {
	return &FingerprintHandler{logger: logger, assessor: assessor}
}

type fingerprintRequest struct {
	Signals   map[string]interface{} `json:"signals"`
	SessionID string                 `json:"session_id"`
}

func (h *FingerprintHandler) Handle(c *fiber.Ctx) error {
	var req fingerprintRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.Get(common.SessionHeader)
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := h.assessor.Assess(c.Context(), assessment.Input{
		Signals:   req.Signals,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		SessionID: sessionID,
	})
	if err != nil {
		h.logger.WithError(err).Error("fingerprint assessment failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "assessment failed",
		})
	}

	fp := result.Fingerprint
	return c.JSON(fiber.Map{
		"device_id":    fp.DeviceID,
		"session_id":   sessionID,
		"confidence":   fp.Confidence,
		"anomaly_tags": fp.AnomalyTags,
		"action":       result.Assessment.Action,
		"threat_score": result.Assessment.ThreatScore,
	})
}
