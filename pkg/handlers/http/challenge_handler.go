package http

import (
	"errors"

	infrachallenge "github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ChallengeHandler serves the challenge API: fetching an issued challenge's
// client data and verifying attempted solutions.
type ChallengeHandler struct {
	logger   *logrus.Logger
	manager  infrachallenge.Manager
	registry *metrics.Registry
}

func NewChallengeHandler(
	logger *logrus.Logger,
	manager infrachallenge.Manager,
	registry *metrics.Registry,
) *ChallengeHandler {
	return &ChallengeHandler{logger: logger, manager: manager, registry: registry}
}

type challengeRequest struct {
	Token    string `json:"token"`
	Solution string `json:"solution"`
}

// HandleDescribe returns the client-facing data of an issued challenge so a
// client that lost the original response can resume solving it.
func (h *ChallengeHandler) HandleDescribe(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token required",
		})
	}

	challengeID, err := h.manager.ParseToken(req.Token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid challenge token",
		})
	}

	ch, err := h.manager.Get(c.Context(), challengeID)
	if err != nil {
		h.logger.WithError(err).Error("challenge lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "lookup failed",
		})
	}
	if ch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "challenge not found",
		})
	}

	return c.JSON(fiber.Map{
		"type":   ch.Type,
		"status": ch.Status,
		"data":   h.manager.ClientData(ch),
	})
}

// HandleVerify evaluates a challenge solution.
func (h *ChallengeHandler) HandleVerify(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token required",
		})
	}

	challengeID, err := h.manager.ParseToken(req.Token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid challenge token",
		})
	}

	result, err := h.manager.Verify(c.Context(), challengeID, req.Solution)
	switch {
	case errors.Is(err, infrachallenge.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "challenge not found",
		})
	case errors.Is(err, infrachallenge.ErrAlreadyResolved):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "challenge already resolved",
			"status": result.Status,
		})
	case errors.Is(err, infrachallenge.ErrAttemptTooSoon):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       "attempt too soon",
			"retry_after": result.RetryAfter.Seconds(),
		})
	case err != nil:
		h.logger.WithError(err).Error("challenge verification failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "verification failed",
		})
	}

	h.registry.ChallengeOutcomes.WithLabelValues("any", string(result.Status)).Inc()

	response := fiber.Map{
		"status": result.Status,
		"passed": result.Passed,
	}
	if result.RetryAfter > 0 {
		response["retry_after"] = result.RetryAfter.Seconds()
	}
	return c.JSON(response)
}
