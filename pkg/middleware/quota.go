package middleware

import (
	"errors"

	"github.com/ShieldWorks/AdmitGate/pkg/common"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/ledger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const BalanceHeader = "X-Balance-Id"

// QuotaMiddleware gates paid operations on the credit ledger. Anonymous
// devices draw from the free quota; a balance id switches to credit debits.
// Unlike scoring, the ledger fails closed: a paid operation never proceeds
// without a durable reservation.
type QuotaMiddleware struct {
	*Transport
	cost int64
}

func NewQuotaMiddleware(t *Transport, cost int64) Middleware {
	if cost <= 0 {
		cost = 1
	}
	return &QuotaMiddleware{Transport: t, cost: cost}
}

func (m *QuotaMiddleware) Handle(c *fiber.Ctx) error {
	deviceID, _ := c.Locals(string(common.DeviceIdContextKey)).(string)
	if deviceID == "" {
		deviceID = c.Get(common.DeviceHeader)
	}
	if deviceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "device identity required",
		})
	}

	balanceID := c.Get(BalanceHeader)
	if balanceID == "" {
		return m.reserveFree(c, deviceID)
	}
	return m.debitCredits(c, balanceID)
}

func (m *QuotaMiddleware) reserveFree(c *fiber.Ctx, deviceID string) error {
	err := m.Ledger.Reserve(c.Context(), deviceID, m.Config.Ledger.FreeQuota)
	switch {
	case err == nil:
		m.Registry.LedgerOutcomes.WithLabelValues("reserve", "ok").Inc()
		return c.Next()
	case errors.Is(err, ledger.ErrQuotaExhausted):
		m.Registry.LedgerOutcomes.WithLabelValues("reserve", "exhausted").Inc()
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "anonymous quota exhausted",
		})
	default:
		m.Registry.LedgerOutcomes.WithLabelValues("reserve", "error").Inc()
		m.Logger.WithError(err).Error("quota reservation failed, failing closed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "ledger unavailable",
		})
	}
}

func (m *QuotaMiddleware) debitCredits(c *fiber.Ctx, balanceID string) error {
	operationID := uuid.New().String()
	c.Locals(string(common.BalanceIdContextKey), balanceID)
	c.Locals("operation_id", operationID)

	_, err := m.Ledger.Debit(c.Context(), balanceID, operationID, m.cost)
	switch {
	case err == nil:
		m.Registry.LedgerOutcomes.WithLabelValues("debit", "ok").Inc()
	case errors.Is(err, ledger.ErrInsufficientCredits):
		m.Registry.LedgerOutcomes.WithLabelValues("debit", "insufficient").Inc()
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "insufficient credits",
		})
	default:
		m.Registry.LedgerOutcomes.WithLabelValues("debit", "error").Inc()
		m.Logger.WithError(err).Error("credit debit failed, failing closed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "ledger unavailable",
		})
	}

	// A debited operation that then fails server-side is refunded; the refund
	// is idempotent so a retry after a crash is safe.
	if err := c.Next(); err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
		m.refund(c, operationID)
		return err
	}
	return nil
}

func (m *QuotaMiddleware) refund(c *fiber.Ctx, operationID string) {
	if err := m.Ledger.Refund(c.Context(), operationID); err != nil {
		m.Registry.LedgerOutcomes.WithLabelValues("refund", "error").Inc()
		m.Logger.WithError(err).WithField("operation_id", operationID).
			Error("refund failed after operation failure")
		return
	}
	m.Registry.LedgerOutcomes.WithLabelValues("refund", "ok").Inc()
	m.Logger.WithFields(logrus.Fields{
		"operation_id": operationID,
	}).Info("operation refunded after failure")
}
