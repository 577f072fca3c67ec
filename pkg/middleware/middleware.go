package middleware

import (
	"github.com/ShieldWorks/AdmitGate/pkg/app/assessment"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/ledger"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Middleware interface {
	Handle(c *fiber.Ctx) error
}

// Transport carries the shared dependencies middlewares are built from.
type Transport struct {
	Logger     *logrus.Logger
	Config     *config.Config
	Assessor   assessment.Service
	Challenges challenge.Manager
	Pending    challenge.PendingStore
	Ledger     ledger.Repository
	Registry   *metrics.Registry
}
