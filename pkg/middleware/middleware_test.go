package middleware

import (
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/sirupsen/logrus"
)

// registry is shared across tests: prometheus collectors register globally
// and must only be created once per process.
var testRegistry = metrics.NewRegistry()

func testConfig() *config.Config {
	return &config.Config{
		Ledger:    config.LedgerConfig{FreeQuota: 2},
		Challenge: config.ChallengeConfig{Timeout: 5 * time.Minute},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
