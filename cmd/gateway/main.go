package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ShieldWorks/AdmitGate/pkg/app/assessment"
	"github.com/ShieldWorks/AdmitGate/pkg/app/processing"
	"github.com/ShieldWorks/AdmitGate/pkg/cache"
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	handlers "github.com/ShieldWorks/AdmitGate/pkg/handlers/http"
	infraabuse "github.com/ShieldWorks/AdmitGate/pkg/infra/abuse"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/alerts"
	infrabehavior "github.com/ShieldWorks/AdmitGate/pkg/infra/behavior"
	infrachallenge "github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/database"
	infrafp "github.com/ShieldWorks/AdmitGate/pkg/infra/fingerprint"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/repository"
	infrarisk "github.com/ShieldWorks/AdmitGate/pkg/infra/risk"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/threatintel"
	"github.com/ShieldWorks/AdmitGate/pkg/middleware"
	"github.com/ShieldWorks/AdmitGate/pkg/server"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	if err := config.Load("./config"); err != nil {
		logger.WithError(err).Warn("config file not loaded, using defaults and environment")
	}
	cfg := config.GetConfig()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}

	redisCache, err := cache.NewCache(common.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize redis")
	}

	registry := metrics.NewRegistry()

	alertWorker := alerts.NewWorker(logger, registry)
	alertWorker.StartWorkers(2)

	auditRepo := repository.NewAuditRepository(db, logger)
	ledgerRepo := repository.NewLedgerRepository(db, logger)
	challengeRepo := repository.NewChallengeRepository(db, logger)
	abuseRepo := repository.NewAbuseRepository(db, logger)

	collector := infrafp.NewCollector(logger)
	tracker := infrafp.NewTracker(redisCache)
	extractor := infrabehavior.NewExtractor(logger, cfg.Behavior)
	intel := threatintel.NewClient(logger, cfg.ThreatIntel)
	engine := infrarisk.NewEngine(logger, cfg.Risk, auditRepo, alertWorker, registry)
	challengeManager := infrachallenge.NewManager(logger, cfg.Challenge, challengeRepo, nil)
	pendingOps := infrachallenge.NewPendingStore(redisCache)

	assessor := assessment.NewService(
		logger, cfg, collector, tracker, extractor, intel, abuseRepo, engine, registry, redisCache,
	)

	detector := infraabuse.NewDetector(logger, cfg.Abuse, tracker, abuseRepo, challengeRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	extractor.Start(ctx)
	detector.Start(ctx)

	transport := &middleware.Transport{
		Logger:     logger,
		Config:     cfg,
		Assessor:   assessor,
		Challenges: challengeManager,
		Pending:    pendingOps,
		Ledger:     ledgerRepo,
		Registry:   registry,
	}

	srv := server.New(
		logger,
		cfg,
		middleware.NewAdmissionMiddleware(transport),
		middleware.NewQuotaMiddleware(transport, 1),
		server.Handlers{
			Fingerprint: handlers.NewFingerprintHandler(logger, assessor),
			Behavior:    handlers.NewBehaviorHandler(logger, extractor),
			Challenge:   handlers.NewChallengeHandler(logger, challengeManager, registry),
			Process:     handlers.NewProcessHandler(logger, processing.NewProcessor(logger)),
			Health:      handlers.NewHealthHandler(db, redisCache),
		},
	)

	go func() {
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	detector.Stop()
	extractor.Stop()
	alertWorker.Shutdown()
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
}
