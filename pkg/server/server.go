package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/config"
	handlers "github.com/ShieldWorks/AdmitGate/pkg/handlers/http"
	"github.com/ShieldWorks/AdmitGate/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handlers groups the route handlers the server mounts.
type Handlers struct {
	Fingerprint *handlers.FingerprintHandler
	Behavior    *handlers.BehaviorHandler
	Challenge   *handlers.ChallengeHandler
	Process     *handlers.ProcessHandler
	Health      *handlers.HealthHandler
}

type Server struct {
	logger     *logrus.Logger
	cfg        *config.Config
	app        *fiber.App
	metricsSrv *http.Server
	admission  middleware.Middleware
	quota      middleware.Middleware
	handlers   Handlers
}

func New(
	logger *logrus.Logger,
	cfg *config.Config,
	admission middleware.Middleware,
	quota middleware.Middleware,
	h Handlers,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "admitgate",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             64 << 20,
	})

	s := &Server{
		logger:    logger,
		cfg:       cfg,
		app:       app,
		admission: admission,
		quota:     quota,
		handlers:  h,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handlers.Health.Handle)

	s.app.Use(s.admission.Handle)

	protection := s.app.Group("/protection")
	protection.Post("/fingerprint", s.handlers.Fingerprint.Handle)
	protection.Post("/events", s.handlers.Behavior.Handle)
	protection.Post("/challenge", s.handlers.Challenge.HandleDescribe)
	protection.Post("/verify", s.handlers.Challenge.HandleVerify)

	s.app.Post("/process", s.quota.Handle, s.handlers.Process.Handle)
}

func (s *Server) Run() error {
	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
			Handler: mux,
		}
		go func() {
			s.logger.WithField("port", s.cfg.Server.MetricsPort).Info("metrics server listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.WithField("addr", addr).Info("server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}
	return s.app.ShutdownWithTimeout(10 * time.Second)
}
