package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/AgentOS/appmanager/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/download"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/domain/telemetry"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/infrastructure/workerpool"
	httpclient "github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/network"
	runtimeclient "github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/runtime"
	windowclient "github.com/GriffinCanCode/AgentOS/appmanager/internal/providers/window"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	downloads *download.Manager
	apps      *lifecycle.Manager
	pool      *workerpool.Pool
	hub       *ws.Hub
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer wires every component from cfg
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing app manager",
		zap.String("port", cfg.Server.Port),
		zap.String("download_dir", cfg.Download.Dir),
		zap.String("runtime_manager", cfg.Collaborators.RuntimeManagerURL),
		zap.String("window_manager", cfg.Collaborators.WindowManagerURL),
	)

	// Metrics first, other components record into it
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetricsWith(registry)

	// Downloads
	connectivity := network.NewProvider()
	transfer := httpclient.New(httpclient.Options{Logger: logger.Component("transfer")})
	downloads := download.NewManager(download.Config{
		Dir:         cfg.Download.Dir,
		IDSeed:      cfg.Download.IDSeed,
		QuotaKB:     cfg.Download.QuotaKB,
		BackoffUnit: cfg.Download.BackoffUnit(),
	}, transfer, connectivity, logger.Component("downloads")).WithMetrics(metrics)

	// Lifecycle
	timeout := cfg.Collaborators.RequestTimeout()
	runtime := runtimeclient.New(cfg.Collaborators.RuntimeManagerURL, timeout, logger.Component("runtime")).WithMetrics(metrics)
	window := windowclient.New(cfg.Collaborators.WindowManagerURL, timeout, logger.Component("window")).WithMetrics(metrics)
	telemetryLogger := logger.Component("telemetry")
	store := telemetry.NewStore(telemetry.DefaultAllowList(), telemetry.NewLogPublisher(telemetryLogger), telemetryLogger)
	pool := workerpool.New(cfg.Lifecycle.DispatchWorkers, logger.Component("dispatch"))

	apps := lifecycle.NewManager(lifecycle.Config{
		RuntimeAppPortal: cfg.Lifecycle.RuntimeAppPortal,
		LoadingTimeout:   cfg.Lifecycle.LoadingTimeout(),
		CloseTimeout:     cfg.Lifecycle.CloseTimeout(),
	}, runtime, window, store, pool, logger.Component("lifecycle")).WithMetrics(metrics)

	// Notifications
	hub := ws.NewHub(logger.Component("stream")).WithMetrics(metrics)
	downloads.Register(hub)
	apps.RegisterStateListener(hub)
	apps.RegisterLifecycleListener(hub)

	// Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(logger.Component("api")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		limits.Exempt = []string{"/runtime/events", "/window/events", "/metrics", "/health", "/log/level"}
		router.Use(middleware.RateLimit(limits))
	}

	handlers := api.NewHandlers(downloads, apps, connectivity, logger.Component("api"))
	handlers.RegisterRoutes(router)
	router.GET("/stream", hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/log/level", gin.WrapH(logger.Level))
	router.PUT("/log/level", gin.WrapH(logger.Level))

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		downloads: downloads,
		apps:      apps,
		pool:      pool,
		hub:       hub,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then drains downloads and dispatch
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.http != nil {
		if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(shutdownErr))
			err = fmt.Errorf("failed to shut down http server: %w", shutdownErr)
		}
	}

	s.downloads.Unregister(s.hub)
	s.apps.UnregisterStateListener(s.hub)
	s.apps.UnregisterLifecycleListener(s.hub)
	s.hub.Close()

	s.downloads.Close()
	s.pool.Close()
	s.metrics.Close()

	_ = s.logger.Sync()
	return err
}
