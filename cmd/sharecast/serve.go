package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sharecast/internal/core/domain"
	"sharecast/internal/core/services"
	httphandlers "sharecast/internal/handlers/http"
	"sharecast/internal/infrastructure/distributed"
	"sharecast/internal/infrastructure/media"
	"sharecast/internal/infrastructure/middleware"
	"sharecast/internal/infrastructure/monitoring"
	"sharecast/internal/infrastructure/repositories"
	eventsignal "sharecast/internal/infrastructure/signal"
	webrtcinfra "sharecast/internal/infrastructure/webrtc"
	"sharecast/pkg/logger"
	"sharecast/pkg/retry"
	"sharecast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runServe() error {
	startTime := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "sharecast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		Version:     version,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instanceID := uuid.NewString()
	log = log.With("instance_id", instanceID)

	// Storage backends
	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, log)
	auditService := services.NewAuditService(repoFactory.CreateAuditRepository(ctx), log.Named("audit"))

	// Media
	codecs, err := newCodecSelector(cfg)
	if err != nil {
		return err
	}
	if codecs == nil {
		log.Warn("built without cgo, screen capture and mixing are unavailable")
	}
	captureCfg := media.CaptureConfigFrom(cfg)
	capture := media.NewDisplayCapture(captureCfg, codecs, log.Named("capture"))
	microphone := media.NewMicrophoneInput(captureCfg, codecs, log.Named("microphone"))
	mixer := media.NewMixer(codecs, log.Named("mixer"))

	pc, err := webrtcinfra.NewPeerConnection(webrtcinfra.WebRTCConfigFrom(cfg), codecs)
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	publisher := webrtcinfra.NewPublisher(pc, log.Named("publisher"))

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Microphone.ReacquireAttempts - 1
	retryCfg.InitialDelay = cfg.Microphone.ReacquireDelay
	mics := services.NewMicrophoneRegistry(microphone, retryCfg, log.Named("microphone"))

	// Metrics and events
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	metricsService := services.NewMetricsService(collector)

	fanout := services.NewEventFanout(256, log.Named("events"), auditService)

	var bus *distributed.EventBus
	if client := repoFactory.RedisClient(); client != nil {
		bus = distributed.NewEventBus(client, instanceID, cfg.Redis.Channel, log.Named("bus"))
		fanout.AddSink(bus)
	}

	controller := services.NewScreenShareController(capture, mixer, mics, publisher, services.ControllerConfig{
		MixPolicy:     services.MixPolicy(cfg.Share.MixPolicy),
		RestorePolicy: services.RestorePolicy(cfg.Share.RestorePolicy),
		OnError: func(err error) {
			log.Errorw("screen share failed", "error", err)
		},
		Events:  fanout,
		Metrics: metricsService,
	}, log.Named("share"))

	hub := eventsignal.NewEventServer(controller, eventsignal.EventServerConfig{
		MaxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		MaxConnections: cfg.RateLimiting.WebSocket.MaxConcurrent,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log.Named("hub"))
	fanout.AddSink(hub)
	publisher.OnNegotiationNeeded(hub.NotifyRenegotiate)

	go fanout.Run(ctx)
	if bus != nil {
		go func() {
			err := bus.Subscribe(ctx, func(event domain.ShareEvent) error {
				hub.Emit(ctx, event)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				log.Errorw("event bus subscription ended", "error", err)
			}
		}()
	}

	if cfg.Microphone.PublishOnJoin {
		if err := controller.PublishMicrophone(ctx); err != nil {
			log.Warnw("microphone not published on join", "error", err)
		}
	}

	// Health
	health := monitoring.NewHealthChecker(log.Named("health"))
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	if pool := repoFactory.PostgresPool(); pool != nil {
		health.AddBackendCheck("postgres", pool.Ping, 30*time.Second, 2*time.Second)
	}
	health.AddPeerConnectionCheck(pc, 15*time.Second)
	health.AddShareCheck(controller, 30*time.Second, 5*time.Second)
	health.StartBackgroundChecks(ctx)

	// HTTP
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authMiddleware := middleware.NoAuthMiddleware()
	if cfg.Auth.Enabled {
		authMiddleware = middleware.AuthMiddleware(authService)
	} else {
		log.Warn("auth disabled, every caller may control the share")
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(controller),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		checkCtx, checkCancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer checkCancel()

		status := health.GetReadinessStatus(checkCtx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Infow("prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	router.GET("/ws/events",
		middleware.NewWebSocketRateLimitMiddleware(cfg),
		authMiddleware,
		func(c *gin.Context) {
			hub.HandleWebSocket(c.Writer, c.Request, middleware.HasRole(c, services.RoleController))
		},
	)

	api := router.Group("/api/v1", authMiddleware)
	httphandlers.NewShareHandler(controller, metricsService, auditService).SetupRoutes(api)
	httphandlers.NewSessionHandler(publisher, 10*time.Second).SetupRoutes(api)
	httphandlers.NewAuthHandler(authService, cfg.Auth.TokenTTL).
		SetupRoutes(api.Group("", middleware.RequireRole(services.RoleController)))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting sharecast", "address", cfg.Server.Address, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("server failed", "error", runErr)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down sharecast")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	// ends any active share and releases capture before the transport closes
	controller.Shutdown(shutdownCtx)

	fanout.Close()
	cancel()

	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Warnw("error closing event bus", "error", err)
		}
	}
	if err := publisher.Close(); err != nil {
		log.Warnw("error closing peer connection", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("error shutting down tracing", "error", err)
	}

	log.Info("sharecast stopped")
	return runErr
}
