package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "procurement/api/swagger" // swagger docs
	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/extraction"
	"procurement/internal/handler"
	"procurement/internal/logger"
	"procurement/internal/metrics"
	"procurement/internal/middleware"
	"procurement/internal/notification"
	"procurement/internal/outbox"
	"procurement/internal/service"
	"procurement/internal/websocket"
	"procurement/internal/worker"
	"procurement/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Procurement Workflow API
// @version         1.0
// @description     Purchase request approval, purchase orders, payment tracking and receipt validation.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env", "configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	zapLogger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	levels, err := workflow.NewLevels(cfg.Workflow.RequiredLevels)
	if err != nil {
		return fmt.Errorf("invalid approval levels: %w", err)
	}

	m := metrics.New()
	auth := middleware.NewAuthenticator([]byte(cfg.Auth.JWTSecret))

	wsHub := websocket.NewHub(zapLogger)
	go wsHub.Run(ctx)

	notifiers := notification.Fanout{
		notification.NewLogNotifier(zapLogger),
		notification.NewWebsocketNotifier(wsHub),
	}
	if cfg.NATS.URL != "" {
		nc, err := notification.ConnectNATS(cfg.NATS.URL, zapLogger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Drain()
		notifiers = append(notifiers, notification.NewNATSNotifier(nc, cfg.NATS.SubjectPrefix, zapLogger))
		zapLogger.Info("Publishing notifications to NATS", zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	stores := service.NewStores(db)
	opts := service.Options{Levels: levels, PlaceholderVendor: cfg.Workflow.PlaceholderVendor}

	manager := worker.NewManager(zapLogger)
	outboxWorker := outbox.NewWorker(stores.Outbox, stores.Tx, notifiers, m, zapLogger, outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		MaxBackoff:   cfg.Outbox.MaxBackoff,
	})
	manager.Register(outboxWorker)

	var (
		submitter service.DocumentSubmitter
		runner    *extraction.Runner
	)
	if cfg.OpenAI.APIKey != "" {
		gateway := extraction.NewOpenAIGateway(
			extraction.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout),
			extraction.OpenAIConfig{
				Model:       cfg.OpenAI.Model,
				Temperature: cfg.OpenAI.Temperature,
				MaxTokens:   cfg.OpenAI.MaxTokens,
			},
			zapLogger,
		)
		runner = extraction.NewRunner(gateway, m, zapLogger, extraction.RunnerConfig{
			Workers:     cfg.Extraction.Workers,
			QueueSize:   cfg.Extraction.QueueSize,
			MaxAttempts: cfg.Extraction.MaxAttempts,
			Timeout:     cfg.Extraction.Timeout,
			BaseBackoff: cfg.Extraction.BaseBackoff,
		})
		submitter = runner
	} else {
		zapLogger.Warn("OPENAI_API_KEY not set, document extraction disabled")
	}

	requestService := service.NewRequestService(stores, opts, m, zapLogger)
	workflowService := service.NewWorkflowService(stores, opts, outboxWorker, m, zapLogger)
	documentService := service.NewDocumentService(stores, opts, outboxWorker, submitter, m, zapLogger)
	auditService := service.NewAuditService(stores.Audit)

	if runner != nil {
		runner.SetHandler(documentService)
		manager.Register(runner)
	}
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.StopAll()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(zapLogger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "workers": manager.Count()})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth)
	})

	api := router.Group("")
	api.Use(auth.RequireAuth())
	handler.NewRequestHandler(requestService).RegisterRoutes(api)
	handler.NewApprovalHandler(workflowService).RegisterRoutes(api)
	handler.NewDocumentHandler(documentService).RegisterRoutes(api)
	handler.NewAuditHandler(auditService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
