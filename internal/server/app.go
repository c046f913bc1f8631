package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/handler"
	"github.com/noah-isme/datashare-api/internal/repository"
	"github.com/noah-isme/datashare-api/internal/service"
	"github.com/noah-isme/datashare-api/pkg/cache"
	"github.com/noah-isme/datashare-api/pkg/config"
	"github.com/noah-isme/datashare-api/pkg/events"
	"github.com/noah-isme/datashare-api/pkg/realtime"
	"github.com/noah-isme/datashare-api/pkg/storage"
)

// Core is the storage and workflow layer shared by the API and the admin tool.
type Core struct {
	DB            *sqlx.DB
	Transactions  *repository.TransactionRepository
	Approvals     *repository.ApprovalRepository
	Organizations *service.OrganizationService
	Workflow      *service.WorkflowService
	Tokens        *service.TokenService
}

// NewCore builds repositories and services over db. opts are applied to the
// workflow service after the organization directory is attached.
func NewCore(cfg *config.Config, db *sqlx.DB, logger *zap.Logger, opts ...service.WorkflowServiceOption) *Core {
	transactions := repository.NewTransactionRepository(db)
	approvals := repository.NewApprovalRepository(db)
	organizations := service.NewOrganizationService(repository.NewOrganizationRepository(db), logger)

	workflowOpts := append([]service.WorkflowServiceOption{service.WithWorkflowDirectory(organizations)}, opts...)
	return &Core{
		DB:            db,
		Transactions:  transactions,
		Approvals:     approvals,
		Organizations: organizations,
		Workflow:      service.NewWorkflowService(transactions, approvals, validator.New(), logger, workflowOpts...),
		Tokens: service.NewTokenService(service.TokenConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.JWT.Expiration,
		}),
	}
}

// App is the fully wired API process.
type App struct {
	*Core
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *service.MetricsService
	Delivery   *service.DeliveryService
	Dispatcher *service.NotificationDispatcher
	Hub        *realtime.Hub

	cacheRepo *repository.CacheRepository
	publisher events.Publisher
}

// New wires the API over an open, migrated database.
func New(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	sinks := []service.Notifier{service.NewLogNotifier(logger)}
	switch cfg.Notifications.Driver {
	case config.NotifyDriverLog, "":
	case config.NotifyDriverKafka:
		publisher, err := events.NewKafkaPublisher(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic, logger)
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		app.publisher = publisher
		sinks = append(sinks, service.NewBrokerNotifier(publisher))
	default:
		return nil, fmt.Errorf("unsupported notification driver %q", cfg.Notifications.Driver)
	}
	if cfg.Stream.Enabled {
		app.Hub = realtime.NewHub(logger)
		sinks = append(sinks, service.NewStreamNotifier(app.Hub))
	}

	app.Dispatcher = service.NewNotificationDispatcher(sinks, service.DispatcherConfig{
		Workers:        cfg.Notifications.Workers,
		BufferSize:     cfg.Notifications.BufferSize,
		MaxRetries:     cfg.Notifications.MaxRetries,
		RetryDelay:     cfg.Notifications.RetryDelay,
		EnqueueTimeout: cfg.Notifications.EnqueueTimeout,
	}, app.Metrics, logger)

	opts := []service.WorkflowServiceOption{
		service.WithWorkflowMetrics(app.Metrics),
		service.WithWorkflowNotifier(app.Dispatcher),
	}
	if cfg.History.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, history cache disabled", zap.Error(err))
		} else {
			app.cacheRepo = repository.NewCacheRepository(client, logger)
			cacheSvc := service.NewCacheService(app.cacheRepo, app.Metrics, cfg.History.CacheTTL, logger, true)
			opts = append(opts, service.WithWorkflowCache(cacheSvc, cfg.History.CacheTTL))
		}
	}

	app.Core = NewCore(cfg, db, logger, opts...)
	signer := storage.NewSignedURLSigner(cfg.Delivery.SignedURLSecret, cfg.Delivery.SignedURLTTL)
	app.Delivery = service.NewDeliveryService(app.Workflow, signer, cfg.Delivery.BaseURL, logger)
	return app, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	a.Dispatcher.Start(ctx)
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	checks := map[string]handler.ReadinessCheck{
		"database": a.DB.PingContext,
	}
	if a.cacheRepo != nil {
		checks["redis"] = a.cacheRepo.Ping
	}
	return NewRouter(Options{
		APIPrefix:      a.Config.APIPrefix,
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
		EnableDocs:     a.Config.Env != config.EnvProduction,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Tokens:         a.Tokens,
		Workflow:       a.Workflow,
		Organizations:  a.Organizations,
		Delivery:       a.Delivery,
		Hub:            a.Hub,
		Checks:         checks,
	})
}

// Close stops workers and releases connections. The database is owned by the caller.
func (a *App) Close() {
	a.Dispatcher.Stop()
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("close kafka publisher", zap.Error(err))
		}
	}
	if a.cacheRepo != nil {
		if err := a.cacheRepo.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
}
