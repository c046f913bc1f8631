package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/handler"
	"github.com/noah-isme/datashare-api/internal/middleware"
	"github.com/noah-isme/datashare-api/internal/service"
	"github.com/noah-isme/datashare-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/datashare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/datashare-api/pkg/middleware/requestid"
	"github.com/noah-isme/datashare-api/pkg/realtime"
)

// Options holds everything the HTTP surface needs.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool

	Logger        *zap.Logger
	Metrics       *service.MetricsService
	Tokens        *service.TokenService
	Workflow      *service.WorkflowService
	Organizations *service.OrganizationService
	Delivery      *service.DeliveryService
	// Hub is optional; the stream route is only mounted when set.
	Hub    *realtime.Hub
	Checks map[string]handler.ReadinessCheck
}

// NewRouter mounts every route on a fresh gin engine.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	metricsHandler := handler.NewMetricsHandler(opts.Metrics, opts.Checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	transactions := handler.NewTransactionHandler(opts.Workflow)
	deliveries := handler.NewDeliveryHandler(opts.Delivery)
	organizations := handler.NewOrganizationHandler(opts.Organizations)

	api := r.Group(opts.APIPrefix)
	api.GET("/deliveries/:token", deliveries.Resolve)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	{
		secured.POST("/transactions", middleware.Audit(opts.Logger, "create_transaction"), transactions.Create)
		secured.GET("/transactions", transactions.List)
		secured.GET("/transactions/:id", transactions.Get)
		secured.GET("/transactions/:id/role", transactions.Role)
		secured.POST("/transactions/:id/actions", middleware.Audit(opts.Logger, "apply_action"), transactions.Apply)
		secured.POST("/transactions/:id/revoke", middleware.Audit(opts.Logger, "revoke"), transactions.Revoke)
		secured.PATCH("/transactions/:id/payment", middleware.Audit(opts.Logger, "update_payment"), transactions.UpdatePayment)
		secured.GET("/transactions/:id/history", transactions.History)
		secured.GET("/transactions/:id/timeline", transactions.Timeline)
		secured.GET("/transactions/:id/verify", transactions.Verify)
		secured.POST("/transactions/:id/delivery-link", middleware.Audit(opts.Logger, "issue_delivery"), deliveries.Issue)

		secured.GET("/organizations/:id", organizations.Get)
		secured.PUT("/organizations/:id", middleware.Audit(opts.Logger, "register_organization"), organizations.Register)
	}

	if opts.Hub != nil {
		stream := handler.NewTimelineStreamHandler(opts.Workflow, opts.Hub, opts.AllowedOrigins, opts.Logger)
		api.GET("/transactions/:id/stream", middleware.StreamJWT(opts.Tokens), stream.Stream)
	}

	return r
}
