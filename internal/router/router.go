package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/handler"
	internalmiddleware "github.com/noah-isme/loan-query-api/internal/middleware"
	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/service"
	"github.com/noah-isme/loan-query-api/pkg/config"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/loan-query-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/loan-query-api/pkg/middleware/requestid"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Queries      *handler.QueryHandler
	Sales        *handler.SalesHandler
	Chat         *handler.ChatHandler
	ChatArchives *handler.ChatArchiveHandler
	Approvals    *handler.ApprovalHandler
	Workflows    *handler.WorkflowHandler
	Realtime     *handler.RealtimeHandler
	Ops          *handler.MetricsHandler
}

// Dependencies carries the cross-cutting pieces the router needs.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	// Auth validates bearer tokens. When nil, callers identify themselves
	// with the X-User-* headers and role checks are not enforced.
	Auth *service.AuthService
}

var (
	anyRole = []models.UserRole{
		models.RoleOperations, models.RoleSales, models.RoleCredit, models.RoleApprover,
	}
	deciders = []models.UserRole{models.RoleOperations, models.RoleSales, models.RoleCredit}
)

// New builds the gin engine with the full route table.
func New(deps Dependencies, h Handlers) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	prefix := cfg.APIPrefix
	r.Use(internalmiddleware.Metrics(deps.Metrics, prefix+"/events", prefix+"/ws"))

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	roles := func(allowed ...models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) { c.Next() }
	}
	if deps.Auth != nil {
		api.Use(internalmiddleware.JWT(deps.Auth))
		roles = internalmiddleware.RequireRoles
	} else {
		api.Use(internalmiddleware.HeaderIdentity())
	}
	audit := func(action string) gin.HandlerFunc {
		return internalmiddleware.Audit(log, action)
	}

	api.GET("/metrics/summary", roles(anyRole...), h.Ops.Summary)

	queries := api.Group("/queries")
	queries.GET("", roles(anyRole...), h.Queries.List)
	queries.POST("", roles(models.RoleOperations), audit("query.create"), h.Queries.Create)
	queries.GET("/sales", roles(models.RoleSales, models.RoleOperations), h.Sales.List)
	queries.PATCH("/sales", roles(models.RoleSales), audit("query.sales_action"), h.Sales.Act)
	queries.GET("/:queryId", roles(anyRole...), h.Queries.Get)
	queries.POST("/:queryId/propose", roles(deciders...), audit("query.propose"), h.Queries.Propose)
	queries.POST("/:queryId/revert", roles(models.RoleOperations), audit("query.revert"), h.Queries.Revert)
	queries.POST("/:queryId/resolve", roles(deciders...), audit("query.resolve"), h.Queries.Resolve)
	queries.GET("/:queryId/chat", roles(anyRole...), h.Chat.List)
	queries.POST("/:queryId/chat", roles(anyRole...), h.Chat.Post)

	api.GET("/chat-archives", roles(anyRole...), h.ChatArchives.List)
	api.POST("/chat-archives", roles(models.RoleOperations), audit("chat.archive"), h.ChatArchives.Archive)
	api.DELETE("/chat-archives", roles(), h.ChatArchives.Clear)

	api.GET("/approvals", roles(models.RoleApprover, models.RoleOperations), h.Approvals.List)
	api.POST("/approvals", roles(models.RoleApprover), audit("approval.bulk_act"), h.Approvals.BulkAct)
	api.DELETE("/clear-approvals", roles(), audit("approval.clear_all"), h.Approvals.ClearAll)
	api.POST("/clear-approvals", roles(), audit("approval.remove"), h.Approvals.RemoveByCriteria)

	api.GET("/workflows", roles(anyRole...), h.Workflows.List)
	api.POST("/workflows", roles(), audit("workflow.create"), h.Workflows.Create)

	api.GET("/events", roles(anyRole...), h.Realtime.Events)
	api.GET("/ws", roles(anyRole...), h.Realtime.WebSocket)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	return r
}
