package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/handler"
	"github.com/noah-isme/loan-query-api/internal/realtime"
	"github.com/noah-isme/loan-query-api/internal/repository"
	"github.com/noah-isme/loan-query-api/internal/router"
	"github.com/noah-isme/loan-query-api/internal/service"
	"github.com/noah-isme/loan-query-api/internal/store"
	"github.com/noah-isme/loan-query-api/pkg/cache"
	"github.com/noah-isme/loan-query-api/pkg/config"
	"github.com/noah-isme/loan-query-api/pkg/database"
)

func newServeCommand(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, env.cfg, env.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db := openDatabase(cfg, logr)
	if db != nil {
		defer db.Close()
	}
	var redisClient *redis.Client
	if cfg.Chat.LegacyCacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("legacy chat cache disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}

	mem := store.NewMemoryStore()
	metrics := service.NewMetricsService()
	hub := realtime.NewHub(logr.Named("realtime"), realtime.WithChannelGauge(metrics))
	kafka := realtime.NewKafkaPublisher(cfg.Realtime.KafkaBrokers, cfg.Realtime.KafkaTopic, logr.Named("kafka"))
	defer kafka.Close() //nolint:errcheck
	events := realtime.Multi(hub, kafka)

	chatCfg := service.ChatConfig{DedupWindow: cfg.Chat.DedupWindow, MergeWindow: cfg.Chat.MergeWindow}
	approvalCfg := service.ApprovalConfig{
		DefaultSLA:   cfg.Approvals.DefaultSLA,
		WarnWindow:   cfg.Approvals.WarnWindow,
		AllowReset:   cfg.Approvals.AllowReset,
		ResetKeyHash: cfg.Approvals.ResetKeyHash,
	}
	chatOpts := []service.ChatServiceOption{service.WithChatEvents(events), service.WithChatMetrics(metrics)}
	if redisClient != nil {
		legacy := repository.NewLegacyChatCache(redisClient, cfg.Chat.LegacyCacheKey, cfg.Chat.LegacyCacheMax, logr)
		defer legacy.Close() //nolint:errcheck
		chatOpts = append(chatOpts, service.WithLegacyChatCache(legacy))
	}
	approvalOpts := []service.ApprovalServiceOption{service.WithApprovalEvents(events), service.WithApprovalMetrics(metrics)}
	queryOpts := []service.QueryServiceOption{service.WithQueryEvents(events), service.WithQueryMetrics(metrics)}

	var (
		chat       *service.ChatService
		queries    *service.QueryService
		approvals  *service.ApprovalService
		workflows  *service.WorkflowService
		reconciler *service.ReconcileService
	)
	if db != nil {
		queryRepo := repository.NewQueryRepository(db)
		chatRepo := repository.NewChatRepository(db)
		approvalRepo := repository.NewApprovalRepository(db)

		reconciler = service.NewReconcileService(chatRepo, approvalRepo, mem, metrics, logr.Named("reconcile"), service.ReconcileConfig{
			Workers:    cfg.Reconcile.Workers,
			MaxRetries: cfg.Reconcile.Retries,
			RetryDelay: 2 * time.Second,
			Interval:   cfg.Reconcile.Interval,
		})
		chatOpts = append(chatOpts, service.WithChatQueryLookup(queryRepo), service.WithChatReconciler(reconciler))
		approvalOpts = append(approvalOpts, service.WithApprovalReconciler(reconciler))

		workflows = service.NewWorkflowService(repository.NewWorkflowRepository(db), nil, logr)
		chat = service.NewChatService(chatRepo, mem, nil, logr, chatCfg, chatOpts...)
		queries = service.NewQueryService(queryRepo, chat, nil, logr, queryOpts...)
		approvals = service.NewApprovalService(approvalRepo, mem, queries, nil, logr, approvalCfg,
			append(approvalOpts, service.WithWorkflowMatcher(workflows))...)
	} else {
		chatOpts = append(chatOpts, service.WithChatQueryLookup(mem))
		workflows = service.NewWorkflowService(mem, nil, logr)
		chat = service.NewChatService(nil, mem, nil, logr, chatCfg, chatOpts...)
		queries = service.NewQueryService(mem, chat, nil, logr, queryOpts...)
		approvals = service.NewApprovalService(nil, mem, queries, nil, logr, approvalCfg,
			append(approvalOpts, service.WithWorkflowMatcher(workflows))...)
	}
	queries.AttachApprovals(approvals)

	if _, err := workflows.Seed(ctx, cfg.Workflows.SeedFile); err != nil {
		logr.Warn("workflow seed skipped", zap.String("file", cfg.Workflows.SeedFile), zap.Error(err))
	}

	if reconciler != nil {
		reconciler.Start(ctx)
		defer reconciler.Stop()
		go reconciler.Run(ctx)
	}
	go hub.Run(ctx, cfg.Realtime.SweepInterval, cfg.Realtime.IdleTimeout)

	checks := map[string]handler.ReadinessCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	} else {
		checks["postgres"] = func(context.Context) error { return errors.New("not configured, serving from memory") }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	deps := router.Dependencies{Config: cfg, Logger: logr, Metrics: metrics}
	if cfg.JWT.Enabled {
		deps.Auth = service.NewAuthService(logr, service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	}
	engine := router.New(deps, router.Handlers{
		Queries:      handler.NewQueryHandler(queries),
		Sales:        handler.NewSalesHandler(queries),
		Chat:         handler.NewChatHandler(chat),
		ChatArchives: handler.NewChatArchiveHandler(chat, queries),
		Approvals:    handler.NewApprovalHandler(approvals),
		Workflows:    handler.NewWorkflowHandler(workflows),
		Realtime:     handler.NewRealtimeHandler(hub, cfg.Realtime.HeartbeatInterval, cfg.CORS.AllowedOrigins),
		Ops:          handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("persistent", db != nil))
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

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDatabase connects to PostgreSQL and applies migrations when enabled.
// A nil result means the service runs on the in-memory store alone.
func openDatabase(cfg *config.Config, logr *zap.Logger) *sqlx.DB {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Warn("postgres unavailable, serving from memory", zap.Error(err))
		return nil
	}
	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(db.DB); err != nil {
			logr.Error("auto migration failed", zap.Error(err))
			_ = db.Close()
			return nil
		}
	}
	return db
}
