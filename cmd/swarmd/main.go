package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/api"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/config"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/planner"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/queue"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/skill"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/store"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/trigger"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting swarmd...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/swarm.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath), zap.String("agent_id", cfg.Agent.ID))

	// Task queue: Redis, with in-memory fallback for degraded startup
	var taskQueue queue.TaskQueue
	var redisQueue *queue.RedisQueue
	if cfg.Database.Redis.URL != "" {
		rq, qErr := queue.NewRedisQueue(cfg.Database.Redis.URL, cfg.Planner.QueueCapacity, logger)
		if qErr != nil {
			logger.Warn("Redis unavailable, using in-memory queue", zap.Error(qErr))
		} else {
			redisQueue = rq
			taskQueue = rq
		}
	}
	if taskQueue == nil {
		taskQueue = queue.NewMemoryQueue(cfg.Planner.QueueCapacity)
	}

	// Task snapshot store for status lookups
	var tasks api.TaskGetter
	var recorders store.MultiRecorder
	if cfg.Database.Redis.URL != "" {
		ts, sErr := store.NewTaskStore(cfg.Database.Redis.URL, 0, logger)
		if sErr != nil {
			logger.Warn("Redis task store unavailable", zap.Error(sErr))
		} else {
			tasks = ts
			recorders = append(recorders, ts)
			defer ts.Close()
		}
	}
	if tasks == nil {
		mem := store.NewMemoryTaskStore()
		tasks = mem
		recorders = append(recorders, mem)
	}

	// Durable execution history in PostgreSQL
	var history *store.History
	if cfg.Database.Postgres.DSN != "" {
		h, pgErr := store.NewHistory(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without durable history", zap.Error(pgErr))
		} else {
			if mErr := h.Migrate(context.Background(), cfg.MigrationsDir); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			history = h
			recorders = append(recorders, h)
		}
	}

	// Tool-call boundary: connect MCP servers and route by tool name
	toolRouter := tool.NewRouter(logger)
	var mcpClients []*tool.MCPClient
	for _, sc := range cfg.MCP.Servers {
		c := tool.NewMCPClient(sc.Name, sc.URL, logger)
		if err := c.Connect(context.Background()); err != nil {
			logger.Warn("MCP server unavailable", zap.String("name", sc.Name), zap.Error(err))
			continue
		}
		toolRouter.Register(c)
		mcpClients = append(mcpClients, c)
	}

	// Skill registry
	registry := skill.NewRegistry(logger)
	if err := skill.RegisterBuiltins(registry); err != nil {
		logger.Fatal("failed to register skills", zap.Error(err))
	}
	for id, missing := range registry.MissingDependencies(toolRouter.HasServer) {
		logger.Warn("skill missing backing servers, its tasks will fail until they connect",
			zap.String("skill", id), zap.Strings("servers", missing))
	}

	// Planner with the shared daily budget
	budget := planner.NewBudget(cfg.Planner.DailyBudgetUSD)
	plan := planner.NewPlanner(cfg.Agent.ID, taskQueue, budget, logger)

	// Worker pool
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool := worker.NewPool(
		cfg.Worker.Count,
		cfg.Agent.ID,
		taskQueue,
		registry,
		toolRouter,
		recorders,
		time.Duration(cfg.Worker.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Worker.PollIntervalMS)*time.Millisecond,
		logger,
	)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(workerCtx)
		close(poolDone)
	}()
	logger.Info("Worker pool started", zap.Int("workers", cfg.Worker.Count))

	// Trigger intake
	triggers := trigger.NewHandler(toolRouter, logger)

	// HTTP API
	handler := api.NewHandler(plan, taskQueue, tasks, registry, triggers, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("swarmd listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down swarmd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	stopWorkers()
	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Warn("workers did not drain before shutdown deadline")
	}

	if redisQueue != nil {
		redisQueue.Close()
	}
	if history != nil {
		history.Close()
	}
	for _, mc := range mcpClients {
		mc.Close()
	}
}
