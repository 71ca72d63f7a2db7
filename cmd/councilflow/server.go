package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/councilflow/councilflow/api/handlers"
	"github.com/councilflow/councilflow/config"
	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/internal/cache"
	"github.com/councilflow/councilflow/internal/metrics"
	"github.com/councilflow/councilflow/internal/server"
	"github.com/councilflow/councilflow/llm"
	"github.com/councilflow/councilflow/llm/providers/openrouter"
	"github.com/councilflow/councilflow/storage"
)

// Server wires configuration into the running service: the OpenRouter
// provider, the deliberation pipeline, storage, optional Redis cache, the API
// handlers, and the two HTTP listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	provider llm.Provider
	pipeline *council.Pipeline
	store    storage.Store
	cache    *cache.Manager

	healthHandler       *handlers.HealthHandler
	conversationHandler *handlers.ConversationHandler
	wsHandler           *handlers.WSHandler
	modelsHandler       *handlers.ModelsHandler
	councilHandler      *handlers.CouncilHandler

	metricsCollector  *metrics.Collector
	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every component and both listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("councilflow", s.logger)

	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) initComponents() error {
	s.provider = openrouter.New(openrouter.Config{
		APIKey:  s.cfg.OpenRouter.APIKey,
		BaseURL: s.cfg.OpenRouter.BaseURL,
		Timeout: s.cfg.OpenRouter.Timeout,
		Referer: s.cfg.OpenRouter.Referer,
		Title:   s.cfg.OpenRouter.Title,
	}, s.logger)

	effort, _ := llm.ParseReasoningEffort(s.cfg.Council.ReasoningEffort)

	clientOpts := []council.ClientOption{
		council.WithTimeout(s.cfg.OpenRouter.Timeout),
		council.WithReasoningEffort(effort),
		council.WithMetrics(s.metricsCollector),
	}
	if s.cfg.OpenRouter.OutboundRPS > 0 {
		clientOpts = append(clientOpts, council.WithRateLimiter(
			rate.NewLimiter(rate.Limit(s.cfg.OpenRouter.OutboundRPS), s.cfg.OpenRouter.OutboundBurst)))
	}
	client := council.NewClient(s.provider, s.logger, clientOpts...)

	members := make([]council.Member, 0, len(s.cfg.Council.Members))
	for _, m := range s.cfg.Council.Members {
		members = append(members, council.Member(m))
	}
	s.pipeline = council.NewPipeline(client, council.Config{
		Members:           members,
		Chairman:          council.Member(s.cfg.Council.Chairman),
		AnswerTokenBudget: s.cfg.Council.AnswerTokenBudget,
	}, s.logger, council.WithPipelineMetrics(s.metricsCollector))

	store, err := storage.Open(s.cfg.Storage, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	s.store = store

	// Redis is optional: without it the model catalog is fetched upstream on
	// every request.
	modelsOpts := []handlers.ModelsOption{handlers.WithCacheMetrics(s.metricsCollector)}
	if s.cfg.Redis.Addr != "" {
		cm, err := cache.NewManager(cache.Config{
			Addr:       s.cfg.Redis.Addr,
			Password:   s.cfg.Redis.Password,
			DB:         s.cfg.Redis.DB,
			DefaultTTL: s.cfg.Redis.CacheTTL,
		}, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, model catalog caching disabled", zap.Error(err))
		} else {
			s.cache = cm
			modelsOpts = append(modelsOpts, handlers.WithModelsCache(cm, s.cfg.Redis.CacheTTL))
		}
	}

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(providerCheck{s.provider})
	s.healthHandler.RegisterCheck(storageCheck{s.store})

	s.conversationHandler = handlers.NewConversationHandler(s.store, s.pipeline, s.logger)
	s.wsHandler = handlers.NewWSHandler(s.store, s.pipeline, s.logger)
	s.modelsHandler = handlers.NewModelsHandler(s.provider, s.logger, modelsOpts...)
	s.councilHandler = handlers.NewCouncilHandler(s.pipeline.Members(), s.pipeline.Chairman(), s.logger)

	s.logger.Info("Components initialized",
		zap.Int("council_size", len(members)),
		zap.String("storage_backend", s.cfg.Storage.Backend),
		zap.Bool("model_cache", s.cache != nil),
	)
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("GET /api/conversations", s.conversationHandler.HandleList)
	mux.HandleFunc("POST /api/conversations", s.conversationHandler.HandleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", s.conversationHandler.HandleGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.conversationHandler.HandleDelete)
	mux.HandleFunc("POST /api/conversations/{id}/message", s.conversationHandler.HandleSendMessage)
	mux.HandleFunc("GET /api/conversations/{id}/ws", s.wsHandler.HandleDeliberate)
	mux.HandleFunc("GET /api/models", s.modelsHandler.HandleList)
	mux.HandleFunc("GET /api/council", s.councilHandler.HandleGet)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a shutdown signal, then tears everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops both listeners and closes storage and cache.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Storage shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown complete")
}

// providerCheck probes the upstream gateway for readiness.
type providerCheck struct {
	provider llm.Provider
}

func (c providerCheck) Name() string { return "openrouter" }

func (c providerCheck) Check(ctx context.Context) error {
	status, err := c.provider.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("provider unhealthy")
	}
	return nil
}

// storageCheck verifies the conversation store answers.
type storageCheck struct {
	store storage.Store
}

func (c storageCheck) Name() string { return "storage" }

func (c storageCheck) Check(ctx context.Context) error {
	_, err := c.store.List(ctx)
	return err
}
