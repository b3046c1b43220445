// Package server wires the HTTP and WebSocket surface of the backend.
//
// It owns construction order: logging first, then metrics, then the session
// store and lifecycle orchestrator, then the gin engine with the middleware
// chain and route table. Everything the handlers need is built here and
// handed down ready to use.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/DebugOS/backend/internal/api/http"
	"github.com/GriffinCanCode/DebugOS/backend/internal/api/middleware"
	"github.com/GriffinCanCode/DebugOS/backend/internal/api/ws"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/orchestrator"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/scenario"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/session"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/worktree"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/DebugOS/backend/internal/providers/debug"
	"github.com/GriffinCanCode/DebugOS/backend/internal/providers/layout"
)

// Server is the assembled backend.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *gin.Engine
	httpSrv *http.Server
	orch    *orchestrator.Orchestrator
	metrics *monitoring.Metrics
}

// NewServer builds the full dependency graph from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := monitoring.NewMetrics()

	store := session.NewStore(cfg.Store, log).WithMetrics(metrics)
	registerAdapters(store)

	worktrees := worktree.NewSet()
	resolver := scenario.NewResolver(scenario.NewStaticLocator(), nil, log)
	layouts := layout.NewStore(cfg.State.Dir, log)

	orch := orchestrator.New(store, layouts, worktrees, resolver, cfg.Store, log).
		WithMetrics(metrics)

	files := scenario.NewFileStore()
	provider := debug.NewProvider(orch, files, worktrees, log)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	tracer := tracing.New("debugos-backend", log.Logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.HTTPMiddleware(tracer))
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(orch, provider, worktrees, layouts, log)
	stream := ws.NewHandler(orch, log).WithMetrics(metrics)
	registerRoutes(engine, handlers, stream, metrics)

	srv := &Server{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		orch:    orch,
		metrics: metrics,
		httpSrv: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return srv, nil
}

// registerAdapters declares the debug adapters the store may spawn.
func registerAdapters(store *session.Store) {
	store.RegisterAdapter(session.Adapter{Name: "delve"})
	store.RegisterAdapter(session.Adapter{Name: "debugpy"})
	store.RegisterAdapter(session.Adapter{Name: "lldb"})
	store.RegisterAdapter(session.Adapter{Name: "gdb"})
}

func registerRoutes(engine *gin.Engine, h *apihttp.Handlers, stream *ws.Handler, metrics *monitoring.Metrics) {
	engine.GET("/", h.Root)
	engine.GET("/health", h.Health)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	engine.GET("/metrics/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	})

	engine.GET("/stream", stream.HandleConnection)

	sessions := engine.Group("/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/console", h.GetConsole)
		sessions.GET("/:id/adapter-arguments", h.GetAdapterArguments)
		sessions.POST("/:id/restart", h.RestartSession)
		sessions.POST("/:id/activate", h.ActivateSession)
		sessions.DELETE("/:id", h.CloseSession)
	}

	confirmations := engine.Group("/confirmations")
	{
		confirmations.GET("", h.ListConfirmations)
		confirmations.POST("/:id", h.ResolveConfirmation)
	}

	rerun := engine.Group("/rerun")
	{
		rerun.POST("", h.Rerun)
		rerun.GET("/state", h.RerunState)
	}
	engine.POST("/tasks/scheduled", h.TaskScheduled)
	engine.GET("/threads/state", h.ThreadState)

	worktrees := engine.Group("/worktrees")
	{
		worktrees.POST("", h.AddWorktree)
		worktrees.GET("", h.ListWorktrees)
		worktrees.DELETE("/:id", h.RemoveWorktree)
		worktrees.GET("/:id/scenarios", h.ListScenarios)
		worktrees.POST("/:id/scenarios", h.SaveScenario)
		worktrees.GET("/:id/scenarios/documents", h.DiscoverScenarioDocuments)
	}

	layouts := engine.Group("/layouts")
	{
		layouts.GET("/:adapter", h.GetLayout)
		layouts.PUT("/:adapter", h.SaveLayout)
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.log.Info("server starting",
		zap.String("addr", s.httpSrv.Addr),
		zap.Bool("development", s.cfg.Logging.Development),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	err := s.httpSrv.Shutdown(ctx)
	s.log.Sync()
	return err
}

// Orchestrator exposes the lifecycle orchestrator, mainly for tests.
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Engine exposes the router for in-process integration tests.
func (s *Server) Engine() http.Handler {
	return s.engine
}
