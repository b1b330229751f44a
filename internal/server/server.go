// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"patronage/internal/bootstrap"
	"patronage/internal/config"
	"patronage/internal/events"
	"patronage/internal/featureflags"
	"patronage/internal/middleware"
	"patronage/internal/models"
	"patronage/internal/notifications"
	"patronage/internal/repository"
	"patronage/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	verifier       *middleware.TokenVerifier
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	donationRepo   repository.DonationRepository
	notifier       *notifications.Notifier
	events         *events.Publisher
	featureFlags   *featureflags.Manager
	postService    *service.PostService
	supportService *service.SupportService
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Redis is optional; without it caching, rate limits and realtime events degrade to no-ops.
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		middleware.Logger.Warn("ledger events disabled", "error", err)
		publisher, _ = events.NewPublisher("", cfg.AMQPExchange)
	}

	return newServer(cfg, db, rdb, publisher), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, db, redisClient, publisher), nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher *events.Publisher) *Server {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("patronage-api"),
		verifier:       middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, redisClient),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		donationRepo:   repository.NewDonationRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		events:         publisher,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	s.postService = service.NewPostService(s.postRepo)
	s.userService = service.NewUserService(s.userRepo)
	s.supportService = service.NewSupportService(s.donationRepo, s.postRepo, s.userRepo, service.SupportConfig{
		TopN:     cfg.RankingTopN,
		CacheTTL: cfg.RankingCacheTTL(),
		Flags:    s.featureFlags,
		Events:   publisher,
	})
	return s
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.MetricsMiddleware())

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application. Static segments such
// as /users/me are registered before their /:id siblings.
func (s *Server) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthRequired(s.verifier)
	optional := middleware.OptionalAuth(s.verifier)

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/", s.HealthCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Patronage Metrics Dashboard",
	}))

	// Posts
	api.Get("/posts", s.GetPosts)
	api.Post("/posts", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	api.Get("/posts/:id", s.GetPost)
	api.Post("/posts/:id/support", auth, middleware.RateLimit(s.redis, 30, time.Minute, "support"), s.SubmitPostSupport)
	api.Get("/posts/:id/ranking", optional, s.GetPostRanking)
	api.Get("/posts/:id/earnings", s.GetPostEarnings)
	api.Get("/posts/:id/supports", auth, s.GetPostSupports)

	// Supports and rankings
	api.Post("/supports", auth, middleware.RateLimit(s.redis, 30, time.Minute, "support"), s.SubmitSupport)
	api.Get("/rankings", optional, s.GetRanking)
	api.Get("/dashboard", auth, s.GetDashboard)

	// Users
	api.Get("/users/me", auth, s.GetMyProfile)
	api.Put("/users/me", auth, s.UpdateMyProfile)
	api.Put("/users/me/ranking-settings", auth, s.UpdateRankingSettings)
	api.Get("/users/me/supports", auth, s.GetMySupports)
	api.Get("/users/:id", s.GetUserProfile)
	api.Get("/users/:id/posts", s.GetUserPosts)
	api.Get("/users/:id/ranking", optional, s.GetAuthorRanking)
	api.Get("/users/:id/support-summary", s.GetSupportSummary)

	// Realtime
	api.Post("/ws/ticket", auth, s.IssueWSTicket)
	api.Get("/ws", s.WebSocketUpgrade, s.WebSocketHandler())

	// Admin routes
	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/ledger/reconcile", s.ReconcileLedger)
	admin.Post("/users/:id/promote-admin", s.PromoteToAdmin)
	admin.Post("/users/:id/demote-admin", s.DemoteFromAdmin)
}

// HealthCheck is a simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: a
// server started without it reports "unavailable" and stays ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"amqp":     s.events.Enabled(),
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.UserID(c)

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil && !models.IsCode(err, models.CodeNotFound) {
			return models.Respond(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Patronage API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if err := s.notifier.StartPatternSubscriber(ctx, s.observeRealtimeEvent); err != nil {
		log.Printf("failed to start realtime event tap: %v", err)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop subscriber goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.events.Close(); err != nil {
		log.Printf("error closing ledger event publisher: %v", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
