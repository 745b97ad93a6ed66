// Package server wires the Fiber application: middleware, routes and the
// HTTP handlers for the memories, scrapbooks and moderation APIs.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"keepsake/internal/auth"
	"keepsake/internal/cache"
	"keepsake/internal/config"
	"keepsake/internal/database"
	"keepsake/internal/featureflags"
	"keepsake/internal/middleware"
	"keepsake/internal/models"
	"keepsake/internal/repository"
	"keepsake/internal/service"
	"keepsake/internal/session"

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

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo      repository.UserRepository
	memoryRepo    repository.MemoryRepository
	scrapbookRepo repository.ScrapbookRepository

	authenticator *auth.Authenticator
	tokens        auth.TokenService
	sessions      *session.Store

	imageService      *service.ImageService
	memoryService     *service.MemoryService
	scrapbookService  *service.ScrapbookService
	moderationService *service.ModerationService
	indexPresenter    *service.ScrapbookIndexPresenter

	featureFlags *featureflags.Manager
}

// NewServer creates a server instance, establishing its own DB and Redis
// connections from config.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)
	scrapbookRepo := repository.NewScrapbookRepository(db)

	prom := middleware.InitMetrics("keepsake-api")

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		memoryRepo:     memoryRepo,
		scrapbookRepo:  scrapbookRepo,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if redisClient != nil {
		s.tokens = auth.NewRedisTokenService(redisClient, sessionTTL)
		s.sessions = session.NewStore(redisClient, s.tokens, userRepo, sessionTTL)
		middleware.InitAuth(s.sessions, cfg.SessionCookieName)
	}
	s.authenticator = auth.NewAuthenticator(userRepo, s.tokens)

	s.imageService = service.NewImageService(cfg)
	s.memoryService = service.NewMemoryService(memoryRepo, s.imageService)
	s.scrapbookService = service.NewScrapbookService(scrapbookRepo, memoryRepo)
	s.moderationService = service.NewModerationService(scrapbookRepo)
	s.indexPresenter = service.NewScrapbookIndexPresenter(service.NewScrapbookMemoryFetcher(scrapbookRepo))

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID, user ID and session ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Cookie",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Keepsake Backend Metrics Dashboard",
	}))

	// Session (sign in / sign out)
	api.Post("/session", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "sign_in"), s.SignIn)
	api.Delete("/session", s.SignOut)

	// Media is public; file paths are unguessable only to the extent that
	// memory IDs are, matching the original's public upload serving.
	media := app.Group("/media/memory/source")
	media.Get("/:id/thumb/:filename", s.ServeMemoryThumb)
	media.Get("/:id/:filename", s.ServeMemorySource)

	// Owner-scoped routes
	my := api.Group("/my", middleware.AuthRequired)

	memories := my.Group("/memories")
	memories.Get("/", s.GetMyMemories)
	memories.Post("/", s.CreateMemory)
	memories.Get("/:id", s.GetMyMemory)
	memories.Put("/:id", s.UpdateMemory)
	memories.Delete("/:id", s.DeleteMemory)

	scrapbooks := my.Group("/scrapbooks")
	scrapbooks.Get("/", s.GetMyScrapbooks)
	scrapbooks.Post("/", s.CreateScrapbook)
	scrapbooks.Post("/:id/memories", s.AddScrapbookMemory)
	scrapbooks.Get("/:id", s.GetMyScrapbook)
	scrapbooks.Put("/:id", s.UpdateScrapbook)
	scrapbooks.Delete("/:id", s.DeleteScrapbook)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthRequired, middleware.AdminRequired)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	moderation := admin.Group("/moderation/scrapbooks")
	moderation.Get("/", s.GetUnmoderatedScrapbooks)
	moderation.Get("/moderated", s.GetModeratedScrapbooks)
	moderation.Get("/reported", s.GetReportedScrapbooks)
	moderation.Get("/:id", s.GetScrapbookForReview)
	moderation.Post("/:id/approve", s.ApproveScrapbook)
	moderation.Post("/:id/reject", s.RejectScrapbook)
	moderation.Post("/:id/unmoderate", s.UnmoderateScrapbook)
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Sessions live in Redis, so readiness requires it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:   "Keepsake API",
		BodyLimit: (s.config.MaxUploadSizeMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
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
