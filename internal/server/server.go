// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/events"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	nats           *nats.Conn
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	featureFlags   *featureflags.Manager

	userRepo repository.UserRepository

	registry   *notifications.Registry
	broker     notifications.Broker
	dispatcher *notifications.Dispatcher
	publisher  events.Publisher
	sweeper    *service.TrendingSweeper

	notificationService *service.NotificationService
	tagService          *service.TagService
	likeService         *service.LikeService
	feedService         *service.FeedService
	postService         *service.PostService
	commentService      *service.CommentService
	messageService      *service.MessageService
	userService         *service.UserService
	searchService       *service.SearchService
	adminService        *service.AdminService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		registry:       notifications.NewRegistry(),
		publisher:      events.Nop{},
	}

	if cfg.EventsEnabled || cfg.RealtimeBroker == "nats" {
		nc, err := events.Connect(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		s.nats = nc
		if cfg.EventsEnabled {
			s.publisher = events.NewNATSPublisher(nc)
		}
	}

	s.broker = s.newBroker()
	s.dispatcher = notifications.NewDispatcher(s.registry, s.broker, notifications.DispatcherConfig{
		BreakerFailures: uint32(max(cfg.DispatchBreakerFailures, 0)),
		BreakerTimeout:  time.Duration(cfg.DispatchBreakerTimeoutSeconds) * time.Second,
	})

	s.wireServices()
	return s, nil
}

// newBroker picks the cross-instance fan-out. A missing transport degrades to
// local-only delivery.
func (s *Server) newBroker() notifications.Broker {
	switch s.config.RealtimeBroker {
	case "redis":
		if s.redis != nil {
			return notifications.NewRedisBroker(s.redis)
		}
		log.Printf("REALTIME_BROKER=redis but redis is unavailable; delivering locally")
	case "nats":
		if s.nats != nil {
			return notifications.NewNATSBroker(s.nats)
		}
	}
	return nil
}

func (s *Server) wireServices() {
	db := s.db
	s.userRepo = repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	tagRepo := repository.NewTagRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	scorer := service.NewScorer(nil)
	isAdmin := service.AdminCheck(s.userRepo)

	s.notificationService = service.NewNotificationService(repository.NewNotificationRepository(db), s.userRepo, s.dispatcher)
	s.tagService = service.NewTagService(tagRepo, s.config.PopularTagsTTL())
	s.likeService = service.NewLikeService(likeRepo, postRepo, commentRepo, s.userRepo, s.notificationService, scorer, s.publisher)
	s.feedService = service.NewFeedService(postRepo, likeRepo, s.tagService, service.FeedConfig{
		AffinityTags: s.config.FeedAffinityTags,
		TrendingTags: s.config.FeedTrendingTags,
		Personalize: func(userID uint) bool {
			return s.featureFlags.Enabled(featureflags.PersonalizedFeed, userID)
		},
	})
	s.postService = service.NewPostService(postRepo, likeRepo, s.userRepo, s.tagService, s.notificationService, scorer, s.publisher, isAdmin)
	s.commentService = service.NewCommentService(commentRepo, postRepo, likeRepo, s.userRepo, s.notificationService, scorer, isAdmin)
	s.messageService = service.NewMessageService(repository.NewMessageRepository(db), s.userRepo, s.notificationService)
	s.userService = service.NewUserService(s.userRepo, s.notificationService)
	s.searchService = service.NewSearchService(s.feedService, s.userRepo, tagRepo)
	s.adminService = service.NewAdminService(repository.NewStatsRepository(db), isAdmin)
	s.sweeper = service.NewTrendingSweeper(postRepo, scorer, s.config.TrendingSweepInterval(), s.config.TrendingSweepBatch)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled browser clients still see CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/health/live", s.LivenessCheck)
	api.Get("/health/ready", s.ReadinessCheck)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.rateStore(), middleware.Rule{
		Name: "signup", Limit: 3, Window: 10 * time.Minute, Policy: middleware.FailClosed,
	}), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.rateStore(), middleware.Rule{
		Name: "login", Limit: 10, Window: 5 * time.Minute, Policy: middleware.FailClosed,
	}), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public reads
	api.Get("/posts", s.GetFeed)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Get("/posts/:id", s.GetPost)
	api.Get("/search/suggest", s.SearchSuggest)
	api.Get("/search", s.Search)
	api.Get("/tags/popular", s.PopularTags)
	api.Get("/users/:id", s.GetUserProfile)

	// Everything registered below sits behind AuthRequired.

	protected := api.Group("", s.AuthRequired())

	protected.Post("/ws/ticket", s.IssueWSTicket)
	protected.Get("/ws", s.WebSocketUpgrade, s.WebSocketHandler())

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.rateStore(), middleware.Rule{
		Name: "create_post", Limit: 5, Window: 5 * time.Minute,
	}), s.CreatePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.rateStore(), middleware.Rule{
		Name: "create_comment", Limit: 10, Window: time.Minute,
	}), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	protected.Delete("/comments/:id", s.DeleteComment)

	like := protected.Group("/like")
	like.Get("/status/:postId", s.LikeStatus)
	like.Post("/comment/:commentId", s.ToggleCommentLike)
	like.Post("/:postId", s.TogglePostLike)

	protected.Post("/tags/:slug/follow", s.ToggleTagFollow)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Patch("/read-all", s.MarkAllNotificationsRead)
	notifs.Patch("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/", s.DeleteAllNotifications)
	notifs.Delete("/:id", s.DeleteNotification)

	protected.Put("/users/me", s.UpdateProfile)
	protected.Post("/users/:id/follow", s.ToggleFollow)

	messages := protected.Group("/messages")
	messages.Get("/", s.GetChatList)
	messages.Patch("/item/:id/read", s.MarkMessageRead)
	messages.Delete("/item/:id", s.DeleteMessage)
	messages.Post("/:userId", middleware.RateLimit(s.rateStore(), middleware.Rule{
		Name: "send_message", Limit: 30, Window: time.Minute,
	}), s.SendMessage)
	messages.Get("/:userId", s.GetConversation)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/posts/pending", s.GetPendingPosts)
	admin.Patch("/posts/:id/approve", s.ApprovePost)
	admin.Patch("/posts/:id/reject", s.RejectPost)
	admin.Patch("/comments/:id/flag", s.FlagComment)
	admin.Patch("/users/:id/ban", s.BanUser)
	admin.Patch("/users/:id/unban", s.UnbanUser)
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/features", s.GetFeatureFlags)
}

// rateStore hides a nil *redis.Client behind a nil interface so the limiter
// sees a missing store instead of a typed nil.
func (s *Server) rateStore() redis.Cmdable {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now()})
}

// ReadinessCheck pings the database and, when configured, redis.
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

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"realtime": fiber.Map{
				"connections": s.registry.Count(),
				"breaker":     s.dispatcher.BreakerState().String(),
			},
		},
		"time": time.Now(),
	})
}

// NewApp builds a fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inkwell API",
		BodyLimit: 2 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: fiberErrorCode(fe.Code)})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return respondAppError(c, err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// StartBackground launches the realtime subscription and the trending sweep.
func (s *Server) StartBackground() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if err := s.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start realtime dispatcher: %w", err)
	}
	go s.sweeper.Run(ctx)
	return nil
}

// Start starts the server
func (s *Server) Start() error {
	app := s.NewApp()
	if err := s.StartBackground(); err != nil {
		return err
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	s.registry.CloseAll()
	s.dispatcher.Wait()

	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			log.Printf("error closing realtime broker: %v", err)
		}
	}
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			log.Printf("error draining nats: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil && !errors.Is(rerr, redis.ErrClosed) {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
