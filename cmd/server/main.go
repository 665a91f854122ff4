package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/bannerforge/api/internal/client"
	"github.com/bannerforge/api/internal/config"
	"github.com/bannerforge/api/internal/handler"
	"github.com/bannerforge/api/internal/middleware"
	"github.com/bannerforge/api/internal/renderer"
	"github.com/bannerforge/api/internal/service"
	"github.com/bannerforge/api/internal/store"
	"github.com/bannerforge/api/internal/worker"
	ws "github.com/bannerforge/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize R2 storage client (optional: unset credentials mean
	// outputs are served from the local output dir)
	var storageClient client.StorageClient
	if cfg.Storage.AccountID != "" && cfg.Storage.AccessKeyID != "" {
		r2, err := client.NewR2Client(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: R2 storage unavailable: %v", err)
		} else {
			storageClient = r2
		}
	}

	// Initialize render service (starts the browser pool)
	renderService, err := renderer.New(cfg.Renderer, storageClient)
	if err != nil {
		log.Fatalf("Failed to start renderer: %v", err)
	}

	// Initialize stores
	templateStore := store.NewRedisTemplateStore(redisClient)
	jobStore := store.NewRedisJobStore(redisClient)

	// Initialize services
	templateService := service.NewTemplateService(templateStore, renderService)
	generateService := service.NewGenerateService(templateStore, jobStore, renderService, asynqClient, hub, cfg.Renderer.Concurrency)

	// Initialize handlers
	templateHandler := handler.NewTemplateHandler(templateService, validate)
	generateHandler := handler.NewGenerateHandler(generateService, validate)
	jobHandler := handler.NewJobHandler(generateService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-User-Id,X-User-Email",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rendered outputs
	app.Static(cfg.Renderer.PublicBaseURL, cfg.Renderer.OutputDir)

	// API routes
	api := app.Group("/api", middleware.GatewayAuthMiddleware())

	// Template routes
	templates := api.Group("/templates", rateLimiter.TemplatesLimit(cfg.RateLimit.TemplatesPerMin))
	templates.Post("/", templateHandler.Create)
	templates.Get("/", templateHandler.List)
	templates.Get("/:id", templateHandler.Get)
	templates.Put("/:id", templateHandler.Update)
	templates.Delete("/:id", templateHandler.Delete)
	templates.Post("/:id/resize", templateHandler.Resize)
	templates.Get("/:id/variables", templateHandler.Variables)

	// Generate routes
	generate := api.Group("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour))
	generate.Post("/", generateHandler.Generate)
	generate.Post("/async", generateHandler.GenerateAsync)

	// Job routes
	api.Get("/jobs/:jobId", jobHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, generateService)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := renderService.Close(); err != nil {
			log.Printf("Renderer shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, generateService *service.GenerateService) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Rows already fan out inside a job; one job at a time keeps
			// the browser pool from being oversubscribed.
			Concurrency: 1,
			Queues: map[string]int{
				"generate": 10,
			},
		},
	)

	generateWorker := worker.NewGenerateWorker(generateService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerate, generateWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
