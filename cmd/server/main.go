package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/api/handlers"
	"github.com/maheshrc27/postbridge/internal/cache"
	job "github.com/maheshrc27/postbridge/internal/jobs"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/maheshrc27/postbridge/internal/queue"
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer redisClient.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewAccountRepository(db)
	postRepo := repository.NewPostRepository(db)

	store := cache.NewRedisStore(redisClient)
	registry := provider.NewRegistry(cfg, store)
	codec := service.NewStateCodec(cfg.SecretKey, 15*time.Minute)
	locks := service.NewAccountLocker()

	avatarService := service.NewAvatarService(cfg, resty.New())
	accountService := service.NewAccountService(cfg, accountRepo, avatarService)
	oauthService := service.NewOAuthService(cfg, registry, store, codec, accountService, accountRepo)
	publishService := service.NewPublishService(cfg, registry, postRepo, locks)

	platform := handlers.NewPlatformHandler(oauthService, cfg)
	app.Get("/auth/:provider", platform.AddSocialAccount)
	app.Get("/auth/:provider/callback", platform.CallbackHandler)

	api := app.Group("/api")

	oauth := handlers.NewOAuthHandler(oauthService)
	api.Post("/oauth/handoff/exchange", oauth.ExchangeHandoff)
	api.Get("/oauth/entities", oauth.ListEntities)
	api.Post("/oauth/entities/select", oauth.SelectEntity)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(cfg, accountRepo, registry, locks)
	postDispatchJob := job.NewPostDispatchJob(postRepo, client)

	//queue
	queueW := queue.NewQueue(postRepo, accountRepo, publishService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", func() {
		refreshed, failed := refreshTokenJob.RefreshTokens(context.Background())
		log.Printf("Token refresh sweep done: %d refreshed, %d failed", refreshed, failed)
	})
	c.AddFunc("@every 00h01m00s", func() {
		postDispatchJob.DispatchDuePosts(context.Background())
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSchedulePost, queueW.HandleSchedulePostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
