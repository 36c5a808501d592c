package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"wellness-platform/handlers"
	"wellness-platform/middleware"
	"wellness-platform/models"
	"wellness-platform/services"
	"wellness-platform/utils"
	"wellness-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB — cover photos only
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Toolkit{},
		&models.ToolkitSchedule{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.HabitLog{},
		&models.RoutineLog{},
		&models.SleepLog{},
		&models.SettlementTask{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	workerConcurrency := envInt("SETTLEMENT_WORKER_CONCURRENCY", 4)
	pollInterval := envDuration("SETTLEMENT_POLL_INTERVAL", 5*time.Second)

	store := services.NewChallengeStore(db)
	broker := services.NewEventBroker()
	rankingService := services.NewRankingService(db, store)
	terminationScheduler, err := services.NewTerminationScheduler(workerConcurrency)
	if err != nil {
		log.Fatal("failed to build termination scheduler:", err)
	}
	challengeService := services.NewChallengeService(store, rankingService, terminationScheduler, broker)
	toolkitService := services.NewToolkitService(db)
	challengeAPI := services.NewChallengeAPI(challengeService)

	terminationScheduler.Start(challengeService.EndChallenge)
	defer terminationScheduler.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Timers are in-process; re-arm every open challenge after a restart.
	if err := challengeService.RestoreTerminationSchedules(ctx); err != nil {
		log.Fatal("failed to restore termination schedules:", err)
	}

	settlementWorker := workers.NewSettlementWorker(store, challengeService, pollInterval, workerConcurrency)
	go settlementWorker.Run(ctx)

	handlers.SetupChallengeRoutes(app, challengeAPI, toolkitService, broker)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Settlement worker running (every %s, concurrency %d)", pollInterval, workerConcurrency)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("⚠️  invalid %s=%q, using %d", name, os.Getenv(name), fallback)
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("⚠️  invalid %s=%q, using %s", name, os.Getenv(name), fallback)
	}
	return fallback
}
