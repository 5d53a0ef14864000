package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marathon-platform/handlers"
	"marathon-platform/middleware"
	"marathon-platform/models"
	"marathon-platform/services"
	"marathon-platform/utils"
	"marathon-platform/workers"

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
		BodyLimit: 2 * 1024 * 1024, // solutions are text; 2MB is plenty
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-User-ID, X-User-Roles, X-User-Email, X-User-Name",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Issue{},
		&models.Submission{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	policy := services.NewEventPolicyFromEnv()
	judge := services.NewJudgeClient()
	tracker := services.NewGitHubClient()

	analyticsService := services.NewAnalyticsService(db)
	submissionService := services.NewSubmissionService(db, judge, tracker, policy, analyticsService)
	scoringService := services.NewScoringService(db)
	challengeService := services.NewChallengeService(db)
	userService := services.NewUserService(db)
	adminService := services.NewAdminService(db, submissionService, scoringService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issueSyncWorker := workers.NewIssueSyncWorker(db)
	go issueSyncWorker.Start(ctx)
	go workers.PollPRStatus(ctx, db, tracker, 5*time.Minute)

	services.StartMarathonScheduler(scoringService, analyticsService)

	handlers.SetupChallengeRoutes(app, challengeService, submissionService)
	handlers.SetupLeaderboardRoutes(app, scoringService, userService)
	handlers.SetupAdminRoutes(app, adminService, userService)
	handlers.SetupAnalyticsRoutes(app, analyticsService)

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
	log.Println("✅ Issue Sync Worker running")
	log.Println("✅ PR merge-status polling running (every 5m)")
	log.Println("✅ Rank snapshot + analytics scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.ShutdownWithTimeout(10 * time.Second)
}
