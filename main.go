package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"habit-quest-system/handlers"
	"habit-quest-system/middleware"
	"habit-quest-system/models"
	"habit-quest-system/services"
	"habit-quest-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError turns postgres duplicate-key violations into
	// gorm.ErrDuplicatedKey, which the completion path depends on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.SkillTree{},
		&models.Profile{},
		&models.ActivityLog{},
		&models.UserSkill{},
		&models.Quest{},
		&models.QuestSkill{},
		&models.UserQuest{},
		&models.StravaActivity{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	defaultSkillID := os.Getenv("DEFAULT_SKILL_ID")
	if defaultSkillID == "" {
		log.Println("⚠️  DEFAULT_SKILL_ID not set — quests without skill shares will be rejected")
	}

	clock := clockwork.NewRealClock()
	events := services.NewProgressBroadcaster()

	ledgerService := services.NewLedgerService(db, clock, events)
	questService := services.NewQuestService(db, clock, ledgerService, events, defaultSkillID)
	progressService := services.NewProgressService(db, clock, questService)

	stravaService := services.NewStravaService(db, ledgerService, progressService, services.StravaPolicy{
		AwardActivityXP:       os.Getenv("STRAVA_AWARD_ACTIVITY_XP") == "true",
		TriggerDistanceQuests: os.Getenv("STRAVA_TRIGGER_DISTANCE_QUESTS") != "false",
		FitnessSkillID:        os.Getenv("STRAVA_FITNESS_SKILL_ID"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressService.StartEvaluationSweep(5 * time.Minute)

	// Pull-sync is optional: webhook push covers connected users, polling
	// backfills the rest when a sync service is configured.
	if syncURL := os.Getenv("STRAVA_SYNC_URL"); syncURL != "" {
		syncToken := os.Getenv("STRAVA_SERVICE_TOKEN")
		if syncToken == "" {
			log.Fatal("STRAVA_SERVICE_TOKEN environment variable not set")
		}
		syncClient := workers.NewStravaSyncClient(syncURL, syncToken)
		go workers.PollProviderActivities(ctx, syncClient, stravaService, 60*time.Second)
		log.Println("✅ Provider activity polling running (every 60s)")
	} else {
		log.Println("⚠️  STRAVA_SYNC_URL not set — provider pull-sync disabled, webhook push only")
	}

	handlers.SetupQuestRoutes(app, questService, progressService)
	handlers.SetupProfileRoutes(app, ledgerService)
	handlers.SetupActivityRoutes(app, ledgerService, progressService)
	handlers.SetupStravaRoutes(app, stravaService)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Quest evaluation sweep running (every 5m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
