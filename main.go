package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trivia-duel-system/handlers"
	"trivia-duel-system/models"
	"trivia-duel-system/services"
	"trivia-duel-system/workers"

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
		AppName: "trivia-duel-system",
	})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.Match{},
		&models.MatchPlayer{},
		&models.Question{},
		&models.MatchQuestion{},
		&models.Tournament{},
		&models.TournamentEntry{},
		&models.TournamentMatch{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	rules := services.LoadGameRules()

	generator := services.NewOpenAIGenerator()
	prefetcher := workers.NewQuestionPrefetcher(generator, 8)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go prefetcher.Start(ctx, 5*time.Second)

	matchService := services.NewMatchService(db, rules)
	questionService := services.NewQuestionService(db, rules, prefetcher)
	resultService := services.NewResultService(db, rules, prefetcher)
	tournamentService := services.NewTournamentService(db, rules)

	matchService.StartCleanupScheduler()

	handlers.SetupGameRoutes(app, matchService, questionService, resultService)
	handlers.SetupTournamentRoutes(app, tournamentService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Question prefetcher running")
	log.Println("✅ Stale match janitor running (every 1m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
