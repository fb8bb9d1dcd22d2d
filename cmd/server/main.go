package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"advisor-scheduler/internal/app"
	"advisor-scheduler/internal/server"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL required")
	}
	jwtSecret := os.Getenv("JWT_HMAC_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_HMAC_SECRET required")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	var hubspot *app.HubSpotClient
	if token := os.Getenv("HUBSPOT_ACCESS_TOKEN"); token != "" {
		hubspot = app.NewHubSpotClient(token)
	} else {
		log.Println("HUBSPOT_ACCESS_TOKEN not set, CRM enrichment disabled")
	}

	appInstance := &app.App{
		Store: &app.PGStore{Pool: pool},
		Calendar: app.NewGoogleCalendar(
			os.Getenv("GOOGLE_CLIENT_ID"),
			os.Getenv("GOOGLE_CLIENT_SECRET"),
		),
		Notifier: app.NewBookingNotifier(
			os.Getenv("SENDGRID_API_KEY"),
			os.Getenv("SMTP_FROM"),
			os.Getenv("ADVISOR_EMAIL"),
			hubspot,
		),
	}

	router := gin.Default()
	appInstance.RegisterRoutes(router, jwtSecret)

	server.Run(router)
}
