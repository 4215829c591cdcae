package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giftdrop/backend/docs"
	"github.com/giftdrop/backend/internal/config"
	"github.com/giftdrop/backend/internal/database"
	"github.com/giftdrop/backend/internal/handlers"
	mW "github.com/giftdrop/backend/internal/middleware"
	"github.com/giftdrop/backend/internal/payout"
	"github.com/giftdrop/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Giftdrop Backend API
// @version 1.0
// @description Drop matching and payout settlement API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Swagger docs
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize services
	payoutCfg := config.LoadPayoutConfig()
	matchingCfg := config.LoadMatchingConfig()

	railClient := payout.NewHTTPClient(payoutCfg)
	settlementService := services.NewSettlementService(db, railClient, payoutCfg)
	walletService := services.NewWalletService(db, settlementService)
	matchingService := services.NewMatchingService(db, redisClient, matchingCfg)
	dropService := services.NewDropService(db, redisClient)
	dropHandler := handlers.NewDropHandler(dropService)
	matchHandler := handlers.NewMatchHandler(matchingService)

	// Periodic matching cycle
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(matchingCfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), matchingCfg.LockTTL)
		defer cancel()
		matchingService.RunCycle(ctx)
	}); err != nil {
		log.Fatalf("Failed to schedule matching cycle: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/drops", dropHandler.CreateDrop)
			r.Get("/drops", dropHandler.ListDrops)
			r.Post("/drops/{dropID}/confirm", dropHandler.ConfirmPaid)
			r.Post("/drops/collect-qr", dropHandler.CollectQR)

			r.Get("/wallet/balance", walletService.GetBalance)
			r.Get("/wallet/can-withdraw", walletService.CheckWithdrawable)
			r.Post("/wallet/withdrawals", walletService.Withdraw)
			r.Get("/wallet/withdrawals", walletService.History)

			r.Post("/internal/match", matchHandler.TriggerMatch)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
