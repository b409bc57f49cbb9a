package main

import (
	"log"
	"time"

	"printshop/internal/captcha"
	"printshop/internal/config"
	"printshop/internal/database"
	"printshop/internal/handlers"
	"printshop/internal/migrations"
	"printshop/internal/redis"
	"printshop/internal/repository"
	"printshop/internal/services"
	"printshop/internal/storage"
	"printshop/pkg/mailer"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	// Initialize external clients
	fileStore := storage.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix)
	mailClient := mailer.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailSender)
	verifier := captcha.NewHTTPVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	estimateRepo := repository.NewEstimateRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	finishingRepo := repository.NewFinishingRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, redisClient, time.Duration(cfg.SessionTTL)*time.Second)
	catalogService := services.NewCatalogService(materialRepo, finishingRepo, settingsRepo, redisClient, time.Duration(cfg.CatalogCacheTTL)*time.Second)
	estimateService := services.NewEstimateService(
		estimateRepo,
		materialRepo,
		finishingRepo,
		settingsRepo,
		fileStore,
		mailClient,
		verifier,
		cfg.NotifyEmail,
		cfg.CaptchaBypassCalculator,
	)

	// Initialize handlers
	estimateHandler := handlers.NewEstimateHandler(estimateService)
	adminHandler := handlers.NewAdminHandler(estimateService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	authHandler := handlers.NewAuthHandler(authService)

	// Setup routes
	router := gin.Default()

	// Uploaded model files
	router.Static(cfg.UploadURLPrefix, cfg.UploadDir)

	api := router.Group("/api")
	{
		api.GET("/materials", catalogHandler.ListMaterials)
		api.GET("/finishing-options", catalogHandler.ListFinishingOptions)
		api.POST("/quote", estimateHandler.Quote)
		api.POST("/estimates", handlers.RateLimit(redisClient, cfg.SubmissionRateLimit), estimateHandler.Submit)
		api.GET("/estimates/:number", estimateHandler.View)

		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
	}

	admin := api.Group("/admin", handlers.RequireAuth(authService))
	{
		admin.GET("/estimates", adminHandler.ListEstimates)
		admin.GET("/estimates/:id", adminHandler.GetEstimate)
		admin.POST("/estimates", adminHandler.CreateEstimate)
		admin.PUT("/estimates/:id/items", adminHandler.UpdateItems)
		admin.PUT("/estimates/:id/status", adminHandler.UpdateStatus)
		admin.DELETE("/estimates/:id", handlers.RequireRole("admin"), adminHandler.DeleteEstimate)

		admin.POST("/materials", catalogHandler.SaveMaterial)
		admin.DELETE("/materials/:id", handlers.RequireRole("admin"), catalogHandler.DeleteMaterial)
		admin.POST("/finishing-options", catalogHandler.SaveFinishingOption)
		admin.DELETE("/finishing-options/:id", handlers.RequireRole("admin"), catalogHandler.DeleteFinishingOption)

		admin.GET("/settings", catalogHandler.ListSettings)
		admin.PUT("/settings", handlers.RequireRole("admin"), catalogHandler.UpdateSetting)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
