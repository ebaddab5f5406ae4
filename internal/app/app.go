package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	yaksHTTP "yaks/internal/controller/http"
	"yaks/internal/notify"
	"yaks/internal/repo/persistent"
	"yaks/internal/scheduler"
	"yaks/internal/usecase"
	"yaks/pkg/config"
	"yaks/pkg/jwt"
	"yaks/pkg/logger"
	"yaks/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client) {
	jwtService := jwt.NewService(cfg.JWTSecret)

	// Initialize repositories
	walletRepo := persistent.NewWalletRepository(db)
	featureRepo := persistent.NewFeatureRepository(db)
	featureUseRepo := persistent.NewFeatureUseRepository(db)
	ruleRepo := persistent.NewEarningRuleRepository(db)
	packageRepo := persistent.NewPackageRepository(db)
	contentRepo := persistent.NewContentRepository(db)

	publisher := notify.NewRedisPublisher(redisClient)

	// Initialize use cases
	ledgerUseCase := usecase.NewLedgerUseCase(walletRepo, featureRepo, featureUseRepo, packageRepo, contentRepo, publisher, cfg.DollarToYakRate, log)
	earningUseCase := usecase.NewEarningUseCase(cfg.YaksEnabled, walletRepo, ruleRepo, contentRepo, publisher, log)
	featureUseCase := usecase.NewFeatureUseCase(cfg.YaksEnabled, walletRepo, featureRepo, featureUseRepo, contentRepo, usecase.DefaultEffects(contentRepo), log)

	// Expiry scheduler depends on the feature usecase; attach it afterwards.
	sched, err := scheduler.New(featureUseCase, cfg.SweepInterval, log)
	if err != nil {
		log.Error("Failed to create scheduler: %v", err)
		panic(err)
	}
	featureUseCase.SetScheduler(sched)
	if err := sched.Start(); err != nil {
		log.Error("Failed to start scheduler: %v", err)
		panic(err)
	}

	// Initialize HTTP handlers
	yaksHandler := yaksHTTP.NewYaksHandler(ledgerUseCase, featureUseCase, earningUseCase, log)
	adminHandler := yaksHTTP.NewAdminHandler(ledgerUseCase, featureUseCase, earningUseCase, log)

	// Setup router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	api.Use(middleware.RateLimitMiddleware(redisClient, 100, time.Minute))

	{
		api.GET("/yaks", yaksHandler.GetWallet)
		api.POST("/yaks/spend", yaksHandler.Spend)
		api.POST("/yaks/purchase", yaksHandler.PurchasePackage)
		api.GET("/yaks/packages", yaksHandler.ListPackages)
		api.GET("/yaks/earnings/:action_key", yaksHandler.CanEarn)
		api.POST("/yaks/events", yaksHandler.HandleEvent)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/yaks", adminHandler.Stats)
		admin.POST("/yaks/give", adminHandler.Give)
		admin.POST("/yaks/refund", adminHandler.Refund)
		admin.GET("/yaks/transactions", adminHandler.ListTransactions)
		admin.GET("/yaks/features", adminHandler.ListFeatures)
		admin.POST("/yaks/features", adminHandler.CreateFeature)
		admin.PUT("/yaks/features/:id", adminHandler.UpdateFeature)
		admin.GET("/yaks/earning-rules", adminHandler.ListEarningRules)
		admin.PUT("/yaks/earning-rules/:action_key", adminHandler.UpdateEarningRule)
		admin.GET("/yaks/packages", adminHandler.ListAllPackages)
		admin.POST("/yaks/packages", adminHandler.CreatePackage)
		admin.PUT("/yaks/packages/:id", adminHandler.UpdatePackage)
		admin.DELETE("/yaks/packages/:id", adminHandler.DeletePackage)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Yaks service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down yaks service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error("Error stopping scheduler: %v", err)
	}

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	// Close Redis connection
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
		panic(err)
	}

	log.Info("Yaks service exited")
}
