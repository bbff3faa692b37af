package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/postlane/postlane/application/usecase"
	"github.com/postlane/postlane/infrastructure/adapter/postgres"
	"github.com/postlane/postlane/infrastructure/config"
	"github.com/postlane/postlane/infrastructure/http/handler"
	"github.com/postlane/postlane/infrastructure/http/middleware"
	"github.com/postlane/postlane/infrastructure/http/server"
	"github.com/postlane/postlane/infrastructure/service/jwt"
	"github.com/postlane/postlane/infrastructure/service/logger"
	"github.com/postlane/postlane/infrastructure/service/mailer"
	"github.com/postlane/postlane/infrastructure/service/password"
	"github.com/postlane/postlane/infrastructure/service/ratelimit"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "postlane-auth",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env": cfg.Environment,
	})

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		structuredLogger.Error(ctx, "Failed to ping database", err, nil)
		log.Fatalf("Failed to ping database: %v", err)
	}
	structuredLogger.Info(ctx, "Database connection established", nil)

	rateLimitService, err := ratelimit.NewRateLimitService(ratelimit.RateLimitConfig{
		Enabled:       cfg.RateLimitEnabled,
		RedisURL:      cfg.RedisURL,
		IPAttempts:    cfg.RateLimitIPAttempts,
		IPWindow:      cfg.RateLimitIPWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize rate limit service", err, map[string]interface{}{
			"redis_url": cfg.RedisURL,
		})
		log.Fatalf("Failed to initialize rate limit service: %v", err)
	}

	userRepo := postgres.NewUserRepositoryAdapter(db)

	tokenService, err := jwt.NewJWTService(jwt.Config{
		AccessSecret:    cfg.JWTAccessSecret,
		RefreshSecret:   cfg.JWTRefreshSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	passwordService := password.NewBcryptPasswordService(cfg.BcryptCost, nil)
	mailService := mailer.NewLogMailer(structuredLogger)

	authUseCase := usecase.NewAuthUseCase(
		userRepo,
		tokenService,
		passwordService,
		rateLimitService,
		mailService,
		structuredLogger,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.ResetTokenTTL,
	)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, userRepo)

	authHandler := handler.NewAuthHandler(authUseCase, handler.CookieOptions{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: int(cfg.RefreshTokenTTL.Seconds()),
	})
	adminHandler := handler.NewAdminHandler(userRepo)

	srv := server.New(server.Config{
		Host:                 cfg.ServerHost,
		Port:                 cfg.ServerPort,
		CORSEnabled:          cfg.CORSEnabled,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
	}, authHandler, adminHandler, authMiddleware)

	go func() {
		structuredLogger.Info(ctx, "Starting server", map[string]interface{}{
			"addr": srv.Addr(),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			structuredLogger.Error(ctx, "Server failed to start", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	structuredLogger.Info(ctx, "Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}
