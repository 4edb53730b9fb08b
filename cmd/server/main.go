package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"familyhub/internal/config"
	"familyhub/internal/database"
	"familyhub/internal/handlers"
	"familyhub/internal/repository"
	"familyhub/internal/security"
	"familyhub/internal/service"
	"familyhub/migrations"
)

func main() {
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET must be set")
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)

	userService := service.NewUserService(userRepo, familyRepo)
	familyService := service.NewFamilyService(db, emailService)
	contentService := service.NewContentService(db)
	graphService := service.NewGraphService(userRepo, familyRepo)
	reconcileService := service.NewReconcileService(familyRepo)

	scheduler, err := reconcileService.Schedule(cfg.ReconcileSchedule)
	if err != nil {
		log.Fatalf("Failed to schedule reconciliation: %v", err)
	}

	joinLimiter := security.NewRateLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow)
	defer joinLimiter.Stop()

	routes := &handlers.Routes{
		Middleware:  handlers.NewMiddleware(userService, cfg.JWTSecret, cfg.JWTIssuer),
		Families:    handlers.NewFamilyHandler(familyService, graphService),
		Content:     handlers.NewContentHandler(contentService),
		Users:       handlers.NewUserHandler(userService),
		JoinLimiter: joinLimiter,
	}

	mux := http.NewServeMux()
	routes.Register(mux)

	handler := handlers.Logging(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
