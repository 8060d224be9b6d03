package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance-backend/internal/auth"
	"attendance-backend/internal/config"
	"attendance-backend/internal/database"
	"attendance-backend/internal/db"
	"attendance-backend/internal/handlers"
	"attendance-backend/internal/health"
	h "attendance-backend/internal/http"
	"attendance-backend/internal/live"
	"attendance-backend/internal/metrics"
	"attendance-backend/internal/middleware"
	"attendance-backend/internal/monitoring"
	"attendance-backend/internal/repositories"
	"attendance-backend/internal/services"
	"attendance-backend/internal/storage"
	"attendance-backend/internal/timeutil"
	"attendance-backend/migrations"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	skipMigrations := flag.Bool("skip-migrations", false, "Do not apply pending migrations on startup")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		log.Fatalf("[Config] Invalid timezone %q: %v", cfg.App.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("[DB] %v", err)
	}
	defer pool.Close()

	if !*skipMigrations {
		if err := database.NewMigrator(pool, migrations.FS, ".").RunMigrations(ctx); err != nil {
			log.Fatalf("[Migrate] %v", err)
		}
	}

	photos, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("[Storage] %v", err)
	}
	log.Printf("[Storage] Using %s backend for photos", photos.Name())

	m := metrics.New()
	hub := live.NewHub()
	hub.OnClientCountChange(func(n int) { m.LiveClients.Set(float64(n)) })
	hub.SetCheckOrigin(live.AllowOrigins(cfg.Server.AllowedOrigins))
	defer hub.Close()
	monitoring.NewMonitoringService(m, 15*time.Second).StartCollection(ctx)

	jwtManager := auth.NewJWTManager(cfg)

	// Repositories
	userRepo := repositories.NewUserRepository(pool)
	activityRepo := repositories.NewActivityRepository(pool)

	// Services
	userService := services.NewUserService(userRepo, m)
	reportService := services.NewReportService(activityRepo, userRepo)
	profileService := services.NewProfileService(activityRepo, userRepo)
	attendanceService := services.NewAttendanceService(activityRepo, photos, hub, m)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, cfg.JWT.CookieName, userRepo)

	deps := h.Handlers{
		Auth:       handlers.NewAuthHandler(userService, jwtManager, authMiddleware.CookieName(), cfg.JWT.SecureCookie),
		Attendance: handlers.NewAttendanceHandler(attendanceService),
		Dashboard:  handlers.NewDashboardHandler(reportService, profileService),
		Users:      handlers.NewUserHandler(userService),
		Health:     handlers.NewHealthHandler(health.NewHealthChecker(pool)),
		Live:       hub,
		Metrics:    m,
	}
	opts := h.Options{
		ForceHTTPS: cfg.Server.ForceHTTPS,
		TrustProxy: cfg.Server.TrustProxy,
	}
	if local, ok := photos.(*storage.LocalBackend); ok {
		opts.UploadsDir = local.Dir()
		opts.UploadsPrefix = local.PublicPrefix()
	}

	router := h.NewRouter(deps, authMiddleware, opts)
	defer router.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.NewCORS(cfg)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}
	log.Println("Server stopped")
}
