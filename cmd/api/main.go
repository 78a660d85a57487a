package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/registration-api/internal/config"
	appointmentHandler "github.com/clinicdesk/registration-api/internal/handler/appointment"
	authHandler "github.com/clinicdesk/registration-api/internal/handler/auth"
	reportHandler "github.com/clinicdesk/registration-api/internal/handler/report"
	scheduleHandler "github.com/clinicdesk/registration-api/internal/handler/schedule"
	"github.com/clinicdesk/registration-api/internal/middleware"
	"github.com/clinicdesk/registration-api/internal/repository/postgres"
	"github.com/clinicdesk/registration-api/internal/router"
	authService "github.com/clinicdesk/registration-api/internal/service/auth"
	"github.com/clinicdesk/registration-api/internal/service/booking"
	eventService "github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/internal/service/queue"
	"github.com/clinicdesk/registration-api/internal/service/registry"
	reportService "github.com/clinicdesk/registration-api/internal/service/report"
	"github.com/clinicdesk/registration-api/internal/service/session"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

func main() {
	// A missing .env is fine in containerised deployments.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := newLogger(cfg.Log)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Repositories
	store := postgres.NewStore(db, cfg.Booking.LockTimeout())
	scheduleRepo := postgres.NewScheduleRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Queue-update fan-out, absent unless Redis is configured.
	var notifier eventService.Notifier = eventService.NopNotifier{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		notifier = eventService.NewRedisNotifier(rdb, cfg.Redis.Channel, appLogger.ZL)
	}

	// Services
	registrySvc := registry.NewService(scheduleRepo, appointmentRepo, eventRepo, doctorRepo, patientRepo, appLogger)
	bookingSvc := booking.NewService(store, scheduleRepo, patientRepo, notifier, appLogger)
	queueSvc := queue.NewService(store, appointmentRepo, patientRepo, notifier, appLogger)
	sessionSvc := session.NewService(store, notifier, appLogger)
	eventSvc := eventService.NewService(eventRepo, appointmentRepo)
	reportSvc := reportService.NewService(appointmentRepo)
	authSvc := authService.NewService(userRepo, authService.Config{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.Expiry(),
	})

	// Handlers and router
	authMW := middleware.NewAuthMiddleware(authSvc)
	r := router.NewRouter(
		authMW,
		authHandler.NewHandler(authSvc),
		scheduleHandler.NewHandler(registrySvc, bookingSvc, queueSvc, sessionSvc, eventSvc),
		appointmentHandler.NewHandler(queueSvc, registrySvc, eventSvc),
		reportHandler.NewHandler(reportSvc),
		router.Config{},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		appLogger.Info(fmt.Sprintf("listening on :%d", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Pretty,
	})
}

func runMigrations(cfg config.DatabaseConfig) error {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
