package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/registration-api/internal/config"
	"github.com/clinicdesk/registration-api/internal/email"
	"github.com/clinicdesk/registration-api/internal/repository/postgres"
	"github.com/clinicdesk/registration-api/internal/worker"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

type workerConfig struct {
	SMTP            email.SMTPConfig
	IntervalMinutes int `envconfig:"REMINDER_INTERVAL_MINUTES" default:"60"`
	MetricsPort     int `envconfig:"WORKER_METRICS_PORT" default:"9091"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var wcfg workerConfig
	if err := envconfig.Process("", &wcfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	reminder := worker.NewReminderWorker(
		postgres.NewAppointmentRepository(db),
		postgres.NewScheduleRepository(db),
		postgres.NewPatientRepository(db),
		email.NewSMTPMailer(wcfg.SMTP),
		time.Duration(wcfg.IntervalMinutes)*time.Minute,
		appLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reminder.Start(ctx)

	// Liveness and metrics endpoint for the worker process.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", wcfg.MetricsPort),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start worker http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
