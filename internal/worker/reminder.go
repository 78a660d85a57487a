package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clinicdesk/registration-api/internal/email"
	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

var (
	remindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_emails_sent_total",
		Help: "The total number of reminder emails sent",
	})
	remindersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_emails_failed_total",
		Help: "The total number of reminder emails that failed to send",
	})
	reminderSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_sweep_duration_seconds",
		Help:    "Time spent per reminder sweep",
		Buckets: prometheus.DefBuckets,
	})
)

// ReminderWorker periodically mails patients who hold a reservation for the
// next day and have not been reminded yet. It only reads appointment state;
// it never changes it.
type ReminderWorker struct {
	appointments repository.AppointmentRepository
	schedules    repository.ScheduleRepository
	patients     repository.PatientRepository
	mailer       email.Mailer
	interval     time.Duration
	logger       *logger.Logger

	// reminded tracks appointment IDs already mailed in this process.
	// Restarting the worker may resend; the mail is harmless to repeat.
	reminded map[string]struct{}
}

func NewReminderWorker(
	appointments repository.AppointmentRepository,
	schedules repository.ScheduleRepository,
	patients repository.PatientRepository,
	mailer email.Mailer,
	interval time.Duration,
	logger *logger.Logger,
) *ReminderWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderWorker{
		appointments: appointments,
		schedules:    schedules,
		patients:     patients,
		mailer:       mailer,
		interval:     interval,
		logger:       logger,
		reminded:     make(map[string]struct{}),
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(err, "reminder sweep finished with errors")
			}
		}
	}
}

func (w *ReminderWorker) sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		reminderSweepDuration.Observe(time.Since(start).Seconds())
	}()

	from := time.Now().Truncate(24*time.Hour).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	appointments, err := w.appointments.ListReservedBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to list upcoming reservations: %w", err)
	}

	var errs *multierror.Error
	sent := 0
	for _, apt := range appointments {
		if _, done := w.reminded[apt.ID.String()]; done {
			continue
		}
		if err := w.remind(ctx, apt); err != nil {
			remindersFailed.Inc()
			errs = multierror.Append(errs, err)
			continue
		}
		w.reminded[apt.ID.String()] = struct{}{}
		remindersSent.Inc()
		sent++
	}

	if sent > 0 {
		w.logger.WithFields(map[string]interface{}{
			"sent":     sent,
			"eligible": len(appointments),
		}).Info("reminder sweep completed")
	}
	return errs.ErrorOrNil()
}

func (w *ReminderWorker) remind(ctx context.Context, apt *model.Appointment) error {
	patient, err := w.patients.Get(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient for appointment %s: %w", apt.ID, err)
	}
	if patient.Email == "" {
		return nil
	}
	schedule, err := w.schedules.Get(ctx, apt.ScheduleID)
	if err != nil {
		return fmt.Errorf("failed to load schedule for appointment %s: %w", apt.ID, err)
	}

	subject := "Appointment reminder"
	body := fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder of your appointment on %s (%s session), queue number %d.\nPlease check in at the front desk when you arrive.\n",
		patient.Name,
		schedule.Date.Format("2006-01-02"),
		schedule.Session,
		apt.QueueNumber,
	)
	if err := w.mailer.Send(patient.Email, subject, body); err != nil {
		return fmt.Errorf("failed to mail patient %s: %w", patient.ID, err)
	}
	return nil
}
