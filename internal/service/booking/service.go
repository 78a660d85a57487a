package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

var bookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "registration_bookings_total",
	Help: "Booking attempts by outcome",
}, []string{"result"})

// Service allocates queue numbers. Every allocation happens inside the
// per-schedule lock so that capacity checks and the number itself are
// decided against a frozen view of the queue.
type Service struct {
	store     repository.Store
	schedules repository.ScheduleRepository
	patients  repository.PatientRepository
	notifier  event.Notifier
	logger    *logger.Logger
}

func NewService(store repository.Store, schedules repository.ScheduleRepository, patients repository.PatientRepository, notifier event.Notifier, logger *logger.Logger) *Service {
	if notifier == nil {
		notifier = event.NopNotifier{}
	}
	return &Service{
		store:     store,
		schedules: schedules,
		patients:  patients,
		notifier:  notifier,
		logger:    logger,
	}
}

// BookInput carries a validated booking request. Source records which
// channel produced the booking ("online" or "onsite") and goes straight
// into the audit payload.
type BookInput struct {
	ScheduleID     uuid.UUID
	PatientID      uuid.UUID
	FamilyMemberID *uuid.UUID
	Notes          string
	Source         string
}

// Book reserves the next queue number on a schedule.
//
// The cheap rejections (unknown patient, closed schedule, full schedule,
// duplicate booking) run first without the lock; all of them are re-checked
// under the lock because the unlocked read may be stale. The queue number is
// the count of every appointment ever created plus one, cancelled ones
// included, so numbers already announced to patients are never reissued.
func (s *Service) Book(ctx context.Context, actor model.Actor, in BookInput) (*model.Appointment, error) {
	patient, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		bookingsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if in.FamilyMemberID != nil {
		member, err := s.patients.GetFamilyMember(ctx, *in.FamilyMemberID)
		if err != nil {
			bookingsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		if member.PatientID != patient.ID {
			bookingsTotal.WithLabelValues("rejected").Inc()
			return nil, model.ErrFamilyMemberNotFound
		}
	}

	if err := s.precheck(ctx, in); err != nil {
		bookingsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var booked *model.Appointment
	err = s.store.WithScheduleLock(ctx, in.ScheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		schedule := tx.Schedule()
		if !schedule.Status.Bookable() {
			return model.ErrScheduleNotBookable
		}

		active, err := tx.CountActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to count active appointments: %w", err)
		}
		if active >= schedule.Quota {
			return model.ErrScheduleFull
		}

		// Admins may book past the one-active-appointment rule, e.g. to
		// re-register a patient whose earlier slot was mishandled.
		if actor.Role != model.RoleAdmin {
			dup, err := tx.HasActiveForPatient(ctx, patient.ID)
			if err != nil {
				return fmt.Errorf("failed to check duplicate booking: %w", err)
			}
			if dup {
				return model.ErrDuplicateBooking
			}
		}

		total, err := tx.CountAppointments(ctx)
		if err != nil {
			return fmt.Errorf("failed to count appointments: %w", err)
		}

		now := time.Now()
		apt := &model.Appointment{
			ID:             uuid.New(),
			ScheduleID:     schedule.ID,
			PatientID:      patient.ID,
			FamilyMemberID: in.FamilyMemberID,
			QueueNumber:    total + 1,
			Status:         model.AppointmentStatusReserved,
			Notes:          in.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertAppointment(ctx, apt); err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}

		payload := model.JSONMap{"source": in.Source}
		if in.Notes != "" {
			payload["notes"] = in.Notes
		}
		if err := tx.InsertEvent(ctx, model.NewAppointmentEvent(apt, model.EventBooked, actor, payload)); err != nil {
			return fmt.Errorf("failed to record booking event: %w", err)
		}

		booked = apt
		return nil
	})
	if err != nil {
		bookingsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	bookingsTotal.WithLabelValues("booked").Inc()
	s.logger.WithFields(map[string]interface{}{
		"schedule_id":  booked.ScheduleID,
		"patient_id":   booked.PatientID,
		"queue_number": booked.QueueNumber,
	}).Info("appointment booked")

	s.notifier.Publish(ctx, event.QueueUpdate{
		ScheduleID:    booked.ScheduleID,
		AppointmentID: booked.ID,
		Kind:          model.EventBooked,
		QueueNumber:   booked.QueueNumber,
		Status:        booked.Status,
		OccurredAt:    booked.CreatedAt,
	})
	return booked, nil
}

// precheck rejects obviously doomed requests before taking the lock. Its
// answers may be stale so every condition is verified again inside the
// locked section.
func (s *Service) precheck(ctx context.Context, in BookInput) error {
	schedule, err := s.schedules.Get(ctx, in.ScheduleID)
	if err != nil {
		return err
	}
	if !schedule.Status.Bookable() {
		return model.ErrScheduleNotBookable
	}
	active, err := s.schedules.CountActiveAppointments(ctx, schedule.ID)
	if err != nil {
		return fmt.Errorf("failed to count active appointments: %w", err)
	}
	if active >= schedule.Quota {
		return model.ErrScheduleFull
	}
	return nil
}

func resultLabel(err error) string {
	switch err {
	case model.ErrScheduleFull:
		return "full"
	case model.ErrDuplicateBooking:
		return "duplicate"
	case model.ErrScheduleBusy:
		return "contended"
	case model.ErrScheduleNotBookable:
		return "rejected"
	default:
		return "error"
	}
}
