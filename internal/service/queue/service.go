package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

// Service drives individual appointments through their lifecycle and lets a
// doctor call the next patient. Per-appointment transitions are guarded
// compare-and-set updates; only call-next needs the schedule lock because it
// must see the whole queue at once.
type Service struct {
	store        repository.Store
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	notifier     event.Notifier
	logger       *logger.Logger
}

func NewService(store repository.Store, appointments repository.AppointmentRepository, patients repository.PatientRepository, notifier event.Notifier, logger *logger.Logger) *Service {
	if notifier == nil {
		notifier = event.NopNotifier{}
	}
	return &Service{
		store:        store,
		appointments: appointments,
		patients:     patients,
		notifier:     notifier,
		logger:       logger,
	}
}

// CheckIn marks an appointment as arrived. Checking in an appointment that
// already progressed past reserved is reported as ErrAlreadyCheckedIn so the
// front desk sees an informational result instead of a failure.
func (s *Service) CheckIn(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch apt.Status {
	case model.AppointmentStatusCancelled:
		return nil, model.ErrAlreadyCancelled
	case model.AppointmentStatusCheckedIn, model.AppointmentStatusInProgress, model.AppointmentStatusCompleted:
		return apt, model.ErrAlreadyCheckedIn
	}

	now := time.Now()
	apt.Status = model.AppointmentStatusCheckedIn
	apt.CheckInAt = &now
	apt.UpdatedAt = now

	evt := model.NewAppointmentEvent(apt, model.EventCheckedIn, actor, nil)
	if err := s.appointments.Transition(ctx, apt, model.AppointmentStatusReserved, evt); err != nil {
		return nil, err
	}

	s.publish(ctx, apt, model.EventCheckedIn)
	return apt, nil
}

// CallNext moves the checked-in appointment with the lowest queue number to
// in progress. It runs under the schedule lock: the single-consultation rule
// and the pick of the next number must both be decided against a stable view
// of the queue.
func (s *Service) CallNext(ctx context.Context, actor model.Actor, scheduleID uuid.UUID) (*model.Appointment, error) {
	var called *model.Appointment
	err := s.store.WithScheduleLock(ctx, scheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		switch tx.Schedule().Status {
		case model.ScheduleStatusPaused:
			return model.ErrSessionPaused
		case model.ScheduleStatusEnded:
			return model.ErrSessionEnded
		}

		busy, err := tx.InProgressExists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check consultation state: %w", err)
		}
		if busy {
			return model.ErrConsultationActive
		}

		apt, err := tx.FirstCheckedIn(ctx)
		if err != nil {
			return err
		}

		now := time.Now()
		apt.Status = model.AppointmentStatusInProgress
		if apt.CheckInAt == nil {
			apt.CheckInAt = &now
		}
		apt.UpdatedAt = now
		if err := tx.UpdateAppointment(ctx, apt); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		if err := tx.InsertEvent(ctx, model.NewAppointmentEvent(apt, model.EventCalled, actor, nil)); err != nil {
			return fmt.Errorf("failed to record call event: %w", err)
		}

		called = apt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"schedule_id":  called.ScheduleID,
		"queue_number": called.QueueNumber,
	}).Info("patient called")
	s.publish(ctx, called, model.EventCalled)
	return called, nil
}

// Complete finishes the consultation. Only an in-progress appointment can be
// completed.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusInProgress {
		return nil, model.ErrInvalidTransition
	}

	now := time.Now()
	apt.Status = model.AppointmentStatusCompleted
	apt.CompletedAt = &now
	apt.UpdatedAt = now

	evt := model.NewAppointmentEvent(apt, model.EventCompleted, actor, nil)
	if err := s.appointments.Transition(ctx, apt, model.AppointmentStatusInProgress, evt); err != nil {
		return nil, err
	}

	s.publish(ctx, apt, model.EventCompleted)
	return apt, nil
}

// Cancel withdraws a booking. Patients may only cancel their own
// appointments; ownership failures surface as not found so the endpoint
// leaks nothing about other patients' bookings. An appointment already under
// consultation or completed cannot be cancelled, and cancelling twice is an
// informational no-op.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.IsPatient() {
		patient, err := s.patients.GetByUser(ctx, actor.ID)
		if err != nil {
			return nil, model.ErrAppointmentNotFound
		}
		if apt.PatientID != patient.ID {
			return nil, model.ErrAppointmentNotFound
		}
	}

	switch apt.Status {
	case model.AppointmentStatusCancelled:
		return apt, model.ErrAlreadyCancelled
	case model.AppointmentStatusInProgress, model.AppointmentStatusCompleted:
		return nil, model.ErrInvalidTransition
	}

	expect := apt.Status
	now := time.Now()
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelledAt = &now
	apt.UpdatedAt = now

	evt := model.NewAppointmentEvent(apt, model.EventCancelled, actor, nil)
	if err := s.appointments.Transition(ctx, apt, expect, evt); err != nil {
		return nil, err
	}

	s.publish(ctx, apt, model.EventCancelled)
	return apt, nil
}

func (s *Service) publish(ctx context.Context, apt *model.Appointment, kind model.EventKind) {
	s.notifier.Publish(ctx, event.QueueUpdate{
		ScheduleID:    apt.ScheduleID,
		AppointmentID: apt.ID,
		Kind:          kind,
		QueueNumber:   apt.QueueNumber,
		Status:        apt.Status,
		OccurredAt:    apt.UpdatedAt,
	})
}
