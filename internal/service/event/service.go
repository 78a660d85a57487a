package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

// Service exposes read access to the append-only appointment event log.
type Service struct {
	events       repository.EventRepository
	appointments repository.AppointmentRepository
}

func NewService(events repository.EventRepository, appointments repository.AppointmentRepository) *Service {
	return &Service{events: events, appointments: appointments}
}

// ScheduleFeed returns the most recent events for a schedule, newest first.
func (s *Service) ScheduleFeed(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*model.AppointmentEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := s.events.ListBySchedule(ctx, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule events: %w", err)
	}
	return events, nil
}

// History returns the full event trail of one appointment in chronological
// order.
func (s *Service) History(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	if _, err := s.appointments.Get(ctx, appointmentID); err != nil {
		return nil, err
	}
	events, err := s.events.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment events: %w", err)
	}
	return events, nil
}
