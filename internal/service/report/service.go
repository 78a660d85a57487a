package report

import (
	"context"
	"fmt"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

// Service produces administrative aggregates over the appointment log.
type Service struct {
	appointments repository.AppointmentRepository
}

func NewService(appointments repository.AppointmentRepository) *Service {
	return &Service{appointments: appointments}
}

// Summary groups appointment counts by date, doctor, session and status.
type Summary struct {
	Rows   []*model.ReportRow              `json:"rows"`
	Totals map[model.AppointmentStatus]int `json:"totals"`
}

// Appointments aggregates appointment counts for the admin console. The
// filter narrows by date range and doctor; an empty filter covers
// everything.
func (s *Service) Appointments(ctx context.Context, filter *model.ReportFilter) (*Summary, error) {
	rows, err := s.appointments.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate appointments: %w", err)
	}

	summary := &Summary{
		Rows:   rows,
		Totals: make(map[model.AppointmentStatus]int),
	}
	for _, row := range rows {
		summary.Totals[row.Status] += row.Count
	}
	return summary, nil
}
