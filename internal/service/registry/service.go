package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	apperrors "github.com/clinicdesk/registration-api/pkg/errors"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

// boardTTL bounds staleness of the waiting-room status board. Dashboards
// poll aggressively, so counting queries are served from a short-lived
// cache rather than hitting the store on every refresh.
const boardTTL = 2 * time.Second

// Service owns schedules: creation, browsing, and the read-only queue
// projections built on top of them.
type Service struct {
	schedules    repository.ScheduleRepository
	appointments repository.AppointmentRepository
	events       repository.EventRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	boards       *cache.Cache
	logger       *logger.Logger
}

func NewService(
	schedules repository.ScheduleRepository,
	appointments repository.AppointmentRepository,
	events repository.EventRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	logger *logger.Logger,
) *Service {
	return &Service{
		schedules:    schedules,
		appointments: appointments,
		events:       events,
		doctors:      doctors,
		patients:     patients,
		boards:       cache.New(boardTTL, time.Minute),
		logger:       logger,
	}
}

// Create registers a new schedule. The doctor must exist and the
// doctor/date/session triple must be free.
func (s *Service) Create(ctx context.Context, actor model.Actor, req *model.CreateScheduleRequest) (*model.Schedule, error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, model.ErrDoctorNotFound
	}
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperrors.BadRequest("invalid schedule date", err)
	}

	now := time.Now()
	schedule := &model.Schedule{
		ID:           uuid.New(),
		DoctorID:     doctor.ID,
		DepartmentID: doctor.DepartmentID,
		Date:         date,
		Session:      model.Session(req.Session),
		ClinicRoom:   req.ClinicRoom,
		Quota:        req.Quota,
		Status:       model.ScheduleStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"schedule_id": schedule.ID,
		"doctor_id":   schedule.DoctorID,
		"date":        req.Date,
		"session":     req.Session,
	}).Info("schedule created")
	return schedule, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return s.schedules.Get(ctx, id)
}

// Browse lists schedules matching the filter, for the patient-facing
// booking page and the staff console alike.
func (s *Service) Browse(ctx context.Context, filter *model.ScheduleFilter) ([]*model.Schedule, error) {
	schedules, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// Remaining returns how many queue numbers a schedule can still hand out.
func (s *Service) Remaining(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	schedule, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	active, err := s.schedules.CountActiveAppointments(ctx, scheduleID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active appointments: %w", err)
	}
	remaining := schedule.Quota - active
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Board assembles the status-display projection for one schedule: queue
// counts, the number currently being served, the appointment list and the
// recent activity feed. Results are cached for boardTTL.
func (s *Service) Board(ctx context.Context, scheduleID uuid.UUID) (*model.ScheduleBoard, error) {
	key := scheduleID.String()
	if cached, ok := s.boards.Get(key); ok {
		return cached.(*model.ScheduleBoard), nil
	}

	board, err := s.buildBoard(ctx, scheduleID, true)
	if err != nil {
		return nil, err
	}
	s.boards.Set(key, board, cache.DefaultExpiration)
	return board, nil
}

// Boards assembles one board per schedule matched by the filter, without
// the per-schedule event feed. This backs the whole-clinic overview.
func (s *Service) Boards(ctx context.Context, filter *model.ScheduleFilter) ([]*model.ScheduleBoard, error) {
	schedules, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	boards := make([]*model.ScheduleBoard, 0, len(schedules))
	for _, schedule := range schedules {
		board, err := s.buildBoardFor(ctx, schedule, false)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	return boards, nil
}

// Progress reports a single appointment's position in its queue. Patients
// may only look at their own bookings; a foreign appointment id behaves as
// if it did not exist.
func (s *Service) Progress(ctx context.Context, actor model.Actor, appointmentID uuid.UUID) (*model.AppointmentProgress, error) {
	apt, err := s.appointments.Get(ctx, appointmentID)
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

	schedule, err := s.schedules.Get(ctx, apt.ScheduleID)
	if err != nil {
		return nil, err
	}
	appointments, err := s.appointments.ListBySchedule(ctx, apt.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	counts := computeCounts(schedule, appointments)
	return &model.AppointmentProgress{
		Appointment:   apt,
		Schedule:      schedule,
		CurrentNumber: counts.CurrentNumber,
		Counts:        counts,
	}, nil
}

// ListByPatient returns a patient's own appointments.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.appointments.ListByPatient(ctx, patientID)
}

// ResolvePatient maps an authenticated user to their patient record.
func (s *Service) ResolvePatient(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	return s.patients.GetByUser(ctx, userID)
}

func (s *Service) buildBoard(ctx context.Context, scheduleID uuid.UUID, withEvents bool) (*model.ScheduleBoard, error) {
	schedule, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return s.buildBoardFor(ctx, schedule, withEvents)
}

func (s *Service) buildBoardFor(ctx context.Context, schedule *model.Schedule, withEvents bool) (*model.ScheduleBoard, error) {
	appointments, err := s.appointments.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	board := &model.ScheduleBoard{
		Schedule:     schedule,
		Counts:       computeCounts(schedule, appointments),
		Appointments: appointments,
	}
	if withEvents {
		events, err := s.events.ListBySchedule(ctx, schedule.ID, 20)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		board.Events = events
	}
	return board, nil
}

// computeCounts derives the board figures. The current number is the
// highest queue number that has reached the consultation room, i.e. the
// maximum over in-progress and completed appointments.
func computeCounts(schedule *model.Schedule, appointments []*model.Appointment) model.QueueCounts {
	var counts model.QueueCounts
	for _, apt := range appointments {
		switch apt.Status {
		case model.AppointmentStatusReserved:
			counts.Waiting++
		case model.AppointmentStatusCheckedIn:
			counts.CheckedIn++
		case model.AppointmentStatusInProgress:
			counts.InProgress++
			if apt.QueueNumber > counts.CurrentNumber {
				counts.CurrentNumber = apt.QueueNumber
			}
		case model.AppointmentStatusCompleted:
			counts.Completed++
			if apt.QueueNumber > counts.CurrentNumber {
				counts.CurrentNumber = apt.QueueNumber
			}
		case model.AppointmentStatusCancelled:
			counts.Cancelled++
		}
	}
	counts.TotalActive = counts.Waiting + counts.CheckedIn + counts.InProgress + counts.Completed
	counts.Remaining = schedule.Quota - counts.TotalActive
	if counts.Remaining < 0 {
		counts.Remaining = 0
	}
	return counts
}
