package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

// Typed views over the single store so it can stand in for each repository
// interface without method-name collisions.

var _ repository.Store = (*Store)(nil)

func (s *Store) Schedules() repository.ScheduleRepository       { return scheduleRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Events() repository.EventRepository             { return eventRepo{s} }
func (s *Store) Patients() repository.PatientRepository         { return patientRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository           { return doctorRepo{s} }
func (s *Store) Users() repository.UserRepository               { return userRepo{s} }

type scheduleRepo struct{ s *Store }

func (r scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.s.CreateSchedule(ctx, schedule)
}

func (r scheduleRepo) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return r.s.GetSchedule(ctx, id)
}

func (r scheduleRepo) List(ctx context.Context, filter *model.ScheduleFilter) ([]*model.Schedule, error) {
	return r.s.ListSchedules(ctx, filter)
}

func (r scheduleRepo) CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	return r.s.CountActiveAppointments(ctx, scheduleID)
}

func (r scheduleRepo) CountAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	return r.s.CountAppointments(ctx, scheduleID)
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.s.GetAppointment(ctx, id)
}

func (r appointmentRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*model.Appointment, error) {
	return r.s.ListAppointmentsBySchedule(ctx, scheduleID)
}

func (r appointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.s.ListAppointmentsByPatient(ctx, patientID)
}

func (r appointmentRepo) HasActiveForPatient(ctx context.Context, scheduleID, patientID uuid.UUID) (bool, error) {
	return r.s.HasActiveForPatient(ctx, scheduleID, patientID)
}

func (r appointmentRepo) Transition(ctx context.Context, apt *model.Appointment, expect model.AppointmentStatus, event *model.AppointmentEvent) error {
	return r.s.Transition(ctx, apt, expect, event)
}

func (r appointmentRepo) ListReservedBetween(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	return r.s.ListReservedBetween(ctx, from, to)
}

func (r appointmentRepo) CountByStatus(ctx context.Context, filter *model.ReportFilter) ([]*model.ReportRow, error) {
	return r.s.CountByStatus(ctx, filter)
}

type eventRepo struct{ s *Store }

func (r eventRepo) Insert(ctx context.Context, event *model.AppointmentEvent) error {
	return r.s.InsertEvent(ctx, event)
}

func (r eventRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*model.AppointmentEvent, error) {
	return r.s.ListEventsBySchedule(ctx, scheduleID, limit)
}

func (r eventRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	return r.s.ListEventsByAppointment(ctx, appointmentID)
}

type patientRepo struct{ s *Store }

func (r patientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return r.s.GetPatient(ctx, id)
}

func (r patientRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	return r.s.GetPatientByUser(ctx, userID)
}

func (r patientRepo) GetFamilyMember(ctx context.Context, id uuid.UUID) (*model.FamilyMember, error) {
	return r.s.GetFamilyMember(ctx, id)
}

type doctorRepo struct{ s *Store }

func (r doctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return r.s.GetDoctor(ctx, id)
}

func (r doctorRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	return r.s.GetDoctorByUser(ctx, userID)
}

type userRepo struct{ s *Store }

func (r userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.s.GetUserByUsername(ctx, username)
}
