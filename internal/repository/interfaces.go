package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
)

// ScheduleTx is the locked scope handed to capacity-affecting operations.
// Everything invoked through it is part of one atomic unit against exactly
// one schedule row; on error the whole unit is discarded.
type ScheduleTx interface {
	// Schedule returns the locked row as read under the lock. This is the
	// authoritative read; any check done before the lock is only a
	// fast-path rejection.
	Schedule() *model.Schedule

	// CountAppointments counts every appointment ever created on the
	// schedule, cancelled ones included. Queue numbers derive from it and
	// are therefore never reclaimed.
	CountAppointments(ctx context.Context) (int, error)

	// CountActive counts non-cancelled appointments, the figure capacity
	// is checked against.
	CountActive(ctx context.Context) (int, error)

	HasActiveForPatient(ctx context.Context, patientID uuid.UUID) (bool, error)
	InProgressExists(ctx context.Context) (bool, error)

	// FirstCheckedIn returns the checked-in appointment with the lowest
	// queue number, or model.ErrNothingToCall if none exists.
	FirstCheckedIn(ctx context.Context) (*model.Appointment, error)

	// ListOutstanding returns every reserved, checked-in or in-progress
	// appointment on the schedule, ordered by queue number.
	ListOutstanding(ctx context.Context) ([]*model.Appointment, error)

	InsertAppointment(ctx context.Context, apt *model.Appointment) error
	UpdateAppointment(ctx context.Context, apt *model.Appointment) error
	UpdateSchedule(ctx context.Context, schedule *model.Schedule) error
	InsertEvent(ctx context.Context, event *model.AppointmentEvent) error
}

// Store provides the single serialization primitive of the queue engine:
// fn runs with an exclusive lock scoped to one schedule row, so bookings
// against different schedules proceed fully in parallel. A lock-wait
// timeout surfaces model.ErrScheduleBusy.
type Store interface {
	WithScheduleLock(ctx context.Context, scheduleID uuid.UUID, fn func(ctx context.Context, tx ScheduleTx) error) error
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	List(ctx context.Context, filter *model.ScheduleFilter) ([]*model.Schedule, error)
	CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error)
	CountAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error)
}

type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*model.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
	HasActiveForPatient(ctx context.Context, scheduleID, patientID uuid.UUID) (bool, error)

	// Transition performs a guarded status change: apt carries the new
	// status and timestamps, and the update applies only while the row
	// still holds the expected status. The event entry is appended in the
	// same atomic unit. A guard miss (lost race) returns
	// model.ErrInvalidTransition with no side effects.
	Transition(ctx context.Context, apt *model.Appointment, expect model.AppointmentStatus, event *model.AppointmentEvent) error

	// ListReservedBetween feeds the read-only reminder job.
	ListReservedBetween(ctx context.Context, from, to time.Time) ([]*model.Appointment, error)

	CountByStatus(ctx context.Context, filter *model.ReportFilter) ([]*model.ReportRow, error)
}

// EventRepository is append-only: no update or delete is exposed to any
// collaborator.
type EventRepository interface {
	Insert(ctx context.Context, event *model.AppointmentEvent) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*model.AppointmentEvent, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error)
}

type PatientRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	GetFamilyMember(ctx context.Context, id uuid.UUID) (*model.FamilyMember, error)
}

type DoctorRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
}

type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
