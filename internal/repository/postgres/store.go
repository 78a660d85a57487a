package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

const pqLockNotAvailable = "55P03"

// Store owns the per-schedule serialization unit. The exclusive lock is the
// schedule row itself (SELECT ... FOR UPDATE), so bookings against different
// schedules never contend with each other.
type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) WithScheduleLock(ctx context.Context, scheduleID uuid.UUID, fn func(ctx context.Context, tx repository.ScheduleTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schedule transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return fmt.Errorf("set lock timeout: %w", err)
	}

	var schedule model.Schedule
	err = tx.GetContext(ctx, &schedule, `
		SELECT id, doctor_id, department_id, date, session, clinic_room,
		       quota, status, open_at, close_at, created_at, updated_at
		FROM schedules
		WHERE id = $1
		FOR UPDATE
	`, scheduleID)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrScheduleNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			return model.ErrScheduleBusy
		}
		return fmt.Errorf("lock schedule: %w", err)
	}

	stx := &scheduleTx{tx: tx, schedule: &schedule}
	if err := fn(ctx, stx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule transaction: %w", err)
	}
	return nil
}

type scheduleTx struct {
	tx       *sqlx.Tx
	schedule *model.Schedule
}

func (t *scheduleTx) Schedule() *model.Schedule {
	return t.schedule
}

func (t *scheduleTx) CountAppointments(ctx context.Context) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM appointments WHERE schedule_id = $1
	`, t.schedule.ID)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return count, nil
}

func (t *scheduleTx) CountActive(ctx context.Context) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM appointments
		WHERE schedule_id = $1 AND status != $2
	`, t.schedule.ID, model.AppointmentStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return count, nil
}

func (t *scheduleTx) HasActiveForPatient(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE schedule_id = $1 AND patient_id = $2 AND status != $3
		)
	`, t.schedule.ID, patientID, model.AppointmentStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}

func (t *scheduleTx) InProgressExists(ctx context.Context) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE schedule_id = $1 AND status = $2
		)
	`, t.schedule.ID, model.AppointmentStatusInProgress)
	if err != nil {
		return false, fmt.Errorf("check in-progress appointment: %w", err)
	}
	return exists, nil
}

func (t *scheduleTx) FirstCheckedIn(ctx context.Context) (*model.Appointment, error) {
	var apt model.Appointment
	err := t.tx.GetContext(ctx, &apt, appointmentColumns+`
		FROM appointments
		WHERE schedule_id = $1 AND status = $2
		ORDER BY queue_number ASC
		LIMIT 1
	`, t.schedule.ID, model.AppointmentStatusCheckedIn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNothingToCall
		}
		return nil, fmt.Errorf("select first checked-in: %w", err)
	}
	return &apt, nil
}

func (t *scheduleTx) ListOutstanding(ctx context.Context) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := t.tx.SelectContext(ctx, &appointments, appointmentColumns+`
		FROM appointments
		WHERE schedule_id = $1 AND status IN ($2, $3, $4)
		ORDER BY queue_number ASC
	`, t.schedule.ID,
		model.AppointmentStatusReserved,
		model.AppointmentStatusCheckedIn,
		model.AppointmentStatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("list outstanding appointments: %w", err)
	}
	return appointments, nil
}

func (t *scheduleTx) InsertAppointment(ctx context.Context, apt *model.Appointment) error {
	return insertAppointment(ctx, t.tx, apt)
}

func (t *scheduleTx) UpdateAppointment(ctx context.Context, apt *model.Appointment) error {
	apt.UpdatedAt = time.Now()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE appointments
		SET status = $1, check_in_at = $2, completed_at = $3, cancelled_at = $4, updated_at = $5
		WHERE id = $6
	`, apt.Status, apt.CheckInAt, apt.CompletedAt, apt.CancelledAt, apt.UpdatedAt, apt.ID)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrAppointmentNotFound
	}
	return nil
}

func (t *scheduleTx) UpdateSchedule(ctx context.Context, schedule *model.Schedule) error {
	schedule.UpdatedAt = time.Now()
	_, err := t.tx.ExecContext(ctx, `
		UPDATE schedules
		SET status = $1, open_at = $2, close_at = $3, updated_at = $4
		WHERE id = $5
	`, schedule.Status, schedule.OpenAt, schedule.CloseAt, schedule.UpdatedAt, schedule.ID)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (t *scheduleTx) InsertEvent(ctx context.Context, event *model.AppointmentEvent) error {
	return insertEvent(ctx, t.tx, event)
}
