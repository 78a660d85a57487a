package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/registration-api/internal/model"
)

const appointmentColumns = `
	SELECT id, schedule_id, patient_id, family_member_id, queue_number,
	       status, check_in_at, completed_at, cancelled_at, notes,
	       created_at, updated_at
`

func insertAppointment(ctx context.Context, ext sqlx.ExtContext, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, schedule_id, patient_id, family_member_id, queue_number,
			status, check_in_at, completed_at, cancelled_at, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = apt.CreatedAt

	_, err := ext.ExecContext(ctx, query,
		apt.ID,
		apt.ScheduleID,
		apt.PatientID,
		apt.FamilyMemberID,
		apt.QueueNumber,
		apt.Status,
		apt.CheckInAt,
		apt.CompletedAt,
		apt.CancelledAt,
		apt.Notes,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, appointmentColumns+`
		FROM appointments
		WHERE schedule_id = $1
		ORDER BY queue_number ASC
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) HasActiveForPatient(ctx context.Context, scheduleID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE schedule_id = $1 AND patient_id = $2 AND status != $3
		)
	`, scheduleID, patientID, model.AppointmentStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("failed to check active booking: %w", err)
	}
	return exists, nil
}

// Transition is a guarded compare-and-swap: the row must still hold the
// status the caller observed, and the audit entry lands in the same
// transaction. Individual transitions never take the schedule lock.
func (r *appointmentRepository) Transition(ctx context.Context, apt *model.Appointment, expect model.AppointmentStatus, event *model.AppointmentEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	apt.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET status = $1, check_in_at = $2, completed_at = $3, cancelled_at = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`, apt.Status, apt.CheckInAt, apt.CompletedAt, apt.CancelledAt, apt.UpdatedAt, apt.ID, expect)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("transition appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return model.ErrInvalidTransition
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (r *appointmentRepository) ListReservedBetween(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, appointmentColumns+`
		FROM appointments a
		WHERE a.status = $1
		  AND EXISTS (
			SELECT 1 FROM schedules s
			WHERE s.id = a.schedule_id AND s.date >= $2 AND s.date < $3
		  )
		ORDER BY a.created_at ASC
	`, model.AppointmentStatusReserved, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reserved appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, filter *model.ReportFilter) ([]*model.ReportRow, error) {
	query := `
		SELECT s.date, s.doctor_id, s.session, a.status, COUNT(*) AS count
		FROM appointments a
		JOIN schedules s ON s.id = a.schedule_id
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filter != nil {
		if filter.From != nil {
			query += fmt.Sprintf(" AND s.date >= $%d", argCount)
			args = append(args, *filter.From)
			argCount++
		}
		if filter.To != nil {
			query += fmt.Sprintf(" AND s.date <= $%d", argCount)
			args = append(args, *filter.To)
			argCount++
		}
		if filter.DoctorID != nil {
			query += fmt.Sprintf(" AND s.doctor_id = $%d", argCount)
			args = append(args, *filter.DoctorID)
			argCount++
		}
	}

	query += " GROUP BY s.date, s.doctor_id, s.session, a.status ORDER BY s.date, s.session"

	var rows []*model.ReportRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate appointments: %w", err)
	}
	return rows, nil
}
