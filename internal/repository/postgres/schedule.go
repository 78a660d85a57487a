package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clinicdesk/registration-api/internal/model"
)

const pqUniqueViolation = "23505"

const scheduleColumns = `
	SELECT id, doctor_id, department_id, date, session, clinic_room,
	       quota, status, open_at, close_at, created_at, updated_at
`

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	query := `
		INSERT INTO schedules (
			id, doctor_id, department_id, date, session, clinic_room,
			quota, status, open_at, close_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = schedule.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.DoctorID,
		schedule.DepartmentID,
		schedule.Date,
		schedule.Session,
		schedule.ClinicRoom,
		schedule.Quota,
		schedule.Status,
		schedule.OpenAt,
		schedule.CloseAt,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return model.ErrScheduleExists
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.GetContext(ctx, &schedule, scheduleColumns+`
		FROM schedules
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

func (r *scheduleRepository) List(ctx context.Context, filter *model.ScheduleFilter) ([]*model.Schedule, error) {
	query := scheduleColumns + `
		FROM schedules
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filter != nil {
		if filter.Date != nil {
			query += fmt.Sprintf(" AND date = $%d", argCount)
			args = append(args, *filter.Date)
			argCount++
		}
		if filter.DepartmentID != nil {
			query += fmt.Sprintf(" AND department_id = $%d", argCount)
			args = append(args, *filter.DepartmentID)
			argCount++
		}
		if filter.DoctorID != nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, *filter.DoctorID)
			argCount++
		}
		if filter.BookableOnly {
			query += fmt.Sprintf(" AND status IN ($%d, $%d)", argCount, argCount+1)
			args = append(args, model.ScheduleStatusOpen, model.ScheduleStatusClosed)
			argCount += 2
		}
	}

	query += " ORDER BY date ASC, session ASC"

	var schedules []*model.Schedule
	err := r.db.SelectContext(ctx, &schedules, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

func (r *scheduleRepository) CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM appointments
		WHERE schedule_id = $1 AND status != $2
	`, scheduleID, model.AppointmentStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("failed to count active appointments: %w", err)
	}
	return count, nil
}

func (r *scheduleRepository) CountAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM appointments WHERE schedule_id = $1
	`, scheduleID)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}
