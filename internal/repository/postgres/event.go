package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicdesk/registration-api/internal/model"
)

type eventRow struct {
	ID            uuid.UUID       `db:"id"`
	AppointmentID uuid.UUID       `db:"appointment_id"`
	ScheduleID    uuid.UUID       `db:"schedule_id"`
	Kind          model.EventKind `db:"kind"`
	ActorID       *uuid.UUID      `db:"actor_id"`
	ActorRole     model.Role      `db:"actor_role"`
	Payload       []byte          `db:"payload"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r eventRow) toModel() (*model.AppointmentEvent, error) {
	event := &model.AppointmentEvent{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		ScheduleID:    r.ScheduleID,
		Kind:          r.Kind,
		ActorID:       r.ActorID,
		ActorRole:     r.ActorRole,
		CreatedAt:     r.CreatedAt,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
	}
	return event, nil
}

func insertEvent(ctx context.Context, ext sqlx.ExtContext, event *model.AppointmentEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	payload := []byte("{}")
	if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode event payload: %w", err)
		}
		payload = data
	}

	_, err := ext.ExecContext(ctx, `
		INSERT INTO appointment_events (
			id, appointment_id, schedule_id, kind, actor_id, actor_role,
			payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID,
		event.AppointmentID,
		event.ScheduleID,
		event.Kind,
		event.ActorID,
		event.ActorRole,
		payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *eventRepository) Insert(ctx context.Context, event *model.AppointmentEvent) error {
	return insertEvent(ctx, r.db, event)
}

func (r *eventRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*model.AppointmentEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, appointment_id, schedule_id, kind, actor_id, actor_role,
		       payload, created_at
		FROM appointment_events
		WHERE schedule_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule events: %w", err)
	}
	return rowsToModels(rows)
}

func (r *eventRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, appointment_id, schedule_id, kind, actor_id, actor_role,
		       payload, created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment events: %w", err)
	}
	return rowsToModels(rows)
}

func rowsToModels(rows []eventRow) ([]*model.AppointmentEvent, error) {
	events := make([]*model.AppointmentEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
