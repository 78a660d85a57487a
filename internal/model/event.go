package model

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventBooked    EventKind = "booked"
	EventCheckedIn EventKind = "checked_in"
	EventCalled    EventKind = "called"
	EventCompleted EventKind = "completed"
	EventCancelled EventKind = "cancelled"
	EventSystem    EventKind = "system"
)

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

// AppointmentEvent is one immutable entry in the audit trail. Entries are
// append-only; no collaborator may update or delete them. ScheduleID is
// denormalised so the per-schedule activity feed needs no join.
type AppointmentEvent struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	ScheduleID    uuid.UUID  `db:"schedule_id" json:"schedule_id"`
	Kind          EventKind  `db:"kind" json:"kind"`
	ActorID       *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	ActorRole     Role       `db:"actor_role" json:"actor_role,omitempty"`
	Payload       JSONMap    `db:"-" json:"payload,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// NewAppointmentEvent builds an entry attributed to the acting identity.
func NewAppointmentEvent(apt *Appointment, kind EventKind, actor Actor, payload JSONMap) *AppointmentEvent {
	var actorID *uuid.UUID
	if actor.ID != uuid.Nil {
		id := actor.ID
		actorID = &id
	}
	return &AppointmentEvent{
		ID:            uuid.New(),
		AppointmentID: apt.ID,
		ScheduleID:    apt.ScheduleID,
		Kind:          kind,
		ActorID:       actorID,
		ActorRole:     actor.Role,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}
