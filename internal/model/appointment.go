package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusReserved   AppointmentStatus = "reserved"
	AppointmentStatusCheckedIn  AppointmentStatus = "checked_in"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// Active reports whether the status still counts against schedule capacity.
func (s AppointmentStatus) Active() bool {
	return s != AppointmentStatusCancelled
}

// Terminal statuses permit no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// Appointment is one patient's reserved slot within a schedule. The queue
// number is assigned once at booking and never changes; cancellation is a
// status, not a removal, so issued numbers stay stable.
type Appointment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"schedule_id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	// FamilyMemberID is a weak reference to the actual attendee. A missing
	// referent means the attendee is the patient themself or is no longer
	// on record; readers must not treat that as an error.
	FamilyMemberID *uuid.UUID        `db:"family_member_id" json:"family_member_id,omitempty"`
	QueueNumber    int               `db:"queue_number" json:"queue_number"`
	Status         AppointmentStatus `db:"status" json:"status"`
	CheckInAt      *time.Time        `db:"check_in_at" json:"check_in_at,omitempty"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

type BookAppointmentRequest struct {
	// PatientID is set by staff booking on behalf of a patient at the
	// front desk; patients booking for themselves leave it empty.
	PatientID      string `json:"patient_id" binding:"omitempty,uuid"`
	FamilyMemberID string `json:"family_member_id" binding:"omitempty,uuid"`
	Notes          string `json:"notes" binding:"max=1000"`
}

// QueueCounts summarises one schedule's queue for the status board.
type QueueCounts struct {
	Waiting       int `json:"waiting"`
	CheckedIn     int `json:"checked_in"`
	InProgress    int `json:"in_progress"`
	Completed     int `json:"completed"`
	Cancelled     int `json:"cancelled"`
	TotalActive   int `json:"total_active"`
	CurrentNumber int `json:"current_number"`
	Remaining     int `json:"remaining"`
}

// ScheduleBoard is the read-only clinic status projection shown on
// waiting-room dashboards.
type ScheduleBoard struct {
	Schedule     *Schedule           `json:"schedule"`
	Counts       QueueCounts         `json:"counts"`
	Appointments []*Appointment      `json:"appointments"`
	Events       []*AppointmentEvent `json:"events"`
}

// AppointmentProgress is the patient-facing view of their own booking's
// position in the queue.
type AppointmentProgress struct {
	Appointment   *Appointment `json:"appointment"`
	Schedule      *Schedule    `json:"schedule"`
	CurrentNumber int          `json:"current_number"`
	Counts        QueueCounts  `json:"counts"`
}

// ReportRow is one aggregated count for the reporting collaborator.
type ReportRow struct {
	Date     time.Time         `db:"date" json:"date"`
	DoctorID uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Session  Session           `db:"session" json:"session"`
	Status   AppointmentStatus `db:"status" json:"status"`
	Count    int               `db:"count" json:"count"`
}

type ReportFilter struct {
	From     *time.Time
	To       *time.Time
	DoctorID *uuid.UUID
}
