package model

import (
	"time"

	"github.com/google/uuid"
)

type Session string

const (
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
	SessionEvening   Session = "evening"
)

func (s Session) Valid() bool {
	switch s {
	case SessionMorning, SessionAfternoon, SessionEvening:
		return true
	}
	return false
}

type ScheduleStatus string

const (
	ScheduleStatusOpen ScheduleStatus = "open"
	// ScheduleStatusClosed means "no more capacity"; bookings are still
	// accepted against it while quota remains. Only paused and ended
	// schedules refuse new bookings. Flagged for product review, see
	// DESIGN.md.
	ScheduleStatusClosed ScheduleStatus = "closed"
	ScheduleStatusPaused ScheduleStatus = "paused"
	ScheduleStatusEnded  ScheduleStatus = "ended"
)

func (s ScheduleStatus) Bookable() bool {
	return s == ScheduleStatusOpen || s == ScheduleStatusClosed
}

// Schedule is one doctor's bookable session: one doctor, one date, one
// session block, with a fixed quota of queue numbers.
type Schedule struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	DoctorID     uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	DepartmentID uuid.UUID      `db:"department_id" json:"department_id"`
	Date         time.Time      `db:"date" json:"date"`
	Session      Session        `db:"session" json:"session"`
	ClinicRoom   string         `db:"clinic_room" json:"clinic_room,omitempty"`
	Quota        int            `db:"quota" json:"quota"`
	Status       ScheduleStatus `db:"status" json:"status"`
	OpenAt       *time.Time     `db:"open_at" json:"open_at,omitempty"`
	CloseAt      *time.Time     `db:"close_at" json:"close_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type ScheduleFilter struct {
	Date         *time.Time
	DepartmentID *uuid.UUID
	DoctorID     *uuid.UUID
	BookableOnly bool
}

type CreateScheduleRequest struct {
	DoctorID   string `json:"doctor_id" binding:"required,uuid"`
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	Session    string `json:"session" binding:"required,oneof=morning afternoon evening"`
	ClinicRoom string `json:"clinic_room" binding:"max=20"`
	Quota      int    `json:"quota" binding:"required,gt=0"`
}

type ScheduleActionRequest struct {
	Action string `json:"action" binding:"required,oneof=pause resume end"`
}
