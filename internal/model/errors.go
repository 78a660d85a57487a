package model

import "errors"

// Typed errors returned across the service boundary. Handlers map each to a
// deterministic HTTP status and user-facing message; none of them leaves any
// partial state behind.
var (
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrFamilyMemberNotFound = errors.New("family member not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrScheduleNotBookable = errors.New("schedule is not open for booking")
	ErrScheduleFull        = errors.New("schedule quota is exhausted")
	ErrDuplicateBooking    = errors.New("patient already holds an active appointment on this schedule")
	ErrScheduleExists      = errors.New("schedule already exists for this doctor, date and session")

	ErrInvalidTransition  = errors.New("invalid appointment status transition")
	ErrAlreadyCheckedIn   = errors.New("appointment is already checked in or past check-in")
	ErrAlreadyCancelled   = errors.New("appointment is already cancelled")
	ErrConsultationActive = errors.New("another appointment is already in progress")
	ErrNothingToCall      = errors.New("no checked-in appointment to call")

	ErrSessionPaused = errors.New("session is paused")
	ErrSessionEnded  = errors.New("session has ended")

	// ErrScheduleBusy is a recoverable lock-wait timeout; the caller may
	// simply retry.
	ErrScheduleBusy = errors.New("schedule is busy, retry the operation")

	ErrForbidden = errors.New("operation not permitted for this actor")
)
