package registry

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/internal/repository/memory"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newService(store *memory.Store) *Service {
	return NewService(store.Schedules(), store.Appointments(), store.Events(), store.Doctors(), store.Patients(), testLogger())
}

func addSchedule(store *memory.Store, quota int) *model.Schedule {
	schedule := &model.Schedule{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		DepartmentID: uuid.New(),
		Date:         time.Now(),
		Session:      model.SessionMorning,
		Quota:        quota,
		Status:       model.ScheduleStatusOpen,
	}
	store.AddSchedule(schedule)
	return schedule
}

func addAppointment(t *testing.T, store *memory.Store, scheduleID uuid.UUID, queueNumber int, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	now := time.Now()
	apt := &model.Appointment{
		ID:          uuid.New(),
		ScheduleID:  scheduleID,
		PatientID:   uuid.New(),
		QueueNumber: queueNumber,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := store.WithScheduleLock(context.Background(), scheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		return tx.InsertAppointment(ctx, apt)
	})
	require.NoError(t, err)
	return apt
}

func TestCreateSchedule(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()

	doctor := &model.Doctor{ID: uuid.New(), UserID: uuid.New(), DepartmentID: uuid.New(), Name: "Dr Chen"}
	store.AddDoctor(doctor)

	req := &model.CreateScheduleRequest{
		DoctorID: doctor.ID.String(),
		Date:     "2026-09-01",
		Session:  "morning",
		Quota:    30,
	}
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	schedule, err := svc.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, schedule.DoctorID)
	assert.Equal(t, doctor.DepartmentID, schedule.DepartmentID)
	assert.Equal(t, model.ScheduleStatusOpen, schedule.Status)

	// Same doctor, date and session again is a conflict.
	_, err = svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, model.ErrScheduleExists)

	// Unknown doctor is rejected.
	req2 := &model.CreateScheduleRequest{DoctorID: uuid.New().String(), Date: "2026-09-01", Session: "morning", Quota: 30}
	_, err = svc.Create(ctx, admin, req2)
	assert.ErrorIs(t, err, model.ErrDoctorNotFound)
}

func TestBoardCounts(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	schedule := addSchedule(store, 10)

	addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusCompleted)
	addAppointment(t, store, schedule.ID, 2, model.AppointmentStatusCompleted)
	addAppointment(t, store, schedule.ID, 3, model.AppointmentStatusInProgress)
	addAppointment(t, store, schedule.ID, 4, model.AppointmentStatusCheckedIn)
	addAppointment(t, store, schedule.ID, 5, model.AppointmentStatusReserved)
	addAppointment(t, store, schedule.ID, 6, model.AppointmentStatusCancelled)

	board, err := svc.Board(ctx, schedule.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, board.Counts.Waiting)
	assert.Equal(t, 1, board.Counts.CheckedIn)
	assert.Equal(t, 1, board.Counts.InProgress)
	assert.Equal(t, 2, board.Counts.Completed)
	assert.Equal(t, 1, board.Counts.Cancelled)
	assert.Equal(t, 5, board.Counts.TotalActive)
	assert.Equal(t, 3, board.Counts.CurrentNumber)
	assert.Equal(t, 5, board.Counts.Remaining)
	assert.Len(t, board.Appointments, 6)
}

func TestBoardCurrentNumberIsMaxServed(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	schedule := addSchedule(store, 10)

	// Number 4 was served out of order; the display follows the highest
	// number that reached the consultation room.
	addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusCheckedIn)
	addAppointment(t, store, schedule.ID, 4, model.AppointmentStatusCompleted)
	addAppointment(t, store, schedule.ID, 2, model.AppointmentStatusInProgress)

	board, err := svc.Board(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, board.Counts.CurrentNumber)
}

func TestBoardIsCachedBriefly(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	schedule := addSchedule(store, 10)

	first, err := svc.Board(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Counts.TotalActive)

	addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusReserved)

	// Within the TTL the stale board is served.
	second, err := svc.Board(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Counts.TotalActive)
}

func TestRemaining(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	schedule := addSchedule(store, 3)

	addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusReserved)
	addAppointment(t, store, schedule.ID, 2, model.AppointmentStatusCancelled)

	remaining, err := svc.Remaining(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestProgressOwnershipScoping(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	schedule := addSchedule(store, 10)

	addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusCompleted)
	apt := addAppointment(t, store, schedule.ID, 2, model.AppointmentStatusReserved)

	owner := &model.Patient{ID: apt.PatientID, UserID: uuid.New(), Name: "Owner"}
	store.AddPatient(owner)
	stranger := &model.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Stranger"}
	store.AddPatient(stranger)

	progress, err := svc.Progress(ctx, model.Actor{ID: owner.UserID, Role: model.RolePatient}, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, apt.ID, progress.Appointment.ID)
	assert.Equal(t, 1, progress.CurrentNumber)

	_, err = svc.Progress(ctx, model.Actor{ID: stranger.UserID, Role: model.RolePatient}, apt.ID)
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)

	// Staff may inspect any appointment.
	_, err = svc.Progress(ctx, model.Actor{ID: uuid.New(), Role: model.RoleStaff}, apt.ID)
	require.NoError(t, err)
}

func TestBrowseFilters(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()

	today := time.Now()
	open := addSchedule(store, 10)
	paused := addSchedule(store, 10)
	paused.Status = model.ScheduleStatusPaused
	store.AddSchedule(paused)

	schedules, err := svc.Browse(ctx, &model.ScheduleFilter{Date: &today})
	require.NoError(t, err)
	assert.Len(t, schedules, 2)

	bookable, err := svc.Browse(ctx, &model.ScheduleFilter{Date: &today, BookableOnly: true})
	require.NoError(t, err)
	require.Len(t, bookable, 1)
	assert.Equal(t, open.ID, bookable[0].ID)

	byDoctor, err := svc.Browse(ctx, &model.ScheduleFilter{DoctorID: &open.DoctorID})
	require.NoError(t, err)
	require.Len(t, byDoctor, 1)
	assert.Equal(t, open.ID, byDoctor[0].ID)
}

func TestBoards(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		schedule := addSchedule(store, 10)
		addAppointment(t, store, schedule.ID, 1, model.AppointmentStatusReserved)
	}

	today := time.Now()
	boards, err := svc.Boards(ctx, &model.ScheduleFilter{Date: &today})
	require.NoError(t, err)
	require.Len(t, boards, 3)
	for i, board := range boards {
		assert.Equal(t, 1, board.Counts.Waiting, fmt.Sprintf("board %d", i))
		assert.Nil(t, board.Events)
	}
}
