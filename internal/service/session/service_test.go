package session

import (
	"context"
	"errors"
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

type fixture struct {
	store    *memory.Store
	svc      *Service
	schedule *model.Schedule
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	schedule := &model.Schedule{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		DepartmentID: uuid.New(),
		Date:         time.Now(),
		Session:      model.SessionAfternoon,
		Quota:        30,
		Status:       model.ScheduleStatusOpen,
	}
	store.AddSchedule(schedule)
	return &fixture{
		store:    store,
		svc:      NewService(store, nil, testLogger()),
		schedule: schedule,
	}
}

func (f *fixture) addAppointment(t *testing.T, queueNumber int, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	now := time.Now()
	apt := &model.Appointment{
		ID:          uuid.New(),
		ScheduleID:  f.schedule.ID,
		PatientID:   uuid.New(),
		QueueNumber: queueNumber,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := f.store.WithScheduleLock(context.Background(), f.schedule.ID, func(ctx context.Context, tx repository.ScheduleTx) error {
		return tx.InsertAppointment(ctx, apt)
	})
	require.NoError(t, err)
	return apt
}

func doctorActor() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.RoleDoctor, Name: "Dr"}
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := doctorActor()

	schedule, err := f.svc.Pause(ctx, actor, f.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusPaused, schedule.Status)

	schedule, err = f.svc.Resume(ctx, actor, f.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusOpen, schedule.Status)
	// First resume stamps the open timestamp.
	assert.NotNil(t, schedule.OpenAt)
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := doctorActor()

	_, err := f.svc.Pause(ctx, actor, f.schedule.ID)
	require.NoError(t, err)

	schedule, err := f.svc.Pause(ctx, actor, f.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusPaused, schedule.Status)
}

func TestPauseEndedScheduleFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := doctorActor()

	_, err := f.svc.End(ctx, actor, f.schedule.ID)
	require.NoError(t, err)

	_, err = f.svc.Pause(ctx, actor, f.schedule.ID)
	assert.ErrorIs(t, err, model.ErrSessionEnded)
	_, err = f.svc.Resume(ctx, actor, f.schedule.ID)
	assert.ErrorIs(t, err, model.ErrSessionEnded)
}

func TestEndReconcilesOutstandingAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inProgress := f.addAppointment(t, 1, model.AppointmentStatusInProgress)
	reserved := f.addAppointment(t, 2, model.AppointmentStatusReserved)
	checkedIn := f.addAppointment(t, 3, model.AppointmentStatusCheckedIn)
	done := f.addAppointment(t, 4, model.AppointmentStatusCompleted)

	result, err := f.svc.End(ctx, doctorActor(), f.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 2, result.Cancelled)
	assert.Equal(t, model.ScheduleStatusEnded, result.Schedule.Status)
	require.NotNil(t, result.Schedule.CloseAt)

	expect := map[uuid.UUID]model.AppointmentStatus{
		inProgress.ID: model.AppointmentStatusCompleted,
		reserved.ID:   model.AppointmentStatusCancelled,
		checkedIn.ID:  model.AppointmentStatusCancelled,
		done.ID:       model.AppointmentStatusCompleted,
	}
	for id, want := range expect {
		apt, err := f.store.Appointments().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, apt.Status)
	}

	// The sweep marks its events as automatic.
	events, err := f.store.Events().ListByAppointment(ctx, reserved.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCancelled, events[0].Kind)
	assert.Equal(t, true, events[0].Payload["automatic"])
}

func TestEndTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := doctorActor()

	_, err := f.svc.End(ctx, actor, f.schedule.ID)
	require.NoError(t, err)

	_, err = f.svc.End(ctx, actor, f.schedule.ID)
	assert.ErrorIs(t, err, model.ErrSessionEnded)
}

func TestEndIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, 1, model.AppointmentStatusReserved)
	f.addAppointment(t, 2, model.AppointmentStatusCheckedIn)
	f.addAppointment(t, 3, model.AppointmentStatusReserved)

	// Fail the sweep partway through its event batch.
	boom := errors.New("event store unavailable")
	calls := 0
	f.store.SetEventInsertHook(func(*model.AppointmentEvent) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	_, err := f.svc.End(ctx, doctorActor(), f.schedule.ID)
	require.Error(t, err)
	require.ErrorIs(t, err, boom)

	// Nothing changed: the schedule is still open and every appointment
	// kept its status.
	f.store.SetEventInsertHook(nil)
	schedule, err := f.store.Schedules().Get(ctx, f.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusOpen, schedule.Status)

	appointments, err := f.store.Appointments().ListBySchedule(ctx, f.schedule.ID)
	require.NoError(t, err)
	require.Len(t, appointments, 3)
	for _, apt := range appointments {
		assert.NotEqual(t, model.AppointmentStatusCancelled, apt.Status)
	}

	events, err := f.store.Events().ListBySchedule(ctx, f.schedule.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}
