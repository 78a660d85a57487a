package queue

import (
	"context"
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
		Session:      model.SessionMorning,
		Quota:        30,
		Status:       model.ScheduleStatusOpen,
	}
	store.AddSchedule(schedule)
	svc := NewService(store, store.Appointments(), store.Patients(), nil, testLogger())
	return &fixture{store: store, svc: svc, schedule: schedule}
}

// addAppointment seeds an appointment directly through the locked store so
// the fixture and production writes share one code path.
func (f *fixture) addAppointment(t *testing.T, queueNumber int, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	patient := &model.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Patient"}
	f.store.AddPatient(patient)

	now := time.Now()
	apt := &model.Appointment{
		ID:          uuid.New(),
		ScheduleID:  f.schedule.ID,
		PatientID:   patient.ID,
		QueueNumber: queueNumber,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status != model.AppointmentStatusReserved && status != model.AppointmentStatusCancelled {
		apt.CheckInAt = &now
	}
	err := f.store.WithScheduleLock(context.Background(), f.schedule.ID, func(ctx context.Context, tx repository.ScheduleTx) error {
		return tx.InsertAppointment(ctx, apt)
	})
	require.NoError(t, err)
	return apt
}

func staffActor() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.RoleStaff, Name: "Desk"}
}

func doctorActor() model.Actor {
	return model.Actor{ID: uuid.New(), Role: model.RoleDoctor, Name: "Dr"}
}

func TestCheckInMovesReservedToCheckedIn(t *testing.T) {
	f := newFixture(t)
	apt := f.addAppointment(t, 1, model.AppointmentStatusReserved)

	got, err := f.svc.CheckIn(context.Background(), staffActor(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCheckedIn, got.Status)
	require.NotNil(t, got.CheckInAt)

	events, err := f.store.Events().ListByAppointment(context.Background(), apt.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCheckedIn, events[0].Kind)
}

func TestCheckInTwiceIsInformationalNoOp(t *testing.T) {
	f := newFixture(t)
	apt := f.addAppointment(t, 1, model.AppointmentStatusReserved)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, staffActor(), apt.ID)
	require.NoError(t, err)

	got, err := f.svc.CheckIn(ctx, staffActor(), apt.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCheckedIn)
	require.NotNil(t, got)
	assert.Equal(t, model.AppointmentStatusCheckedIn, got.Status)

	// No second event was appended.
	events, err := f.store.Events().ListByAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCheckInCancelledAppointmentFails(t *testing.T) {
	f := newFixture(t)
	apt := f.addAppointment(t, 1, model.AppointmentStatusCancelled)

	_, err := f.svc.CheckIn(context.Background(), staffActor(), apt.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
}

func TestCallNextPicksLowestCheckedInNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, 1, model.AppointmentStatusReserved)
	f.addAppointment(t, 2, model.AppointmentStatusCheckedIn)
	f.addAppointment(t, 3, model.AppointmentStatusCheckedIn)

	called, err := f.svc.CallNext(ctx, doctorActor(), f.schedule.ID)
	require.NoError(t, err)
	// Number 1 has not arrived yet, so number 2 goes first.
	assert.Equal(t, 2, called.QueueNumber)
	assert.Equal(t, model.AppointmentStatusInProgress, called.Status)
}

func TestCallNextRefusesSecondConsultation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAppointment(t, 1, model.AppointmentStatusInProgress)
	f.addAppointment(t, 2, model.AppointmentStatusCheckedIn)

	_, err := f.svc.CallNext(ctx, doctorActor(), f.schedule.ID)
	assert.ErrorIs(t, err, model.ErrConsultationActive)
}

func TestCallNextEmptyQueue(t *testing.T) {
	f := newFixture(t)

	f.addAppointment(t, 1, model.AppointmentStatusReserved)

	_, err := f.svc.CallNext(context.Background(), doctorActor(), f.schedule.ID)
	assert.ErrorIs(t, err, model.ErrNothingToCall)
}

func TestCallNextRespectsSessionState(t *testing.T) {
	cases := []struct {
		status model.ScheduleStatus
		want   error
	}{
		{model.ScheduleStatusPaused, model.ErrSessionPaused},
		{model.ScheduleStatusEnded, model.ErrSessionEnded},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t)
			f.addAppointment(t, 1, model.AppointmentStatusCheckedIn)
			f.schedule.Status = tc.status
			f.store.AddSchedule(f.schedule)

			_, err := f.svc.CallNext(context.Background(), doctorActor(), f.schedule.ID)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.addAppointment(t, 1, model.AppointmentStatusInProgress)
	got, err := f.svc.Complete(ctx, doctorActor(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	waiting := f.addAppointment(t, 2, model.AppointmentStatusCheckedIn)
	_, err = f.svc.Complete(ctx, doctorActor(), waiting.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestCancelReservedAndCheckedIn(t *testing.T) {
	for _, status := range []model.AppointmentStatus{model.AppointmentStatusReserved, model.AppointmentStatusCheckedIn} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			apt := f.addAppointment(t, 1, status)

			got, err := f.svc.Cancel(context.Background(), staffActor(), apt.ID)
			require.NoError(t, err)
			assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
			require.NotNil(t, got.CancelledAt)
		})
	}
}

func TestCancelInProgressOrCompletedFails(t *testing.T) {
	for _, status := range []model.AppointmentStatus{model.AppointmentStatusInProgress, model.AppointmentStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			apt := f.addAppointment(t, 1, status)

			_, err := f.svc.Cancel(context.Background(), staffActor(), apt.ID)
			assert.ErrorIs(t, err, model.ErrInvalidTransition)
		})
	}
}

func TestCancelTwiceIsInformationalNoOp(t *testing.T) {
	f := newFixture(t)
	apt := f.addAppointment(t, 1, model.AppointmentStatusReserved)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, staffActor(), apt.ID)
	require.NoError(t, err)

	got, err := f.svc.Cancel(ctx, staffActor(), apt.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyCancelled)
	require.NotNil(t, got)
}

func TestCancelPatientOwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.addAppointment(t, 1, model.AppointmentStatusReserved)

	stranger := &model.Patient{ID: uuid.New(), UserID: uuid.New(), Name: "Stranger"}
	f.store.AddPatient(stranger)

	actor := model.Actor{ID: stranger.UserID, Role: model.RolePatient, Name: "Stranger"}
	_, err := f.svc.Cancel(ctx, actor, apt.ID)
	// A foreign appointment is indistinguishable from a missing one.
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)

	owner, err := f.store.Patients().Get(ctx, apt.PatientID)
	require.NoError(t, err)
	ownerActor := model.Actor{ID: owner.UserID, Role: model.RolePatient, Name: owner.Name}
	got, err := f.svc.Cancel(ctx, ownerActor, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
}
