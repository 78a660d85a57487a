package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/internal/repository/memory"
)

func newFixture(t *testing.T) (*memory.Store, *Service, *model.Schedule) {
	t.Helper()
	store := memory.NewStore()
	schedule := &model.Schedule{
		ID:       uuid.New(),
		DoctorID: uuid.New(),
		Date:     time.Now(),
		Session:  model.SessionMorning,
		Quota:    30,
		Status:   model.ScheduleStatusOpen,
	}
	store.AddSchedule(schedule)
	return store, NewService(store.Events(), store.Appointments()), schedule
}

func addAppointment(t *testing.T, store *memory.Store, scheduleID uuid.UUID, queueNumber int) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		ID:          uuid.New(),
		ScheduleID:  scheduleID,
		PatientID:   uuid.New(),
		QueueNumber: queueNumber,
		Status:      model.AppointmentStatusReserved,
	}
	err := store.WithScheduleLock(context.Background(), scheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		return tx.InsertAppointment(ctx, apt)
	})
	require.NoError(t, err)
	return apt
}

func addEvent(t *testing.T, store *memory.Store, scheduleID, appointmentID uuid.UUID, kind model.EventKind, at time.Time) {
	t.Helper()
	err := store.InsertEvent(context.Background(), &model.AppointmentEvent{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		ScheduleID:    scheduleID,
		Kind:          kind,
		ActorRole:     model.RoleStaff,
		CreatedAt:     at,
	})
	require.NoError(t, err)
}

func TestScheduleFeedNewestFirst(t *testing.T) {
	store, svc, schedule := newFixture(t)
	apt := addAppointment(t, store, schedule.ID, 1)
	base := time.Now()

	kinds := []model.EventKind{model.EventBooked, model.EventCheckedIn, model.EventCalled}
	for i, kind := range kinds {
		addEvent(t, store, schedule.ID, apt.ID, kind, base.Add(time.Duration(i)*time.Second))
	}

	feed, err := svc.ScheduleFeed(context.Background(), schedule.ID, 10)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, model.EventCalled, feed[0].Kind)
	assert.Equal(t, model.EventCheckedIn, feed[1].Kind)
	assert.Equal(t, model.EventBooked, feed[2].Kind)
}

func TestScheduleFeedClampsLimit(t *testing.T) {
	store, svc, schedule := newFixture(t)
	apt := addAppointment(t, store, schedule.ID, 1)
	base := time.Now()
	for i := 0; i < 60; i++ {
		addEvent(t, store, schedule.ID, apt.ID, model.EventBooked, base.Add(time.Duration(i)*time.Millisecond))
	}
	ctx := context.Background()

	feed, err := svc.ScheduleFeed(ctx, schedule.ID, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 50, "zero limit falls back to the default")

	feed, err = svc.ScheduleFeed(ctx, schedule.ID, 5)
	require.NoError(t, err)
	assert.Len(t, feed, 5)

	feed, err = svc.ScheduleFeed(ctx, schedule.ID, 500)
	require.NoError(t, err)
	assert.Len(t, feed, 50, "oversized limit falls back to the default")
}

func TestHistoryChronologicalForOneAppointment(t *testing.T) {
	store, svc, schedule := newFixture(t)
	apt := addAppointment(t, store, schedule.ID, 1)
	other := addAppointment(t, store, schedule.ID, 2)
	base := time.Now()

	addEvent(t, store, schedule.ID, apt.ID, model.EventBooked, base)
	addEvent(t, store, schedule.ID, other.ID, model.EventBooked, base.Add(time.Second))
	addEvent(t, store, schedule.ID, apt.ID, model.EventCheckedIn, base.Add(2*time.Second))

	trail, err := svc.History(context.Background(), apt.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.EventBooked, trail[0].Kind)
	assert.Equal(t, model.EventCheckedIn, trail[1].Kind)
	for _, entry := range trail {
		assert.Equal(t, apt.ID, entry.AppointmentID)
	}
}

func TestHistoryUnknownAppointment(t *testing.T) {
	_, svc, _ := newFixture(t)

	_, err := svc.History(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)
}
