package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
)

// scheduleTx stages every mutation and applies the whole set only when fn
// returns nil, matching the all-or-nothing behaviour of the postgres
// transaction.
type scheduleTx struct {
	store    *Store
	schedule *model.Schedule

	scheduleDirty bool
	inserted      []*model.Appointment
	updated       map[uuid.UUID]*model.Appointment
	events        []*model.AppointmentEvent
}

func (s *Store) WithScheduleLock(ctx context.Context, scheduleID uuid.UUID, fn func(ctx context.Context, tx repository.ScheduleTx) error) error {
	lock := s.scheduleLock(scheduleID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	stored, ok := s.schedules[scheduleID]
	var schedule *model.Schedule
	if ok {
		schedule = cloneSchedule(stored)
	}
	s.mu.RUnlock()
	if !ok {
		return model.ErrScheduleNotFound
	}

	tx := &scheduleTx{
		store:    s,
		schedule: schedule,
		updated:  make(map[uuid.UUID]*model.Appointment),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (t *scheduleTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.scheduleDirty {
		s.schedules[t.schedule.ID] = cloneSchedule(t.schedule)
	}
	for _, apt := range t.updated {
		s.appointments[apt.ID] = cloneAppointment(apt)
	}
	for _, apt := range t.inserted {
		s.appointments[apt.ID] = cloneAppointment(apt)
	}
	for _, event := range t.events {
		s.events = append(s.events, cloneEvent(event))
	}
}

// view returns the schedule's appointments as seen inside the transaction:
// committed rows with staged updates applied, plus staged inserts.
func (t *scheduleTx) view() []*model.Appointment {
	t.store.mu.RLock()
	committed := t.store.appointmentsForSchedule(t.schedule.ID)
	t.store.mu.RUnlock()

	result := make([]*model.Appointment, 0, len(committed)+len(t.inserted))
	for _, apt := range committed {
		if staged, ok := t.updated[apt.ID]; ok {
			result = append(result, cloneAppointment(staged))
			continue
		}
		result = append(result, apt)
	}
	for _, apt := range t.inserted {
		result = append(result, cloneAppointment(apt))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].QueueNumber < result[j].QueueNumber
	})
	return result
}

func (t *scheduleTx) Schedule() *model.Schedule {
	return t.schedule
}

func (t *scheduleTx) CountAppointments(ctx context.Context) (int, error) {
	return len(t.view()), nil
}

func (t *scheduleTx) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, apt := range t.view() {
		if apt.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (t *scheduleTx) HasActiveForPatient(ctx context.Context, patientID uuid.UUID) (bool, error) {
	for _, apt := range t.view() {
		if apt.PatientID == patientID && apt.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *scheduleTx) InProgressExists(ctx context.Context) (bool, error) {
	for _, apt := range t.view() {
		if apt.Status == model.AppointmentStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (t *scheduleTx) FirstCheckedIn(ctx context.Context) (*model.Appointment, error) {
	for _, apt := range t.view() {
		if apt.Status == model.AppointmentStatusCheckedIn {
			return apt, nil
		}
	}
	return nil, model.ErrNothingToCall
}

func (t *scheduleTx) ListOutstanding(ctx context.Context) ([]*model.Appointment, error) {
	var result []*model.Appointment
	for _, apt := range t.view() {
		switch apt.Status {
		case model.AppointmentStatusReserved, model.AppointmentStatusCheckedIn, model.AppointmentStatusInProgress:
			result = append(result, apt)
		}
	}
	return result, nil
}

func (t *scheduleTx) InsertAppointment(ctx context.Context, apt *model.Appointment) error {
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now()
	apt.CreatedAt = now
	apt.UpdatedAt = now
	t.inserted = append(t.inserted, cloneAppointment(apt))
	return nil
}

func (t *scheduleTx) UpdateAppointment(ctx context.Context, apt *model.Appointment) error {
	apt.UpdatedAt = time.Now()
	t.updated[apt.ID] = cloneAppointment(apt)
	return nil
}

func (t *scheduleTx) UpdateSchedule(ctx context.Context, schedule *model.Schedule) error {
	schedule.UpdatedAt = time.Now()
	t.schedule = cloneSchedule(schedule)
	t.scheduleDirty = true
	return nil
}

func (t *scheduleTx) InsertEvent(ctx context.Context, event *model.AppointmentEvent) error {
	t.store.mu.RLock()
	hook := t.store.eventInsertHook
	t.store.mu.RUnlock()
	if hook != nil {
		if err := hook(event); err != nil {
			return err
		}
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	t.events = append(t.events, cloneEvent(event))
	return nil
}
