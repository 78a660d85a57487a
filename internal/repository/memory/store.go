// Package memory implements the repository interfaces against in-process
// maps. It backs the test suite and local development runs; semantics mirror
// the postgres implementation, including all-or-nothing schedule
// transactions and per-schedule lock scope.
package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
)

type Store struct {
	mu sync.RWMutex

	schedules     map[uuid.UUID]*model.Schedule
	appointments  map[uuid.UUID]*model.Appointment
	events        []*model.AppointmentEvent
	patients      map[uuid.UUID]*model.Patient
	familyMembers map[uuid.UUID]*model.FamilyMember
	doctors       map[uuid.UUID]*model.Doctor
	users         map[uuid.UUID]*model.User

	lockMu        sync.Mutex
	scheduleLocks map[uuid.UUID]*sync.Mutex

	// eventInsertHook lets tests inject a failure mid-batch to verify that
	// schedule transactions leave no partial state behind.
	eventInsertHook func(*model.AppointmentEvent) error
}

func NewStore() *Store {
	return &Store{
		schedules:     make(map[uuid.UUID]*model.Schedule),
		appointments:  make(map[uuid.UUID]*model.Appointment),
		patients:      make(map[uuid.UUID]*model.Patient),
		familyMembers: make(map[uuid.UUID]*model.FamilyMember),
		doctors:       make(map[uuid.UUID]*model.Doctor),
		users:         make(map[uuid.UUID]*model.User),
		scheduleLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetEventInsertHook installs a fault-injection hook for tests.
func (s *Store) SetEventInsertHook(hook func(*model.AppointmentEvent) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventInsertHook = hook
}

func (s *Store) scheduleLock(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.scheduleLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.scheduleLocks[id] = lock
	}
	return lock
}

func cloneSchedule(in *model.Schedule) *model.Schedule {
	out := *in
	if in.OpenAt != nil {
		t := *in.OpenAt
		out.OpenAt = &t
	}
	if in.CloseAt != nil {
		t := *in.CloseAt
		out.CloseAt = &t
	}
	return &out
}

func cloneAppointment(in *model.Appointment) *model.Appointment {
	out := *in
	if in.FamilyMemberID != nil {
		id := *in.FamilyMemberID
		out.FamilyMemberID = &id
	}
	if in.CheckInAt != nil {
		t := *in.CheckInAt
		out.CheckInAt = &t
	}
	if in.CompletedAt != nil {
		t := *in.CompletedAt
		out.CompletedAt = &t
	}
	if in.CancelledAt != nil {
		t := *in.CancelledAt
		out.CancelledAt = &t
	}
	return &out
}

func cloneEvent(in *model.AppointmentEvent) *model.AppointmentEvent {
	out := *in
	if in.ActorID != nil {
		id := *in.ActorID
		out.ActorID = &id
	}
	if in.Payload != nil {
		payload := make(model.JSONMap, len(in.Payload))
		for k, v := range in.Payload {
			payload[k] = v
		}
		out.Payload = payload
	}
	return &out
}

// Seeding helpers used by tests and the development seeder.

func (s *Store) AddSchedule(schedule *model.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	s.schedules[schedule.ID] = cloneSchedule(schedule)
}

func (s *Store) AddPatient(patient *model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	p := *patient
	s.patients[patient.ID] = &p
}

func (s *Store) AddFamilyMember(member *model.FamilyMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	m := *member
	s.familyMembers[member.ID] = &m
}

func (s *Store) AddDoctor(doctor *model.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	d := *doctor
	s.doctors[doctor.ID] = &d
}

func (s *Store) AddUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	u := *user
	s.users[user.ID] = &u
}

func (s *Store) appointmentsForSchedule(scheduleID uuid.UUID) []*model.Appointment {
	var result []*model.Appointment
	for _, apt := range s.appointments {
		if apt.ScheduleID == scheduleID {
			result = append(result, cloneAppointment(apt))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].QueueNumber < result[j].QueueNumber
	})
	return result
}
