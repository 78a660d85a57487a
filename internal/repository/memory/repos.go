package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
)

// ScheduleRepository

func (s *Store) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.schedules {
		if existing.DoctorID == schedule.DoctorID &&
			existing.Date.Equal(schedule.Date) &&
			existing.Session == schedule.Session {
			return model.ErrScheduleExists
		}
	}

	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, model.ErrScheduleNotFound
	}
	return cloneSchedule(schedule), nil
}

func (s *Store) ListSchedules(ctx context.Context, filter *model.ScheduleFilter) ([]*model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Schedule
	for _, schedule := range s.schedules {
		if filter != nil {
			if filter.Date != nil && !sameDay(schedule.Date, *filter.Date) {
				continue
			}
			if filter.DepartmentID != nil && schedule.DepartmentID != *filter.DepartmentID {
				continue
			}
			if filter.DoctorID != nil && schedule.DoctorID != *filter.DoctorID {
				continue
			}
			if filter.BookableOnly && !schedule.Status.Bookable() {
				continue
			}
		}
		result = append(result, cloneSchedule(schedule))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Session < result[j].Session
	})
	return result, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (s *Store) CountActiveAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, apt := range s.appointments {
		if apt.ScheduleID == scheduleID && apt.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountAppointments(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, apt := range s.appointments {
		if apt.ScheduleID == scheduleID {
			count++
		}
	}
	return count, nil
}

// AppointmentRepository

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apt, ok := s.appointments[id]
	if !ok {
		return nil, model.ErrAppointmentNotFound
	}
	return cloneAppointment(apt), nil
}

func (s *Store) ListAppointmentsBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appointmentsForSchedule(scheduleID), nil
}

func (s *Store) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Appointment
	for _, apt := range s.appointments {
		if apt.PatientID == patientID {
			result = append(result, cloneAppointment(apt))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) HasActiveForPatient(ctx context.Context, scheduleID, patientID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, apt := range s.appointments {
		if apt.ScheduleID == scheduleID && apt.PatientID == patientID && apt.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Transition(ctx context.Context, apt *model.Appointment, expect model.AppointmentStatus, event *model.AppointmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appointments[apt.ID]
	if !ok {
		return model.ErrAppointmentNotFound
	}
	if current.Status != expect {
		return model.ErrInvalidTransition
	}

	if event != nil && s.eventInsertHook != nil {
		if err := s.eventInsertHook(event); err != nil {
			return err
		}
	}

	apt.UpdatedAt = time.Now()
	s.appointments[apt.ID] = cloneAppointment(apt)

	if event != nil {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now()
		}
		s.events = append(s.events, cloneEvent(event))
	}
	return nil
}

func (s *Store) ListReservedBetween(ctx context.Context, from, to time.Time) ([]*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Appointment
	for _, apt := range s.appointments {
		if apt.Status != model.AppointmentStatusReserved {
			continue
		}
		schedule, ok := s.schedules[apt.ScheduleID]
		if !ok {
			continue
		}
		if schedule.Date.Before(from) || !schedule.Date.Before(to) {
			continue
		}
		result = append(result, cloneAppointment(apt))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CountByStatus(ctx context.Context, filter *model.ReportFilter) ([]*model.ReportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		date    time.Time
		doctor  uuid.UUID
		session model.Session
		status  model.AppointmentStatus
	}
	counts := make(map[key]int)
	for _, apt := range s.appointments {
		schedule, ok := s.schedules[apt.ScheduleID]
		if !ok {
			continue
		}
		if filter != nil {
			if filter.From != nil && schedule.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && schedule.Date.After(*filter.To) {
				continue
			}
			if filter.DoctorID != nil && schedule.DoctorID != *filter.DoctorID {
				continue
			}
		}
		counts[key{schedule.Date, schedule.DoctorID, schedule.Session, apt.Status}]++
	}

	rows := make([]*model.ReportRow, 0, len(counts))
	for k, count := range counts {
		rows = append(rows, &model.ReportRow{
			Date:     k.date,
			DoctorID: k.doctor,
			Session:  k.session,
			Status:   k.status,
			Count:    count,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Session < rows[j].Session
	})
	return rows, nil
}

// EventRepository

func (s *Store) InsertEvent(ctx context.Context, event *model.AppointmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *Store) ListEventsBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*model.AppointmentEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.AppointmentEvent
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		if s.events[i].ScheduleID == scheduleID {
			result = append(result, cloneEvent(s.events[i]))
		}
	}
	return result, nil
}

func (s *Store) ListEventsByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.AppointmentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.AppointmentEvent
	for _, event := range s.events {
		if event.AppointmentID == appointmentID {
			result = append(result, cloneEvent(event))
		}
	}
	return result, nil
}

// Directory repositories

func (s *Store) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patient, ok := s.patients[id]
	if !ok {
		return nil, model.ErrPatientNotFound
	}
	p := *patient
	return &p, nil
}

func (s *Store) GetPatientByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, patient := range s.patients {
		if patient.UserID == userID {
			p := *patient
			return &p, nil
		}
	}
	return nil, model.ErrPatientNotFound
}

func (s *Store) GetFamilyMember(ctx context.Context, id uuid.UUID) (*model.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.familyMembers[id]
	if !ok {
		return nil, model.ErrFamilyMemberNotFound
	}
	m := *member
	return &m, nil
}

func (s *Store) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doctor, ok := s.doctors[id]
	if !ok {
		return nil, model.ErrDoctorNotFound
	}
	d := *doctor
	return &d, nil
}

func (s *Store) GetDoctorByUser(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doctor := range s.doctors {
		if doctor.UserID == userID {
			d := *doctor
			return &d, nil
		}
	}
	return nil, model.ErrDoctorNotFound
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := *user
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}
