package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/registration-api/internal/model"
	"github.com/clinicdesk/registration-api/internal/repository"
	"github.com/clinicdesk/registration-api/internal/service/event"
	"github.com/clinicdesk/registration-api/pkg/logger"
)

// Service controls a schedule's session lifecycle. Pause and resume flip the
// calling gate; End closes the session and reconciles every outstanding
// appointment in one atomic unit.
type Service struct {
	store    repository.Store
	notifier event.Notifier
	logger   *logger.Logger
}

func NewService(store repository.Store, notifier event.Notifier, logger *logger.Logger) *Service {
	if notifier == nil {
		notifier = event.NopNotifier{}
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Pause suspends calling on an open schedule. Booking and check-in continue;
// only call-next is gated.
func (s *Service) Pause(ctx context.Context, actor model.Actor, scheduleID uuid.UUID) (*model.Schedule, error) {
	return s.flip(ctx, scheduleID, func(schedule *model.Schedule) error {
		switch schedule.Status {
		case model.ScheduleStatusPaused:
			return nil
		case model.ScheduleStatusEnded:
			return model.ErrSessionEnded
		case model.ScheduleStatusOpen:
			schedule.Status = model.ScheduleStatusPaused
			return nil
		default:
			return model.ErrInvalidTransition
		}
	})
}

// Resume reopens a paused schedule. The first resume of a session stamps
// open_at if the schedule was created without one.
func (s *Service) Resume(ctx context.Context, actor model.Actor, scheduleID uuid.UUID) (*model.Schedule, error) {
	return s.flip(ctx, scheduleID, func(schedule *model.Schedule) error {
		switch schedule.Status {
		case model.ScheduleStatusOpen:
			return nil
		case model.ScheduleStatusEnded:
			return model.ErrSessionEnded
		case model.ScheduleStatusPaused:
			schedule.Status = model.ScheduleStatusOpen
			if schedule.OpenAt == nil {
				now := time.Now()
				schedule.OpenAt = &now
			}
			return nil
		default:
			return model.ErrInvalidTransition
		}
	})
}

func (s *Service) flip(ctx context.Context, scheduleID uuid.UUID, change func(*model.Schedule) error) (*model.Schedule, error) {
	var out *model.Schedule
	err := s.store.WithScheduleLock(ctx, scheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		schedule := tx.Schedule()
		before := schedule.Status
		if err := change(schedule); err != nil {
			return err
		}
		if schedule.Status == before {
			out = schedule
			return nil
		}
		schedule.UpdatedAt = time.Now()
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return fmt.Errorf("failed to update schedule: %w", err)
		}
		out = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EndResult reports what the end-of-session reconciliation did.
type EndResult struct {
	Schedule  *model.Schedule `json:"schedule"`
	Completed int             `json:"completed"`
	Cancelled int             `json:"cancelled"`
}

// End closes the session permanently. The in-progress consultation, if any,
// is completed and every appointment still waiting is cancelled; the status
// flip and the whole sweep commit together or not at all. Every generated
// event is marked automatic so the audit trail distinguishes the sweep from
// human actions.
func (s *Service) End(ctx context.Context, actor model.Actor, scheduleID uuid.UUID) (*EndResult, error) {
	var result *EndResult
	err := s.store.WithScheduleLock(ctx, scheduleID, func(ctx context.Context, tx repository.ScheduleTx) error {
		schedule := tx.Schedule()
		if schedule.Status == model.ScheduleStatusEnded {
			return model.ErrSessionEnded
		}

		now := time.Now()
		outstanding, err := tx.ListOutstanding(ctx)
		if err != nil {
			return fmt.Errorf("failed to list outstanding appointments: %w", err)
		}

		res := &EndResult{Schedule: schedule}
		payload := model.JSONMap{"automatic": true, "reason": "session_ended"}
		for _, apt := range outstanding {
			var kind model.EventKind
			switch apt.Status {
			case model.AppointmentStatusInProgress:
				apt.Status = model.AppointmentStatusCompleted
				apt.CompletedAt = &now
				kind = model.EventCompleted
				res.Completed++
			default:
				apt.Status = model.AppointmentStatusCancelled
				apt.CancelledAt = &now
				kind = model.EventCancelled
				res.Cancelled++
			}
			apt.UpdatedAt = now
			if err := tx.UpdateAppointment(ctx, apt); err != nil {
				return fmt.Errorf("failed to reconcile appointment: %w", err)
			}
			if err := tx.InsertEvent(ctx, model.NewAppointmentEvent(apt, kind, actor, payload)); err != nil {
				return fmt.Errorf("failed to record reconciliation event: %w", err)
			}
		}

		schedule.Status = model.ScheduleStatusEnded
		schedule.CloseAt = &now
		schedule.UpdatedAt = now
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return fmt.Errorf("failed to close schedule: %w", err)
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"schedule_id": scheduleID,
		"completed":   result.Completed,
		"cancelled":   result.Cancelled,
	}).Info("session ended")
	return result, nil
}
