package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/registration-api/internal/model"
)

const defaultChannel = "clinic:queue-updates"

// QueueUpdate is the fan-out payload published after a queue change commits.
// Dashboards subscribe per schedule; the payload carries enough to update a
// board row without a follow-up read.
type QueueUpdate struct {
	ScheduleID    uuid.UUID               `json:"schedule_id"`
	AppointmentID uuid.UUID               `json:"appointment_id,omitempty"`
	Kind          model.EventKind         `json:"kind"`
	QueueNumber   int                     `json:"queue_number,omitempty"`
	Status        model.AppointmentStatus `json:"status,omitempty"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

// Notifier fans a queue update out to listeners. Implementations must never
// fail the caller: the update is advisory and the state change has already
// committed by the time Publish runs.
type Notifier interface {
	Publish(ctx context.Context, update QueueUpdate)
}

// NopNotifier drops every update. Used when Redis is not configured and as
// the default when services are built without a notifier.
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, update QueueUpdate) {}

// RedisNotifier publishes queue updates as JSON on a per-schedule Redis
// channel. Publish failures are logged and swallowed.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger zerolog.Logger) *RedisNotifier {
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, update QueueUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		n.logger.Error().Err(err).
			Str("schedule_id", update.ScheduleID.String()).
			Msg("failed to encode queue update")
		return
	}
	if err := n.client.Publish(ctx, n.channelFor(update.ScheduleID), payload).Err(); err != nil {
		n.logger.Error().Err(err).
			Str("schedule_id", update.ScheduleID.String()).
			Str("kind", string(update.Kind)).
			Msg("failed to publish queue update")
	}
}

func (n *RedisNotifier) channelFor(scheduleID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", n.channel, scheduleID)
}
