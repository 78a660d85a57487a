package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/clinicdesk/registration-api/internal/model"
)

func TestRedisNotifierChannelPerSchedule(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	scheduleID := uuid.New()

	n := NewRedisNotifier(client, "", zerolog.Nop())
	assert.Equal(t, "clinic:queue-updates:"+scheduleID.String(), n.channelFor(scheduleID))

	n = NewRedisNotifier(client, "board", zerolog.Nop())
	assert.Equal(t, "board:"+scheduleID.String(), n.channelFor(scheduleID))
}

func TestRedisNotifierSwallowsPublishFailure(t *testing.T) {
	// Nothing listens on this address; the fan-out is advisory, so the
	// failed publish must return without surfacing anything to the caller.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n := NewRedisNotifier(client, "", zerolog.Nop())
	n.Publish(ctx, QueueUpdate{
		ScheduleID:    uuid.New(),
		AppointmentID: uuid.New(),
		Kind:          model.EventBooked,
		QueueNumber:   1,
		Status:        model.AppointmentStatusReserved,
		OccurredAt:    time.Now(),
	})
}
