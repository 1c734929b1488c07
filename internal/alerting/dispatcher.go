package alerting

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldsentry/backend/internal/notify"
)

// Dispatcher drains the notification queue in the background and hands tasks
// to the outbound channel. Each task is retried a few times with linear
// backoff; a task that still fails is logged and dropped: the officer's next
// ping re-evaluates the condition and may re-trigger it.
type Dispatcher struct {
	Queue      *RedisQueue
	Notifier   notify.Notifier
	Logger     zerolog.Logger
	MaxRetries int
}

func (d *Dispatcher) Run(ctx context.Context) {
	retries := d.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	d.Logger.Info().Msg("notification dispatcher started")
	for {
		task, err := d.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.Logger.Info().Msg("notification dispatcher stopped")
				return
			}
			d.Logger.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		go d.process(ctx, task, retries)
	}
}

func (d *Dispatcher) process(ctx context.Context, task Task, retries int) {
	var (
		outcome notify.Outcome
		err     error
	)
	for attempt := 1; attempt <= retries; attempt++ {
		if task.Channel == "call" {
			outcome, err = d.Notifier.SendVoiceCall(ctx, task.To, task.Text)
		} else {
			outcome, err = d.Notifier.SendMessage(ctx, task.To, task.Text)
		}
		if err == nil {
			d.Logger.Info().
				Str("kind", task.Kind).
				Str("channel", task.Channel).
				Str("to", task.To).
				Str("provider_id", outcome.ProviderID).
				Msg("notification sent")
			return
		}
		d.Logger.Warn().Err(err).
			Str("kind", task.Kind).
			Int("attempt", attempt).
			Msg("notification send failed")
		if ctx.Err() != nil {
			return
		}
		time.Sleep(time.Duration(2*attempt-1) * time.Second)
	}
	d.Logger.Error().
		Str("kind", task.Kind).
		Str("channel", task.Channel).
		Str("to", task.To).
		Msg("giving up on notification")
}
