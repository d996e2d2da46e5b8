package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/service"
)

// ReminderWorker periodically scans for upcoming events inside the reminder
// lead window and dispatches at most one reminder per (event, class). The
// dedup gate is what makes overlapping ticks and multiple worker instances
// safe.
type ReminderWorker struct {
	repo     domain.Repository
	gate     *service.ReminderGate
	notifier domain.Notifier
	log      zerolog.Logger

	lead     time.Duration
	interval time.Duration
}

func NewReminderWorker(
	repo domain.Repository,
	gate *service.ReminderGate,
	notifier domain.Notifier,
	log zerolog.Logger,
	lead, interval time.Duration,
) *ReminderWorker {
	return &ReminderWorker{
		repo:     repo,
		gate:     gate,
		notifier: notifier,
		log:      log.With().Str("component", "reminder_worker").Logger(),
		lead:     lead,
		interval: interval,
	}
}

// class names the reminder window. Duration formatting keeps distinct
// leads in distinct classes, so a 90m worker never shares claims with a
// 1h one.
func (w *ReminderWorker) class() string {
	return w.lead.String()
}

func (w *ReminderWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				w.log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if err := w.sweep(ctx); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						w.log.Warn().Err(err).Msg("reminder sweep failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

func (w *ReminderWorker) sweep(ctx context.Context) error {
	events, err := w.repo.ListUpcomingWithin(ctx, w.lead)
	if err != nil {
		return fmt.Errorf("list upcoming events: %w", err)
	}

	class := w.class()
	for _, ev := range events {
		if !w.gate.TryClaimReminder(ctx, ev.ID, class) {
			continue
		}
		if err := w.notifier.OnReminderDue(ctx, ev.ID, class); err != nil {
			// The claim stands; reminders are not retried within a class.
			w.log.Error().Err(err).
				Str("event_id", ev.ID.String()).
				Str("class", class).
				Msg("reminder dispatch failed after claim")
			continue
		}
		w.log.Info().
			Str("event_id", ev.ID.String()).
			Str("class", class).
			Msg("reminder dispatched")
	}
	return nil
}
