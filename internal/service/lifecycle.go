package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/domain"
)

// Reconciler keeps stored event statuses in line with the clock. It runs on
// most read paths, so the matching case does no writes and no invalidation.
type Reconciler struct {
	repo  domain.Repository
	cache domain.Cache
	audit *audit.Logger
	log   zerolog.Logger

	now func() time.Time
}

func NewReconciler(repo domain.Repository, cache domain.Cache, auditLog *audit.Logger, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:  repo,
		cache: cache,
		audit: auditLog,
		log:   log,
		now:   time.Now,
	}
}

// Reconcile compares the event's stored status against its computed temporal
// state and persists the transition when they disagree. Cancelled is terminal
// and never recomputed. The event is updated in place on transition.
func (r *Reconciler) Reconcile(ctx context.Context, ev *domain.Event) (domain.EventStatus, error) {
	if ev.Status == domain.StatusCancelled {
		return domain.StatusCancelled, nil
	}

	computed, err := domain.Classify(ev.Date, ev.EndDate, ev.StartTime, ev.EndTime, ev.Timezone, r.now())
	if err != nil {
		return ev.Status, fmt.Errorf("classify event %s: %w", ev.ID, err)
	}
	if computed == ev.Status {
		return ev.Status, nil
	}

	if err := r.repo.UpdateEventStatus(ctx, ev.ID, computed); err != nil {
		return ev.Status, fmt.Errorf("persist status transition: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.InvalidateEvent(ctx, ev.ID); err != nil {
			r.log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("event cache invalidation failed")
		}
		if err := r.cache.InvalidateAnalytics(ctx); err != nil {
			r.log.Warn().Err(err).Msg("analytics cache invalidation failed")
		}
	}

	r.audit.StatusReconciled(ctx, ev.ID, string(ev.Status), string(computed))
	ev.Status = computed
	return computed, nil
}
