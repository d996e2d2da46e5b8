package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/metrics"
)

// Deleter removes an event together with everything that exists only because
// of it.
type Deleter struct {
	repo  domain.Repository
	cache domain.Cache
	audit *audit.Logger
	log   zerolog.Logger
}

func NewDeleter(repo domain.Repository, cache domain.Cache, auditLog *audit.Logger, log zerolog.Logger) *Deleter {
	return &Deleter{repo: repo, cache: cache, audit: auditLog, log: log}
}

// DeleteEventFully cascades the delete in one transaction and reports how
// many registrations and guest registrations went with the event. Cache
// invalidation happens only after the whole cascade committed.
func (d *Deleter) DeleteEventFully(ctx context.Context, eventID uuid.UUID) (domain.CascadeResult, error) {
	res, err := d.repo.DeleteEventCascade(ctx, eventID)
	if err != nil {
		return domain.CascadeResult{}, err
	}

	if d.cache != nil {
		if err := d.cache.InvalidateEvent(ctx, eventID); err != nil {
			d.log.Warn().Err(err).Str("event_id", eventID.String()).Msg("event cache invalidation failed")
		}
		if err := d.cache.InvalidateAnalytics(ctx); err != nil {
			d.log.Warn().Err(err).Msg("analytics cache invalidation failed")
		}
	}

	d.audit.EventDeleted(ctx, eventID, res.DeletedRegistrations, res.DeletedGuestRegistrations)
	metrics.RecordCascadeDeletion()
	return res, nil
}
