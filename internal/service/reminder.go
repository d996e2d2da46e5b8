package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/metrics"
)

// ReminderGate decides whether this caller is the one that dispatches a
// reminder for an (event, class) pair. The claim is a single conditional
// write; there is no unclaim.
type ReminderGate struct {
	repo  domain.Repository
	audit *audit.Logger
	log   zerolog.Logger
}

func NewReminderGate(repo domain.Repository, auditLog *audit.Logger, log zerolog.Logger) *ReminderGate {
	return &ReminderGate{repo: repo, audit: auditLog, log: log}
}

// TryClaimReminder reports whether the caller won the claim. When the store
// is unreachable the gate fails open: a duplicate reminder beats a silently
// dropped one.
func (g *ReminderGate) TryClaimReminder(ctx context.Context, eventID uuid.UUID, class string) bool {
	claimed, err := g.repo.ClaimReminder(ctx, eventID, class)
	if err != nil {
		metrics.RecordReminderClaim("fail_open")
		g.log.Warn().Err(err).
			Str("event_id", eventID.String()).
			Str("class", class).
			Msg("reminder claim store unreachable, failing open")
		return true
	}
	if !claimed {
		metrics.RecordReminderClaim("duplicate")
		return false
	}
	metrics.RecordReminderClaim("claimed")
	g.audit.ReminderClaimed(ctx, eventID, class)
	return true
}
