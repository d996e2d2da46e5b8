package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/domain"
)

// ProgramSyncer keeps program back-references consistent with an event's
// program-label set using per-id add/remove operations. A full overwrite
// would clobber concurrent updates from other events touching the same
// program.
type ProgramSyncer struct {
	repo domain.Repository
	log  zerolog.Logger
}

func NewProgramSyncer(repo domain.Repository, log zerolog.Logger) *ProgramSyncer {
	return &ProgramSyncer{repo: repo, log: log}
}

// SyncProgramLabels diffs the old and new program id sets and issues one
// add or remove per changed id.
func (p *ProgramSyncer) SyncProgramLabels(ctx context.Context, eventID uuid.UUID, oldIDs, newIDs []uuid.UUID) error {
	added, removed := domain.DiffIDs(oldIDs, newIDs)

	for _, programID := range added {
		if err := p.repo.AddEventToProgram(ctx, programID, eventID); err != nil {
			return fmt.Errorf("add event %s to program %s: %w", eventID, programID, err)
		}
	}
	for _, programID := range removed {
		if err := p.repo.RemoveEventFromProgram(ctx, programID, eventID); err != nil {
			return fmt.Errorf("remove event %s from program %s: %w", eventID, programID, err)
		}
	}

	if len(added)+len(removed) > 0 {
		p.log.Debug().
			Str("event_id", eventID.String()).
			Int("added", len(added)).
			Int("removed", len(removed)).
			Msg("program back-references synced")
	}
	return nil
}
