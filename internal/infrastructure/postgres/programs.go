package postgres

import (
	"context"

	"github.com/google/uuid"
)

// Program back-references are maintained with per-id add/remove statements
// so two events updating the same program never clobber each other's rows.

func (r *Repository) AddEventToProgram(ctx context.Context, programID, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO program_events (program_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (program_id, event_id) DO NOTHING
	`, programID, eventID)
	return err
}

func (r *Repository) RemoveEventFromProgram(ctx context.Context, programID, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM program_events WHERE program_id = $1 AND event_id = $2
	`, programID, eventID)
	return err
}
