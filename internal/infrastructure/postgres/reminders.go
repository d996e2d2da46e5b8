package postgres

import (
	"context"

	"github.com/google/uuid"
)

// ClaimReminder is the dedup gate's conditional write: insert the
// (event, class) flag only if absent. Exactly one concurrent caller sees a
// row inserted; everyone else gets false. There is no unclaim.
func (r *Repository) ClaimReminder(ctx context.Context, eventID uuid.UUID, class string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO event_reminders (event_id, class, sent_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id, class) DO NOTHING
	`, eventID, class)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
