package postgres

import (
	"context"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/google/uuid"
)

// DeleteEventCascade removes the event and every dependent record in one
// transaction: registrations, guest registrations, program back-references,
// reminder flags, organizers and roles. All-or-nothing from the caller's
// perspective; the returned counts cover the two registration kinds.
func (r *Repository) DeleteEventCascade(ctx context.Context, eventID uuid.UUID) (domain.CascadeResult, error) {
	var res domain.CascadeResult

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return res, err
	}
	res.DeletedRegistrations = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `DELETE FROM guest_registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return res, err
	}
	res.DeletedGuestRegistrations = int(tag.RowsAffected())

	for _, stmt := range []string{
		`DELETE FROM program_events WHERE event_id = $1`,
		`DELETE FROM event_reminders WHERE event_id = $1`,
		`DELETE FROM event_organizers WHERE event_id = $1`,
		`DELETE FROM event_roles WHERE event_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, eventID); err != nil {
			return domain.CascadeResult{}, err
		}
	}

	tag, err = tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return domain.CascadeResult{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.CascadeResult{}, domain.ErrEventNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CascadeResult{}, err
	}
	return res, nil
}
