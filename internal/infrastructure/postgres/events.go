package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/google/uuid"
)

func (r *Repository) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status domain.EventStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid event status %q", status)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1
	`, eventID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// RecalculateSignedUp reconciles the denormalized counter against the
// authoritative registration count. Idempotent: the statement matches zero
// rows when the stored value is already correct.
func (r *Repository) RecalculateSignedUp(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE events e
		SET signed_up = sub.cnt, updated_at = NOW()
		FROM (SELECT count(*) AS cnt FROM registrations WHERE event_id = $1) sub
		WHERE e.id = $1 AND e.signed_up <> sub.cnt
	`, eventID)
	return err
}

// ListUpcomingWithin returns upcoming events whose start instant falls inside
// (now, now+within]. Roles are not loaded; the reminder scan does not need
// them.
func (r *Repository) ListUpcomingWithin(ctx context.Context, within time.Duration) ([]*domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, date, end_date, start_time, end_time, timezone,
		       status, signed_up, created_by, created_at, updated_at
		FROM events
		WHERE status = 'upcoming'
		  AND start_at > NOW()
		  AND start_at <= NOW() + $1
		ORDER BY start_at
	`, within)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		ev := &domain.Event{}
		var status string
		if err := rows.Scan(
			&ev.ID, &ev.Title, &ev.Date, &ev.EndDate, &ev.StartTime, &ev.EndTime, &ev.Timezone,
			&status, &ev.SignedUp, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ev.Status = domain.EventStatus(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateEvent persists a new event with its roles and co-organizers. The
// CRUD surface that normally calls this lives outside this service; it is
// kept on the repository for seeding and for the lifecycle helpers.
func (r *Repository) CreateEvent(ctx context.Context, ev *domain.Event) error {
	startAt, err := ev.StartAt()
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, title, date, end_date, start_time, end_time, timezone,
		                    status, signed_up, created_by, start_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`, ev.ID, ev.Title, ev.Date, ev.EndDate, ev.StartTime, ev.EndTime, ev.Timezone,
		string(ev.Status), ev.SignedUp, ev.CreatedBy, startAt)
	if err != nil {
		return err
	}

	for i, role := range ev.Roles {
		_, err = tx.Exec(ctx, `
			INSERT INTO event_roles (id, event_id, name, description, max_participants, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, role.ID, ev.ID, role.Name, role.Description, role.MaxParticipants, i)
		if err != nil {
			return err
		}
	}

	for _, org := range ev.Organizers {
		_, err = tx.Exec(ctx, `
			INSERT INTO event_organizers (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, ev.ID, org)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
