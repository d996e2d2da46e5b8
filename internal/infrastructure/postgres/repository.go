package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -------------------------
// Counter policy:
// events.signed_up is only ever touched by single-statement increments and
// decrements inside the same transaction as the registration write, or by
// RecalculateSignedUp, which writes only when the derived count differs.
// It is never read, modified and written back in separate steps.
// -------------------------

func (r *Repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	ev := &domain.Event{}
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, date, end_date, start_time, end_time, timezone,
		       status, signed_up, created_by, created_at, updated_at
		FROM events
		WHERE id = $1
	`, eventID).Scan(
		&ev.ID, &ev.Title, &ev.Date, &ev.EndDate, &ev.StartTime, &ev.EndTime, &ev.Timezone,
		&status, &ev.SignedUp, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	ev.Status = domain.EventStatus(status)

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, max_participants
		FROM event_roles
		WHERE event_id = $1
		ORDER BY position, id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.MaxParticipants); err != nil {
			return nil, err
		}
		ev.Roles = append(ev.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orgRows, err := r.pool.Query(ctx, `SELECT user_id FROM event_organizers WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer orgRows.Close()
	for orgRows.Next() {
		var id uuid.UUID
		if err := orgRows.Scan(&id); err != nil {
			return nil, err
		}
		ev.Organizers = append(ev.Organizers, id)
	}
	if err := orgRows.Err(); err != nil {
		return nil, err
	}

	progRows, err := r.pool.Query(ctx, `SELECT program_id FROM program_events WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer progRows.Close()
	for progRows.Next() {
		var id uuid.UUID
		if err := progRows.Scan(&id); err != nil {
			return nil, err
		}
		ev.ProgramIDs = append(ev.ProgramIDs, id)
	}
	return ev, progRows.Err()
}

// RoleOccupancy counts live registrations plus live guest registrations for
// the (event, role) pair. Guests occupy seats the same as account holders.
func (r *Repository) RoleOccupancy(ctx context.Context, eventID, roleID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM registrations WHERE event_id = $1 AND role_id = $2)
		     + (SELECT count(*) FROM guest_registrations WHERE event_id = $1 AND role_id = $2)
	`, eventID, roleID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repository) FindRegistration(ctx context.Context, eventID, userID, roleID uuid.UUID) (*domain.Registration, error) {
	reg := &domain.Registration{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, role_id, user_id, notes, role_name, role_description, created_at
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND role_id = $3
	`, eventID, userID, roleID).Scan(
		&reg.ID, &reg.EventID, &reg.RoleID, &reg.UserID,
		&reg.Notes, &reg.RoleName, &reg.RoleDescription, &reg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reg, nil
}

func (r *Repository) InsertRegistration(ctx context.Context, reg *domain.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO registrations (id, event_id, role_id, user_id, notes, role_name, role_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, role_id, user_id) DO NOTHING
	`, reg.ID, reg.EventID, reg.RoleID, reg.UserID, reg.Notes, reg.RoleName, reg.RoleDescription, reg.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyRegistered
	}

	_, err = tx.Exec(ctx, `
		UPDATE events SET signed_up = signed_up + 1, updated_at = NOW() WHERE id = $1
	`, reg.EventID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) DeleteRegistration(ctx context.Context, eventID, userID, roleID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND role_id = $3
	`, eventID, userID, roleID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// delete-if-exists: concurrent cancels on the same row are naturally
		// idempotent, and the counter stays untouched.
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE events SET signed_up = GREATEST(signed_up - 1, 0), updated_at = NOW() WHERE id = $1
	`, eventID)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// MoveRegistration rewrites the role reference in one conditional statement.
// The update only matches while the target role still has a free seat, so a
// concurrent writer that takes the last seat makes this a no-op rather than
// an oversell. The caller re-derives the cause when no row matched.
func (r *Repository) MoveRegistration(ctx context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID, targetMax int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE registrations reg
		SET role_id = $4,
		    role_name = COALESCE((SELECT name FROM event_roles WHERE id = $4), reg.role_name),
		    role_description = COALESCE((SELECT description FROM event_roles WHERE id = $4), reg.role_description)
		WHERE reg.event_id = $1 AND reg.user_id = $2 AND reg.role_id = $3
		  AND (SELECT count(*) FROM registrations WHERE event_id = $1 AND role_id = $4)
		    + (SELECT count(*) FROM guest_registrations WHERE event_id = $1 AND role_id = $4)
		    < $5
	`, eventID, userID, fromRoleID, toRoleID, targetMax)
	if err != nil {
		return false, fmt.Errorf("move registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) InsertGuestRegistration(ctx context.Context, g *domain.GuestRegistration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO guest_registrations (id, event_id, role_id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.EventID, g.RoleID, g.FullName, g.Email, g.Phone, g.CreatedAt)
	return err
}
