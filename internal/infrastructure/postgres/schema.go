package postgres

import "context"

// EnsureSchema creates the tables this service owns. Idempotent; used by
// integration tests and dev bootstrap. Production deployments run the same
// DDL through their migration tooling.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS events (
    id          UUID PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    date        TEXT NOT NULL,
    end_date    TEXT NOT NULL DEFAULT '',
    start_time  TEXT NOT NULL DEFAULT '',
    end_time    TEXT NOT NULL DEFAULT '',
    timezone    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'upcoming',
    signed_up   INT  NOT NULL DEFAULT 0,
    created_by  UUID NOT NULL,
    start_at    TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_status_start_at ON events (status, start_at);

CREATE TABLE IF NOT EXISTS event_roles (
    id               UUID PRIMARY KEY,
    event_id         UUID NOT NULL,
    name             TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    max_participants INT  NOT NULL,
    position         INT  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_event_roles_event ON event_roles (event_id);

CREATE TABLE IF NOT EXISTS registrations (
    id               UUID PRIMARY KEY,
    event_id         UUID NOT NULL,
    role_id          UUID NOT NULL,
    user_id          UUID NOT NULL,
    notes            TEXT NOT NULL DEFAULT '',
    role_name        TEXT NOT NULL DEFAULT '',
    role_description TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (event_id, role_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_registrations_event_role ON registrations (event_id, role_id);
CREATE INDEX IF NOT EXISTS idx_registrations_user ON registrations (user_id);

CREATE TABLE IF NOT EXISTS guest_registrations (
    id         UUID PRIMARY KEY,
    event_id   UUID NOT NULL,
    role_id    UUID NOT NULL,
    full_name  TEXT NOT NULL,
    email      TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_guest_registrations_event_role ON guest_registrations (event_id, role_id);

CREATE TABLE IF NOT EXISTS event_organizers (
    event_id UUID NOT NULL,
    user_id  UUID NOT NULL,
    PRIMARY KEY (event_id, user_id)
);

CREATE TABLE IF NOT EXISTS program_events (
    program_id UUID NOT NULL,
    event_id   UUID NOT NULL,
    PRIMARY KEY (program_id, event_id)
);

CREATE TABLE IF NOT EXISTS event_reminders (
    event_id UUID NOT NULL,
    class    TEXT NOT NULL,
    sent_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (event_id, class)
);
`
