//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/infrastructure/postgres"
)

// Helper: Setup DB connection and reset state.
func setupRepo(t *testing.T) (*postgres.Repository, *pgxpool.Pool) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := postgres.New(pool)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE registrations, guest_registrations, event_reminders, event_organizers, program_events, event_roles, events RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return repo, pool
}

func seedEvent(t *testing.T, repo *postgres.Repository, roleCaps ...int) *domain.Event {
	t.Helper()
	tomorrow := time.Now().Add(24 * time.Hour)

	roles := make([]domain.Role, 0, len(roleCaps))
	for _, cap := range roleCaps {
		roles = append(roles, domain.Role{ID: uuid.New(), Name: "role", MaxParticipants: cap})
	}
	ev := &domain.Event{
		ID:        uuid.New(),
		Title:     "integration test event",
		Date:      tomorrow.Format("2006-01-02"),
		EndDate:   tomorrow.Format("2006-01-02"),
		StartTime: "10:00",
		EndTime:   "12:00",
		Timezone:  "UTC",
		Status:    domain.StatusUpcoming,
		Roles:     roles,
		CreatedBy: uuid.New(),
	}
	require.NoError(t, repo.CreateEvent(context.Background(), ev))
	return ev
}

func insertReg(t *testing.T, repo *postgres.Repository, ev *domain.Event, roleID, userID uuid.UUID) {
	t.Helper()
	err := repo.InsertRegistration(context.Background(), &domain.Registration{
		ID: uuid.New(), EventID: ev.ID, RoleID: roleID, UserID: userID,
	})
	require.NoError(t, err)
}

func TestInsertRegistration_DuplicateRejected(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 5)
	userID := uuid.New()

	insertReg(t, repo, ev, ev.Roles[0].ID, userID)

	err := repo.InsertRegistration(ctx, &domain.Registration{
		ID: uuid.New(), EventID: ev.ID, RoleID: ev.Roles[0].ID, UserID: userID,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	got, err := repo.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SignedUp)
}

func TestDeleteRegistration_CounterNeverNegative(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 5)
	userID := uuid.New()

	insertReg(t, repo, ev, ev.Roles[0].ID, userID)

	deleted, err := repo.DeleteRegistration(ctx, ev.ID, userID, ev.Roles[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteRegistration(ctx, ev.ID, userID, ev.Roles[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := repo.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SignedUp)
}

// The conditional move only matches while the target has a free seat, so
// concurrent moves into a single-seat role admit exactly one.
func TestMoveRegistration_ConditionalOnTargetCapacity(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 5, 1)
	source, target := ev.Roles[0], ev.Roles[1]

	users := make([]uuid.UUID, 3)
	for i := range users {
		users[i] = uuid.New()
		insertReg(t, repo, ev, source.ID, users[i])
	}

	var (
		wg    sync.WaitGroup
		moved atomic.Int32
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			ok, err := repo.MoveRegistration(ctx, ev.ID, userID, source.ID, target.ID, target.MaxParticipants)
			assert.NoError(t, err)
			if ok {
				moved.Add(1)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, int32(1), moved.Load())

	occ, err := repo.RoleOccupancy(ctx, ev.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, occ)
}

func TestClaimReminder_SingleWinnerAcrossConnections(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 1)

	const claimers = 10
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimReminder(ctx, ev.ID, "24h")
			assert.NoError(t, err)
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	// a different class is an independent flag
	claimed, err := repo.ClaimReminder(ctx, ev.ID, "1h")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDeleteEventCascade_CountsAndResiduals(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 10)
	roleID := ev.Roles[0].ID

	for i := 0; i < 3; i++ {
		insertReg(t, repo, ev, roleID, uuid.New())
	}
	for i := 0; i < 2; i++ {
		err := repo.InsertGuestRegistration(ctx, &domain.GuestRegistration{
			ID: uuid.New(), EventID: ev.ID, RoleID: roleID,
			FullName: "Guest", Email: "guest@example.com",
		})
		require.NoError(t, err)
	}
	programID := uuid.New()
	require.NoError(t, repo.AddEventToProgram(ctx, programID, ev.ID))

	res, err := repo.DeleteEventCascade(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DeletedRegistrations)
	assert.Equal(t, 2, res.DeletedGuestRegistrations)

	_, err = repo.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	for _, table := range []string{"registrations", "guest_registrations", "program_events", "event_roles", "event_organizers", "event_reminders"} {
		var n int
		require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM "+table+" WHERE event_id = $1", ev.ID).Scan(&n))
		assert.Zero(t, n, "residual rows in %s", table)
	}

	_, err = repo.DeleteEventCascade(ctx, ev.ID)
	assert.True(t, errors.Is(err, domain.ErrEventNotFound))
}

func TestRecalculateSignedUp_WritesOnlyOnDrift(t *testing.T) {
	repo, pool := setupRepo(t)
	ctx := context.Background()
	ev := seedEvent(t, repo, 5)

	insertReg(t, repo, ev, ev.Roles[0].ID, uuid.New())
	insertReg(t, repo, ev, ev.Roles[0].ID, uuid.New())

	// force drift
	_, err := pool.Exec(ctx, "UPDATE events SET signed_up = 99 WHERE id = $1", ev.ID)
	require.NoError(t, err)

	require.NoError(t, repo.RecalculateSignedUp(ctx, ev.ID))

	got, err := repo.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SignedUp)

	// idempotent when already correct
	require.NoError(t, repo.RecalculateSignedUp(ctx, ev.ID))
	got, err = repo.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SignedUp)
}

func TestListUpcomingWithin(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	soon := seedEvent(t, repo, 1) // starts tomorrow

	// outside the window
	farDay := time.Now().Add(30 * 24 * time.Hour)
	far := &domain.Event{
		ID: uuid.New(), Title: "far future", Status: domain.StatusUpcoming,
		Date: farDay.Format("2006-01-02"), EndDate: farDay.Format("2006-01-02"),
		StartTime: "10:00", EndTime: "12:00", Timezone: "UTC",
		CreatedBy: uuid.New(),
	}
	require.NoError(t, repo.CreateEvent(ctx, far))

	events, err := repo.ListUpcomingWithin(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, soon.ID, events[0].ID)
}
