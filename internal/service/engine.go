package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/lock"
	"github.com/gatherhq/registration-service/internal/metrics"
)

const notifyTimeout = 5 * time.Second

// Engine implements the mutating registration operations. Capacity-sensitive
// inserts serialize through the roster lock; cancels and moves do not (see
// the per-operation comments).
type Engine struct {
	repo     domain.Repository
	cache    domain.Cache
	locks    lock.Keyed
	notifier domain.Notifier
	perms    domain.PermissionChecker
	audit    *audit.Logger
	log      zerolog.Logger

	lockTimeout time.Duration
}

func NewEngine(
	repo domain.Repository,
	cache domain.Cache,
	locks lock.Keyed,
	notifier domain.Notifier,
	perms domain.PermissionChecker,
	auditLog *audit.Logger,
	log zerolog.Logger,
	lockTimeout time.Duration,
) *Engine {
	return &Engine{
		repo:        repo,
		cache:       cache,
		locks:       locks,
		notifier:    notifier,
		perms:       perms,
		audit:       auditLog,
		log:         log,
		lockTimeout: lockTimeout,
	}
}

func rosterKey(eventID uuid.UUID) string {
	return "event:" + eventID.String() + ":roster"
}

// loadOpenEvent fetches the event and rejects anything not open for
// registration mutations.
func (s *Engine) loadOpenEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != domain.StatusUpcoming {
		return nil, domain.ErrInvalidEventState
	}
	return ev, nil
}

// SignUp registers userID into roleID on an upcoming event. The capacity
// check runs twice: once before the lock as a fast reject, once inside it as
// the authoritative check.
func (s *Engine) SignUp(ctx context.Context, eventID, roleID, userID uuid.UUID, notes string) (*domain.Registration, error) {
	ev, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	role, ok := ev.RoleByID(roleID)
	if !ok {
		return nil, domain.ErrRoleNotFound
	}

	// Advisory pre-check; the lock-held re-read below is what enforces the
	// ceiling.
	occ, err := s.repo.RoleOccupancy(ctx, eventID, roleID)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	if !domain.HasCapacity(*role, occ) {
		metrics.RecordCapacityRejection()
		return nil, domain.ErrCapacityExceeded
	}

	reg := &domain.Registration{
		ID:              uuid.New(),
		EventID:         eventID,
		RoleID:          roleID,
		UserID:          userID,
		Notes:           notes,
		RoleName:        role.Name,
		RoleDescription: role.Description,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.insertUnderLock(ctx, *role, reg); err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	s.audit.SignedUp(ctx, eventID, userID, roleID)
	metrics.RecordMutation("sign_up")
	s.dispatch(ctx, "signed_up", func(ctx context.Context) error {
		return s.notifier.OnSignedUp(ctx, *reg)
	})
	return reg, nil
}

// Cancel removes the matching registration. No lock: dropping occupancy can
// never violate the ceiling, and delete-if-exists keeps concurrent cancels
// idempotent.
func (s *Engine) Cancel(ctx context.Context, eventID, roleID, userID uuid.UUID) error {
	_, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return err
	}

	reg, err := s.repo.FindRegistration(ctx, eventID, userID, roleID)
	if err != nil {
		return fmt.Errorf("find registration: %w", err)
	}
	if reg == nil {
		return domain.ErrNotRegistered
	}

	deleted, err := s.repo.DeleteRegistration(ctx, eventID, userID, roleID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if !deleted {
		// a concurrent cancel got there first
		return domain.ErrNotRegistered
	}

	s.invalidate(ctx, eventID)
	s.audit.Cancelled(ctx, eventID, userID, roleID)
	metrics.RecordMutation("cancel")
	s.dispatch(ctx, "cancelled", func(ctx context.Context) error {
		return s.notifier.OnCancelled(ctx, *reg)
	})
	return nil
}

// Move rewrites a registration from one role to another without holding the
// roster lock. The conditional write only matches while the target has a free
// seat; on conflict the authoritative occupancy is re-derived to tell a lost
// race apart from an unexpected failure.
func (s *Engine) Move(ctx context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID) (*domain.Registration, error) {
	ev, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, ok := ev.RoleByID(fromRoleID); !ok {
		return nil, domain.ErrRoleNotFound
	}
	target, ok := ev.RoleByID(toRoleID)
	if !ok {
		return nil, domain.ErrRoleNotFound
	}

	reg, err := s.repo.FindRegistration(ctx, eventID, userID, fromRoleID)
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg == nil {
		return nil, domain.ErrNotInSourceRole
	}

	occ, err := s.repo.RoleOccupancy(ctx, eventID, toRoleID)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	if !domain.HasCapacity(*target, occ) {
		metrics.RecordCapacityRejection()
		return nil, domain.ErrCapacityExceeded
	}

	moved, err := s.repo.MoveRegistration(ctx, eventID, userID, fromRoleID, toRoleID, target.MaxParticipants)
	if err != nil {
		return nil, fmt.Errorf("move registration: %w", err)
	}
	if !moved {
		// Conflicted write; figure out which race we lost.
		occ, occErr := s.repo.RoleOccupancy(ctx, eventID, toRoleID)
		if occErr == nil && !domain.HasCapacity(*target, occ) {
			metrics.RecordCapacityRejection()
			return nil, domain.ErrTargetBecameFull
		}
		still, findErr := s.repo.FindRegistration(ctx, eventID, userID, fromRoleID)
		if findErr == nil && still == nil {
			return nil, domain.ErrNotInSourceRole
		}
		return nil, fmt.Errorf("%w: move conflicted without a determinable cause", domain.ErrInternal)
	}

	reg.RoleID = toRoleID
	reg.RoleName = target.Name
	reg.RoleDescription = target.Description

	s.invalidate(ctx, eventID)
	s.audit.Moved(ctx, eventID, userID, fromRoleID, toRoleID)
	metrics.RecordMutation("move")
	s.dispatch(ctx, "moved", func(ctx context.Context) error {
		return s.notifier.OnMoved(ctx, *reg, fromRoleID)
	})
	return reg, nil
}

// Remove is the operator-initiated variant of Cancel.
func (s *Engine) Remove(ctx context.Context, op domain.Operator, eventID, roleID, userID uuid.UUID) error {
	ev, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, op, ev, domain.ActionRemoveUser); err != nil {
		return err
	}

	reg, err := s.repo.FindRegistration(ctx, eventID, userID, roleID)
	if err != nil {
		return fmt.Errorf("find registration: %w", err)
	}
	if reg == nil {
		return domain.ErrNotRegistered
	}

	deleted, err := s.repo.DeleteRegistration(ctx, eventID, userID, roleID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if !deleted {
		return domain.ErrNotRegistered
	}

	s.invalidate(ctx, eventID)
	s.audit.Removed(ctx, eventID, userID, op.ID, roleID)
	metrics.RecordMutation("remove")
	s.dispatch(ctx, "removed", func(ctx context.Context) error {
		return s.notifier.OnRemoved(ctx, *reg, op.ID)
	})
	return nil
}

// Assign is the operator-initiated variant of SignUp.
func (s *Engine) Assign(ctx context.Context, op domain.Operator, eventID, roleID, userID uuid.UUID, notes string) (*domain.Registration, error) {
	ev, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, op, ev, domain.ActionAssignUser); err != nil {
		return nil, err
	}
	role, ok := ev.RoleByID(roleID)
	if !ok {
		return nil, domain.ErrRoleNotFound
	}

	reg := &domain.Registration{
		ID:              uuid.New(),
		EventID:         eventID,
		RoleID:          roleID,
		UserID:          userID,
		Notes:           notes,
		RoleName:        role.Name,
		RoleDescription: role.Description,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.insertUnderLock(ctx, *role, reg); err != nil {
		return nil, err
	}

	s.invalidate(ctx, eventID)
	s.audit.Assigned(ctx, eventID, userID, op.ID, roleID)
	metrics.RecordMutation("assign")
	s.dispatch(ctx, "assigned", func(ctx context.Context) error {
		return s.notifier.OnAssigned(ctx, *reg, op.ID)
	})
	return reg, nil
}

// GuestSignUp registers a non-account participant. Guests occupy seats and
// go through the same locked capacity check as ordinary sign-ups.
func (s *Engine) GuestSignUp(ctx context.Context, eventID, roleID uuid.UUID, fullName, email, phone string) (*domain.GuestRegistration, error) {
	ev, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	role, ok := ev.RoleByID(roleID)
	if !ok {
		return nil, domain.ErrRoleNotFound
	}

	occ, err := s.repo.RoleOccupancy(ctx, eventID, roleID)
	if err != nil {
		return nil, fmt.Errorf("read occupancy: %w", err)
	}
	if !domain.HasCapacity(*role, occ) {
		metrics.RecordCapacityRejection()
		return nil, domain.ErrCapacityExceeded
	}

	guest := &domain.GuestRegistration{
		ID:        uuid.New(),
		EventID:   eventID,
		RoleID:    roleID,
		FullName:  fullName,
		Email:     email,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}

	err = s.locks.WithLock(ctx, rosterKey(eventID), s.lockTimeout, func(ctx context.Context) error {
		occ, err := s.repo.RoleOccupancy(ctx, eventID, roleID)
		if err != nil {
			return fmt.Errorf("read occupancy: %w", err)
		}
		if !domain.HasCapacity(*role, occ) {
			return domain.ErrCapacityExceeded
		}
		return s.repo.InsertGuestRegistration(ctx, guest)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLockTimeout):
			metrics.RecordLockTimeout()
		case errors.Is(err, domain.ErrCapacityExceeded):
			metrics.RecordCapacityRejection()
		}
		return nil, err
	}

	s.invalidate(ctx, eventID)
	s.audit.GuestSignedUp(ctx, eventID, roleID, guest.ID)
	metrics.RecordMutation("guest_sign_up")
	return guest, nil
}

// insertUnderLock runs the authoritative duplicate and capacity checks with
// the roster lock held, then persists the registration.
func (s *Engine) insertUnderLock(ctx context.Context, role domain.Role, reg *domain.Registration) error {
	err := s.locks.WithLock(ctx, rosterKey(reg.EventID), s.lockTimeout, func(ctx context.Context) error {
		existing, err := s.repo.FindRegistration(ctx, reg.EventID, reg.UserID, reg.RoleID)
		if err != nil {
			return fmt.Errorf("find registration: %w", err)
		}
		if existing != nil {
			return domain.ErrAlreadyRegistered
		}

		occ, err := s.repo.RoleOccupancy(ctx, reg.EventID, reg.RoleID)
		if err != nil {
			return fmt.Errorf("read occupancy: %w", err)
		}
		if !domain.HasCapacity(role, occ) {
			return domain.ErrCapacityExceeded
		}

		return s.repo.InsertRegistration(ctx, reg)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLockTimeout):
			metrics.RecordLockTimeout()
		case errors.Is(err, domain.ErrCapacityExceeded):
			metrics.RecordCapacityRejection()
		}
		return err
	}
	return nil
}

func (s *Engine) authorize(ctx context.Context, op domain.Operator, ev *domain.Event, action domain.OperatorAction) error {
	ok, err := s.perms.CanActOnEvent(ctx, op, ev, action)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *Engine) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID.String()).Msg("event cache invalidation failed")
	}
	if err := s.cache.InvalidateAnalytics(ctx); err != nil {
		s.log.Warn().Err(err).Msg("analytics cache invalidation failed")
	}
}

// dispatch fires a notification on a detached goroutine. Failures are logged
// and counted, never propagated to the mutation that triggered them.
func (s *Engine) dispatch(ctx context.Context, kind string, fn func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.RecordNotificationFailure(kind)
			s.log.Warn().Err(err).Str("kind", kind).Msg("notification dispatch failed")
		}
	}()
}
