package audit

import (
	"context"

	appctx "github.com/gatherhq/registration-service/internal/pkg/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// SignedUp logs a successful self sign-up into a role
func (l *Logger) SignedUp(ctx context.Context, eventID, userID, roleID uuid.UUID) {
	l.log.Info().
		Str("action", "signed_up").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("role_id", roleID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("User signed up for role")
}

// Cancelled logs a self-cancelled registration
func (l *Logger) Cancelled(ctx context.Context, eventID, userID, roleID uuid.UUID) {
	l.log.Info().
		Str("action", "cancelled").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("role_id", roleID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("User cancelled registration")
}

// Moved logs a registration moved between roles
func (l *Logger) Moved(ctx context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID) {
	l.log.Info().
		Str("action", "moved").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("from_role_id", fromRoleID.String()).
		Str("to_role_id", toRoleID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("User moved between roles")
}

// Removed logs an operator removing a participant from a role
func (l *Logger) Removed(ctx context.Context, eventID, targetID, operatorID, roleID uuid.UUID) {
	l.log.Warn().
		Str("action", "removed").
		Str("event_id", eventID.String()).
		Str("target_user_id", targetID.String()).
		Str("operator_user_id", operatorID.String()).
		Str("role_id", roleID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Operator removed participant")
}

// Assigned logs an operator assigning a participant into a role
func (l *Logger) Assigned(ctx context.Context, eventID, targetID, operatorID, roleID uuid.UUID) {
	l.log.Info().
		Str("action", "assigned").
		Str("event_id", eventID.String()).
		Str("target_user_id", targetID.String()).
		Str("operator_user_id", operatorID.String()).
		Str("role_id", roleID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Operator assigned participant")
}

// GuestSignedUp logs a guest registration
func (l *Logger) GuestSignedUp(ctx context.Context, eventID, roleID, guestID uuid.UUID) {
	l.log.Info().
		Str("action", "guest_signed_up").
		Str("event_id", eventID.String()).
		Str("role_id", roleID.String()).
		Str("guest_id", guestID.String()).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Guest signed up for role")
}

// ReminderClaimed logs a won reminder dedup claim
func (l *Logger) ReminderClaimed(ctx context.Context, eventID uuid.UUID, class string) {
	l.log.Info().
		Str("action", "reminder_claimed").
		Str("event_id", eventID.String()).
		Str("class", class).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Reminder dispatch claimed")
}

// StatusReconciled logs a persisted lifecycle transition
func (l *Logger) StatusReconciled(ctx context.Context, eventID uuid.UUID, from, to string) {
	l.log.Info().
		Str("action", "status_reconciled").
		Str("event_id", eventID.String()).
		Str("from", from).
		Str("to", to).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Event status reconciled")
}

// EventDeleted logs a completed cascade deletion
func (l *Logger) EventDeleted(ctx context.Context, eventID uuid.UUID, regs, guests int) {
	l.log.Warn().
		Str("action", "event_deleted").
		Str("event_id", eventID.String()).
		Int("deleted_registrations", regs).
		Int("deleted_guest_registrations", guests).
		Str("trace_id", appctx.GetTraceID(ctx)).
		Msg("Event deleted with dependents")
}
