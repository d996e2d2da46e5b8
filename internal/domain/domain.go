package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	return s == StatusUpcoming || s == StatusOngoing || s == StatusCompleted || s == StatusCancelled
}

// Role is a named, capacity-bounded slot within an event.
// MaxParticipants is fixed per role; 0 means the role can never be occupied.
type Role struct {
	ID              uuid.UUID
	Name            string
	Description     string
	MaxParticipants int
}

type Event struct {
	ID    uuid.UUID
	Title string

	// Wall-clock scheduling fields; Date/EndDate are "2006-01-02",
	// StartTime/EndTime are "15:04", interpreted in Timezone.
	Date      string
	EndDate   string
	StartTime string
	EndTime   string
	Timezone  string

	Status EventStatus
	Roles  []Role

	// SignedUp mirrors the count of live registrations for the event.
	// Maintained by single-statement counter updates; recalculation only
	// writes when the derived value differs.
	SignedUp int

	CreatedBy  uuid.UUID
	Organizers []uuid.UUID
	ProgramIDs []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *Event) RoleByID(id uuid.UUID) (*Role, bool) {
	for i := range e.Roles {
		if e.Roles[i].ID == id {
			return &e.Roles[i], true
		}
	}
	return nil, false
}

// IsOrganizer reports whether userID created the event or co-organizes it.
func (e *Event) IsOrganizer(userID uuid.UUID) bool {
	if e.CreatedBy == userID {
		return true
	}
	for _, id := range e.Organizers {
		if id == userID {
			return true
		}
	}
	return false
}

// Registration records one user occupying one role in one event.
// RoleName/RoleDescription are snapshots taken at registration time and serve
// as display fallbacks if the role is later renamed or removed.
type Registration struct {
	ID      uuid.UUID
	EventID uuid.UUID
	RoleID  uuid.UUID
	UserID  uuid.UUID

	Notes           string
	RoleName        string
	RoleDescription string

	CreatedAt time.Time
}

// GuestRegistration is the lighter-weight analog of Registration for
// participants without an account. Guests occupy role seats and are removed
// by the same cascade as ordinary registrations.
type GuestRegistration struct {
	ID      uuid.UUID
	EventID uuid.UUID
	RoleID  uuid.UUID

	FullName string
	Email    string
	Phone    string

	CreatedAt time.Time
}

type CascadeResult struct {
	DeletedRegistrations      int
	DeletedGuestRegistrations int
}

// HasCapacity is the ledger comparison: strict integer compare, never derived
// from anything but the authoritative occupancy count.
func HasCapacity(r Role, occupancy int) bool {
	return occupancy < r.MaxParticipants
}

// DiffIDs computes the set difference between an old and a new id set.
// Used to keep program back-references in sync with per-id add/remove
// operations instead of a full overwrite.
func DiffIDs(old, new []uuid.UUID) (added, removed []uuid.UUID) {
	oldSet := make(map[uuid.UUID]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[uuid.UUID]struct{}, len(new))
	for _, id := range new {
		newSet[id] = struct{}{}
		if _, ok := oldSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range old {
		if _, ok := newSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// OperatorAction names the operator-initiated mutations gated by the
// permission check.
type OperatorAction string

const (
	ActionRemoveUser OperatorAction = "remove_user"
	ActionAssignUser OperatorAction = "assign_user"
)

type Operator struct {
	ID   uuid.UUID
	Role string
}

// Repository is the persistence boundary of the engine. Counter maintenance
// and the reminder flag are single-statement conditional updates; they must
// never become read-then-write pairs.
type Repository interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status EventStatus) error
	RecalculateSignedUp(ctx context.Context, eventID uuid.UUID) error
	ListUpcomingWithin(ctx context.Context, within time.Duration) ([]*Event, error)

	RoleOccupancy(ctx context.Context, eventID, roleID uuid.UUID) (int, error)
	FindRegistration(ctx context.Context, eventID, userID, roleID uuid.UUID) (*Registration, error)
	InsertRegistration(ctx context.Context, reg *Registration) error
	// DeleteRegistration removes the matching row if it exists and reports
	// whether anything was deleted. Safe to call concurrently for the same row.
	DeleteRegistration(ctx context.Context, eventID, userID, roleID uuid.UUID) (bool, error)
	// MoveRegistration rewrites the role reference in one conditional
	// statement that only matches while the target role still has a free
	// seat. false means the write conflicted: either the source row is gone
	// or the target filled up; the caller re-derives which.
	MoveRegistration(ctx context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID, targetMax int) (bool, error)
	InsertGuestRegistration(ctx context.Context, g *GuestRegistration) error

	// ClaimReminder flips the per-(event, class) dispatch flag iff it is not
	// yet set and reports whether this caller flipped it.
	ClaimReminder(ctx context.Context, eventID uuid.UUID, class string) (bool, error)

	DeleteEventCascade(ctx context.Context, eventID uuid.UUID) (CascadeResult, error)

	AddEventToProgram(ctx context.Context, programID, eventID uuid.UUID) error
	RemoveEventFromProgram(ctx context.Context, programID, eventID uuid.UUID) error
}

type Cache interface {
	InvalidateEvent(ctx context.Context, eventID uuid.UUID) error
	InvalidateAnalytics(ctx context.Context) error
}

// Notifier delivers participant-facing notifications. Calls are fire-and-
// forget from the engine's perspective: failures are logged and never change
// the outcome of the mutation that triggered them.
type Notifier interface {
	OnSignedUp(ctx context.Context, reg Registration) error
	OnCancelled(ctx context.Context, reg Registration) error
	OnMoved(ctx context.Context, reg Registration, fromRoleID uuid.UUID) error
	OnRemoved(ctx context.Context, reg Registration, operatorID uuid.UUID) error
	OnAssigned(ctx context.Context, reg Registration, operatorID uuid.UUID) error
	OnReminderDue(ctx context.Context, eventID uuid.UUID, class string) error
}

type PermissionChecker interface {
	CanActOnEvent(ctx context.Context, op Operator, event *Event, action OperatorAction) (bool, error)
}
