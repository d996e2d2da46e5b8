package service

import (
	"context"
	"strings"

	"github.com/gatherhq/registration-service/internal/domain"
)

// OrganizerPermissions allows operator mutations for platform staff and for
// the event's own organizers.
type OrganizerPermissions struct{}

func NewOrganizerPermissions() *OrganizerPermissions {
	return &OrganizerPermissions{}
}

func isPrivileged(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	return r == "admin" || r == "moderator"
}

func (p *OrganizerPermissions) CanActOnEvent(_ context.Context, op domain.Operator, ev *domain.Event, _ domain.OperatorAction) (bool, error) {
	if isPrivileged(op.Role) {
		return true, nil
	}
	return ev.IsOrganizer(op.ID), nil
}
