package registration

import "time"

// Envelope is the canonical message envelope published to the notification
// exchange. Consumers ignore fields they do not know.
type Envelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

// Payload describes a registration mutation (signed_up, cancelled, moved,
// removed, assigned). FromRoleID is set only for moves; OperatorID only for
// operator-initiated mutations.
type Payload struct {
	RegistrationID string `json:"registration_id"`
	EventID        string `json:"event_id"`
	RoleID         string `json:"role_id"`
	UserID         string `json:"user_id"`
	RoleName       string `json:"role_name,omitempty"`
	FromRoleID     string `json:"from_role_id,omitempty"`
	OperatorID     string `json:"operator_id,omitempty"`
}

// ReminderPayload accompanies reminder.due messages.
type ReminderPayload struct {
	EventID string `json:"event_id"`
	Class   string `json:"class"`
}
