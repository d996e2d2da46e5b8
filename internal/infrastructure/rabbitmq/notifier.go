package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	contracts "github.com/gatherhq/registration-service/internal/contracts/registration"
	"github.com/gatherhq/registration-service/internal/domain"
	appctx "github.com/gatherhq/registration-service/internal/pkg/context"
)

const (
	DefaultExchange = "registration.events"

	// Wait window for the publisher confirm
	publishWait = 150 * time.Millisecond
)

// Routing keys, one per notification kind.
const (
	keySignedUp    = "registration.signed_up"
	keyCancelled   = "registration.cancelled"
	keyMoved       = "registration.moved"
	keyRemoved     = "registration.removed"
	keyAssigned    = "registration.assigned"
	keyReminderDue = "reminder.due"
)

// Notifier publishes registration notifications to a topic exchange. The
// engine calls it from detached goroutines; a failed publish is the
// caller's to log, never to retry into the mutation path.
type Notifier struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewNotifier(url, exchange string) (*Notifier, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	n := &Notifier{
		url:      url,
		exchange: exchange,
	}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	n.conn = conn
	n.ch = ch

	return nil
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		_ = n.ch.Close()
		n.ch = nil
	}
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
	return nil
}

func (n *Notifier) publish(ctx context.Context, routingKey string, payload any) error {
	messageID := uuid.NewString()
	body, err := json.Marshal(contracts.Envelope[any]{
		Version:    1,
		Producer:   "registration-service",
		TraceID:    appctx.GetTraceID(ctx),
		MessageID:  messageID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch == nil {
		return errors.New("notifier channel not ready")
	}

	dc, err := n.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		n.exchange,
		routingKey,
		false, // mandatory: missing consumers are fine for notifications
		false, // immediate
		amqp.Publishing{
			MessageId:   messageID,
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	)
	if err != nil {
		return err
	}

	// The deferred confirmation is tied to this exact message, so a late
	// ack can never be attributed to a later publish. Notifications are
	// best-effort; an elapsed window counts as an attempt made.
	select {
	case <-dc.Done():
		if !dc.Acked() {
			return errors.New("publish nack")
		}
		return nil
	case <-time.After(publishWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newPayload(reg domain.Registration) contracts.Payload {
	return contracts.Payload{
		RegistrationID: reg.ID.String(),
		EventID:        reg.EventID.String(),
		RoleID:         reg.RoleID.String(),
		UserID:         reg.UserID.String(),
		RoleName:       reg.RoleName,
	}
}

func (n *Notifier) OnSignedUp(ctx context.Context, reg domain.Registration) error {
	return n.publish(ctx, keySignedUp, newPayload(reg))
}

func (n *Notifier) OnCancelled(ctx context.Context, reg domain.Registration) error {
	return n.publish(ctx, keyCancelled, newPayload(reg))
}

func (n *Notifier) OnMoved(ctx context.Context, reg domain.Registration, fromRoleID uuid.UUID) error {
	p := newPayload(reg)
	p.FromRoleID = fromRoleID.String()
	return n.publish(ctx, keyMoved, p)
}

func (n *Notifier) OnRemoved(ctx context.Context, reg domain.Registration, operatorID uuid.UUID) error {
	p := newPayload(reg)
	p.OperatorID = operatorID.String()
	return n.publish(ctx, keyRemoved, p)
}

func (n *Notifier) OnAssigned(ctx context.Context, reg domain.Registration, operatorID uuid.UUID) error {
	p := newPayload(reg)
	p.OperatorID = operatorID.String()
	return n.publish(ctx, keyAssigned, p)
}

func (n *Notifier) OnReminderDue(ctx context.Context, eventID uuid.UUID, class string) error {
	return n.publish(ctx, keyReminderDue, contracts.ReminderPayload{
		EventID: eventID.String(),
		Class:   class,
	})
}
