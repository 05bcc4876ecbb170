// Package notification delivers workflow events to people and downstream services.
package notification

import (
	"context"
	"errors"
	"time"

	"procurement/internal/model"

	"go.uber.org/zap"
)

// Message is the wire form of an outbox event.
type Message struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	RequestID     string                 `json:"request_id"`
	RecipientRole string                 `json:"recipient_role"`
	RecipientID   string                 `json:"recipient_id,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// FromEvent converts a stored outbox event.
func FromEvent(e model.OutboxEvent) Message {
	msg := Message{
		EventID:       e.ID.String(),
		EventType:     e.EventType,
		RequestID:     e.RequestID.String(),
		RecipientRole: e.RecipientRole,
		Payload:       map[string]interface{}(e.Payload),
		OccurredAt:    e.CreatedAt,
	}
	if e.RecipientID != nil {
		msg.RecipientID = e.RecipientID.String()
	}
	return msg
}

// Notifier delivers one message. A returned error makes the outbox retry the event.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Notify(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Fanout delivers to every sink and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes every message to the log. It never fails.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.log.Info("notification",
		zap.String("event_id", msg.EventID),
		zap.String("event_type", msg.EventType),
		zap.String("request_id", msg.RequestID),
		zap.String("recipient_role", msg.RecipientRole),
		zap.String("recipient_id", msg.RecipientID),
		zap.Any("payload", msg.Payload))
	return nil
}
