package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes messages on <prefix>.<event_type>.
type NATSNotifier struct {
	pub    Publisher
	prefix string
	log    *zap.Logger
}

func NewNATSNotifier(pub Publisher, prefix string, log *zap.Logger) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: prefix, log: log}
}

// Subject returns the subject an event type is published on.
func (n *NATSNotifier) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", n.prefix, eventType)
}

func (n *NATSNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := n.Subject(msg.EventType)
	if err := n.pub.Publish(subject, data); err != nil {
		n.log.Warn("notification: failed to publish NATS event",
			zap.String("subject", subject),
			zap.String("request_id", msg.RequestID),
			zap.Error(err))
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	n.log.Debug("notification: event published",
		zap.String("subject", subject),
		zap.String("request_id", msg.RequestID))
	return nil
}

// ConnectNATS dials url with reconnect handling logged through log.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("procurement-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
}
