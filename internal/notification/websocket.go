package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"procurement/internal/model"
	"procurement/internal/websocket"

	"github.com/google/uuid"
)

// HubPublisher is the live-feed side of the websocket hub.
type HubPublisher interface {
	Publish(ctx context.Context, audience websocket.Audience, data []byte) error
}

// WebsocketNotifier pushes messages to connected recipients.
type WebsocketNotifier struct {
	hub HubPublisher
}

func NewWebsocketNotifier(hub HubPublisher) *WebsocketNotifier {
	return &WebsocketNotifier{hub: hub}
}

func (n *WebsocketNotifier) Notify(ctx context.Context, msg Message) error {
	audience, err := AudienceFor(msg)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.hub.Publish(ctx, audience, data)
}

// AudienceFor maps the recipient of msg onto hub clients.
// Approver messages carrying a "level" payload reach only that level.
func AudienceFor(msg Message) (websocket.Audience, error) {
	switch msg.RecipientRole {
	case model.RecipientCreator:
		id, err := uuid.Parse(msg.RecipientID)
		if err != nil {
			return websocket.Audience{}, fmt.Errorf("creator recipient: %w", err)
		}
		return websocket.Audience{Role: model.RoleRequester, ID: id}, nil
	case model.RecipientFinance:
		return websocket.Audience{Role: model.RoleFinance}, nil
	case model.RecipientApprover:
		return websocket.Audience{Role: model.RoleApprover, Level: payloadLevel(msg.Payload)}, nil
	default:
		return websocket.Audience{}, fmt.Errorf("unknown recipient role %q", msg.RecipientRole)
	}
}

// payloadLevel reads "level" after a JSON round trip, where numbers become float64.
func payloadLevel(payload map[string]interface{}) int {
	switch v := payload["level"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
