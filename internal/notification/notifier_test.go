package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"procurement/internal/model"
	"procurement/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

type recordingHub struct {
	audiences []websocket.Audience
	payloads  [][]byte
	err       error
}

func (h *recordingHub) Publish(_ context.Context, a websocket.Audience, data []byte) error {
	h.audiences = append(h.audiences, a)
	h.payloads = append(h.payloads, data)
	return h.err
}

func sampleEvent(recipientRole string, recipientID *uuid.UUID, payload map[string]interface{}) model.OutboxEvent {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return *model.NewOutboxEvent(model.EventDecisionRecorded, uuid.New(), recipientRole, recipientID, payload, now)
}

func TestFromEvent(t *testing.T) {
	creator := uuid.New()
	e := sampleEvent(model.RecipientCreator, &creator, map[string]interface{}{"action": "approved"})

	msg := FromEvent(e)
	assert.Equal(t, e.ID.String(), msg.EventID)
	assert.Equal(t, model.EventDecisionRecorded, msg.EventType)
	assert.Equal(t, creator.String(), msg.RecipientID)
	assert.Equal(t, "approved", msg.Payload["action"])
	assert.Equal(t, e.RequestID.String(), msg.Payload["request_id"])
}

func TestNATSNotifier_PublishesOnEventSubject(t *testing.T) {
	pub := new(mockPublisher)
	n := NewNATSNotifier(pub, "notifications.procurement", zap.NewNop())
	msg := FromEvent(sampleEvent(model.RecipientFinance, nil, nil))

	pub.On("Publish", "notifications.procurement.decision_recorded", mock.MatchedBy(func(data []byte) bool {
		var decoded Message
		return json.Unmarshal(data, &decoded) == nil && decoded.EventID == msg.EventID
	})).Return(nil).Once()

	require.NoError(t, n.Notify(context.Background(), msg))
	pub.AssertExpectations(t)
}

func TestNATSNotifier_ReturnsPublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats: connection closed"))
	core, logs := observer.New(zapcore.WarnLevel)
	n := NewNATSNotifier(pub, "p", zap.New(core))

	err := n.Notify(context.Background(), FromEvent(sampleEvent(model.RecipientFinance, nil, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p.decision_recorded")
	assert.Equal(t, 1, logs.Len())
}

func TestAudienceFor(t *testing.T) {
	creator := uuid.New()

	a, err := AudienceFor(FromEvent(sampleEvent(model.RecipientCreator, &creator, nil)))
	require.NoError(t, err)
	assert.Equal(t, websocket.Audience{Role: model.RoleRequester, ID: creator}, a)

	a, err = AudienceFor(FromEvent(sampleEvent(model.RecipientApprover, nil, map[string]interface{}{"level": 2})))
	require.NoError(t, err)
	assert.Equal(t, websocket.Audience{Role: model.RoleApprover, Level: 2}, a)

	a, err = AudienceFor(Message{RecipientRole: model.RecipientApprover, Payload: map[string]interface{}{"level": float64(1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Level)

	_, err = AudienceFor(Message{RecipientRole: model.RecipientCreator, RecipientID: "nope"})
	assert.Error(t, err)

	_, err = AudienceFor(Message{RecipientRole: "board"})
	assert.Error(t, err)
}

func TestWebsocketNotifier(t *testing.T) {
	hub := &recordingHub{}
	n := NewWebsocketNotifier(hub)

	require.NoError(t, n.Notify(context.Background(), FromEvent(sampleEvent(model.RecipientFinance, nil, nil))))
	require.Len(t, hub.audiences, 1)
	assert.Equal(t, model.RoleFinance, hub.audiences[0].Role)
	assert.Contains(t, string(hub.payloads[0]), `"event_type":"decision_recorded"`)
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	var calls int
	ok := NotifierFunc(func(context.Context, Message) error { calls++; return nil })
	failing := NotifierFunc(func(context.Context, Message) error { calls++; return errors.New("down") })

	err := Fanout{failing, ok, NewLogNotifier(zap.NewNop())}.Notify(context.Background(), Message{EventType: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 2, calls)

	assert.NoError(t, Fanout{ok}.Notify(context.Background(), Message{}))
}
