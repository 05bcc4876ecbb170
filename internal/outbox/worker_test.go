package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"procurement/internal/database/dbtest"
	"procurement/internal/metrics"
	"procurement/internal/model"
	"procurement/internal/notification"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedNotifier struct {
	mu       sync.Mutex
	failures int
	received []notification.Message
}

func (n *scriptedNotifier) Notify(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, msg)
	if n.failures > 0 {
		n.failures--
		return errors.New("transport down")
	}
	return nil
}

func (n *scriptedNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.received)
}

type fixture struct {
	repo   repository.OutboxRepository
	worker *Worker
	clock  time.Time
}

func newFixture(t *testing.T, notifier notification.Notifier, cfg Config) *fixture {
	db := dbtest.Open(t)
	f := &fixture{
		repo:  repository.NewOutboxRepository(db),
		clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.worker = NewWorker(f.repo, repository.NewTransactionManager(db), notifier, metrics.New(), zap.NewNop(), cfg)
	f.worker.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) append(t *testing.T, eventType string) *model.OutboxEvent {
	e := model.NewOutboxEvent(eventType, uuid.New(), model.RecipientFinance, nil, nil, f.clock)
	require.NoError(t, f.repo.Append(context.Background(), e))
	return e
}

func (f *fixture) reload(t *testing.T, e *model.OutboxEvent) model.OutboxEvent {
	events, err := f.repo.ListByRequest(context.Background(), e.RequestID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestConfig_Backoff(t *testing.T) {
	cfg := Config{BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}
	assert.Equal(t, time.Second, cfg.Backoff(0))
	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff(2))
	assert.Equal(t, 8*time.Second, cfg.Backoff(4))
	assert.Equal(t, 10*time.Second, cfg.Backoff(5))
	assert.Equal(t, 10*time.Second, cfg.Backoff(30))
}

func TestProcessBatch_DeliversAndMarks(t *testing.T) {
	notifier := &scriptedNotifier{}
	f := newFixture(t, notifier, DefaultConfig())
	e := f.append(t, model.EventReadyForPayment)

	n, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, model.EventReadyForPayment, notifier.received[0].EventType)

	stored := f.reload(t, e)
	assert.Equal(t, model.OutboxDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)

	n, err = f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_RetriesWithBackoffThenDelivers(t *testing.T) {
	notifier := &scriptedNotifier{failures: 1}
	cfg := DefaultConfig()
	cfg.BaseBackoff = time.Minute
	f := newFixture(t, notifier, cfg)
	e := f.append(t, model.EventReceiptReminder)

	_, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)

	stored := f.reload(t, e)
	assert.Equal(t, model.OutboxPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "transport down", stored.LastError)
	assert.True(t, stored.NextAttemptAt.Equal(f.clock.Add(time.Minute)))

	// not due yet
	n, err := f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock = f.clock.Add(time.Minute)
	n, err = f.worker.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxDelivered, f.reload(t, e).Status)
	assert.Equal(t, 2, notifier.count())
}

func TestProcessBatch_GivesUpAfterMaxAttempts(t *testing.T) {
	notifier := &scriptedNotifier{failures: 100}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.BaseBackoff = time.Second
	f := newFixture(t, notifier, cfg)
	e := f.append(t, model.EventDecisionRecorded)

	for i := 0; i < 5; i++ {
		_, err := f.worker.ProcessBatch(context.Background())
		require.NoError(t, err)
		f.clock = f.clock.Add(time.Hour)
	}

	stored := f.reload(t, e)
	assert.Equal(t, model.OutboxFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, 3, notifier.count())
}

func TestWorker_StartNotifyStop(t *testing.T) {
	notifier := &scriptedNotifier{}
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour
	f := newFixture(t, notifier, cfg)

	require.NoError(t, f.worker.Start(context.Background()))
	assert.Error(t, f.worker.Start(context.Background()))

	f.append(t, model.EventClarificationRequested)
	f.worker.Notify()

	assert.Eventually(t, func() bool { return notifier.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.worker.Stop()
	f.worker.Stop()
	assert.Equal(t, "OutboxWorker", f.worker.Name())
}
