package extraction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"procurement/internal/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type gatewayFunc func(ctx context.Context, doc Document) (*Result, error)

func (f gatewayFunc) Extract(ctx context.Context, doc Document) (*Result, error) { return f(ctx, doc) }

type collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *collector) HandleExtraction(_ context.Context, o Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	return nil
}

func (c *collector) all() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.outcomes...)
}

func startRunner(t *testing.T, gw Gateway, cfg RunnerConfig) (*Runner, *collector) {
	t.Helper()
	r := NewRunner(gw, metrics.New(), zap.NewNop(), cfg)
	c := &collector{}
	r.SetHandler(c)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)
	return r, c
}

func fastConfig() RunnerConfig {
	return RunnerConfig{Workers: 1, QueueSize: 4, MaxAttempts: 3, Timeout: time.Second, BaseBackoff: time.Millisecond}
}

func TestRunner_RetriesTransientFailures(t *testing.T) {
	var calls int32
	gw := gatewayFunc(func(context.Context, Document) (*Result, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("timeout")
		}
		return &Result{Fields: Fields{VendorName: "Acme"}, Confidence: 1.0 / 6}, nil
	})
	r, c := startRunner(t, gw, fastConfig())

	require.NoError(t, r.Submit(Document{RequestID: uuid.New(), Kind: KindProforma, Data: []byte("x")}))

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	o := c.all()[0]
	assert.NoError(t, o.Err)
	assert.Equal(t, 3, o.Attempts)
	assert.Equal(t, "Acme", o.Result.VendorName)
}

func TestRunner_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	gw := gatewayFunc(func(context.Context, Document) (*Result, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unavailable")
	})
	r, c := startRunner(t, gw, fastConfig())

	require.NoError(t, r.Submit(Document{RequestID: uuid.New(), Kind: KindReceipt}))

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.EqualError(t, c.all()[0].Err, "unavailable")
	assert.Equal(t, 3, c.all()[0].Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRunner_PermanentErrorIsNotRetried(t *testing.T) {
	var calls int32
	gw := gatewayFunc(func(context.Context, Document) (*Result, error) {
		atomic.AddInt32(&calls, 1)
		return nil, Permanent(ErrUnsupportedContent)
	})
	r, c := startRunner(t, gw, fastConfig())

	require.NoError(t, r.Submit(Document{RequestID: uuid.New(), Kind: KindReceipt}))

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.all()[0].Err, ErrUnsupportedContent)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRunner_AttemptTimeout(t *testing.T) {
	gw := gatewayFunc(func(ctx context.Context, _ Document) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.Timeout = 20 * time.Millisecond
	r, c := startRunner(t, gw, cfg)

	require.NoError(t, r.Submit(Document{RequestID: uuid.New(), Kind: KindProforma}))

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.all()[0].Err, context.DeadlineExceeded)
}

func TestRunner_SupersededJobIsDropped(t *testing.T) {
	release := make(chan struct{})
	gw := gatewayFunc(func(_ context.Context, doc Document) (*Result, error) {
		if doc.Name == "old" {
			<-release
		}
		return &Result{Fields: Fields{VendorName: doc.Name}}, nil
	})
	cfg := fastConfig()
	cfg.Workers = 2
	r, c := startRunner(t, gw, cfg)
	requestID := uuid.New()

	require.NoError(t, r.Submit(Document{RequestID: requestID, Kind: KindProforma, Name: "old"}))
	require.NoError(t, r.Submit(Document{RequestID: requestID, Kind: KindProforma, Name: "new"}))

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	close(release)
	time.Sleep(50 * time.Millisecond)

	outcomes := c.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "new", outcomes[0].DocumentName)
}

func TestRunner_SubmitRejections(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	gw := gatewayFunc(func(ctx context.Context, _ Document) (*Result, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return &Result{}, nil
	})

	idle := NewRunner(gw, nil, zap.NewNop(), fastConfig())
	assert.ErrorIs(t, idle.Submit(Document{}), ErrNotRunning)
	assert.Error(t, idle.Start(context.Background()), "no handler")

	cfg := fastConfig()
	cfg.QueueSize = 1
	r, _ := startRunner(t, gw, cfg)

	var sawFull bool
	for i := 0; i < 5; i++ {
		if errors.Is(r.Submit(Document{RequestID: uuid.New(), Kind: KindReceipt}), ErrQueueFull) {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)
}
