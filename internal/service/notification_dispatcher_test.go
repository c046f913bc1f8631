package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/datashare-api/internal/models"
)

type countingSink struct {
	name     string
	failures int32
	calls    int32
	mu       sync.Mutex
	received []models.TransitionNotice
}

func (s *countingSink) Name() string { return s.name }

func (s *countingSink) Notify(ctx context.Context, notice models.TransitionNotice) error {
	call := atomic.AddInt32(&s.calls, 1)
	if call <= atomic.LoadInt32(&s.failures) {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	s.received = append(s.received, notice)
	s.mu.Unlock()
	return nil
}

func (s *countingSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func testDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:        2,
		BufferSize:     8,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		SinkTimeout:    time.Second,
		EnqueueTimeout: 50 * time.Millisecond,
	}
}

func sampleNotice() models.TransitionNotice {
	return models.TransitionNotice{
		TransactionID: "tx-1",
		Tag:           models.EventTagPreApproved,
		EventID:       "01HZZ",
		Action:        models.ApprovalActionPreApprove,
		FromStatus:    models.TransactionStatusInitiated,
		ToStatus:      models.TransactionStatusPendingHolder,
		ActorOrgID:    subjectOrg,
		OccurredAt:    fixedNow,
	}
}

func TestDispatcherFansOutToEverySink(t *testing.T) {
	metrics := NewMetricsService()
	first := &countingSink{name: "first"}
	second := &countingSink{name: "second"}
	d := NewNotificationDispatcher([]Notifier{first, second}, testDispatcherConfig(), metrics, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	d.Notify(context.Background(), sampleNotice())

	require.Eventually(t, func() bool {
		return first.delivered() == 1 && second.delivered() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "tx-1", first.received[0].TransactionID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.notifications.WithLabelValues("first", "ok")))
}

func TestDispatcherRetriesFailingSinkIndependently(t *testing.T) {
	metrics := NewMetricsService()
	flaky := &countingSink{name: "flaky", failures: 2}
	steady := &countingSink{name: "steady"}
	d := NewNotificationDispatcher([]Notifier{flaky, steady}, testDispatcherConfig(), metrics, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	d.Notify(context.Background(), sampleNotice())

	require.Eventually(t, func() bool { return flaky.delivered() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, steady.delivered())
	assert.Equal(t, int32(1), atomic.LoadInt32(&steady.calls))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.notifications.WithLabelValues("flaky", "error")))
}

func TestDispatcherDropsAfterRetriesWithoutSurfacing(t *testing.T) {
	broken := &countingSink{name: "broken", failures: 100}
	cfg := testDispatcherConfig()
	cfg.MaxRetries = 2
	d := NewNotificationDispatcher([]Notifier{broken}, cfg, nil, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	d.Notify(context.Background(), sampleNotice())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&broken.calls) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&broken.calls))
	assert.Zero(t, broken.delivered())
}

func TestDispatcherNotifyOnCancelledRequestStillQueues(t *testing.T) {
	sink := &countingSink{name: "log"}
	d := NewNotificationDispatcher([]Notifier{sink}, testDispatcherConfig(), nil, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, sampleNotice())

	require.Eventually(t, func() bool { return sink.delivered() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWorkflowSucceedsWhenSinksFail(t *testing.T) {
	broken := &countingSink{name: "broken", failures: 100}
	cfg := testDispatcherConfig()
	cfg.MaxRetries = 1
	d := NewNotificationDispatcher([]Notifier{broken}, cfg, nil, zap.NewNop())
	d.Start(context.Background())
	defer d.Stop()

	store := newMemoryStore()
	svc := NewWorkflowService(store, store, nil, zap.NewNop(), WithWorkflowNotifier(d))
	tx, err := svc.CreateTransaction(context.Background(), validRequest(), models.Actor{OrgID: consumerOrg, UserID: "u"})
	require.NoError(t, err)

	tx, err = svc.ApplyAction(context.Background(), tx.ID, subjectOrg, "u", models.ApprovalActionPreApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPendingHolder, tx.Status)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&broken.calls) >= 1 }, time.Second, 5*time.Millisecond)
	stored, err := store.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPendingHolder, stored.Status)
}

type recordingPublisher struct {
	key string
	msg interface{}
	err error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	p.key = key
	p.msg = payload
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type hubFunc func(topic string, msg interface{}) (int, error)

func (f hubFunc) Publish(topic string, msg interface{}) (int, error) { return f(topic, msg) }

func TestSinks(t *testing.T) {
	notice := sampleNotice()

	pub := &recordingPublisher{}
	broker := NewBrokerNotifier(pub)
	require.NoError(t, broker.Notify(context.Background(), notice))
	assert.Equal(t, "broker", broker.Name())
	assert.Equal(t, "tx-1", pub.key)
	assert.Equal(t, notice, pub.msg)

	pub.err = errors.New("broker down")
	assert.Error(t, broker.Notify(context.Background(), notice))

	var topic string
	stream := NewStreamNotifier(hubFunc(func(tp string, msg interface{}) (int, error) {
		topic = tp
		return 0, nil
	}))
	require.NoError(t, stream.Notify(context.Background(), notice))
	assert.Equal(t, "tx-1", topic)

	assert.NoError(t, NewLogNotifier(zap.NewNop()).Notify(context.Background(), notice))
}
