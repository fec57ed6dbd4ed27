package payout

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"moviemeter-go/internal/database"
	"moviemeter-go/internal/metrics"
	"moviemeter-go/internal/models"
	"moviemeter-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fails int
}

func (f *fakeSender) SendPayout(_ context.Context, p models.Payout) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return "", errors.New("prime unavailable")
	}
	f.sent = append(f.sent, p.Id)
	return "activity-" + p.Id, nil
}

func setupQueue(t *testing.T) *database.Service {
	t.Helper()
	svc, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "payouts.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 2,
		PingTimeout:  time.Second,
		BusyTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func enqueue(t *testing.T, queue store.PayoutQueue, ref string) *models.Payout {
	t.Helper()
	p, err := queue.EnqueuePayout(context.Background(), store.EnqueuePayoutParams{
		Address:   "0x1111111111111111111111111111111111111111",
		Source:    models.PayoutSourceMilestone,
		SourceRef: ref,
		Asset:     "USDC",
		Amount:    decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	return p
}

func TestProcessBatch_SubmitsOnce(t *testing.T) {
	queue := setupQueue(t)
	sender := &fakeSender{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(DispatcherConfig{Queue: queue, Sender: sender, Metrics: m, BatchSize: 10, MaxAttempts: 3})

	p1 := enqueue(t, queue, "milestone:a:3")
	p2 := enqueue(t, queue, "milestone:a:7")

	ctx := context.Background()
	assert.Equal(t, 2, d.ProcessBatch(ctx))
	assert.Equal(t, 0, d.ProcessBatch(ctx), "submitted payouts are not resent")

	assert.ElementsMatch(t, []string{p1.Id, p2.Id}, sender.sent)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Payouts.WithLabelValues(models.PayoutSubmitted)))
}

func TestProcessBatch_FailsAfterMaxAttempts(t *testing.T) {
	queue := setupQueue(t)
	sender := &fakeSender{fails: 10}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(DispatcherConfig{Queue: queue, Sender: sender, Metrics: m, MaxAttempts: 2})
	enqueue(t, queue, "claim:a:vip")

	ctx := context.Background()
	assert.Equal(t, 0, d.ProcessBatch(ctx))
	pending, err := queue.GetPendingPayouts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "payout stays pending after the first failure")

	assert.Equal(t, 0, d.ProcessBatch(ctx))
	pending, err = queue.GetPendingPayouts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Payouts.WithLabelValues("retry")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Payouts.WithLabelValues(models.PayoutFailed)))
}

func TestDispatcher_StartStop(t *testing.T) {
	queue := setupQueue(t)
	sender := &fakeSender{}
	d := NewDispatcher(DispatcherConfig{
		Queue:           queue,
		Sender:          sender,
		Metrics:         metrics.NewMetrics(prometheus.NewRegistry()),
		PollingInterval: 10 * time.Millisecond,
	})
	p := enqueue(t, queue, "claim:b:vip")

	d.Start(context.Background())
	assert.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 10*time.Millisecond)
	d.Stop()
	d.Stop()

	assert.Equal(t, []string{p.Id}, sender.sent)
}
