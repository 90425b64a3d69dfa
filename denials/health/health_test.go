package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CMSgov/denial-review-app/denials/client"
	"github.com/CMSgov/denial-review-app/denials/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcPinger func(ctx context.Context) error

func (f funcPinger) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestMonitorStartsChecking(t *testing.T) {
	m := NewMonitor(funcPinger(func(context.Context) error { return nil }), time.Hour, time.Second)
	assert.Equal(t, StatusChecking, m.Report().Status)
	assert.True(t, m.Report().CheckedAt.IsZero())
}

func TestMonitorAgainstBackend(t *testing.T) {
	backend := testutils.NewBackend()
	defer backend.Close()
	gateway := client.NewClient(backend.Config())

	m := NewMonitor(gateway, time.Hour, time.Second)
	r := m.Check(context.Background())
	assert.Equal(t, StatusConnected, r.Status)
	assert.Empty(t, r.LastError)

	backend.Fail("health", 503)
	r = m.Check(context.Background())
	assert.Equal(t, StatusDisconnected, r.Status)
	assert.Equal(t, "HTTP 503: Service Unavailable", r.LastError)
	assert.Equal(t, r, m.Report())
}

func TestMonitorCheckTimeout(t *testing.T) {
	m := NewMonitor(funcPinger(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), time.Hour, 20*time.Millisecond)

	start := time.Now()
	r := m.Check(context.Background())
	assert.Equal(t, StatusDisconnected, r.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), r.LastError)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMonitorTicks(t *testing.T) {
	var calls int32
	m := NewMonitor(funcPinger(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), 10*time.Millisecond, time.Second)

	m.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, 5*time.Millisecond)
	m.Stop()

	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
	assert.Equal(t, StatusConnected, m.Report().Status)
}

func TestMonitorStopAbortsCheck(t *testing.T) {
	var (
		once    sync.Once
		started = make(chan struct{})
		aborted = make(chan error, 1)
	)
	m := NewMonitor(funcPinger(func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		aborted <- ctx.Err()
		return ctx.Err()
	}), time.Hour, time.Hour)

	m.Start()
	<-started
	m.Stop()

	select {
	case err := <-aborted:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("check was not aborted by Stop")
	}
	m.Stop()
}
