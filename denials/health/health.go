// Package health watches backend connectivity for the dashboard's status indicator.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/CMSgov/denial-review-app/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusChecking     Status = "checking"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Pinger is anything that can check the backend, normally the gateway.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the latest known backend state.
type Report struct {
	Status    Status    `json:"status"`
	LastError string    `json:"lastError,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
}

// Monitor pings the backend on a fixed interval, the first time immediately. Each check
// gets its own timeout and is aborted when the monitor stops.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	report Report

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewMonitor(pinger Pinger, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		report:   Report{Status: StatusChecking},
	}
}

// Start begins checking in the background. It must be called at most once.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	ticker := backoff.NewTicker(backoff.NewConstantBackOff(m.interval))
	go func() {
		defer close(m.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop ends the background loop and aborts a check in progress. It waits for the loop to
// exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel == nil {
			return
		}
		m.cancel()
		<-m.done
	})
}

// Check pings the backend once, bounded by the per-check timeout, and records the result.
func (m *Monitor) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)

	r := Report{Status: StatusConnected, CheckedAt: time.Now()}
	if err != nil {
		r.Status = StatusDisconnected
		r.LastError = err.Error()
	}

	m.mu.Lock()
	prev := m.report.Status
	m.report = r
	m.mu.Unlock()

	if prev != r.Status {
		entry := log.Health.WithFields(logrus.Fields{"previous": prev, "current": r.Status})
		if err != nil {
			entry.Warnf("Backend unreachable: %s", err.Error())
		} else {
			entry.Info("Backend reachable")
		}
	}
	return r
}

func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report
}
