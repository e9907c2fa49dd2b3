package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"lokapos/agent/internal/connectivity"
	"lokapos/agent/internal/domain"
	"lokapos/agent/internal/store/memory"
	"lokapos/agent/internal/syncengine"
)

type countingRemote struct {
	cycles atomic.Int64
}

func (r *countingRemote) UpsertProducts(context.Context, string, []domain.Product) error { return nil }

func (r *countingRemote) SelectProducts(context.Context, string, bool) ([]domain.Product, error) {
	r.cycles.Add(1)
	return nil, nil
}

func (r *countingRemote) UpsertTransactions(context.Context, string, []domain.Transaction) error {
	return nil
}

func (r *countingRemote) SelectTransactions(context.Context, string) ([]domain.Transaction, error) {
	return nil, nil
}

type staticOwner string

func (o staticOwner) CurrentOwnerID() string { return string(o) }

func TestReconnectTriggersSync(t *testing.T) {
	monitor := connectivity.NewMonitor(nil, 0, nil)
	remote := &countingRemote{}
	engine := syncengine.New(memory.New(), remote, monitor, staticOwner("owner-1"), nil, nil)

	// Interval long enough that only the reconnect path can fire.
	s := New(engine, monitor, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	monitor.SetOnline(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if remote.cycles.Load() >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("reconnect never triggered a sync cycle")
}

func TestGoingOfflineTriggersNothing(t *testing.T) {
	monitor := connectivity.NewMonitor(nil, 0, nil)
	monitor.SetOnline(true)

	remote := &countingRemote{}
	engine := syncengine.New(memory.New(), remote, monitor, staticOwner("owner-1"), nil, nil)

	s := New(engine, monitor, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	monitor.SetOnline(false)
	time.Sleep(50 * time.Millisecond)

	if got := remote.cycles.Load(); got != 0 {
		t.Fatalf("cycles = %d, want 0 after going offline", got)
	}
}

func TestStopUnsubscribesFromMonitor(t *testing.T) {
	monitor := connectivity.NewMonitor(nil, 0, nil)
	remote := &countingRemote{}
	engine := syncengine.New(memory.New(), remote, monitor, staticOwner("owner-1"), nil, nil)

	s := New(engine, monitor, time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()

	monitor.SetOnline(true)
	time.Sleep(50 * time.Millisecond)

	if got := remote.cycles.Load(); got != 0 {
		t.Fatalf("cycles = %d, want 0 after Stop", got)
	}
}
