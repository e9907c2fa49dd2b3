package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether the remote side is currently reachable.
type Probe func(ctx context.Context) bool

// Monitor tracks the online/offline signal and notifies subscribers on
// transitions. It decides nothing itself; consumers (the sync scheduler)
// choose how to react.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int

	probe    Probe
	interval time.Duration
	logger   *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMonitor(probe Probe, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		subs:     make(map[int]func(bool)),
		probe:    probe,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on every online/offline transition
// and returns its unsubscribe handle. Unsubscribing twice is harmless.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetOnline feeds the host connectivity signal. Subscribers run outside the
// lock so a callback may subscribe or unsubscribe without deadlocking.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	callbacks := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, fn := range callbacks {
		fn(online)
	}
}

// Start launches the probe loop. A monitor without a probe is driven purely
// by SetOnline and Start is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if m.probe == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.runProbe(ctx)
		for {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runProbe(ctx)
			}
		}
	}()
}

func (m *Monitor) runProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	m.SetOnline(m.probe(probeCtx))
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
