package v1

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger reports whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PendingSyncer resends unsynced sections. *ProfileSync implements it.
type PendingSyncer interface {
	PendingUsers(ctx context.Context) ([]string, error)
	SyncPending(ctx context.Context, userID string) (int, error)
}

// MonitorConfig tunes the connectivity monitor.
type MonitorConfig struct {
	ProbeInterval time.Duration
	InitialDelay  time.Duration
	Concurrency   int
	ProbeTimeout  time.Duration
}

// Monitor probes the remote and rescans pending sections once per
// offline-to-online transition. The first successful probe after the
// initial delay counts as a transition.
type Monitor struct {
	pinger Pinger
	syncer PendingSyncer
	cfg    MonitorConfig
	logger *zap.Logger

	online  atomic.Bool
	rescans atomic.Int64
}

// NewMonitor creates a monitor; zero config values fall back to defaults.
func NewMonitor(pinger Pinger, syncer PendingSyncer, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{pinger: pinger, syncer: syncer, cfg: cfg, logger: logger}
}

// Online reports the result of the last probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Rescans returns how many rescans have run.
func (m *Monitor) Rescans() int64 {
	return m.rescans.Load()
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	delay := time.NewTimer(m.cfg.InitialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	m.check(ctx)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe and rescans on an offline-to-online transition.
func (m *Monitor) check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := m.pinger.Ping(pctx)
	cancel()

	up := err == nil
	was := m.online.Swap(up)
	switch {
	case up && !was:
		connectivityTransitions.WithLabelValues("online").Inc()
		m.logger.Info("Remote store reachable, resyncing pending profile sections")
		m.Rescan(ctx)
	case !up && was:
		connectivityTransitions.WithLabelValues("offline").Inc()
		m.logger.Warn("Remote store unreachable, saves stay local", zap.Error(err))
	}
}

// Rescan syncs every user with pending sections, bounded by Concurrency.
// It returns the number of sections synced.
func (m *Monitor) Rescan(ctx context.Context) int {
	m.rescans.Add(1)
	start := time.Now()
	defer func() { rescanDuration.Observe(time.Since(start).Seconds()) }()

	users, err := m.syncer.PendingUsers(ctx)
	if err != nil {
		m.logger.Error("Failed to list users with pending sections", zap.Error(err))
		return 0
	}

	var (
		g     errgroup.Group
		total atomic.Int64
	)
	g.SetLimit(m.cfg.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			n, err := m.syncer.SyncPending(ctx, userID)
			if err != nil {
				// one user's local read failing must not stop the others
				m.logger.Warn("Pending sync failed", zap.String("user_id", userID), zap.Error(err))
				return nil
			}
			total.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("Pending profile rescan complete",
		zap.Int("users", len(users)),
		zap.Int64("sections_synced", total.Load()),
	)
	return int(total.Load())
}
