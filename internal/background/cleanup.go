package background

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drops expired state from one in-memory store and reports how
// many entries it removed
type Sweeper interface {
	Sweep() int
}

// SweepFunc adapts a plain function to Sweeper
type SweepFunc func() int

func (f SweepFunc) Sweep() int { return f() }

// CleanupManager periodically evicts expired counters, lockouts, login
// attempts and idle sessions
type CleanupManager struct {
	cron     *cron.Cron
	sweepers map[string]Sweeper
	order    []string
	logger   *slog.Logger
	interval time.Duration
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		cron:     cron.New(),
		sweepers: make(map[string]Sweeper),
		logger:   logger,
		interval: interval,
	}
}

// Register adds a named sweeper. Registering an existing name replaces it.
func (cm *CleanupManager) Register(name string, s Sweeper) {
	if _, ok := cm.sweepers[name]; !ok {
		cm.order = append(cm.order, name)
	}
	cm.sweepers[name] = s
}

// Start schedules the sweep and runs it once immediately
func (cm *CleanupManager) Start() error {
	if cm.interval < time.Second {
		return fmt.Errorf("cleanup interval must be at least 1s, got %s", cm.interval)
	}
	schedule := fmt.Sprintf("@every %s", cm.interval)
	if _, err := cm.cron.AddFunc(schedule, func() { cm.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	cm.RunOnce()
	cm.cron.Start()
	cm.logger.Info("cleanup manager started", slog.Duration("interval", cm.interval))
	return nil
}

// RunOnce runs every registered sweeper and returns the removed count per store
func (cm *CleanupManager) RunOnce() map[string]int {
	removed := make(map[string]int, len(cm.order))
	for _, name := range cm.order {
		n := cm.sweep(name, cm.sweepers[name])
		removed[name] = n
		if n > 0 {
			cm.logger.Info("expired entries removed",
				slog.String("store", name),
				slog.Int("removed", n),
			)
		}
	}
	return removed
}

func (cm *CleanupManager) sweep(name string, s Sweeper) (n int) {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("cleanup sweep panicked",
				slog.String("store", name),
				slog.Any("panic", r),
			)
			n = 0
		}
	}()
	return s.Sweep()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (cm *CleanupManager) Stop() {
	<-cm.cron.Stop().Done()
	cm.logger.Info("cleanup manager stopped")
}
