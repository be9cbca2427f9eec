package store

import (
	"log/slog"
	"sync"
	"time"
)

// CompactionPolicy gates the background orphan-vector sweep. The sweep
// runs only when the index has been idle for IdleTimeout since the last
// search, the orphan ratio exceeds OrphanThreshold, at least
// MinOrphanCount orphaned hashes exist (small indexes are not worth the
// churn), and Cooldown has elapsed since the previous sweep.
type CompactionPolicy struct {
	Enabled         bool
	OrphanThreshold float64 // orphans/total ratio in (0,1]
	MinOrphanCount  int
	IdleTimeout     time.Duration
	Cooldown        time.Duration
}

// Compactor runs PruneOrphanVectors in the background when the index
// goes idle. Callers signal activity with OnSearchComplete after every
// search; the sweep fires from an idle timer, never from the search
// path itself.
type Compactor struct {
	store  *Store
	policy CompactionPolicy
	logger *slog.Logger

	mu          sync.Mutex
	idleTimer   *time.Timer
	lastCompact time.Time
	compacting  bool
	stopped     bool
}

// NewCompactor builds a Compactor over s. Zero policy durations fall
// back to 30s idle and a 1h cooldown.
func NewCompactor(s *Store, policy CompactionPolicy, logger *slog.Logger) *Compactor {
	if policy.IdleTimeout <= 0 {
		policy.IdleTimeout = 30 * time.Second
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{store: s, policy: policy, logger: logger}
}

// OnSearchComplete resets the idle timer; the sweep becomes eligible
// once IdleTimeout passes with no further searches.
func (c *Compactor) OnSearchComplete() {
	if !c.policy.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.policy.IdleTimeout, c.onIdle)
}

func (c *Compactor) onIdle() {
	if !c.shouldCompact() {
		return
	}

	c.mu.Lock()
	if c.stopped || c.compacting {
		c.mu.Unlock()
		return
	}
	c.compacting = true
	c.mu.Unlock()

	pruned, err := c.store.PruneOrphanVectors()

	c.mu.Lock()
	c.compacting = false
	c.lastCompact = time.Now()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("background compaction failed", "error", err)
		return
	}
	c.logger.Info("background compaction pruned orphan vectors", "hashes", pruned)
}

// shouldCompact applies the policy gates in cheap-first order: cooldown
// before the orphan-stats query.
func (c *Compactor) shouldCompact() bool {
	c.mu.Lock()
	if c.stopped || c.compacting || time.Since(c.lastCompact) < c.policy.Cooldown {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	orphans, total, ratio, err := c.store.OrphanStats()
	if err != nil {
		c.logger.Warn("compaction orphan stats failed", "error", err)
		return false
	}
	if orphans < c.policy.MinOrphanCount {
		c.logger.Debug("compaction skipped: below minimum orphan count",
			"orphans", orphans, "min_required", c.policy.MinOrphanCount)
		return false
	}
	if ratio < c.policy.OrphanThreshold {
		c.logger.Debug("compaction skipped: below threshold",
			"ratio", ratio, "threshold", c.policy.OrphanThreshold)
		return false
	}
	c.logger.Debug("compaction eligible", "orphans", orphans, "total", total, "ratio", ratio)
	return true
}

// Stop cancels the idle timer and prevents any further sweeps. A sweep
// already past its gates finishes normally.
func (c *Compactor) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}
