// Package cleanup sweeps the file-backed stores in the background. Eviction
// also happens inline on writes, so the sweep only matters for deployments
// quiet enough that writes stop arriving.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type routePruner interface {
	Prune() (int, error)
}

type ratePruner interface {
	Prune(now time.Time, window time.Duration) (int, error)
}

type Job struct {
	routes     routePruner
	rate       ratePruner
	rateWindow time.Duration
	interval   time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func New(routes routePruner, rate ratePruner, rateWindow, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		routes:     routes,
		rate:       rate,
		rateWindow: rateWindow,
		interval:   interval,
		now:        time.Now,
		logger:     logger,
	}
}

// Run performs a single sweep. Errors are logged, not returned; one failed
// store must not stop the others from being pruned.
func (j *Job) Run() {
	if j.routes != nil {
		dropped, err := j.routes.Prune()
		if err != nil {
			j.logger.Warn("route table prune failed", zap.Error(err))
		} else if dropped > 0 {
			j.logger.Info("route table pruned", zap.Int("dropped", dropped))
		}
	}

	if j.rate != nil && j.rateWindow > 0 {
		dropped, err := j.rate.Prune(j.now(), j.rateWindow)
		if err != nil {
			j.logger.Warn("rate window prune failed", zap.Error(err))
		} else if dropped > 0 {
			j.logger.Info("rate windows pruned", zap.Int("users_dropped", dropped))
		}
	}
}

// Start sweeps on the configured interval until the context is cancelled.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run()
		}
	}
}
