package scheduler

import (
	"auction-engine/utils"
	"context"
	"time"
)

// Periodic runs a task on a fixed interval. Runs never overlap: the loop runs the task
// inline, ticks missed while a run is in flight are dropped, and Trigger requests made
// during a run coalesce into a single follow-up run.
type Periodic struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	kick     chan struct{}
}

// NewPeriodic creates a Periodic named name that calls task every interval
func NewPeriodic(name string, interval time.Duration, task func(ctx context.Context) error) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		kick:     make(chan struct{}, 1),
	}
}

// Trigger requests an immediate run without waiting for the next tick
func (p *Periodic) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. When runFirst is set the task runs once before the first tick.
func (p *Periodic) Run(ctx context.Context, runFirst bool) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if runFirst {
		p.runOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.kick:
			p.runOnce(ctx)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context) {
	start := time.Now()
	if err := p.task(ctx); err != nil {
		utils.Error("periodic task failed", map[string]any{
			"task":    p.name,
			"error":   err.Error(),
			"elapsed": time.Since(start).String(),
		})
		return
	}
	utils.Debug("periodic task finished", map[string]any{
		"task":    p.name,
		"elapsed": time.Since(start).String(),
	})
}
