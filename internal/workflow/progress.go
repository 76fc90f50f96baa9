package workflow

import (
	"context"
	"log/slog"
	"math"
	"time"

	"scribe/internal/logging"
	"scribe/internal/queue"
)

const probeTimeout = 10 * time.Second

// progressPlan decides the estimated progress written on each pacer tick.
//
// With a known media duration the expected run time is duration *
// realtimeFactor, and every tick adds cap*interval/expected points (at least
// one). Without a duration the fixed step sequence is walked one step per
// tick. Either way the value never exceeds cap, which stays below 100.
type progressPlan struct {
	cap     int
	steps   []int
	perTick float64
}

func newProgressPlan(limit int, steps []int, interval time.Duration, durationSeconds, realtimeFactor float64) progressPlan {
	if limit <= 0 || limit >= 100 {
		limit = 95
	}
	plan := progressPlan{cap: limit, steps: steps}
	expected := durationSeconds * realtimeFactor
	if durationSeconds > 0 && realtimeFactor > 0 && interval > 0 && expected > 0 {
		plan.perTick = math.Max(1, float64(limit)*interval.Seconds()/expected)
	}
	return plan
}

// next returns the progress for the given 1-based tick. It never lowers
// current.
func (p progressPlan) next(current, tick int) int {
	target := current
	switch {
	case p.perTick > 0:
		target = int(math.Round(p.perTick * float64(tick)))
	case len(p.steps) > 0:
		idx := tick - 1
		if idx >= len(p.steps) {
			idx = len(p.steps) - 1
		}
		if idx >= 0 {
			target = p.steps[idx]
		}
	}
	if target > p.cap {
		target = p.cap
	}
	if target < current {
		return current
	}
	return target
}

// pace writes estimated progress for task.Files[index] until ctx is
// cancelled. It runs beside the transcription call and is the only writer of
// the task while it runs.
func (m *Manager) pace(ctx context.Context, logger *slog.Logger, task *queue.Task, index int) {
	interval := m.cfg.ProgressInterval()
	if interval <= 0 {
		return
	}
	file := &task.Files[index]

	var seconds float64
	if m.probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		d, err := m.probe(probeCtx, file.Path)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("duration probe failed; using fixed progress steps", logging.Error(err))
		} else {
			seconds = d
		}
	}
	wf := m.cfg.Workflow
	plan := newProgressPlan(wf.ProgressCap, wf.ProgressFixedSteps, interval, seconds, wf.RealtimeFactor)
	sampler := logging.NewProgressSampler(25)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next := plan.next(file.Progress, tick)
		if next == file.Progress {
			continue
		}
		file.UpdateProgress(next)
		if err := m.store.UpsertTask(ctx, task); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.WarnWithContext(logger, "progress update failed", "progress_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "pollers see stale progress until the file finishes"),
			)
			continue
		}
		if sampler.ShouldLog(next) {
			logger.Debug("transcription progress",
				logging.Int("progress", next),
				logging.Float64("media_seconds", seconds),
				logging.String(logging.FieldEventType, "file_progress"),
			)
		}
	}
}
