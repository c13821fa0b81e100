package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// Watcher runs the pipeline on a recurring schedule for watch mode.
type Watcher struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewWatcher wires the interval driver with the pipeline.
func NewWatcher(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{driver: driver, pipeline: pipeline, logger: logger.With("component", "watcher")}
}

// Start registers the pipeline with the driver. Each trigger runs one
// full pass; a failing pass is logged and the schedule keeps going.
func (w *Watcher) Start(ctx context.Context) error {
	if w.driver == nil || w.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		w.logger.Info("scheduled pass starting", "trigger", trigger)
		if _, err := w.pipeline.Run(ctx); err != nil {
			w.logger.Error("scheduled pass failed", "error", err)
		}
	}

	return w.driver.Start(ctx, job)
}

// Stop tears down the underlying driver.
func (w *Watcher) Stop(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}
	return w.driver.Stop(ctx)
}
