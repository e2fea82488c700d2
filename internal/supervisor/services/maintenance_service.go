// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package services

import (
	"context"
	"time"

	"github.com/tomtom215/tenpo/internal/logging"
	"github.com/tomtom215/tenpo/internal/metrics"
)

// Task is one periodic cleanup job. Run returns how many items it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// FlowCleaner removes expired auth flows.
type FlowCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CacheCleaner evicts expired cache entries.
type CacheCleaner interface {
	Cleanup() int
}

// FlowCleanupTask removes expired flows and counts them.
func FlowCleanupTask(store FlowCleaner) Task {
	return Task{
		Name: "flow-store",
		Run: func(ctx context.Context) (int, error) {
			n, err := store.CleanupExpired(ctx)
			if n > 0 {
				metrics.FlowStoreCleanupRemoved.Add(float64(n))
			}
			return n, err
		},
	}
}

// CacheCleanupTask evicts expired in-process cache entries.
func CacheCleanupTask(name string, c CacheCleaner) Task {
	return Task{
		Name: name,
		Run: func(context.Context) (int, error) {
			return c.Cleanup(), nil
		},
	}
}

// MaintenanceService runs its tasks on a fixed interval. A failing task is
// logged and retried on the next tick; it never stops the service.
type MaintenanceService struct {
	interval time.Duration
	tasks    []Task
}

// NewMaintenanceService creates the service. interval defaults to 5 minutes.
func NewMaintenanceService(interval time.Duration, tasks ...Task) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{interval: interval, tasks: tasks}
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every task once.
func (s *MaintenanceService) RunOnce(ctx context.Context) {
	for _, task := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		n, err := task.Run(ctx)
		if err != nil {
			logging.Warn().Err(err).Str("task", task.Name).Msg("Maintenance task failed")
			continue
		}
		if n > 0 {
			logging.Debug().
				Str("task", task.Name).
				Int("removed", n).
				Dur("duration", time.Since(start)).
				Msg("Maintenance task finished")
		}
	}
}

func (s *MaintenanceService) String() string {
	return "maintenance"
}
