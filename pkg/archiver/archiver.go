// Package archiver sweeps terminal-bound sessions into the archive on a
// cron schedule. Rejected sessions older than the retention window are
// archived through the regular command path so the audit trail records the
// transition like any other.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/services"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "0 * * * *"

type Archiver struct {
	sessions  *services.Session
	store     persistence.Persistence
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

// New creates an archiver sweeping rejected sessions idle for longer than
// retention. An empty schedule uses DefaultSchedule (hourly).
func New(sessions *services.Session, store persistence.Persistence, retention time.Duration, schedule string, logger *slog.Logger) (*Archiver, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid archiver schedule %q: %w", schedule, err)
	}

	if retention <= 0 {
		return nil, errors.New("archiver retention must be positive")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Archiver{
		sessions:  sessions,
		store:     store,
		retention: retention,
		schedule:  schedule,
		logger:    logger.With("module", "archiver"),
	}, nil
}

// Start schedules the sweep. The cron runner owns its own goroutine; ctx
// cancellation is observed per sweep, not by the runner itself, so callers
// must also Stop.
func (a *Archiver) Start(ctx context.Context) error {
	a.cron = cron.New()

	_, err := a.cron.AddFunc(a.schedule, func() {
		if err := a.Sweep(ctx); err != nil {
			a.logger.Error("archive sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule archive sweep: %w", err)
	}

	a.cron.Start()
	a.logger.Info("archiver started", "schedule", a.schedule, "retention", a.retention.String())

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (a *Archiver) Stop() {
	if a.cron == nil {
		return
	}

	<-a.cron.Stop().Done()
}

// Sweep archives every rejected session whose last update is older than the
// retention window. Sessions that fail to archive are logged and skipped;
// one bad session does not abort the sweep.
func (a *Archiver) Sweep(ctx context.Context) error {
	rejected, err := a.store.SessionsByState(ctx, models.StateRejected)
	if err != nil {
		return fmt.Errorf("failed to list rejected sessions: %w", err)
	}

	cutoff := time.Now().Add(-a.retention)
	archived := 0

	for _, session := range rejected {
		if session.UpdatedAt.After(cutoff) {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := a.sessions.Archive(ctx, session.ID, models.ActorSystem); err != nil {
			a.logger.Warn("failed to archive session", "session_id", session.ID, "error", err)

			continue
		}

		archived++
	}

	if archived > 0 {
		a.logger.Info("archive sweep completed", "archived", archived, "candidates", len(rejected))
	}

	return nil
}
