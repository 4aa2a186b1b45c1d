package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigdata5911/sales-agent/internal/store"
)

// Follow-up sweep defaults.
const (
	// DefaultFollowUpDelay is how long a contacted lead may sit quiet
	// before a follow-up is sent.
	DefaultFollowUpDelay = 24 * time.Hour
	// DefaultSweepCron runs the sweep at the top of every hour.
	DefaultSweepCron = "0 * * * *"
)

// FollowUpSender sends a follow-up message to one lead.
type FollowUpSender interface {
	SendFollowUp(ctx context.Context, leadID int64) error
}

// FollowUpSweeper finds contacted leads whose last activity is older than
// the configured delay and sends each a follow-up.
type FollowUpSweeper struct {
	store  store.Store
	sender FollowUpSender
	delay  time.Duration
}

// NewFollowUpSweeper creates a sweeper. A non-positive delay falls back
// to DefaultFollowUpDelay.
func NewFollowUpSweeper(st store.Store, sender FollowUpSender, delay time.Duration) *FollowUpSweeper {
	if delay <= 0 {
		delay = DefaultFollowUpDelay
	}
	return &FollowUpSweeper{store: st, sender: sender, delay: delay}
}

// Sweep runs one pass. Per-lead failures are logged and the sweep moves
// on; a lead that cannot be reached now is picked up by a later pass.
func (w *FollowUpSweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.delay)
	leads, err := w.store.ListLeadsForFollowUp(cutoff)
	if err != nil {
		slog.Error("FollowUpSweeper.Sweep: failed to list leads", "error", err)
		return err
	}
	if len(leads) == 0 {
		slog.Debug("FollowUpSweeper.Sweep: no leads due")
		return nil
	}

	slog.Info("FollowUpSweeper.Sweep: sending follow-ups", "count", len(leads))
	for _, lead := range leads {
		if err := w.sender.SendFollowUp(ctx, lead.ID); err != nil {
			slog.Error("FollowUpSweeper.Sweep: follow-up failed", "error", err, "leadID", lead.ID)
		}
	}
	return nil
}

// Register schedules the sweep on the given scheduler. An empty
// expression uses DefaultSweepCron.
func (w *FollowUpSweeper) Register(s *Scheduler, expr string) error {
	if expr == "" {
		expr = DefaultSweepCron
	}
	return s.AddJob(expr, func() {
		if err := w.Sweep(context.Background()); err != nil {
			slog.Error("FollowUpSweeper: scheduled sweep failed", "error", err)
		}
	})
}
