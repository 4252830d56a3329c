// Package worker holds the background passes over the schedule store:
// the sweeper that advances item state, the reminder dispatcher and the
// audit retention cleanup. Every pass is batch-bounded and commits per
// item, so a crash mid-pass loses nothing and the next pass resumes.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	"github.com/jwalitptl/surveillance-engine/internal/service/surveillance"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
)

const sweeperActor = "system:sweeper"

// EscalationNotifier delivers escalation notices to clinicians.
type EscalationNotifier interface {
	SendEscalation(ctx context.Context, item *model.SurveillanceSchedule, recipient *model.Clinician, daysOverdue int) error
}

// SweeperConfig tunes the periodic sweep.
type SweeperConfig struct {
	Interval              time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	BatchSize             int           `envconfig:"SWEEP_BATCH_SIZE" default:"500"`
	EscalationDaysOverdue int           `envconfig:"ESCALATION_DAYS_OVERDUE"`
	GraceDaysOverdue      int           `envconfig:"GRACE_DAYS_OVERDUE"`
}

// Sweeper advances schedule items through their lifecycle: pending items
// past their window become overdue, long-overdue items escalate to the
// supervising clinician, and overdue recurring items past the grace
// period are superseded by their next occurrence.
type Sweeper struct {
	repo       repository.ScheduleRepository
	clinicians repository.ClinicianDirectory
	notifier   EscalationNotifier
	cfg        SweeperConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewSweeper(repo repository.ScheduleRepository, clinicians repository.ClinicianDirectory, notifier EscalationNotifier, cfg SweeperConfig, lg *logger.Logger, m *metrics.Metrics) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.EscalationDaysOverdue <= 0 {
		cfg.EscalationDaysOverdue = 30
	}
	if cfg.GraceDaysOverdue <= 0 {
		cfg.GraceDaysOverdue = 30
	}
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	if m == nil {
		m = metrics.New("surveillance")
	}
	return &Sweeper{
		repo:       repo,
		clinicians: clinicians,
		notifier:   notifier,
		cfg:        cfg,
		logger:     lg,
		metrics:    m,
		now:        time.Now,
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error(err, "sweep pass failed")
			}
		}
	}
}

// Sweep runs one full pass. Each phase is independent; a failure in one
// item is logged and the pass moves on.
func (w *Sweeper) Sweep(ctx context.Context) error {
	start := w.now()
	defer func() {
		w.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	if err := w.markOverdue(ctx); err != nil {
		return err
	}
	if err := w.escalate(ctx); err != nil {
		return err
	}
	return w.reschedule(ctx)
}

func (w *Sweeper) markOverdue(ctx context.Context) error {
	now := w.now()
	meta := model.RecordMeta{Actor: sweeperActor, At: now}

	items, err := w.repo.ListPendingPastWindow(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list items past window: %w", err)
	}

	for _, item := range items {
		ok, err := w.repo.MarkOverdue(ctx, item.ScheduleID, meta)
		if err != nil {
			w.logger.Error(err, "failed to mark item overdue", "schedule_id", item.ScheduleID)
			continue
		}
		if ok {
			w.metrics.SweepTransitions.WithLabelValues("pending_overdue").Inc()
		}
	}
	return nil
}

func (w *Sweeper) escalate(ctx context.Context) error {
	now := w.now()
	meta := model.RecordMeta{Actor: sweeperActor, At: now}
	cutoff := now.AddDate(0, 0, -w.cfg.EscalationDaysOverdue)

	items, err := w.repo.ListOverdueForEscalation(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list items for escalation: %w", err)
	}

	for _, item := range items {
		if item.AssignedClinician == nil {
			w.logger.Warn("overdue item has no assigned clinician, escalation skipped",
				"schedule_id", item.ScheduleID)
			continue
		}

		recipient, err := w.clinicians.SupervisingLead(ctx, *item.AssignedClinician)
		if err != nil {
			w.logger.Error(err, "failed to resolve escalation recipient", "schedule_id", item.ScheduleID)
			continue
		}

		daysOverdue := int(now.Sub(item.DueWindowEnd).Hours() / 24)
		if err := w.notifier.SendEscalation(ctx, item, recipient, daysOverdue); err != nil {
			w.logger.Error(err, "failed to send escalation", "schedule_id", item.ScheduleID)
			continue
		}

		// Flag after a successful send: a crash in between re-sends,
		// never drops.
		ok, err := w.repo.MarkEscalationSent(ctx, item.ScheduleID, now, meta)
		if err != nil {
			w.logger.Error(err, "failed to flag escalation", "schedule_id", item.ScheduleID)
			continue
		}
		if ok {
			w.metrics.SweepTransitions.WithLabelValues("escalated").Inc()
		}
	}
	return nil
}

func (w *Sweeper) reschedule(ctx context.Context) error {
	now := w.now()
	meta := model.RecordMeta{Actor: sweeperActor, At: now}
	cutoff := now.AddDate(0, 0, -w.cfg.GraceDaysOverdue)

	items, err := w.repo.ListOverdueRecurringPastGrace(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list items for reschedule: %w", err)
	}

	for _, item := range items {
		successor := surveillance.NextOccurrence(item, meta)
		if successor == nil {
			// Past the end of its surveillance period; the item stays
			// overdue until an operator resolves it.
			continue
		}

		if _, err := w.repo.CreateIfAbsent(ctx, successor); err != nil {
			w.logger.Error(err, "failed to create reschedule successor", "schedule_id", item.ScheduleID)
			continue
		}

		ok, err := w.repo.MarkRescheduled(ctx, item.ScheduleID, meta)
		if err != nil {
			w.logger.Error(err, "failed to mark item rescheduled", "schedule_id", item.ScheduleID)
			continue
		}
		if ok {
			w.metrics.SchedulesCreated.WithLabelValues("reschedule").Inc()
			w.metrics.SweepTransitions.WithLabelValues("overdue_rescheduled").Inc()
		}
	}
	return nil
}
