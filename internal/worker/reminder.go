package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
)

const reminderActor = "system:reminder"

// ReminderNotifier delivers reminder notices to patients.
type ReminderNotifier interface {
	SendReminder(ctx context.Context, item *model.SurveillanceSchedule, contact *model.PatientContact) error
}

type ReminderConfig struct {
	Interval           time.Duration `envconfig:"REMINDER_INTERVAL" default:"1h"`
	BatchSize          int           `envconfig:"REMINDER_BATCH_SIZE" default:"500"`
	ReminderDaysBefore int           `envconfig:"REMINDER_DAYS_BEFORE"`
}

// ReminderWorker sends each pending item exactly one reminder once its
// due date comes within the lead window. The reminder_sent flag is
// flipped only after a successful send.
type ReminderWorker struct {
	repo     repository.ScheduleRepository
	patients repository.PatientDirectory
	notifier ReminderNotifier
	cfg      ReminderConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewReminderWorker(repo repository.ScheduleRepository, patients repository.PatientDirectory, notifier ReminderNotifier, cfg ReminderConfig, lg *logger.Logger, m *metrics.Metrics) *ReminderWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.ReminderDaysBefore <= 0 {
		cfg.ReminderDaysBefore = 14
	}
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	if m == nil {
		m = metrics.New("surveillance")
	}
	return &ReminderWorker{
		repo:     repo,
		patients: patients,
		notifier: notifier,
		cfg:      cfg,
		logger:   lg,
		metrics:  m,
		now:      time.Now,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil {
				w.logger.Error(err, "reminder pass failed")
			}
		}
	}
}

// Run executes one reminder pass.
func (w *ReminderWorker) Run(ctx context.Context) error {
	now := w.now()
	meta := model.RecordMeta{Actor: reminderActor, At: now}
	horizon := now.AddDate(0, 0, w.cfg.ReminderDaysBefore)

	items, err := w.repo.ListPendingForReminder(ctx, horizon, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list items for reminder: %w", err)
	}

	for _, item := range items {
		contact, err := w.patients.GetContact(ctx, item.PatientID)
		if err != nil {
			w.logger.Error(err, "failed to load patient contact", "schedule_id", item.ScheduleID)
			continue
		}
		if !contact.SendEmailReminder || contact.Email == "" {
			// Opted out or unreachable. The flag stays unset so the item
			// picks up a reminder if the patient opts in before the due
			// date.
			continue
		}

		if err := w.notifier.SendReminder(ctx, item, contact); err != nil {
			w.logger.Error(err, "failed to send reminder", "schedule_id", item.ScheduleID)
			continue
		}

		if _, err := w.repo.MarkReminderSent(ctx, item.ScheduleID, now, meta); err != nil {
			w.logger.Error(err, "failed to flag reminder", "schedule_id", item.ScheduleID)
		}
	}
	return nil
}
