package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/surveillance-engine/internal/repository"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
)

type AuditCleanupConfig struct {
	Interval      time.Duration `envconfig:"AUDIT_CLEANUP_INTERVAL" default:"24h"`
	RetentionDays int           `envconfig:"AUDIT_RETENTION_DAYS" default:"730"`
}

// AuditCleanupWorker trims audit rows past the retention horizon.
type AuditCleanupWorker struct {
	repo   repository.AuditRepository
	cfg    AuditCleanupConfig
	logger *logger.Logger
}

func NewAuditCleanupWorker(repo repository.AuditRepository, cfg AuditCleanupConfig, lg *logger.Logger) *AuditCleanupWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 730
	}
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	return &AuditCleanupWorker{repo: repo, cfg: cfg, logger: lg}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "audit cleanup pass failed")
			}
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.RetentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.logger.Info("audit logs trimmed", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}
