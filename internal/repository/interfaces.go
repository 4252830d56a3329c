package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

// All repository interfaces in one file
type (
	// ScheduleRepository is the write contract of the schedule store.
	// Every state transition is a single conditional update keyed by
	// schedule_id and current status; the boolean result reports whether
	// the precondition held, so two racing workers produce exactly one
	// effective transition.
	ScheduleRepository interface {
		// CreateIfAbsent inserts the item unless its schedule_id already
		// exists. Returns false on the no-op path; expansion and
		// recurrence rely on this for idempotence.
		CreateIfAbsent(ctx context.Context, item *model.SurveillanceSchedule) (bool, error)
		Get(ctx context.Context, scheduleID string) (*model.SurveillanceSchedule, error)
		List(ctx context.Context, filters *model.ScheduleFilters) ([]*model.SurveillanceSchedule, error)
		ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.SurveillanceSchedule, error)

		// FindActiveInWindow returns pending/overdue items for the
		// patient and type whose due window contains performed, ordered
		// by due date ascending.
		FindActiveInWindow(ctx context.Context, patientID uuid.UUID, surveillanceType string, performed time.Time) ([]*model.SurveillanceSchedule, error)

		// Worker scans, bounded by limit.
		ListPendingPastWindow(ctx context.Context, now time.Time, limit int) ([]*model.SurveillanceSchedule, error)
		ListOverdueForEscalation(ctx context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error)
		ListOverdueRecurringPastGrace(ctx context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error)
		ListPendingForReminder(ctx context.Context, dueOnOrBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error)

		// Conditional transitions.
		MarkCompleted(ctx context.Context, scheduleID string, investigationID uuid.UUID, performed time.Time, meta model.RecordMeta) (bool, error)
		MarkOverdue(ctx context.Context, scheduleID string, meta model.RecordMeta) (bool, error)
		MarkRescheduled(ctx context.Context, scheduleID string, meta model.RecordMeta) (bool, error)
		MarkEscalationSent(ctx context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error)
		MarkReminderSent(ctx context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error)

		// ApplyUpdate applies a manual override, guarded by the
		// updated_at value the caller read (optimistic concurrency).
		ApplyUpdate(ctx context.Context, scheduleID string, upd *model.SurveillanceScheduleUpdate, expectedUpdatedAt time.Time, meta model.RecordMeta) (bool, error)

		Summary(ctx context.Context, now time.Time) (*model.SurveillanceSummary, error)
	}

	// PatientDirectory reads reminder contact details from the clinical
	// store. The engine never writes patients.
	PatientDirectory interface {
		GetContact(ctx context.Context, patientID uuid.UUID) (*model.PatientContact, error)
	}

	// ClinicianDirectory resolves escalation recipients.
	ClinicianDirectory interface {
		Get(ctx context.Context, clinicianID uuid.UUID) (*model.Clinician, error)
		SupervisingLead(ctx context.Context, clinicianID uuid.UUID) (*model.Clinician, error)
	}

	// NotificationRepository is the dispatch log.
	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	}

	// AuditRepository stores the audit trail.
	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
	}
)
