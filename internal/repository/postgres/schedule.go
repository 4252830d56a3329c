package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

const scheduleColumns = `
	schedule_id, lineage_id, patient_id, episode_id, surveillance_type,
	protocol, description, due_date, due_window_start, due_window_end,
	status, frequency_months, end_surveillance_date, recurrence_count,
	investigation_id, completed_date, assigned_clinician, notes,
	reminder_sent, reminder_sent_date, escalation_sent, escalation_sent_date,
	created_at, created_by, updated_at, updated_by`

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *scheduleRepository) CreateIfAbsent(ctx context.Context, item *model.SurveillanceSchedule) (bool, error) {
	query := `
		INSERT INTO surveillance_schedules (` + scheduleColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		ON CONFLICT (schedule_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		item.ScheduleID,
		item.LineageID,
		item.PatientID,
		item.EpisodeID,
		item.SurveillanceType,
		item.Protocol,
		item.Description,
		item.DueDate,
		item.DueWindowStart,
		item.DueWindowEnd,
		item.Status,
		item.FrequencyMonths,
		item.EndSurveillanceDate,
		item.RecurrenceCount,
		item.InvestigationID,
		item.CompletedDate,
		item.AssignedClinician,
		item.Notes,
		item.ReminderSent,
		item.ReminderSentDate,
		item.EscalationSent,
		item.EscalationSentDate,
		item.CreatedAt,
		item.CreatedBy,
		item.UpdatedAt,
		item.UpdatedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create schedule item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *scheduleRepository) Get(ctx context.Context, scheduleID string) (*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + ` FROM surveillance_schedules WHERE schedule_id = $1`

	var item model.SurveillanceSchedule
	err := r.db.GetContext(ctx, &item, query, scheduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("schedule", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule item: %w", err)
	}
	return &item, nil
}

func (r *scheduleRepository) List(ctx context.Context, filters *model.ScheduleFilters) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + ` FROM surveillance_schedules WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.EpisodeID != uuid.Nil {
		query += fmt.Sprintf(" AND episode_id = $%d", argCount)
		args = append(args, filters.EpisodeID)
		argCount++
	}
	if filters.SurveillanceType != "" {
		query += fmt.Sprintf(" AND surveillance_type = $%d", argCount)
		args = append(args, filters.SurveillanceType)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.DueAfter.IsZero() {
		query += fmt.Sprintf(" AND due_date >= $%d", argCount)
		args = append(args, filters.DueAfter)
		argCount++
	}
	if !filters.DueBefore.IsZero() {
		query += fmt.Sprintf(" AND due_date <= $%d", argCount)
		args = append(args, filters.DueBefore)
		argCount++
	}

	query += " ORDER BY due_date ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
	}

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schedule items: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE episode_id = $1
		ORDER BY due_date ASC`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, episodeID); err != nil {
		return nil, fmt.Errorf("failed to list schedule items for episode: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) FindActiveInWindow(ctx context.Context, patientID uuid.UUID, surveillanceType string, performed time.Time) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE patient_id = $1
		AND surveillance_type = $2
		AND status IN ('pending', 'overdue')
		AND due_window_start <= $3
		AND due_window_end >= $3
		ORDER BY due_date ASC`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, patientID, surveillanceType, performed); err != nil {
		return nil, fmt.Errorf("failed to find active items in window: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) ListPendingPastWindow(ctx context.Context, now time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE status = 'pending'
		AND due_window_end < $1
		ORDER BY due_window_end ASC
		LIMIT $2`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending items past window: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) ListOverdueForEscalation(ctx context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE status = 'overdue'
		AND escalation_sent = false
		AND due_window_end < $1
		ORDER BY due_window_end ASC
		LIMIT $2`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, windowEndBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list overdue items for escalation: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) ListOverdueRecurringPastGrace(ctx context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE status = 'overdue'
		AND frequency_months IS NOT NULL
		AND due_window_end < $1
		ORDER BY due_window_end ASC
		LIMIT $2`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, windowEndBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list overdue recurring items: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) ListPendingForReminder(ctx context.Context, dueOnOrBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	query := `SELECT` + scheduleColumns + `
		FROM surveillance_schedules
		WHERE status = 'pending'
		AND reminder_sent = false
		AND due_date <= $1
		ORDER BY due_date ASC
		LIMIT $2`

	var items []*model.SurveillanceSchedule
	if err := r.db.SelectContext(ctx, &items, query, dueOnOrBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending items for reminder: %w", err)
	}
	return items, nil
}

func (r *scheduleRepository) conditionalExec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *scheduleRepository) MarkCompleted(ctx context.Context, scheduleID string, investigationID uuid.UUID, performed time.Time, meta model.RecordMeta) (bool, error) {
	query := `
		UPDATE surveillance_schedules
		SET status = 'completed', investigation_id = $1, completed_date = $2,
			updated_at = $3, updated_by = $4
		WHERE schedule_id = $5
		AND status IN ('pending', 'overdue')
	`
	ok, err := r.conditionalExec(ctx, query, investigationID, performed, meta.At, meta.Actor, scheduleID)
	if err != nil {
		return false, fmt.Errorf("failed to mark schedule completed: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) MarkOverdue(ctx context.Context, scheduleID string, meta model.RecordMeta) (bool, error) {
	query := `
		UPDATE surveillance_schedules
		SET status = 'overdue', updated_at = $1, updated_by = $2
		WHERE schedule_id = $3
		AND status = 'pending'
	`
	ok, err := r.conditionalExec(ctx, query, meta.At, meta.Actor, scheduleID)
	if err != nil {
		return false, fmt.Errorf("failed to mark schedule overdue: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) MarkRescheduled(ctx context.Context, scheduleID string, meta model.RecordMeta) (bool, error) {
	query := `
		UPDATE surveillance_schedules
		SET status = 'rescheduled', updated_at = $1, updated_by = $2
		WHERE schedule_id = $3
		AND status = 'overdue'
	`
	ok, err := r.conditionalExec(ctx, query, meta.At, meta.Actor, scheduleID)
	if err != nil {
		return false, fmt.Errorf("failed to mark schedule rescheduled: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) MarkEscalationSent(ctx context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error) {
	query := `
		UPDATE surveillance_schedules
		SET escalation_sent = true, escalation_sent_date = $1,
			updated_at = $2, updated_by = $3
		WHERE schedule_id = $4
		AND status = 'overdue'
		AND escalation_sent = false
	`
	ok, err := r.conditionalExec(ctx, query, at, meta.At, meta.Actor, scheduleID)
	if err != nil {
		return false, fmt.Errorf("failed to mark escalation sent: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) MarkReminderSent(ctx context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error) {
	query := `
		UPDATE surveillance_schedules
		SET reminder_sent = true, reminder_sent_date = $1,
			updated_at = $2, updated_by = $3
		WHERE schedule_id = $4
		AND status = 'pending'
		AND reminder_sent = false
	`
	ok, err := r.conditionalExec(ctx, query, at, meta.At, meta.Actor, scheduleID)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) ApplyUpdate(ctx context.Context, scheduleID string, upd *model.SurveillanceScheduleUpdate, expectedUpdatedAt time.Time, meta model.RecordMeta) (bool, error) {
	query := `UPDATE surveillance_schedules SET updated_at = $1, updated_by = $2`
	args := []interface{}{meta.At, meta.Actor}
	argCount := 3

	if upd.DueDate != nil {
		query += fmt.Sprintf(", due_date = $%d", argCount)
		args = append(args, *upd.DueDate)
		argCount++
	}
	if upd.DueWindowStart != nil {
		query += fmt.Sprintf(", due_window_start = $%d", argCount)
		args = append(args, *upd.DueWindowStart)
		argCount++
	}
	if upd.DueWindowEnd != nil {
		query += fmt.Sprintf(", due_window_end = $%d", argCount)
		args = append(args, *upd.DueWindowEnd)
		argCount++
	}
	if upd.Status != nil {
		query += fmt.Sprintf(", status = $%d", argCount)
		args = append(args, *upd.Status)
		argCount++
	}
	if upd.Notes != nil {
		query += fmt.Sprintf(", notes = $%d", argCount)
		args = append(args, *upd.Notes)
		argCount++
	}
	if upd.AssignedClinician != nil {
		query += fmt.Sprintf(", assigned_clinician = $%d", argCount)
		args = append(args, *upd.AssignedClinician)
		argCount++
	}
	if upd.ResetReminder {
		query += ", reminder_sent = false, reminder_sent_date = NULL"
	}

	query += fmt.Sprintf(" WHERE schedule_id = $%d AND updated_at = $%d AND status IN ('pending', 'overdue')", argCount, argCount+1)
	args = append(args, scheduleID, expectedUpdatedAt)

	ok, err := r.conditionalExec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to apply schedule update: %w", err)
	}
	return ok, nil
}

func (r *scheduleRepository) Summary(ctx context.Context, now time.Time) (*model.SurveillanceSummary, error) {
	summary := &model.SurveillanceSummary{
		ByType: make(map[string]model.TypeBreakdown),
	}

	countsQuery := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'overdue') AS overdue,
			COUNT(*) FILTER (WHERE status IN ('pending', 'overdue')
				AND due_date >= $1 AND due_date < $1 + INTERVAL '7 days') AS due_this_week,
			COUNT(*) FILTER (WHERE status IN ('pending', 'overdue')
				AND due_date >= date_trunc('month', $1::timestamptz)
				AND due_date < date_trunc('month', $1::timestamptz) + INTERVAL '1 month') AS due_this_month,
			COUNT(*) FILTER (WHERE status = 'completed'
				AND completed_date >= date_trunc('month', $1::timestamptz)
				AND completed_date < date_trunc('month', $1::timestamptz) + INTERVAL '1 month') AS completed_this_month
		FROM surveillance_schedules
	`
	var counts struct {
		Total              int `db:"total"`
		Pending            int `db:"pending"`
		Overdue            int `db:"overdue"`
		DueThisWeek        int `db:"due_this_week"`
		DueThisMonth       int `db:"due_this_month"`
		CompletedThisMonth int `db:"completed_this_month"`
	}
	if err := r.db.GetContext(ctx, &counts, countsQuery, now); err != nil {
		return nil, fmt.Errorf("failed to aggregate schedule counts: %w", err)
	}
	summary.Total = counts.Total
	summary.Pending = counts.Pending
	summary.Overdue = counts.Overdue
	summary.DueThisWeek = counts.DueThisWeek
	summary.DueThisMonth = counts.DueThisMonth
	summary.CompletedThisMonth = counts.CompletedThisMonth

	byTypeQuery := `
		SELECT surveillance_type,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'overdue') AS overdue
		FROM surveillance_schedules
		GROUP BY surveillance_type
	`
	rows, err := r.db.QueryxContext(ctx, byTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate counts by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var surveillanceType string
		var breakdown model.TypeBreakdown
		if err := rows.Scan(&surveillanceType, &breakdown.Total, &breakdown.Pending, &breakdown.Overdue); err != nil {
			return nil, fmt.Errorf("failed to scan type breakdown: %w", err)
		}
		summary.ByType[surveillanceType] = breakdown
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate type breakdown: %w", err)
	}

	overdueQuery := `
		SELECT schedule_id, patient_id, surveillance_type, due_date,
			GREATEST(0, EXTRACT(DAY FROM $1::timestamptz - due_window_end))::int AS days_overdue,
			escalation_sent, assigned_clinician
		FROM surveillance_schedules
		WHERE status = 'overdue'
		ORDER BY due_date ASC
	`
	if err := r.db.SelectContext(ctx, &summary.OverdueDetails, overdueQuery, now); err != nil {
		return nil, fmt.Errorf("failed to list overdue details: %w", err)
	}

	return summary, nil
}
