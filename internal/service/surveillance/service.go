// Package surveillance implements the scheduling engine core: protocol
// expansion, due-window computation, completion linkage, recurrence and
// manual overrides over the schedule store.
package surveillance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	"github.com/jwalitptl/surveillance-engine/internal/service/audit"
	"github.com/jwalitptl/surveillance-engine/internal/service/protocol"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
)

type Service struct {
	repo    repository.ScheduleRepository
	catalog protocol.Resolver
	auditor *audit.Service
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.ScheduleRepository, catalog protocol.Resolver, auditor *audit.Service, lg *logger.Logger, m *metrics.Metrics) *Service {
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	if m == nil {
		m = metrics.New("surveillance")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		auditor: auditor,
		logger:  lg,
		metrics: m,
	}
}

// ExpandResult reports what expansion did. Deferred means the treatment
// had no reference date yet and nothing was created; the trigger should
// be re-delivered once the treatment is dated.
type ExpandResult struct {
	Protocol string                        `json:"protocol,omitempty"`
	Created  []*model.SurveillanceSchedule `json:"created"`
	Skipped  int                           `json:"skipped"`
	Deferred bool                          `json:"deferred"`
}

// Expand turns the resolved protocol template into concrete schedule
// items anchored at the treatment completion date. Recurring rules emit
// only their first occurrence; successors are produced lazily so that
// real completion dates, not a rigid calendar, pace each lineage.
// Expansion is idempotent: item ids are deterministic and re-runs skip
// anything that already exists.
func (s *Service) Expand(ctx context.Context, evt *model.TreatmentCompletedEvent, meta model.RecordMeta) (*ExpandResult, error) {
	if evt.ReferenceDate == nil {
		s.logger.Info("expansion deferred, treatment not yet dated",
			"patient_id", evt.PatientID.String(), "episode_id", evt.EpisodeID.String())
		return &ExpandResult{Deferred: true}, nil
	}

	tmpl, err := s.catalog.Resolve(evt.ConditionType, evt.CancerType, evt.Stage, evt.TreatmentIntent)
	if err != nil {
		return nil, err
	}

	ref := *evt.ReferenceDate
	protocolEnd := AddMonths(ref, tmpl.DurationYears*12)
	result := &ExpandResult{Protocol: tmpl.ProtocolName}
	typeSeq := make(map[string]int)

	for _, rule := range tmpl.Rules {
		switch {
		case rule.Fixed != nil:
			for _, off := range rule.Fixed.Offsets {
				item := s.newItem(evt, tmpl.ProtocolName, rule.SurveillanceType, typeSeq, meta)
				item.Description = off.Description
				item.DueDate = AddMonths(ref, off.MonthsPostTreatment)
				item.DueWindowStart, item.DueWindowEnd = ComputeWindow(item.DueDate, nil, nil)
				item.EndSurveillanceDate = protocolEnd
				if err := s.createItem(ctx, item, result); err != nil {
					return nil, err
				}
			}
		case rule.Recurring != nil:
			rec := rule.Recurring
			freq := rec.FrequencyMonths
			item := s.newItem(evt, tmpl.ProtocolName, rule.SurveillanceType, typeSeq, meta)
			item.Description = rec.Description
			item.DueDate = AddMonths(ref, rec.StartAfterMonths)
			item.DueWindowStart, item.DueWindowEnd = ComputeWindow(item.DueDate, nil, nil)
			item.FrequencyMonths = &freq
			item.EndSurveillanceDate = AddMonths(ref, rec.StartAfterMonths+rec.DurationMonths)
			if err := s.createItem(ctx, item, result); err != nil {
				return nil, err
			}
		}
	}

	s.auditLog(ctx, meta, "expand", "episode", evt.EpisodeID.String(), &audit.LogOptions{
		Metadata: map[string]interface{}{
			"protocol": tmpl.ProtocolName,
			"created":  len(result.Created),
			"skipped":  result.Skipped,
		},
	})

	return result, nil
}

func (s *Service) newItem(evt *model.TreatmentCompletedEvent, protocolName, surveillanceType string, typeSeq map[string]int, meta model.RecordMeta) *model.SurveillanceSchedule {
	seq := typeSeq[surveillanceType]
	typeSeq[surveillanceType]++
	lineage := fmt.Sprintf("SURV-%s-%s-%d", evt.PatientID, surveillanceType, seq)

	return &model.SurveillanceSchedule{
		ScheduleID:       fmt.Sprintf("%s-0", lineage),
		LineageID:        lineage,
		PatientID:        evt.PatientID,
		EpisodeID:        evt.EpisodeID,
		SurveillanceType: surveillanceType,
		Protocol:         protocolName,
		Status:           model.ScheduleStatusPending,
		RecurrenceCount:  0,
		CreatedAt:        meta.At,
		CreatedBy:        meta.Actor,
		UpdatedAt:        meta.At,
		UpdatedBy:        meta.Actor,
	}
}

func (s *Service) createItem(ctx context.Context, item *model.SurveillanceSchedule, result *ExpandResult) error {
	created, err := s.repo.CreateIfAbsent(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to create schedule item %s: %w", item.ScheduleID, err)
	}
	if !created {
		result.Skipped++
		return nil
	}
	result.Created = append(result.Created, item)
	s.metrics.SchedulesCreated.WithLabelValues("expansion").Inc()
	return nil
}

// LinkResult reports how an investigation was reconciled. AdHoc means no
// open window matched; the investigation stands on its own and operators
// reconcile manually.
type LinkResult struct {
	Linked     bool                        `json:"linked"`
	AdHoc      bool                        `json:"ad_hoc"`
	ScheduleID string                      `json:"schedule_id,omitempty"`
	Successor  *model.SurveillanceSchedule `json:"successor,omitempty"`
}

// LinkCompletion reconciles a newly recorded investigation against open
// schedule items. The earliest due date wins when windows overlap. A
// completed recurring item immediately produces its successor.
func (s *Service) LinkCompletion(ctx context.Context, evt *model.InvestigationRecordedEvent, meta model.RecordMeta) (*LinkResult, error) {
	result, err := s.tryLink(ctx, evt, meta)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	// Every candidate was claimed by a racing writer between the query
	// and the conditional update. Retry once against fresh state.
	result, err = s.tryLink(ctx, evt, meta)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	s.metrics.UpdateConflicts.Inc()
	return nil, apperrors.ConcurrentUpdateConflict(evt.InvestigationID.String())
}

func (s *Service) tryLink(ctx context.Context, evt *model.InvestigationRecordedEvent, meta model.RecordMeta) (*LinkResult, error) {
	candidates, err := s.repo.FindActiveInWindow(ctx, evt.PatientID, evt.SurveillanceType, evt.PerformedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedule items for completion: %w", err)
	}

	if len(candidates) == 0 {
		s.metrics.AdHocCompletions.Inc()
		s.logger.Info("unscheduled completion recorded",
			"patient_id", evt.PatientID.String(),
			"surveillance_type", evt.SurveillanceType,
			"investigation_id", evt.InvestigationID.String())
		s.auditLog(ctx, meta, "adhoc_completion", "investigation", evt.InvestigationID.String(), &audit.LogOptions{
			Metadata: map[string]interface{}{
				"patient_id":        evt.PatientID,
				"surveillance_type": evt.SurveillanceType,
				"performed_date":    evt.PerformedDate,
			},
		})
		return &LinkResult{AdHoc: true}, nil
	}

	for _, candidate := range candidates {
		ok, err := s.repo.MarkCompleted(ctx, candidate.ScheduleID, evt.InvestigationID, evt.PerformedDate, meta)
		if err != nil {
			return nil, fmt.Errorf("failed to complete schedule item %s: %w", candidate.ScheduleID, err)
		}
		if !ok {
			continue
		}

		s.metrics.SchedulesCompleted.Inc()
		result := &LinkResult{Linked: true, ScheduleID: candidate.ScheduleID}

		if successor := NextOccurrence(candidate, meta); successor != nil {
			created, err := s.repo.CreateIfAbsent(ctx, successor)
			if err != nil {
				return nil, fmt.Errorf("failed to create recurrence successor: %w", err)
			}
			if created {
				s.metrics.SchedulesCreated.WithLabelValues("recurrence").Inc()
				result.Successor = successor
			}
		}

		s.auditLog(ctx, meta, "complete", "schedule", candidate.ScheduleID, &audit.LogOptions{
			Metadata: map[string]interface{}{
				"investigation_id": evt.InvestigationID,
				"performed_date":   evt.PerformedDate,
			},
		})
		return result, nil
	}

	return nil, nil
}

// ApplyUpdate applies a manual override to one schedule item. Status can
// only move to cancelled here; completion happens exclusively through
// LinkCompletion. A changed due date recomputes the default window
// unless explicit overrides accompany it. Conflicting writers are
// retried once, then reported.
func (s *Service) ApplyUpdate(ctx context.Context, scheduleID string, upd *model.SurveillanceScheduleUpdate, meta model.RecordMeta) (*model.SurveillanceSchedule, error) {
	if upd.Status != nil && *upd.Status != model.ScheduleStatusCancelled {
		return nil, apperrors.BadRequest(fmt.Sprintf("status can only be set to %s manually", model.ScheduleStatusCancelled), nil)
	}

	effective := *upd
	if upd.DueDate != nil {
		start, end := ComputeWindow(*upd.DueDate, upd.DueWindowStart, upd.DueWindowEnd)
		if upd.DueDate.Before(start) || upd.DueDate.After(end) {
			return nil, apperrors.BadRequest("due date must fall inside its window", nil)
		}
		effective.DueWindowStart = &start
		effective.DueWindowEnd = &end
	}

	for attempt := 0; attempt < 2; attempt++ {
		item, err := s.repo.Get(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
		if !item.Status.Active() {
			return nil, apperrors.BadRequest(fmt.Sprintf("schedule item %s is %s and can no longer be updated", scheduleID, item.Status), nil)
		}
		ok, err := s.repo.ApplyUpdate(ctx, scheduleID, &effective, item.UpdatedAt, meta)
		if err != nil {
			return nil, fmt.Errorf("failed to update schedule item %s: %w", scheduleID, err)
		}
		if ok {
			s.auditLog(ctx, meta, "update", "schedule", scheduleID, &audit.LogOptions{Changes: upd})
			return s.repo.Get(ctx, scheduleID)
		}
		s.metrics.UpdateConflicts.Inc()
	}
	return nil, apperrors.ConcurrentUpdateConflict(scheduleID)
}

func (s *Service) GetSchedule(ctx context.Context, scheduleID string) (*model.SurveillanceSchedule, error) {
	return s.repo.Get(ctx, scheduleID)
}

func (s *Service) ListSchedules(ctx context.Context, filters *model.ScheduleFilters) ([]*model.SurveillanceSchedule, error) {
	return s.repo.List(ctx, filters)
}

// ListByEpisode returns the full schedule lineage of one treatment
// episode, whatever state each item is in.
func (s *Service) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.SurveillanceSchedule, error) {
	return s.repo.ListByEpisode(ctx, episodeID)
}

// Summary is a read-only aggregation over the schedule store; it always
// reflects the last successfully committed state.
func (s *Service) Summary(ctx context.Context, now time.Time) (*model.SurveillanceSummary, error) {
	return s.repo.Summary(ctx, now)
}

func (s *Service) auditLog(ctx context.Context, meta model.RecordMeta, action, entityType, entityID string, opts *audit.LogOptions) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, meta, action, entityType, entityID, opts); err != nil {
		s.logger.Error(err, "failed to write audit log", "action", action, "entity_id", entityID)
	}
}
