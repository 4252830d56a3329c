// Package memory implements the schedule store contract in process
// memory. It backs the engine's tests and small single-node deployments;
// the conditional-update semantics match the postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type ScheduleStore struct {
	mu    sync.RWMutex
	items map[string]*model.SurveillanceSchedule
}

var _ repository.ScheduleRepository = (*ScheduleStore)(nil)

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{items: make(map[string]*model.SurveillanceSchedule)}
}

func clone(item *model.SurveillanceSchedule) *model.SurveillanceSchedule {
	c := *item
	return &c
}

func (s *ScheduleStore) CreateIfAbsent(_ context.Context, item *model.SurveillanceSchedule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ScheduleID]; exists {
		return false, nil
	}
	s.items[item.ScheduleID] = clone(item)
	return true, nil
}

func (s *ScheduleStore) Get(_ context.Context, scheduleID string) (*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[scheduleID]
	if !ok {
		return nil, apperrors.NotFound("schedule", nil)
	}
	return clone(item), nil
}

func (s *ScheduleStore) collect(match func(*model.SurveillanceSchedule) bool, limit int) []*model.SurveillanceSchedule {
	var out []*model.SurveillanceSchedule
	for _, item := range s.items {
		if match(item) {
			out = append(out, clone(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *ScheduleStore) List(_ context.Context, filters *model.ScheduleFilters) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		if filters.PatientID != uuid.Nil && item.PatientID != filters.PatientID {
			return false
		}
		if filters.EpisodeID != uuid.Nil && item.EpisodeID != filters.EpisodeID {
			return false
		}
		if filters.SurveillanceType != "" && item.SurveillanceType != filters.SurveillanceType {
			return false
		}
		if filters.Status != "" && item.Status != filters.Status {
			return false
		}
		if !filters.DueAfter.IsZero() && item.DueDate.Before(filters.DueAfter) {
			return false
		}
		if !filters.DueBefore.IsZero() && item.DueDate.After(filters.DueBefore) {
			return false
		}
		return true
	}, filters.Limit), nil
}

func (s *ScheduleStore) ListByEpisode(_ context.Context, episodeID uuid.UUID) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.EpisodeID == episodeID
	}, 0), nil
}

func (s *ScheduleStore) FindActiveInWindow(_ context.Context, patientID uuid.UUID, surveillanceType string, performed time.Time) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.PatientID == patientID &&
			item.SurveillanceType == surveillanceType &&
			item.Status.Active() &&
			!performed.Before(item.DueWindowStart) &&
			!performed.After(item.DueWindowEnd)
	}, 0), nil
}

func (s *ScheduleStore) ListPendingPastWindow(_ context.Context, now time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.Status == model.ScheduleStatusPending && item.DueWindowEnd.Before(now)
	}, limit), nil
}

func (s *ScheduleStore) ListOverdueForEscalation(_ context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.Status == model.ScheduleStatusOverdue &&
			!item.EscalationSent &&
			item.DueWindowEnd.Before(windowEndBefore)
	}, limit), nil
}

func (s *ScheduleStore) ListOverdueRecurringPastGrace(_ context.Context, windowEndBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.Status == model.ScheduleStatusOverdue &&
			item.Recurring() &&
			item.DueWindowEnd.Before(windowEndBefore)
	}, limit), nil
}

func (s *ScheduleStore) ListPendingForReminder(_ context.Context, dueOnOrBefore time.Time, limit int) ([]*model.SurveillanceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(item *model.SurveillanceSchedule) bool {
		return item.Status == model.ScheduleStatusPending &&
			!item.ReminderSent &&
			!item.DueDate.After(dueOnOrBefore)
	}, limit), nil
}

func (s *ScheduleStore) MarkCompleted(_ context.Context, scheduleID string, investigationID uuid.UUID, performed time.Time, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || !item.Status.Active() {
		return false, nil
	}
	item.Status = model.ScheduleStatusCompleted
	item.InvestigationID = &investigationID
	completed := performed
	item.CompletedDate = &completed
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) MarkOverdue(_ context.Context, scheduleID string, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || item.Status != model.ScheduleStatusPending {
		return false, nil
	}
	item.Status = model.ScheduleStatusOverdue
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) MarkRescheduled(_ context.Context, scheduleID string, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || item.Status != model.ScheduleStatusOverdue {
		return false, nil
	}
	item.Status = model.ScheduleStatusRescheduled
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) MarkEscalationSent(_ context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || item.Status != model.ScheduleStatusOverdue || item.EscalationSent {
		return false, nil
	}
	item.EscalationSent = true
	sent := at
	item.EscalationSentDate = &sent
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) MarkReminderSent(_ context.Context, scheduleID string, at time.Time, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || item.Status != model.ScheduleStatusPending || item.ReminderSent {
		return false, nil
	}
	item.ReminderSent = true
	sent := at
	item.ReminderSentDate = &sent
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) ApplyUpdate(_ context.Context, scheduleID string, upd *model.SurveillanceScheduleUpdate, expectedUpdatedAt time.Time, meta model.RecordMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[scheduleID]
	if !ok || !item.UpdatedAt.Equal(expectedUpdatedAt) || !item.Status.Active() {
		return false, nil
	}
	if upd.DueDate != nil {
		item.DueDate = *upd.DueDate
	}
	if upd.DueWindowStart != nil {
		item.DueWindowStart = *upd.DueWindowStart
	}
	if upd.DueWindowEnd != nil {
		item.DueWindowEnd = *upd.DueWindowEnd
	}
	if upd.Status != nil {
		item.Status = *upd.Status
	}
	if upd.Notes != nil {
		item.Notes = *upd.Notes
	}
	if upd.AssignedClinician != nil {
		item.AssignedClinician = upd.AssignedClinician
	}
	if upd.ResetReminder {
		item.ReminderSent = false
		item.ReminderSentDate = nil
	}
	item.UpdatedAt = meta.At
	item.UpdatedBy = meta.Actor
	return true, nil
}

func (s *ScheduleStore) Summary(_ context.Context, now time.Time) (*model.SurveillanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &model.SurveillanceSummary{ByType: make(map[string]model.TypeBreakdown)}
	weekEnd := now.AddDate(0, 0, 7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var overdue []*model.SurveillanceSchedule
	for _, item := range s.items {
		summary.Total++
		breakdown := summary.ByType[item.SurveillanceType]
		breakdown.Total++

		switch item.Status {
		case model.ScheduleStatusPending:
			summary.Pending++
			breakdown.Pending++
		case model.ScheduleStatusOverdue:
			summary.Overdue++
			breakdown.Overdue++
			overdue = append(overdue, item)
		case model.ScheduleStatusCompleted:
			if item.CompletedDate != nil &&
				!item.CompletedDate.Before(monthStart) && item.CompletedDate.Before(monthEnd) {
				summary.CompletedThisMonth++
			}
		}
		if item.Status.Active() {
			if !item.DueDate.Before(now) && item.DueDate.Before(weekEnd) {
				summary.DueThisWeek++
			}
			if !item.DueDate.Before(monthStart) && item.DueDate.Before(monthEnd) {
				summary.DueThisMonth++
			}
		}
		summary.ByType[item.SurveillanceType] = breakdown
	}

	sort.Slice(overdue, func(i, j int) bool { return overdue[i].DueDate.Before(overdue[j].DueDate) })
	for _, item := range overdue {
		// Same basis as escalation notices: days since the window closed.
		days := int(now.Sub(item.DueWindowEnd).Hours() / 24)
		if days < 0 {
			days = 0
		}
		summary.OverdueDetails = append(summary.OverdueDetails, model.OverdueDetail{
			ScheduleID:        item.ScheduleID,
			PatientID:         item.PatientID,
			SurveillanceType:  item.SurveillanceType,
			DueDate:           item.DueDate,
			DaysOverdue:       days,
			EscalationSent:    item.EscalationSent,
			AssignedClinician: item.AssignedClinician,
		})
	}

	return summary, nil
}
