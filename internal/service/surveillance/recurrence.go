package surveillance

import (
	"fmt"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

// NextOccurrence computes the successor of a completed or lapsed
// recurring item. The next due date advances from the planned due date,
// not the actual completion date, so drift never accumulates across a
// lineage. Returns nil when the item is not recurring or the next due
// date falls past the end of surveillance.
func NextOccurrence(item *model.SurveillanceSchedule, meta model.RecordMeta) *model.SurveillanceSchedule {
	if item.FrequencyMonths == nil {
		return nil
	}

	nextDue := AddMonths(item.DueDate, *item.FrequencyMonths)
	if nextDue.After(item.EndSurveillanceDate) {
		return nil
	}

	count := item.RecurrenceCount + 1
	start, end := ComputeWindow(nextDue, nil, nil)

	return &model.SurveillanceSchedule{
		ScheduleID:          fmt.Sprintf("%s-%d", item.LineageID, count),
		LineageID:           item.LineageID,
		PatientID:           item.PatientID,
		EpisodeID:           item.EpisodeID,
		SurveillanceType:    item.SurveillanceType,
		Protocol:            item.Protocol,
		Description:         item.Description,
		DueDate:             nextDue,
		DueWindowStart:      start,
		DueWindowEnd:        end,
		Status:              model.ScheduleStatusPending,
		FrequencyMonths:     item.FrequencyMonths,
		EndSurveillanceDate: item.EndSurveillanceDate,
		RecurrenceCount:     count,
		AssignedClinician:   item.AssignedClinician,
		CreatedAt:           meta.At,
		CreatedBy:           meta.Actor,
		UpdatedAt:           meta.At,
		UpdatedBy:           meta.Actor,
	}
}
