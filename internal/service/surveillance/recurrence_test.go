package surveillance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

func recurringItem(due, end time.Time, freq int) *model.SurveillanceSchedule {
	start, wend := ComputeWindow(due, nil, nil)
	clinician := uuid.New()
	return &model.SurveillanceSchedule{
		ScheduleID:          "SURV-p1-cea_blood_test-0-0",
		LineageID:           "SURV-p1-cea_blood_test-0",
		PatientID:           uuid.New(),
		EpisodeID:           uuid.New(),
		SurveillanceType:    "cea_blood_test",
		Protocol:            "nboca_colorectal_stage_2_3",
		DueDate:             due,
		DueWindowStart:      start,
		DueWindowEnd:        wend,
		Status:              model.ScheduleStatusCompleted,
		FrequencyMonths:     &freq,
		EndSurveillanceDate: end,
		RecurrenceCount:     0,
		AssignedClinician:   &clinician,
	}
}

func TestNextOccurrenceAdvancesFromPlannedDueDate(t *testing.T) {
	item := recurringItem(date(2026, time.January, 1), date(2028, time.January, 1), 3)
	completed := date(2026, time.January, 20)
	item.CompletedDate = &completed

	meta := model.NewRecordMeta("system:test", time.Now())
	next := NextOccurrence(item, meta)
	require.NotNil(t, next)

	// Advances from the planned due date, not the completion date.
	assert.Equal(t, date(2026, time.April, 1), next.DueDate)
	assert.Equal(t, "SURV-p1-cea_blood_test-0-1", next.ScheduleID)
	assert.Equal(t, item.LineageID, next.LineageID)
	assert.Equal(t, 1, next.RecurrenceCount)
	assert.Equal(t, model.ScheduleStatusPending, next.Status)
	assert.Equal(t, date(2026, time.March, 18), next.DueWindowStart)
	assert.Equal(t, date(2026, time.April, 29), next.DueWindowEnd)
	assert.Equal(t, item.AssignedClinician, next.AssignedClinician)
	assert.Nil(t, next.CompletedDate)
	assert.False(t, next.ReminderSent)
}

func TestNextOccurrenceStopsAtEndOfSurveillance(t *testing.T) {
	item := recurringItem(date(2027, time.November, 15), date(2028, time.January, 1), 3)

	next := NextOccurrence(item, model.NewRecordMeta("system:test", time.Now()))
	assert.Nil(t, next)
}

func TestNextOccurrenceOnEndDateStillProduced(t *testing.T) {
	item := recurringItem(date(2027, time.October, 1), date(2028, time.January, 1), 3)

	next := NextOccurrence(item, model.NewRecordMeta("system:test", time.Now()))
	require.NotNil(t, next)
	assert.Equal(t, date(2028, time.January, 1), next.DueDate)
}

func TestNextOccurrenceNilForFixedItems(t *testing.T) {
	item := recurringItem(date(2026, time.January, 1), date(2028, time.January, 1), 3)
	item.FrequencyMonths = nil

	assert.Nil(t, NextOccurrence(item, model.NewRecordMeta("system:test", time.Now())))
}
