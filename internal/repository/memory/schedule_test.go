package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/surveillance-engine/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newItem(scheduleID string, patientID uuid.UUID, due time.Time) *model.SurveillanceSchedule {
	return &model.SurveillanceSchedule{
		ScheduleID:       scheduleID,
		LineageID:        scheduleID[:len(scheduleID)-2],
		PatientID:        patientID,
		EpisodeID:        uuid.New(),
		SurveillanceType: "ct_scan",
		DueDate:          due,
		DueWindowStart:   due.AddDate(0, 0, -model.WindowDaysBefore),
		DueWindowEnd:     due.AddDate(0, 0, model.WindowDaysAfter),
		Status:           model.ScheduleStatusPending,
		UpdatedAt:        date(2025, time.June, 1),
	}
}

func meta(at time.Time) model.RecordMeta {
	return model.NewRecordMeta("system:test", at)
}

func TestCreateIfAbsent(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))

	created, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, item.ScheduleID, got.ScheduleID)
}

func TestGetMissing(t *testing.T) {
	store := NewScheduleStore()
	_, err := store.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestFindActiveInWindowOrdersByDueDate(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	patientID := uuid.New()

	late := newItem("SURV-a-ct_scan-1-0", patientID, date(2026, time.February, 5))
	early := newItem("SURV-a-ct_scan-0-0", patientID, date(2026, time.January, 20))
	completedAlready := newItem("SURV-a-ct_scan-2-0", patientID, date(2026, time.January, 25))
	completedAlready.Status = model.ScheduleStatusCompleted

	for _, item := range []*model.SurveillanceSchedule{late, early, completedAlready} {
		_, err := store.CreateIfAbsent(ctx, item)
		require.NoError(t, err)
	}

	// 2026-01-25 sits inside both open windows.
	items, err := store.FindActiveInWindow(ctx, patientID, "ct_scan", date(2026, time.January, 25))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, early.ScheduleID, items[0].ScheduleID)
	assert.Equal(t, late.ScheduleID, items[1].ScheduleID)

	// Wrong type matches nothing.
	items, err = store.FindActiveInWindow(ctx, patientID, "colonoscopy", date(2026, time.January, 25))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	invID := uuid.New()
	performed := date(2026, time.January, 20)

	ok, err := store.MarkCompleted(ctx, item.ScheduleID, invID, performed, meta(performed))
	require.NoError(t, err)
	assert.True(t, ok)

	// A racing second completion loses.
	ok, err = store.MarkCompleted(ctx, item.ScheduleID, uuid.New(), performed, meta(performed))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusCompleted, got.Status)
	require.NotNil(t, got.InvestigationID)
	assert.Equal(t, invID, *got.InvestigationID)
}

func TestMarkOverdueRequiresPending(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	at := date(2026, time.March, 1)
	ok, err := store.MarkOverdue(ctx, item.ScheduleID, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkOverdue(ctx, item.ScheduleID, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)

	// Rescheduling requires overdue, which now holds.
	ok, err = store.MarkRescheduled(ctx, item.ScheduleID, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRescheduled(ctx, item.ScheduleID, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReminderAndEscalationFlagsAreOneShot(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	at := date(2026, time.January, 5)
	ok, err := store.MarkReminderSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkReminderSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)

	// Escalation only applies to overdue items.
	ok, err = store.MarkEscalationSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.MarkOverdue(ctx, item.ScheduleID, meta(at))
	require.NoError(t, err)
	ok, err = store.MarkEscalationSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkEscalationSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyUpdateOptimisticConcurrency(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	notes := "rebooked per patient request"
	newDue := date(2026, time.February, 1)
	upd := &model.SurveillanceScheduleUpdate{DueDate: &newDue, Notes: &notes}

	at := date(2026, time.January, 10)
	ok, err := store.ApplyUpdate(ctx, item.ScheduleID, upd, item.UpdatedAt, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)

	// A writer holding the stale updated_at loses.
	ok, err = store.ApplyUpdate(ctx, item.ScheduleID, upd, item.UpdatedAt, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, newDue, got.DueDate)
	assert.Equal(t, notes, got.Notes)
	assert.Equal(t, at, got.UpdatedAt)
}

func TestApplyUpdateRefusesTerminalStatuses(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	at := date(2026, time.January, 20)
	ok, err := store.MarkCompleted(ctx, item.ScheduleID, uuid.New(), at, meta(at))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)

	cancelled := model.ScheduleStatusCancelled
	ok, err = store.ApplyUpdate(ctx, item.ScheduleID, &model.SurveillanceScheduleUpdate{Status: &cancelled}, got.UpdatedAt, meta(at))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusCompleted, got.Status)
}

func TestApplyUpdateResetReminder(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	item := newItem("SURV-a-ct_scan-0-0", uuid.New(), date(2026, time.January, 15))
	_, err := store.CreateIfAbsent(ctx, item)
	require.NoError(t, err)

	at := date(2026, time.January, 5)
	_, err = store.MarkReminderSent(ctx, item.ScheduleID, at, meta(at))
	require.NoError(t, err)

	got, err := store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	ok, err := store.ApplyUpdate(ctx, item.ScheduleID, &model.SurveillanceScheduleUpdate{ResetReminder: true}, got.UpdatedAt, meta(at))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.Get(ctx, item.ScheduleID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
	assert.Nil(t, got.ReminderSentDate)
}

func TestSummary(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()
	now := date(2026, time.March, 10)
	patientID := uuid.New()

	pending := newItem("SURV-a-ct_scan-0-0", patientID, date(2026, time.March, 12))
	overdue := newItem("SURV-a-colonoscopy-0-0", patientID, date(2026, time.January, 10))
	overdue.SurveillanceType = "colonoscopy"
	overdue.Status = model.ScheduleStatusOverdue
	completed := newItem("SURV-a-cea_blood_test-0-0", patientID, date(2026, time.March, 1))
	completed.SurveillanceType = "cea_blood_test"
	completed.Status = model.ScheduleStatusCompleted
	completedDate := date(2026, time.March, 2)
	completed.CompletedDate = &completedDate

	for _, item := range []*model.SurveillanceSchedule{pending, overdue, completed} {
		_, err := store.CreateIfAbsent(ctx, item)
		require.NoError(t, err)
	}

	summary, err := store.Summary(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Overdue)
	assert.Equal(t, 1, summary.CompletedThisMonth)
	assert.Equal(t, 1, summary.DueThisWeek)
	assert.Equal(t, 1, summary.ByType["colonoscopy"].Overdue)

	require.Len(t, summary.OverdueDetails, 1)
	detail := summary.OverdueDetails[0]
	assert.Equal(t, overdue.ScheduleID, detail.ScheduleID)
	// Window closed 2026-02-07, counted the same way escalation
	// notices count it.
	assert.Equal(t, 31, detail.DaysOverdue)
}
