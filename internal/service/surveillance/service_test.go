package surveillance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository/memory"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type stubResolver struct {
	tmpl *model.ProtocolTemplate
	err  error
}

func (s *stubResolver) Resolve(conditionType, cancerType, stage, treatmentIntent string) (*model.ProtocolTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tmpl, nil
}

func colorectalTemplate() *model.ProtocolTemplate {
	return &model.ProtocolTemplate{
		ProtocolName:            "nboca_colorectal_stage_2_3",
		ConditionType:           "cancer",
		CancerType:              "colorectal",
		ApplicableStages:        []string{"2", "3"},
		TreatmentIntentRequired: "curative",
		DurationYears:           5,
		Rules: []model.InvestigationRule{
			{
				SurveillanceType: "ct_scan",
				Fixed: &model.FixedOffsetRule{Offsets: []model.FixedOffset{
					{MonthsPostTreatment: 12, Description: "CT at 1 year"},
					{MonthsPostTreatment: 24, Description: "CT at 2 years"},
				}},
			},
			{
				SurveillanceType: "cea_blood_test",
				Recurring: &model.RecurringRule{
					FrequencyMonths:  3,
					DurationMonths:   36,
					StartAfterMonths: 3,
					Description:      "CEA every 3 months",
				},
			},
		},
	}
}

func newTestService(tmpl *model.ProtocolTemplate) (*Service, *memory.ScheduleStore) {
	store := memory.NewScheduleStore()
	svc := NewService(store, &stubResolver{tmpl: tmpl}, nil, nil, nil)
	return svc, store
}

func treatmentEvent(patientID uuid.UUID, ref time.Time) *model.TreatmentCompletedEvent {
	return &model.TreatmentCompletedEvent{
		PatientID:       patientID,
		EpisodeID:       uuid.New(),
		ConditionType:   "cancer",
		CancerType:      "colorectal",
		Stage:           "3",
		TreatmentIntent: "curative",
		ReferenceDate:   &ref,
	}
}

func testMeta() model.RecordMeta {
	return model.NewRecordMeta("system:test", date(2025, time.January, 20))
}

func TestExpandCreatesItemsFromProtocol(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	patientID := uuid.New()
	evt := treatmentEvent(patientID, date(2025, time.January, 15))

	result, err := svc.Expand(context.Background(), evt, testMeta())
	require.NoError(t, err)
	assert.False(t, result.Deferred)
	assert.Equal(t, "nboca_colorectal_stage_2_3", result.Protocol)
	require.Len(t, result.Created, 3)
	assert.Zero(t, result.Skipped)

	byID := make(map[string]*model.SurveillanceSchedule)
	for _, item := range result.Created {
		byID[item.ScheduleID] = item
	}

	ct1 := byID[fmt.Sprintf("SURV-%s-ct_scan-0-0", patientID)]
	require.NotNil(t, ct1)
	assert.Equal(t, date(2026, time.January, 15), ct1.DueDate)
	assert.Equal(t, date(2026, time.January, 1), ct1.DueWindowStart)
	assert.Equal(t, date(2026, time.February, 12), ct1.DueWindowEnd)
	assert.Equal(t, model.ScheduleStatusPending, ct1.Status)
	assert.Nil(t, ct1.FrequencyMonths)
	assert.Equal(t, date(2030, time.January, 15), ct1.EndSurveillanceDate)

	ct2 := byID[fmt.Sprintf("SURV-%s-ct_scan-1-0", patientID)]
	require.NotNil(t, ct2)
	assert.Equal(t, date(2027, time.January, 15), ct2.DueDate)

	cea := byID[fmt.Sprintf("SURV-%s-cea_blood_test-0-0", patientID)]
	require.NotNil(t, cea)
	assert.Equal(t, date(2025, time.April, 15), cea.DueDate)
	require.NotNil(t, cea.FrequencyMonths)
	assert.Equal(t, 3, *cea.FrequencyMonths)
	assert.Equal(t, date(2028, time.April, 15), cea.EndSurveillanceDate)
	assert.Equal(t, 0, cea.RecurrenceCount)
}

func TestExpandIsIdempotent(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	evt := treatmentEvent(uuid.New(), date(2025, time.January, 15))

	first, err := svc.Expand(context.Background(), evt, testMeta())
	require.NoError(t, err)
	require.Len(t, first.Created, 3)

	second, err := svc.Expand(context.Background(), evt, testMeta())
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 3, second.Skipped)
}

func TestExpandDeferredWithoutReferenceDate(t *testing.T) {
	svc, store := newTestService(colorectalTemplate())
	evt := treatmentEvent(uuid.New(), time.Time{})
	evt.ReferenceDate = nil

	result, err := svc.Expand(context.Background(), evt, testMeta())
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Empty(t, result.Created)

	items, err := store.List(context.Background(), &model.ScheduleFilters{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExpandProtocolNotFound(t *testing.T) {
	store := memory.NewScheduleStore()
	svc := NewService(store, &stubResolver{err: apperrors.ProtocolNotFound("cancer", "pancreatic")}, nil, nil, nil)

	_, err := svc.Expand(context.Background(), treatmentEvent(uuid.New(), date(2025, time.January, 15)), testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrProtocolNotFound))
}

func TestLinkCompletionEarliestDueWins(t *testing.T) {
	svc, store := newTestService(colorectalTemplate())
	patientID := uuid.New()
	evt := treatmentEvent(patientID, date(2025, time.January, 15))
	_, err := svc.Expand(context.Background(), evt, testMeta())
	require.NoError(t, err)

	// Second CT due 2027-01-15 shifted so both windows contain the
	// performed date.
	due := date(2026, time.February, 5)
	ws, we := ComputeWindow(due, nil, nil)
	second := fmt.Sprintf("SURV-%s-ct_scan-1-0", patientID)
	item, err := store.Get(context.Background(), second)
	require.NoError(t, err)
	ok, err := store.ApplyUpdate(context.Background(), second, &model.SurveillanceScheduleUpdate{
		DueDate: &due, DueWindowStart: &ws, DueWindowEnd: &we,
	}, item.UpdatedAt, testMeta())
	require.NoError(t, err)
	require.True(t, ok)

	link, err := svc.LinkCompletion(context.Background(), &model.InvestigationRecordedEvent{
		PatientID:        patientID,
		SurveillanceType: "ct_scan",
		PerformedDate:    date(2026, time.February, 3),
		InvestigationID:  uuid.New(),
	}, testMeta())
	require.NoError(t, err)

	assert.True(t, link.Linked)
	assert.False(t, link.AdHoc)
	assert.Equal(t, fmt.Sprintf("SURV-%s-ct_scan-0-0", patientID), link.ScheduleID)

	completed, err := store.Get(context.Background(), link.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedDate)
	assert.Equal(t, date(2026, time.February, 3), *completed.CompletedDate)

	other, err := store.Get(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusPending, other.Status)
}

func TestLinkCompletionSpawnsRecurrenceSuccessor(t *testing.T) {
	svc, store := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	link, err := svc.LinkCompletion(context.Background(), &model.InvestigationRecordedEvent{
		PatientID:        patientID,
		SurveillanceType: "cea_blood_test",
		PerformedDate:    date(2025, time.April, 20),
		InvestigationID:  uuid.New(),
	}, testMeta())
	require.NoError(t, err)

	assert.True(t, link.Linked)
	require.NotNil(t, link.Successor)
	assert.Equal(t, date(2025, time.July, 15), link.Successor.DueDate)
	assert.Equal(t, 1, link.Successor.RecurrenceCount)

	stored, err := store.Get(context.Background(), link.Successor.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusPending, stored.Status)
}

func TestLinkCompletionAdHocWhenNoWindowMatches(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	link, err := svc.LinkCompletion(context.Background(), &model.InvestigationRecordedEvent{
		PatientID:        patientID,
		SurveillanceType: "ct_scan",
		PerformedDate:    date(2025, time.June, 1),
		InvestigationID:  uuid.New(),
	}, testMeta())
	require.NoError(t, err)

	assert.True(t, link.AdHoc)
	assert.False(t, link.Linked)
	assert.Empty(t, link.ScheduleID)
}

func TestApplyUpdateRejectsNonCancelStatus(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	completed := model.ScheduleStatusCompleted
	_, err = svc.ApplyUpdate(context.Background(),
		fmt.Sprintf("SURV-%s-ct_scan-0-0", patientID),
		&model.SurveillanceScheduleUpdate{Status: &completed}, testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestApplyUpdateRejectsTerminalItem(t *testing.T) {
	svc, store := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	id := fmt.Sprintf("SURV-%s-ct_scan-0-0", patientID)
	ok, err := store.MarkCompleted(context.Background(), id, uuid.New(), date(2026, time.January, 10), testMeta())
	require.NoError(t, err)
	require.True(t, ok)

	cancelled := model.ScheduleStatusCancelled
	_, err = svc.ApplyUpdate(context.Background(), id,
		&model.SurveillanceScheduleUpdate{Status: &cancelled}, testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusCompleted, got.Status)
}

func TestApplyUpdateRecomputesWindowOnDueDateChange(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	newDue := date(2026, time.March, 1)
	item, err := svc.ApplyUpdate(context.Background(),
		fmt.Sprintf("SURV-%s-ct_scan-0-0", patientID),
		&model.SurveillanceScheduleUpdate{DueDate: &newDue}, testMeta())
	require.NoError(t, err)

	assert.Equal(t, newDue, item.DueDate)
	assert.Equal(t, date(2026, time.February, 15), item.DueWindowStart)
	assert.Equal(t, date(2026, time.March, 29), item.DueWindowEnd)
}

func TestApplyUpdateCancels(t *testing.T) {
	svc, _ := newTestService(colorectalTemplate())
	patientID := uuid.New()
	_, err := svc.Expand(context.Background(), treatmentEvent(patientID, date(2025, time.January, 15)), testMeta())
	require.NoError(t, err)

	cancelled := model.ScheduleStatusCancelled
	item, err := svc.ApplyUpdate(context.Background(),
		fmt.Sprintf("SURV-%s-cea_blood_test-0-0", patientID),
		&model.SurveillanceScheduleUpdate{Status: &cancelled}, testMeta())
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusCancelled, item.Status)
}
