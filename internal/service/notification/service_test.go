package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type fakeSender struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeNotificationLog struct {
	created []*model.Notification
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
}

func newFakeNotificationLog() *fakeNotificationLog {
	return &fakeNotificationLog{failed: make(map[uuid.UUID]string)}
}

func (f *fakeNotificationLog) Create(ctx context.Context, n *model.Notification) error {
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationLog) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeNotificationLog) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	f.failed[id] = lastError
	return nil
}

func testItem() *model.SurveillanceSchedule {
	return &model.SurveillanceSchedule{
		ScheduleID:       "SURV-p1-ct_scan-0-0",
		PatientID:        uuid.New(),
		SurveillanceType: "ct_scan",
		DueDate:          time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		DueWindowEnd:     time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC),
		Status:           model.ScheduleStatusPending,
	}
}

func TestSendReminderRecordsAndDelivers(t *testing.T) {
	sender := &fakeSender{}
	log := newFakeNotificationLog()
	svc := NewService(log, sender, nil, nil, nil, time.Second)

	contact := &model.PatientContact{Name: "Pat Example", Email: "pat@example.com", SendEmailReminder: true}
	err := svc.SendReminder(context.Background(), testItem(), contact)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "pat@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].subject, "ct_scan")
	assert.Contains(t, sender.sent[0].body, "15 January 2026")

	require.Len(t, log.created, 1)
	assert.Equal(t, model.NotificationKindReminder, log.created[0].Kind)
	assert.Len(t, log.sent, 1)
	assert.Empty(t, log.failed)
}

func TestSendReminderFailureSurfacesAndLogs(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp connect refused")}
	log := newFakeNotificationLog()
	svc := NewService(log, sender, nil, nil, nil, time.Second)

	contact := &model.PatientContact{Name: "Pat Example", Email: "pat@example.com"}
	err := svc.SendReminder(context.Background(), testItem(), contact)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotificationDelivery))

	require.Len(t, log.created, 1)
	assert.Equal(t, "smtp connect refused", log.failed[log.created[0].ID])
	assert.Empty(t, log.sent)
}

func TestSendEscalation(t *testing.T) {
	sender := &fakeSender{}
	log := newFakeNotificationLog()
	svc := NewService(log, sender, nil, nil, nil, time.Second)

	recipient := &model.Clinician{Name: "Dr Lead", Email: "lead@clinic.example"}
	item := testItem()
	item.Status = model.ScheduleStatusOverdue

	err := svc.SendEscalation(context.Background(), item, recipient, 35)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "lead@clinic.example", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "35 days overdue")

	require.Len(t, log.created, 1)
	assert.Equal(t, model.NotificationKindEscalation, log.created[0].Kind)
}
