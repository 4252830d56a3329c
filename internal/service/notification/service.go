// Package notification dispatches reminder and escalation notices. A
// dispatch is send-first: the email goes out, then the caller flips the
// schedule item flag. A crash between the two re-sends on the next pass,
// so delivery is at-least-once and never silently lost.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	"github.com/jwalitptl/surveillance-engine/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
	"github.com/jwalitptl/surveillance-engine/pkg/logger"
	"github.com/jwalitptl/surveillance-engine/pkg/messaging"
	"github.com/jwalitptl/surveillance-engine/pkg/metrics"
)

const (
	reminderChannel   = "surveillance:reminders"
	escalationChannel = "surveillance:escalations"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	log     repository.NotificationRepository
	sender  Sender
	broker  messaging.Broker
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewService(log repository.NotificationRepository, sender Sender, broker messaging.Broker, lg *logger.Logger, m *metrics.Metrics, timeout time.Duration) *Service {
	if lg == nil {
		lg = logger.NewLogger(nil)
	}
	if m == nil {
		m = metrics.New("surveillance")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		log:    log,
		sender: sender,
		broker: broker,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "notification-smtp",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  lg,
		metrics: m,
		timeout: timeout,
	}
}

// SendReminder emails the patient ahead of a due date and publishes the
// notice for downstream consumers. The error return decides whether the
// caller may flip the reminder flag.
func (s *Service) SendReminder(ctx context.Context, item *model.SurveillanceSchedule, contact *model.PatientContact) error {
	subject := fmt.Sprintf("Upcoming surveillance: %s", item.SurveillanceType)
	body := fmt.Sprintf(
		"Dear %s,\n\nYour %s is due on %s. Please contact the clinic to arrange an appointment.\n\nThis is an automated reminder.",
		contact.Name, item.SurveillanceType, item.DueDate.Format("2 January 2006"))

	err := s.dispatch(ctx, item, model.NotificationKindReminder, contact.Email, subject, body)
	if err != nil {
		s.metrics.NotificationsFailed.WithLabelValues(string(model.NotificationKindReminder)).Inc()
		return apperrors.NotificationDelivery(err)
	}
	s.metrics.RemindersSent.Inc()

	s.publish(ctx, reminderChannel, "surveillance.reminder", &model.ReminderNotice{
		PatientID:         item.PatientID,
		ScheduleID:        item.ScheduleID,
		SurveillanceType:  item.SurveillanceType,
		DueDate:           item.DueDate,
		AssignedClinician: item.AssignedClinician,
	})
	return nil
}

// SendEscalation emails the recipient clinician about an item that
// stayed unresolved past the escalation grace period.
func (s *Service) SendEscalation(ctx context.Context, item *model.SurveillanceSchedule, recipient *model.Clinician, daysOverdue int) error {
	subject := fmt.Sprintf("Overdue surveillance requires review: %s", item.SurveillanceType)
	body := fmt.Sprintf(
		"Dear %s,\n\nThe %s for patient %s is %d days overdue (window closed %s). Please review.\n\nSchedule reference: %s",
		recipient.Name, item.SurveillanceType, item.PatientID, daysOverdue,
		item.DueWindowEnd.Format("2 January 2006"), item.ScheduleID)

	err := s.dispatch(ctx, item, model.NotificationKindEscalation, recipient.Email, subject, body)
	if err != nil {
		s.metrics.NotificationsFailed.WithLabelValues(string(model.NotificationKindEscalation)).Inc()
		return apperrors.NotificationDelivery(err)
	}
	s.metrics.EscalationsSent.Inc()

	s.publish(ctx, escalationChannel, "surveillance.escalation", &model.EscalationNotice{
		PatientID:         item.PatientID,
		ScheduleID:        item.ScheduleID,
		SurveillanceType:  item.SurveillanceType,
		DaysOverdue:       daysOverdue,
		AssignedClinician: item.AssignedClinician,
	})
	return nil
}

func (s *Service) dispatch(ctx context.Context, item *model.SurveillanceSchedule, kind model.NotificationKind, recipient, subject, body string) error {
	entry := &model.Notification{
		ID:         uuid.New(),
		ScheduleID: item.ScheduleID,
		PatientID:  item.PatientID,
		Kind:       kind,
		Recipient:  recipient,
		Subject:    subject,
		Content:    body,
		Status:     model.NotificationStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.log.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.breaker.Execute(func() error {
		return s.sender.Send(sendCtx, recipient, subject, body)
	})
	if err != nil {
		if logErr := s.log.MarkFailed(ctx, entry.ID, err.Error()); logErr != nil {
			s.logger.Error(logErr, "failed to record notification failure", "notification_id", entry.ID.String())
		}
		return err
	}

	if err := s.log.MarkSent(ctx, entry.ID, time.Now()); err != nil {
		s.logger.Error(err, "failed to record notification delivery", "notification_id", entry.ID.String())
	}
	return nil
}

func (s *Service) publish(ctx context.Context, channel, eventType string, payload interface{}) {
	if s.broker == nil {
		return
	}
	msg := &messaging.Message{Type: eventType, Payload: payload}
	if err := s.broker.Publish(ctx, channel, msg); err != nil {
		s.logger.Error(err, "failed to publish notice", "channel", channel)
	}
}
