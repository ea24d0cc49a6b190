package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/config"
	"github.com/spec-kit/visit-service/internal/events"
)

// visitNotice is what gets sent for one appointment event.
type visitNotice struct {
	Subject string
	// Email marks notices the visitor is mailed about; every notice goes to the webhook.
	Email bool
}

// NotificationService turns appointment events into visitor emails and facility webhooks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every appointment event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	notice, err := noticeFor(event)
	if err != nil {
		return err
	}
	n.logger.Info("appointment notification",
		zap.String("event_type", string(event.Type)),
		zap.String("appointment_id", event.AppointmentID),
		zap.String("actor", event.Actor.SubjectID),
		zap.String("subject", notice.Subject))

	if notice.Email {
		n.sendEmailNotificationStub(ctx, event, notice)
	}
	n.sendWebhookNotificationStub(ctx, event, notice)
	return nil
}

func noticeFor(event events.Event) (visitNotice, error) {
	switch payload := event.Payload.(type) {
	case events.AppointmentCreatedPayload:
		return visitNotice{
			Subject: "Visit scheduled for " + payload.ScheduledAt.UTC().Format("Mon 2 Jan 15:04 MST"),
			Email:   true,
		}, nil
	case events.AppointmentUpdatedPayload:
		subject := "Visit details changed: " + strings.Join(payload.ChangedFields, ", ")
		return visitNotice{
			Subject: subject,
			Email:   containsField(payload.ChangedFields, "scheduled_at"),
		}, nil
	case events.AppointmentStatusChangedPayload:
		return visitNotice{
			Subject: fmt.Sprintf("Visit %s (was %s)", strings.ToLower(string(payload.NewStatus)), strings.ToLower(string(payload.OldStatus))),
		}, nil
	case events.AppointmentCanceledPayload:
		return visitNotice{
			Subject: "Visit on " + payload.ScheduledAt.UTC().Format("Mon 2 Jan 15:04 MST") + " canceled",
			Email:   true,
		}, nil
	case nil:
		return visitNotice{Subject: "Visit " + string(event.Type)}, nil
	default:
		return visitNotice{}, fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
}

func containsField(fields []string, name string) bool {
	for _, field := range fields {
		if field == name {
			return true
		}
	}
	return false
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, notice visitNotice) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("appointment_id", event.AppointmentID),
		zap.String("subject", notice.Subject))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event, notice visitNotice) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("appointment_id", event.AppointmentID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", notice.Subject))
}
