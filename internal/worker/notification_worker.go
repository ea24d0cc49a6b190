package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/events"
	"github.com/spec-kit/visit-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventForwarder subscribes the Kafka sink to appointment events when one is configured.
func StartEventForwarder(dispatcher events.Dispatcher, publisher *events.KafkaPublisher, logger *zap.Logger) {
	if publisher == nil {
		return
	}
	publisher.RegisterHandlers(dispatcher)
	if logger != nil {
		logger.Info("appointment events forwarded to kafka")
	}
}
