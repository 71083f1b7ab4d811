package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// notificationRetryIntervals spaces publish attempts after the first failure.
var notificationRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
}

// notificationService implements ports.Notifier.
type notificationService struct {
	publisher      ports.EventPublisher
	retryIntervals []time.Duration
	log            zerolog.Logger
}

// NewNotificationService creates a best-effort notifier. A nil publisher
// turns notifications into log lines.
func NewNotificationService(publisher ports.EventPublisher, log zerolog.Logger) ports.Notifier {
	return &notificationService{
		publisher:      publisher,
		retryIntervals: notificationRetryIntervals,
		log:            log,
	}
}

// Notify publishes asynchronously. Failures are logged and never reach the caller.
func (s *notificationService) Notify(ctx context.Context, n domain.Notification) {
	if s.publisher == nil {
		s.log.Debug().Str("kind", string(n.Kind)).Str("resource_id", n.ResourceID).Msg("notification: no publisher configured, skipping")
		return
	}
	go s.publishWithRetries(context.WithoutCancel(ctx), n)
}

func (s *notificationService) publishWithRetries(ctx context.Context, n domain.Notification) {
	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryIntervals[attempt-1])
		}

		err := s.publisher.Publish(ctx, string(n.Kind), n)
		if err == nil {
			s.log.Debug().Str("kind", string(n.Kind)).Str("resource_id", n.ResourceID).Int("attempt", attempt+1).Msg("notification: published")
			return
		}
		s.log.Warn().Err(err).Str("kind", string(n.Kind)).Str("resource_id", n.ResourceID).Int("attempt", attempt+1).Msg("notification: publish failed")
	}

	s.log.Error().Str("kind", string(n.Kind)).Str("resource_id", n.ResourceID).Msg("notification: all retry attempts exhausted")
}
