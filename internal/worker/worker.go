// Package worker provides async audit event processing.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
)

// AuditSink persists audit events published on the EventBus. The API
// layer emits events fire-and-forget; the sink drains them into the
// repository off the request path.
type AuditSink struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	logger *slog.Logger
}

// NewAuditSink creates a new audit sink.
func NewAuditSink(bus domain.EventBus, repo domain.Repository) *AuditSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuditSink{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
		logger: slog.Default().With("component", "audit_sink"),
	}
}

// Start subscribes to the audit topic and begins persisting events.
func (s *AuditSink) Start() error {
	sub, err := s.bus.Subscribe(s.ctx, domain.TopicAuditEvent, s.handleMessage)
	if err != nil {
		return err
	}
	s.subscriptions = append(s.subscriptions, sub)

	s.logger.Info("audit sink started", "topic", domain.TopicAuditEvent)
	return nil
}

// handleMessage unmarshals and persists a single audit event.
func (s *AuditSink) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var event domain.AuditEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Error("failed to parse audit event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if s.repo != nil {
		if err := s.repo.SaveAuditEvent(ctx, &event); err != nil {
			s.logger.Error("failed to save audit event",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
			return err
		}
	}

	s.logger.Debug("audit event persisted",
		"event_id", event.ID,
		"event_type", event.EventType,
		"user_id", event.UserID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the sink.
func (s *AuditSink) Stop() error {
	s.cancel()

	for _, sub := range s.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	s.subscriptions = nil

	s.wg.Wait()

	s.logger.Info("audit sink stopped")
	return nil
}

// Stats returns sink statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current sink statistics.
func (s *AuditSink) GetStats() Stats {
	topics := make([]string, len(s.subscriptions))
	for i, sub := range s.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(s.subscriptions),
		Topics:            topics,
	}
}
