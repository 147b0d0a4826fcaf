// Package audit emits structured audit events for verification activity.
// Emission is fire-and-forget: the decision path never blocks on or fails
// because of audit delivery.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kycshield/kycshield/internal/domain"
)

// Emitter logs audit events and fans them out over the event bus. A nil
// bus disables fan-out; events are still logged.
type Emitter struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewEmitter creates an audit emitter over the given bus.
func NewEmitter(bus domain.EventBus) *Emitter {
	return &Emitter{
		bus:    bus,
		logger: slog.Default().With("component", "audit"),
	}
}

// Emit records an audit event. Delivery failures are logged, never returned.
func (e *Emitter) Emit(ctx context.Context, eventType, userID, ipAddress string, details map[string]any) {
	event := &domain.AuditEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	e.logger.Info("audit event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"user_id", event.UserID,
		"ip_address", event.IPAddress)

	if e.bus == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("failed to encode audit event", "event_type", eventType, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, domain.TopicAuditEvent, payload); err != nil {
		e.logger.Error("failed to publish audit event", "event_type", eventType, "error", err)
	}
}

// VerificationRequest emits the event raised when a verification starts.
func (e *Emitter) VerificationRequest(ctx context.Context, userID, ipAddress, mode string) {
	e.Emit(ctx, domain.EventVerificationRequest, userID, ipAddress, map[string]any{"mode": mode})
}

// VerificationResult emits the event raised when a verdict is reached.
func (e *Emitter) VerificationResult(ctx context.Context, userID, ipAddress, mode, verdict string, confidence float64) {
	e.Emit(ctx, domain.EventVerificationResult, userID, ipAddress, map[string]any{
		"mode":       mode,
		"verdict":    verdict,
		"confidence": confidence,
	})
}

// RateLimitExceeded emits the event raised on an admission rejection.
func (e *Emitter) RateLimitExceeded(ctx context.Context, ipAddress string, retryAfter int) {
	e.Emit(ctx, domain.EventRateLimitExceeded, "", ipAddress, map[string]any{"retry_after_seconds": retryAfter})
}

// BlacklistUpdate emits the event raised on blacklist mutations.
func (e *Emitter) BlacklistUpdate(ctx context.Context, userID, ipAddress, action string) {
	e.Emit(ctx, domain.EventBlacklistUpdate, userID, ipAddress, map[string]any{"action": action})
}
