package domain

import (
	"time"
)

// AuditEvent is a structured security event. The core never depends on
// audit delivery for correctness: events are logged and published
// fire-and-forget.
type AuditEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	UserID    string         `json:"userId"` // "anonymous" when unknown
	IPAddress string         `json:"ipAddress"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Audit event types emitted by the service.
const (
	EventVerificationRequest = "verification_request"
	EventVerificationResult  = "verification_result"
	EventRiskScore           = "risk_score"
	EventRateLimitExceeded   = "rate_limit_exceeded"
	EventBlacklistUpdate     = "blacklist_update"
	EventValidationFailure   = "validation_failure"
)
