package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Attempt history and
// token buckets stay in-memory by contract; the repository holds completed
// verifications, the durable blacklist, custom risk rules, and audit events.
type Repository interface {
	// Verification records
	SaveVerification(ctx context.Context, rec *VerificationRecord) error
	GetVerification(ctx context.Context, id string) (*VerificationRecord, error)
	ListVerificationsByUser(ctx context.Context, userID string, since time.Time) ([]*VerificationRecord, error)

	// Blacklist persistence (write-through from the in-memory store)
	SaveBlacklistEntry(ctx context.Context, entry *BlacklistEntry) error
	DeleteBlacklistEntry(ctx context.Context, value string) error
	ListBlacklistEntries(ctx context.Context) ([]*BlacklistEntry, error)

	// Custom risk rule configuration
	SaveRiskRule(ctx context.Context, rule *RiskRule) error
	GetRiskRule(ctx context.Context, ruleID string) (*RiskRule, error)
	ListRiskRules(ctx context.Context) ([]*RiskRule, error)

	// Audit events (persisted asynchronously by the audit worker)
	SaveAuditEvent(ctx context.Context, event *AuditEvent) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
