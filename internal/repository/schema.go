package repository

// Schema definitions for the KYC Shield database.
// Compatible with both SQLite and PostgreSQL.

const schemaVerifications = `
CREATE TABLE IF NOT EXISTS verifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    verdict TEXT NOT NULL,
    confidence REAL NOT NULL,
    risk_score REAL NOT NULL,
    reason TEXT,
    flags TEXT,
    components TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verifications_user ON verifications(user_id);
CREATE INDEX IF NOT EXISTS idx_verifications_created ON verifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_verifications_verdict ON verifications(verdict);
`

const schemaBlacklist = `
CREATE TABLE IF NOT EXISTS blacklist_entries (
    value TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_blacklist_kind ON blacklist_entries(kind);
`

// schemaRiskRules defines the risk_rules table.
// Rules hold CEL expressions evaluated against attempt context by the
// fraud engine; disabled rules stay stored but are skipped on load.
const schemaRiskRules = `
CREATE TABLE IF NOT EXISTS risk_rules (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    flag TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_risk_rules_enabled ON risk_rules(enabled);
CREATE INDEX IF NOT EXISTS idx_risk_rules_name ON risk_rules(name);
`

const schemaAuditEvents = `
CREATE TABLE IF NOT EXISTS audit_events (
    id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    user_id TEXT NOT NULL,
    ip_address TEXT,
    details TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaVerifications,
		schemaBlacklist,
		schemaRiskRules,
		schemaAuditEvents,
	}
}
