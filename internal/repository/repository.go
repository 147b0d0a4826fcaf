// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveVerification stores a completed verification record.
func (r *SQLRepository) SaveVerification(ctx context.Context, rec *domain.VerificationRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: verification id is required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(rec.Flags)
	components, _ := json.Marshal(rec.Components)

	query := `
		INSERT INTO verifications (
			id, user_id, mode, verdict, confidence, risk_score,
			reason, flags, components, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, rec.UserID, rec.Mode,
		rec.Verdict, rec.Confidence, rec.RiskScore,
		rec.Reason, string(flags), string(components),
		rec.CreatedAt,
	)
	return err
}

// GetVerification retrieves a verification record by ID.
func (r *SQLRepository) GetVerification(ctx context.Context, id string) (*domain.VerificationRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: verification id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, mode, verdict, confidence, risk_score,
			   reason, flags, components, created_at
		FROM verifications
		WHERE id = ?
	`

	rec, err := scanVerification(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListVerificationsByUser retrieves a user's verification records since
// the given time, newest first.
func (r *SQLRepository) ListVerificationsByUser(ctx context.Context, userID string, since time.Time) ([]*domain.VerificationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, mode, verdict, confidence, risk_score,
			   reason, flags, components, created_at
		FROM verifications
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.VerificationRecord
	for rows.Next() {
		rec, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanVerification(s scanner) (*domain.VerificationRecord, error) {
	var rec domain.VerificationRecord
	var flags, components sql.NullString

	err := s.Scan(
		&rec.ID, &rec.UserID, &rec.Mode,
		&rec.Verdict, &rec.Confidence, &rec.RiskScore,
		&rec.Reason, &flags, &components,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if flags.Valid && flags.String != "" {
		json.Unmarshal([]byte(flags.String), &rec.Flags)
	}
	if components.Valid && components.String != "" {
		json.Unmarshal([]byte(components.String), &rec.Components)
	}

	return &rec, nil
}

// SaveBlacklistEntry upserts a blacklist entry keyed by its value.
func (r *SQLRepository) SaveBlacklistEntry(ctx context.Context, entry *domain.BlacklistEntry) error {
	if entry == nil || entry.Value == "" {
		return fmt.Errorf("%w: blacklist value is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO blacklist_entries (value, kind, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(value) DO UPDATE SET
			kind = excluded.kind
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.Value, entry.Kind, entry.CreatedAt,
	)
	return err
}

// DeleteBlacklistEntry removes a blacklist entry by value.
func (r *SQLRepository) DeleteBlacklistEntry(ctx context.Context, value string) error {
	if value == "" {
		return fmt.Errorf("%w: blacklist value is required", ErrInvalidInput)
	}

	query := `DELETE FROM blacklist_entries WHERE value = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), value)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListBlacklistEntries retrieves all blacklist entries.
// Used to rebuild the in-memory store on startup.
func (r *SQLRepository) ListBlacklistEntries(ctx context.Context) ([]*domain.BlacklistEntry, error) {
	query := `
		SELECT value, kind, created_at
		FROM blacklist_entries
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.BlacklistEntry
	for rows.Next() {
		var entry domain.BlacklistEntry
		if err := rows.Scan(&entry.Value, &entry.Kind, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// SaveRiskRule stores a custom risk rule configuration.
func (r *SQLRepository) SaveRiskRule(ctx context.Context, rule *domain.RiskRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO risk_rules (
			id, name, description, version, expression, score, flag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			score = excluded.score,
			flag = excluded.flag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Score, rule.Flag, enabled,
		now, now,
	)
	return err
}

// GetRiskRule retrieves the latest enabled version of a risk rule.
func (r *SQLRepository) GetRiskRule(ctx context.Context, ruleID string) (*domain.RiskRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, expression, score, flag, enabled
		FROM risk_rules
		WHERE id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.RiskRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Score, &rule.Flag, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListRiskRules retrieves all enabled risk rules.
func (r *SQLRepository) ListRiskRules(ctx context.Context) ([]*domain.RiskRule, error) {
	query := `
		SELECT id, name, description, version, expression, score, flag, enabled
		FROM risk_rules
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RiskRule
	for rows.Next() {
		var rule domain.RiskRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Score, &rule.Flag, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveAuditEvent stores an audit event.
func (r *SQLRepository) SaveAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	details, _ := json.Marshal(event.Details)

	query := `
		INSERT INTO audit_events (
			id, event_type, user_id, ip_address, details, timestamp
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		event.ID, event.EventType, event.UserID,
		event.IPAddress, string(details), event.Timestamp,
	)
	return err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
