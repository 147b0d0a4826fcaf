package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/rules"
)

// Score deltas for the built-in risk checks.
const (
	scoreExcessiveHourly   = 30
	scoreExcessiveDaily    = 40
	scoreSuspiciousTime    = 10
	scoreVPN               = 15
	scoreEmulator          = 25
	scoreRooted            = 20
	scoreDeviceMismatch    = 15
	scoreFaceMatchFailed   = 30
	scoreLowFaceConfidence = 20
	scoreLivenessFailed    = 40
	scoreLowLivenessConf   = 25
	scoreHighFaceDistance  = 15
	scoreBlacklisted       = 100
)

// Risk tier boundaries on the clamped 0-100 score.
const (
	tierCritical = 80
	tierHigh     = 60
	tierMedium   = 40
)

// Engine computes additive risk assessments for verification attempts.
// Every sub-check is independent and order-insensitive; missing signals
// contribute zero. Scoring records the attempt as a side effect.
type Engine struct {
	tracker        *Tracker
	blacklist      *Blacklist
	rules          *rules.Engine // optional custom CEL rules
	cache          domain.Cache  // optional distributed attempt counters
	maxPerHour     int
	maxPerDay      int
	logger         *slog.Logger
	now            func() time.Time
}

// NewEngine creates a fraud risk engine. The rules engine and cache are
// optional; pass nil to run with built-in checks and local counters only.
func NewEngine(cfg domain.FraudConfig, tracker *Tracker, blacklist *Blacklist, ruleEngine *rules.Engine, cache domain.Cache) *Engine {
	maxHour := cfg.MaxAttemptsPerHour
	if maxHour <= 0 {
		maxHour = 5
	}
	maxDay := cfg.MaxAttemptsPerDay
	if maxDay <= 0 {
		maxDay = 20
	}

	return &Engine{
		tracker:    tracker,
		blacklist:  blacklist,
		rules:      ruleEngine,
		cache:      cache,
		maxPerHour: maxHour,
		maxPerDay:  maxDay,
		logger:     slog.Default().With("component", "fraud_engine"),
		now:        time.Now,
	}
}

// Score assesses a verification attempt and records it in the attempt
// history. It never fails: partial or missing inputs degrade to a zero
// contribution from the affected checks.
func (e *Engine) Score(ctx context.Context, userID string, device *domain.DeviceInfo, verification *domain.VerificationData) *domain.RiskAssessment {
	now := e.now()

	lastHour, lastDay := e.tracker.RecordAndCount(userID)
	lastHour, lastDay = e.mergeDistributedCounts(ctx, userID, lastHour, lastDay)

	assessment := &domain.RiskAssessment{
		Flags:     []string{},
		Details:   make(map[string]int),
		Timestamp: now,
	}

	add := func(flag string, delta int) {
		assessment.RiskScore += delta
		assessment.Flags = append(assessment.Flags, flag)
		assessment.Details[flag] = delta
	}

	// Frequency checks.
	if lastHour >= e.maxPerHour {
		add(domain.FlagExcessiveAttemptsHourly, scoreExcessiveHourly)
	}
	if lastDay >= e.maxPerDay {
		add(domain.FlagExcessiveAttemptsDaily, scoreExcessiveDaily)
	}

	// Time-of-day check, UTC.
	if hour := now.UTC().Hour(); hour <= 5 {
		add(domain.FlagSuspiciousTimeOfDay, scoreSuspiciousTime)
	}

	// Device signals.
	if device != nil {
		if device.UsingVPN {
			add(domain.FlagVPNDetected, scoreVPN)
		}
		if device.IsEmulator {
			add(domain.FlagEmulatorDetected, scoreEmulator)
		}
		if device.IsRooted {
			add(domain.FlagRootedDevice, scoreRooted)
		}
		if device.DeviceMismatch {
			add(domain.FlagDeviceMismatch, scoreDeviceMismatch)
		}
	}

	// Verification quality signals.
	if verification != nil {
		if fm := verification.FaceMatch; fm != nil {
			if !fm.Match {
				add(domain.FlagFaceMatchFailed, scoreFaceMatchFailed)
			}
			if fm.Confidence < 0.5 {
				add(domain.FlagLowFaceConfidence, scoreLowFaceConfidence)
			}
			if fm.Distance > 0.5 {
				add(domain.FlagHighFaceDistance, scoreHighFaceDistance)
			}
		}
		if lv := verification.Liveness; lv != nil {
			if !lv.IsLive {
				add(domain.FlagLivenessFailed, scoreLivenessFailed)
			}
			if lv.Confidence < 0.3 {
				add(domain.FlagLowLivenessConfidence, scoreLowLivenessConf)
			}
		}
	}

	// Blacklist checks; user and device matches contribute independently.
	if e.blacklist != nil {
		if e.blacklist.IsUserListed(userID) {
			add(domain.FlagUserBlacklisted, scoreBlacklisted)
		}
		if device != nil && e.blacklist.IsDeviceListed(FingerprintDevice(device)) {
			add(domain.FlagDeviceBlacklisted, scoreBlacklisted)
		}
	}

	// Custom CEL rules run on the built-in subtotal.
	e.applyCustomRules(ctx, assessment, userID, lastHour, lastDay, device, verification)

	if assessment.RiskScore > 100 {
		assessment.RiskScore = 100
	}
	if assessment.RiskScore < 0 {
		assessment.RiskScore = 0
	}

	switch {
	case assessment.RiskScore >= tierCritical:
		assessment.RiskLevel = domain.RiskCritical
		assessment.Recommendation = domain.RecommendReject
	case assessment.RiskScore >= tierHigh:
		assessment.RiskLevel = domain.RiskHigh
		assessment.Recommendation = domain.RecommendReview
	case assessment.RiskScore >= tierMedium:
		assessment.RiskLevel = domain.RiskMedium
		assessment.Recommendation = domain.RecommendReview
	default:
		assessment.RiskLevel = domain.RiskLow
		assessment.Recommendation = domain.RecommendApprove
	}

	e.logger.Info("risk assessment completed",
		"user_id", userID,
		"risk_score", assessment.RiskScore,
		"risk_level", assessment.RiskLevel,
		"flags", assessment.Flags,
		"recommendation", assessment.Recommendation)

	return assessment
}

// mergeDistributedCounts folds shared attempt counters into the local
// counts when a cache is configured. Each instance increments both the
// local tracker and the shared counter, so the shared count is at least
// the local one; max() keeps the check correct when the cache resets.
func (e *Engine) mergeDistributedCounts(ctx context.Context, userID string, lastHour, lastDay int) (int, int) {
	if e.cache == nil {
		return lastHour, lastDay
	}

	hourly, err := e.cache.IncrementCounter(ctx, fmt.Sprintf("fraud:attempts:hour:%s", userID), time.Hour)
	if err != nil {
		e.logger.Warn("distributed hourly counter unavailable", "user_id", userID, "error", err)
	} else if int(hourly) > lastHour {
		lastHour = int(hourly)
	}

	daily, err := e.cache.IncrementCounter(ctx, fmt.Sprintf("fraud:attempts:day:%s", userID), 24*time.Hour)
	if err != nil {
		e.logger.Warn("distributed daily counter unavailable", "user_id", userID, "error", err)
	} else if int(daily) > lastDay {
		lastDay = int(daily)
	}

	return lastHour, lastDay
}

func (e *Engine) applyCustomRules(ctx context.Context, assessment *domain.RiskAssessment, userID string, lastHour, lastDay int, device *domain.DeviceInfo, verification *domain.VerificationData) {
	if e.rules == nil || e.rules.RulesCount() == 0 {
		return
	}

	input := &rules.Input{
		UserID:         userID,
		HourlyAttempts: lastHour,
		DailyAttempts:  lastDay,
		RiskScore:      assessment.RiskScore,
		Device:         deviceActivation(device),
		Verification:   verificationActivation(verification),
	}

	for _, result := range e.rules.EvaluateAll(ctx, input) {
		if result.Err != "" {
			e.logger.Warn("custom rule evaluation failed", "rule_id", result.RuleID, "error", result.Err)
			continue
		}
		if result.Matched {
			assessment.RiskScore += result.Score
			assessment.Flags = append(assessment.Flags, result.Flag)
			assessment.Details[result.Flag] = result.Score
		}
	}
}

func deviceActivation(device *domain.DeviceInfo) map[string]any {
	if device == nil {
		return map[string]any{}
	}
	return map[string]any{
		"device_id":       device.DeviceID,
		"ip_address":      device.IPAddress,
		"using_vpn":       device.UsingVPN,
		"is_emulator":     device.IsEmulator,
		"is_rooted":       device.IsRooted,
		"device_mismatch": device.DeviceMismatch,
	}
}

func verificationActivation(verification *domain.VerificationData) map[string]any {
	out := map[string]any{}
	if verification == nil {
		return out
	}
	if fm := verification.FaceMatch; fm != nil {
		out["face_match"] = fm.Match
		out["face_confidence"] = fm.Confidence
		out["face_similarity"] = fm.Similarity
		out["face_distance"] = fm.Distance
	}
	if lv := verification.Liveness; lv != nil {
		out["is_live"] = lv.IsLive
		out["liveness_confidence"] = lv.Confidence
		out["liveness_score"] = lv.Score
	}
	return out
}

// History reports a user's recorded attempt counts and blacklist status.
func (e *Engine) History(userID string) *domain.UserHistory {
	lastHour, lastDay := e.tracker.Counts(userID)

	history := &domain.UserHistory{
		UserID:           userID,
		TotalAttempts:    lastDay,
		AttemptsLastHour: lastHour,
		AttemptsLastDay:  lastDay,
	}
	if last, ok := e.tracker.LastAttempt(userID); ok {
		history.LastAttempt = &last
	}
	if e.blacklist != nil {
		history.IsBlacklisted = e.blacklist.IsUserListed(userID)
	}
	return history
}
