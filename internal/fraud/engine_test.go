package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/rules"
)

// noon UTC keeps the time-of-day check quiet in tests that don't target it.
var noon = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *Tracker, *Blacklist) {
	t.Helper()

	tracker := NewTracker()
	tracker.now = func() time.Time { return noon }
	blacklist := NewBlacklist(nil)

	engine := NewEngine(domain.FraudConfig{MaxAttemptsPerHour: 5, MaxAttemptsPerDay: 20}, tracker, blacklist, nil, nil)
	engine.now = func() time.Time { return noon }
	return engine, tracker, blacklist
}

func cleanVerification() *domain.VerificationData {
	return &domain.VerificationData{
		FaceMatch: &domain.FaceMatchData{Match: true, Confidence: 0.95, Similarity: 0.95, Distance: 0.1},
		Liveness:  &domain.LivenessData{IsLive: true, Confidence: 0.9, Score: 0.9},
	}
}

func TestScoreCleanFirstAttempt(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assessment := engine.Score(context.Background(), "user-1", &domain.DeviceInfo{DeviceID: "d1", IPAddress: "203.0.113.7"}, cleanVerification())

	if assessment.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0 (flags: %v)", assessment.RiskScore, assessment.Flags)
	}
	if assessment.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %s, want LOW", assessment.RiskLevel)
	}
	if assessment.Recommendation != domain.RecommendApprove {
		t.Errorf("Recommendation = %s, want APPROVE", assessment.Recommendation)
	}
}

func TestScoreExcessiveHourlyAttempts(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	var assessment *domain.RiskAssessment
	for i := 0; i < 6; i++ {
		assessment = engine.Score(ctx, "user-1", nil, cleanVerification())
	}

	if !assessment.HasFlag(domain.FlagExcessiveAttemptsHourly) {
		t.Errorf("missing EXCESSIVE_ATTEMPTS_HOURLY flag, got %v", assessment.Flags)
	}
	if assessment.RiskScore < 30 {
		t.Errorf("RiskScore = %d, want >= 30", assessment.RiskScore)
	}
}

func TestScoreBlacklistedUserDominates(t *testing.T) {
	engine, _, blacklist := newTestEngine(t)
	ctx := context.Background()

	blacklist.Add(ctx, "user-1", nil)

	assessment := engine.Score(ctx, "user-1", &domain.DeviceInfo{DeviceID: "d1", IPAddress: "203.0.113.7"}, cleanVerification())

	if assessment.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want 100 (clamped)", assessment.RiskScore)
	}
	if assessment.Recommendation != domain.RecommendReject {
		t.Errorf("Recommendation = %s, want REJECT", assessment.Recommendation)
	}
	if !assessment.HasFlag(domain.FlagUserBlacklisted) {
		t.Errorf("missing USER_BLACKLISTED flag, got %v", assessment.Flags)
	}
}

func TestScoreBlacklistedDevice(t *testing.T) {
	engine, _, blacklist := newTestEngine(t)
	ctx := context.Background()

	device := &domain.DeviceInfo{DeviceID: "d1", IPAddress: "203.0.113.7"}
	blacklist.Add(ctx, "", device)

	assessment := engine.Score(ctx, "user-1", device, cleanVerification())
	if !assessment.HasFlag(domain.FlagDeviceBlacklisted) {
		t.Errorf("missing DEVICE_BLACKLISTED flag, got %v", assessment.Flags)
	}
	if assessment.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want 100", assessment.RiskScore)
	}
}

func TestScoreDeviceSignals(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	device := &domain.DeviceInfo{
		DeviceID:   "d1",
		IPAddress:  "203.0.113.7",
		UsingVPN:   true,
		IsEmulator: true,
		IsRooted:   true,
	}
	assessment := engine.Score(context.Background(), "user-1", device, cleanVerification())

	// 15 + 25 + 20
	if assessment.RiskScore != 60 {
		t.Errorf("RiskScore = %d, want 60", assessment.RiskScore)
	}
	if assessment.RiskLevel != domain.RiskHigh {
		t.Errorf("RiskLevel = %s, want HIGH", assessment.RiskLevel)
	}
	if assessment.Recommendation != domain.RecommendReview {
		t.Errorf("Recommendation = %s, want REVIEW", assessment.Recommendation)
	}
	for _, flag := range []string{domain.FlagVPNDetected, domain.FlagEmulatorDetected, domain.FlagRootedDevice} {
		if !assessment.HasFlag(flag) {
			t.Errorf("missing %s flag", flag)
		}
	}
}

func TestScoreQualitySignals(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	verification := &domain.VerificationData{
		FaceMatch: &domain.FaceMatchData{Match: false, Confidence: 0.3, Distance: 0.7},
		Liveness:  &domain.LivenessData{IsLive: false, Confidence: 0.2},
	}
	assessment := engine.Score(context.Background(), "user-1", nil, verification)

	// 30 + 20 + 15 + 40 + 25 = 130, clamped to 100.
	if assessment.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want 100", assessment.RiskScore)
	}
	if assessment.RiskLevel != domain.RiskCritical {
		t.Errorf("RiskLevel = %s, want CRITICAL", assessment.RiskLevel)
	}
}

func TestScoreSuspiciousTimeOfDay(t *testing.T) {
	engine, tracker, _ := newTestEngine(t)

	night := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return night }
	tracker.now = func() time.Time { return night }

	assessment := engine.Score(context.Background(), "user-1", nil, cleanVerification())
	if !assessment.HasFlag(domain.FlagSuspiciousTimeOfDay) {
		t.Errorf("missing SUSPICIOUS_TIME_OF_DAY flag, got %v", assessment.Flags)
	}
	if assessment.RiskScore != 10 {
		t.Errorf("RiskScore = %d, want 10", assessment.RiskScore)
	}
}

func TestScoreMissingSignalsContributeZero(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assessment := engine.Score(context.Background(), "user-1", nil, nil)
	if assessment.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0 for absent signals", assessment.RiskScore)
	}
}

func TestScoreBoundsNeverExceeded(t *testing.T) {
	engine, _, blacklist := newTestEngine(t)
	ctx := context.Background()

	device := &domain.DeviceInfo{
		DeviceID:       "d1",
		IPAddress:      "203.0.113.7",
		UsingVPN:       true,
		IsEmulator:     true,
		IsRooted:       true,
		DeviceMismatch: true,
	}
	blacklist.Add(ctx, "user-1", device)

	verification := &domain.VerificationData{
		FaceMatch: &domain.FaceMatchData{Match: false, Confidence: 0.0, Distance: 0.9},
		Liveness:  &domain.LivenessData{IsLive: false, Confidence: 0.0},
	}

	for i := 0; i < 25; i++ {
		assessment := engine.Score(ctx, "user-1", device, verification)
		if assessment.RiskScore < 0 || assessment.RiskScore > 100 {
			t.Fatalf("RiskScore = %d out of bounds", assessment.RiskScore)
		}
	}
}

func TestScoreAppliesCustomRules(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	ruleEngine, err := rules.NewEngine(4)
	if err != nil {
		t.Fatalf("rules.NewEngine: %v", err)
	}
	defer ruleEngine.Close()

	err = ruleEngine.LoadRule(&domain.RiskRule{
		ID:         "vpn-emulator",
		Name:       "vpn on emulator",
		Version:    "1.0",
		Expression: `device.using_vpn == true && device.is_emulator == true`,
		Score:      25,
		Flag:       "VPN_EMULATOR_COMBO",
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("LoadRule: %v", err)
	}
	engine.rules = ruleEngine

	device := &domain.DeviceInfo{DeviceID: "d1", IPAddress: "203.0.113.7", UsingVPN: true, IsEmulator: true}
	assessment := engine.Score(context.Background(), "user-1", device, cleanVerification())

	if !assessment.HasFlag("VPN_EMULATOR_COMBO") {
		t.Errorf("missing custom rule flag, got %v", assessment.Flags)
	}
	// 15 + 25 built-in, 25 custom.
	if assessment.RiskScore != 65 {
		t.Errorf("RiskScore = %d, want 65", assessment.RiskScore)
	}
}

func TestHistory(t *testing.T) {
	engine, _, blacklist := newTestEngine(t)
	ctx := context.Background()

	engine.Score(ctx, "user-1", nil, cleanVerification())
	engine.Score(ctx, "user-1", nil, cleanVerification())
	blacklist.Add(ctx, "user-1", nil)

	history := engine.History("user-1")
	if history.AttemptsLastHour != 2 || history.AttemptsLastDay != 2 {
		t.Errorf("counts = (%d, %d), want (2, 2)", history.AttemptsLastHour, history.AttemptsLastDay)
	}
	if !history.IsBlacklisted {
		t.Error("expected blacklisted user")
	}
	if history.LastAttempt == nil {
		t.Error("expected a last attempt timestamp")
	}
}
