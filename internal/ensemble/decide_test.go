package ensemble

import (
	"strings"
	"testing"

	"github.com/kycshield/kycshield/internal/domain"
)

func classifierResult(kind domain.ArtifactKind, positive bool, confidence float64, scores map[string]float64) *domain.ClassifierResult {
	verdict := domain.VerdictReal
	if !positive {
		verdict = domain.VerdictFake
	}
	return &domain.ClassifierResult{
		Kind:       kind,
		Verdict:    verdict,
		Confidence: confidence,
		IsPositive: positive,
		RawScores:  scores,
	}
}

func goodVideo() *domain.ClassifierResult {
	return classifierResult(domain.ArtifactVideo, true, 0.95, nil)
}

func goodFace() *domain.ClassifierResult {
	return classifierResult(domain.ArtifactFace, true, 0.95, map[string]float64{domain.ScoreSimilarity: 0.95})
}

func goodDoc() *domain.ClassifierResult {
	return classifierResult(domain.ArtifactDocument, true, 0.98, nil)
}

func lowCorrelation() *domain.CorrelationResult {
	return &domain.CorrelationResult{RiskLevel: domain.RiskLow}
}

func TestDecideAllPositive(t *testing.T) {
	verdict := Decide(goodVideo(), goodFace(), goodDoc(), lowCorrelation())

	if verdict.Verdict != domain.VerdictPass {
		t.Fatalf("Verdict = %s, want PASS (reason: %s)", verdict.Verdict, verdict.Reason)
	}
	if !verdict.Pass {
		t.Error("Pass flag not set")
	}

	want := (0.95 + 0.98 + 0.95) / 3
	if diff := verdict.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %v, want %v", verdict.Confidence, want)
	}
}

func TestDecideProKYCOverridesEverything(t *testing.T) {
	corr := &domain.CorrelationResult{
		ProKYCDetected:   true,
		CorrelationScore: 0.9,
		RiskLevel:        domain.RiskCritical,
	}

	// All classifiers positive, correlation still hard-fails.
	verdict := Decide(goodVideo(), goodFace(), goodDoc(), corr)

	if verdict.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", verdict.Verdict)
	}
	if !strings.Contains(verdict.Reason, "ProKYC") {
		t.Errorf("Reason = %q, want ProKYC mention", verdict.Reason)
	}
	if verdict.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", verdict.Confidence)
	}
	if verdict.RiskScore != 0.9 {
		t.Errorf("RiskScore = %v, want correlation score 0.9", verdict.RiskScore)
	}
}

func TestDecideDeepfakeVideo(t *testing.T) {
	video := classifierResult(domain.ArtifactVideo, false, 0.95, nil)

	verdict := Decide(video, goodFace(), goodDoc(), lowCorrelation())
	if verdict.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", verdict.Verdict)
	}
	if verdict.Reason != "Deepfake video detected" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
}

func TestDecideFraudulentDocument(t *testing.T) {
	doc := classifierResult(domain.ArtifactDocument, false, 0.93, nil)

	verdict := Decide(goodVideo(), goodFace(), doc, lowCorrelation())
	if verdict.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", verdict.Verdict)
	}
	if verdict.Reason != "Fraudulent document detected" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
}

func TestDecideFaceMismatch(t *testing.T) {
	face := classifierResult(domain.ArtifactFace, false, 0.8, map[string]float64{domain.ScoreSimilarity: 0.3})

	verdict := Decide(goodVideo(), face, goodDoc(), lowCorrelation())
	if verdict.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", verdict.Verdict)
	}
	if verdict.Reason != "Face does not match ID" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
	// Confidence mirrors how far the similarity fell short.
	if diff := verdict.Confidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %v, want 0.7", verdict.Confidence)
	}
}

func TestDecideElevatedCorrelation(t *testing.T) {
	corr := &domain.CorrelationResult{
		CorrelationScore: 0.45,
		RiskLevel:        domain.RiskHigh,
	}

	verdict := Decide(goodVideo(), goodFace(), goodDoc(), corr)
	if verdict.Verdict != domain.VerdictSuspicious {
		t.Fatalf("Verdict = %s, want SUSPICIOUS", verdict.Verdict)
	}
	if !strings.Contains(verdict.Reason, "High correlation") {
		t.Errorf("Reason = %q", verdict.Reason)
	}
	if verdict.Confidence != 0.70 {
		t.Errorf("Confidence = %v, want 0.70", verdict.Confidence)
	}
}

func TestDecideLowConfidence(t *testing.T) {
	video := classifierResult(domain.ArtifactVideo, true, 0.6, nil)

	verdict := Decide(video, goodFace(), goodDoc(), lowCorrelation())
	if verdict.Verdict != domain.VerdictSuspicious {
		t.Fatalf("Verdict = %s, want SUSPICIOUS", verdict.Verdict)
	}
	if verdict.Reason != "Low confidence in verification" {
		t.Errorf("Reason = %q", verdict.Reason)
	}
	if verdict.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want the min component 0.6", verdict.Confidence)
	}
}

func TestDecideClassifierErrorNeverPasses(t *testing.T) {
	errVideo := domain.ErrorResult(domain.ArtifactVideo, nil)

	verdict := Decide(errVideo, goodFace(), goodDoc(), lowCorrelation())
	if verdict.Verdict == domain.VerdictPass {
		t.Fatalf("ERROR classifier result must not pass, got %s", verdict.Verdict)
	}
	if verdict.Verdict != domain.VerdictSuspicious {
		t.Errorf("Verdict = %s, want SUSPICIOUS for zero-confidence video", verdict.Verdict)
	}
}

func goodLiveness() *domain.ClassifierResult {
	return classifierResult(domain.ArtifactLiveness, true, 0.9, map[string]float64{domain.ScoreLiveness: 0.9})
}

func qualityDoc(quality float64) *domain.ClassifierResult {
	return classifierResult(domain.ArtifactDocument, true, 0.95, map[string]float64{domain.ScoreQuality: quality})
}

func lowRisk() *domain.RiskAssessment {
	return &domain.RiskAssessment{RiskScore: 0, RiskLevel: domain.RiskLow, Recommendation: domain.RecommendApprove}
}

func TestDecideKYCPass(t *testing.T) {
	decision := DecideKYC(qualityDoc(90), goodFace(), goodLiveness(), lowRisk())

	// 0.15*90 + 0.35*95 + 0.30*90 + 0.20*100 = 93.75
	if diff := decision.OverallScore - 93.75; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("OverallScore = %v, want 93.75", decision.OverallScore)
	}
	if decision.Verdict != domain.VerdictPass {
		t.Fatalf("Verdict = %s, want PASS (%s)", decision.Verdict, decision.Recommendation)
	}
}

func TestDecideKYCCriticalFlagFails(t *testing.T) {
	risk := lowRisk()
	risk.Flags = []string{domain.FlagUserBlacklisted}

	decision := DecideKYC(qualityDoc(90), goodFace(), goodLiveness(), risk)
	if decision.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL on blacklist flag", decision.Verdict)
	}
}

func TestDecideKYCFaceFailureIsCritical(t *testing.T) {
	face := classifierResult(domain.ArtifactFace, false, 0.8, map[string]float64{domain.ScoreSimilarity: 0.2})

	decision := DecideKYC(qualityDoc(90), face, goodLiveness(), lowRisk())
	if decision.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", decision.Verdict)
	}

	found := false
	for _, f := range decision.Flags {
		if f == domain.FlagFaceMatchFailed {
			found = true
		}
	}
	if !found {
		t.Errorf("missing FACE_MATCH_FAILED flag, got %v", decision.Flags)
	}
}

func TestDecideKYCCriticalRiskFails(t *testing.T) {
	risk := &domain.RiskAssessment{RiskScore: 85, RiskLevel: domain.RiskCritical, Recommendation: domain.RecommendReject}

	decision := DecideKYC(qualityDoc(90), goodFace(), goodLiveness(), risk)
	if decision.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL on critical risk", decision.Verdict)
	}
}

func TestDecideKYCHighRiskForcesReview(t *testing.T) {
	risk := &domain.RiskAssessment{RiskScore: 60, RiskLevel: domain.RiskHigh, Recommendation: domain.RecommendReview}

	decision := DecideKYC(qualityDoc(95), goodFace(), goodLiveness(), risk)
	if decision.Verdict != domain.VerdictReview {
		t.Fatalf("Verdict = %s, want REVIEW despite good score %v", decision.Verdict, decision.OverallScore)
	}
}

func TestDecideKYCLowScoreFails(t *testing.T) {
	doc := qualityDoc(10)
	face := classifierResult(domain.ArtifactFace, true, 0.8, map[string]float64{domain.ScoreSimilarity: 0.55})
	liveness := classifierResult(domain.ArtifactLiveness, true, 0.6, map[string]float64{domain.ScoreLiveness: 0.1})
	risk := &domain.RiskAssessment{RiskScore: 75, RiskLevel: domain.RiskHigh}

	// 0.15*10 + 0.35*55 + 0.30*10 + 0.20*25 = 28.75
	decision := DecideKYC(doc, face, liveness, risk)
	if decision.OverallScore >= failThreshold {
		t.Fatalf("OverallScore = %v, expected below %v", decision.OverallScore, failThreshold)
	}
	if decision.Verdict != domain.VerdictFail {
		t.Fatalf("Verdict = %s, want FAIL", decision.Verdict)
	}
}

func TestDecideKYCBorderlineReviews(t *testing.T) {
	doc := qualityDoc(50)
	face := classifierResult(domain.ArtifactFace, true, 0.8, map[string]float64{domain.ScoreSimilarity: 0.6})
	liveness := classifierResult(domain.ArtifactLiveness, true, 0.7, map[string]float64{domain.ScoreLiveness: 0.5})

	// 0.15*50 + 0.35*60 + 0.30*50 + 0.20*100 = 63.5
	decision := DecideKYC(doc, face, liveness, lowRisk())
	if decision.Verdict != domain.VerdictReview {
		t.Fatalf("Verdict = %s, want REVIEW (score %v)", decision.Verdict, decision.OverallScore)
	}
}

func TestKYCConfidence(t *testing.T) {
	decision := DecideKYC(qualityDoc(90), goodFace(), goodLiveness(), lowRisk())

	// abs(0.95-0.5)*2 + 0.9 + 0.95 + abs(0-50)/50 over 4 components.
	want := (0.9 + 0.9 + 0.95 + 1.0) / 4
	if diff := decision.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %v, want %v", decision.Confidence, want)
	}
}

func TestKYCConfidenceDefaultsWhenNoSignals(t *testing.T) {
	errDoc := domain.ErrorResult(domain.ArtifactDocument, nil)
	errFace := domain.ErrorResult(domain.ArtifactFace, nil)
	errLive := domain.ErrorResult(domain.ArtifactLiveness, nil)

	if got := kycConfidence(errDoc, errFace, errLive, nil); got != 0.5 {
		t.Errorf("confidence = %v, want default 0.5", got)
	}
}
