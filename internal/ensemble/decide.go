package ensemble

// Pure decision logic for both verification modes. These functions are
// side-effect free; all state changes happen in the orchestrator.

import (
	"fmt"

	"github.com/kycshield/kycshield/internal/domain"
)

// Weights of the full-KYC weighted score.
const (
	weightDocument  = 0.15
	weightFaceMatch = 0.35
	weightLiveness  = 0.30
	weightFraud     = 0.20
)

// Thresholds of the full-KYC weighted score.
const (
	passThreshold = 75.0
	failThreshold = 40.0
)

// Decide applies the priority cascade of the video-inclusive mode. The
// order is deliberate: certain signals are categorically disqualifying
// regardless of the aggregate, so a weighted average could be gamed by
// making two of three signals look artificially strong.
func Decide(video, face, doc *domain.ClassifierResult, corr *domain.CorrelationResult) *domain.EnsembleVerdict {
	videoReal := !video.IsError() && video.IsPositive
	videoConfidence := confidenceOf(video)

	faceMatch := !face.IsError() && face.IsPositive
	faceSimilarity := face.Score(domain.ScoreSimilarity, 0.0)

	docGenuine := !doc.IsError() && doc.IsPositive
	docConfidence := confidenceOf(doc)

	// 1. Synthetic generation signature hard-fails everything.
	if corr != nil && corr.ProKYCDetected {
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictFail,
			Confidence: 0.95,
			RiskScore:  corr.CorrelationScore,
			Reason:     "ProKYC signature detected",
		}
	}

	// 2. High-confidence deepfake video.
	if !videoReal && videoConfidence > 0.90 {
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictFail,
			Confidence: videoConfidence,
			RiskScore:  1.0 - videoConfidence,
			Reason:     "Deepfake video detected",
		}
	}

	// 3. High-confidence fraudulent document.
	if !docGenuine && docConfidence > 0.90 {
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictFail,
			Confidence: docConfidence,
			RiskScore:  1.0 - docConfidence,
			Reason:     "Fraudulent document detected",
		}
	}

	// 4. Face mismatch.
	if !faceMatch {
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictFail,
			Confidence: 1.0 - faceSimilarity,
			RiskScore:  1.0 - faceSimilarity,
			Reason:     "Face does not match ID",
		}
	}

	// 5. Elevated cross-artifact correlation.
	if corr != nil && (corr.RiskLevel == domain.RiskHigh || corr.CorrelationScore > 0.50) {
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictSuspicious,
			Confidence: 0.70,
			RiskScore:  corr.CorrelationScore,
			Reason:     fmt.Sprintf("High correlation (risk: %s)", corr.RiskLevel),
		}
	}

	// 6. Any low-confidence component.
	if videoConfidence < 0.70 || docConfidence < 0.70 || faceSimilarity < 0.70 {
		low := min3(videoConfidence, docConfidence, faceSimilarity)
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictSuspicious,
			Confidence: low,
			RiskScore:  1.0 - low,
			Reason:     "Low confidence in verification",
		}
	}

	// 7. Everything positive.
	if videoReal && docGenuine && faceMatch {
		avg := (videoConfidence + docConfidence + faceSimilarity) / 3
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictPass,
			Confidence: avg,
			RiskScore:  1.0 - avg,
			Reason:     "All checks passed",
			Pass:       true,
		}
	}

	return &domain.EnsembleVerdict{
		Verdict:    domain.VerdictSuspicious,
		Confidence: 0.50,
		RiskScore:  0.50,
		Reason:     "Inconclusive results",
	}
}

// DecideKYC applies the weighted score of the selfie-only mode.
func DecideKYC(doc, face, liveness *domain.ClassifierResult, risk *domain.RiskAssessment) *domain.KYCDecision {
	flags := []string{}
	if face.IsError() || !face.IsPositive {
		flags = append(flags, domain.FlagFaceMatchFailed)
	}
	if liveness.IsError() || !liveness.IsPositive {
		flags = append(flags, domain.FlagLivenessFailed)
	}
	if risk != nil {
		flags = append(flags, risk.Flags...)
	}
	flags = dedupe(flags)

	overall := overallScore(doc, face, liveness, risk)
	verdict, recommendation := kycVerdict(overall, risk, flags)

	return &domain.KYCDecision{
		Verdict:        verdict,
		Confidence:     kycConfidence(doc, face, liveness, risk),
		OverallScore:   overall,
		Recommendation: recommendation,
		Flags:          flags,
	}
}

// overallScore computes the weighted 0-100 score. Each component is
// scaled to 0-100 before weighting; negative or ERROR components score 0.
func overallScore(doc, face, liveness *domain.ClassifierResult, risk *domain.RiskAssessment) float64 {
	docScore := doc.Score(domain.ScoreQuality, 0)

	var faceScore float64
	if !face.IsError() && face.IsPositive {
		faceScore = face.Score(domain.ScoreSimilarity, 0) * 100
	}

	var livenessScore float64
	if !liveness.IsError() && liveness.IsPositive {
		livenessScore = liveness.Score(domain.ScoreLiveness, 0.5) * 100
	}

	fraudScore := 50.0
	if risk != nil {
		fraudScore = 100.0 - float64(risk.RiskScore)
	}

	return weightDocument*docScore +
		weightFaceMatch*faceScore +
		weightLiveness*livenessScore +
		weightFraud*fraudScore
}

func kycVerdict(overall float64, risk *domain.RiskAssessment, flags []string) (string, string) {
	critical := map[string]bool{
		domain.FlagFaceMatchFailed:   true,
		domain.FlagLivenessFailed:    true,
		domain.FlagUserBlacklisted:   true,
		domain.FlagDeviceBlacklisted: true,
	}
	for _, flag := range flags {
		if critical[flag] {
			return domain.VerdictFail, "Reject - Critical verification failure"
		}
	}

	riskLevel := ""
	if risk != nil {
		riskLevel = risk.RiskLevel
	}
	if riskLevel == domain.RiskCritical {
		return domain.VerdictFail, "Reject - Critical fraud risk detected"
	}

	switch {
	case overall >= passThreshold:
		if riskLevel == domain.RiskHigh || riskLevel == domain.RiskMedium {
			return domain.VerdictReview, "Manual review - High fraud risk despite good verification"
		}
		return domain.VerdictPass, "Approve - All checks passed"
	case overall < failThreshold:
		return domain.VerdictFail, "Reject - Verification score too low"
	default:
		return domain.VerdictReview, "Manual review - Borderline verification score"
	}
}

// kycConfidence is the mean of the per-component confidence signals; a
// component that produced no signal is skipped. Defaults to 0.5 when
// nothing contributed.
func kycConfidence(doc, face, liveness *domain.ClassifierResult, risk *domain.RiskAssessment) float64 {
	var confidences []float64

	if !face.IsError() {
		similarity := face.Score(domain.ScoreSimilarity, 0)
		// Distance from the 0.5 decision boundary, rescaled to [0,1].
		confidences = append(confidences, abs(similarity-0.5)*2)
	}
	if !liveness.IsError() {
		confidences = append(confidences, liveness.Confidence)
	}
	if !doc.IsError() {
		confidences = append(confidences, doc.Confidence)
	}
	if risk != nil {
		confidences = append(confidences, abs(float64(risk.RiskScore)-50)/50)
	}

	if len(confidences) == 0 {
		return 0.5
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}

func confidenceOf(r *domain.ClassifierResult) float64 {
	if r == nil {
		return 0
	}
	return r.Confidence
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
