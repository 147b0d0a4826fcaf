// Package correlation detects batch-generated verification artifacts.
//
// ProKYC-style attacks produce the video, selfie and ID document from the
// same synthetic-generation pipeline; the analyzer looks for the signature
// of that shared origin across classifier outputs and pixel statistics.
package correlation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kycshield/kycshield/internal/domain"
)

// Pattern score contributions, summed then clamped to [0,1].
const (
	scoreAllFake        = 0.4
	scoreImpossible     = 0.5
	scoreUniformConf    = 0.3
	freqWeight          = 0.3
	highSimilarity      = 0.90
	uniformConfFloor    = 0.95
	freqReportThreshold = 0.7
)

// Risk tier boundaries on the clamped correlation score.
const (
	tierCritical = 0.75
	tierHigh     = 0.50
	tierMedium   = 0.30
)

// Analyzer performs cross-artifact correlation analysis. It is stateless;
// a single instance is safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a correlation analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		logger: slog.Default().With("component", "correlation"),
	}
}

// Analyze scores how likely the three artifacts share a synthetic origin.
// Each pattern check is independent; a failure in the pixel-domain check
// degrades that term to zero rather than aborting the analysis.
func (a *Analyzer) Analyze(ctx context.Context, artifacts *domain.ArtifactSet, video, face, doc *domain.ClassifierResult) *domain.CorrelationResult {
	var score float64
	patterns := []string{}

	videoFake := video != nil && !video.IsError() && !video.IsPositive
	docFake := doc != nil && !doc.IsError() && !doc.IsPositive
	faceNoMatch := face != nil && !face.IsError() && !face.IsPositive

	// Pattern 1: every classifier flagged its artifact.
	if videoFake && docFake && faceNoMatch {
		patterns = append(patterns, "All three inputs flagged as fraudulent")
		score += scoreAllFake
	}

	// Pattern 2: a near-perfect face match across two fraudulent sources
	// is itself implausible without a shared generator.
	var similarity float64
	if face != nil {
		similarity = face.Score(domain.ScoreSimilarity, 0)
	}
	if similarity > highSimilarity && videoFake && docFake {
		patterns = append(patterns, "High face similarity with fraudulent video and document (ProKYC indicator)")
		score += scoreImpossible
	}

	// Pattern 3: uniformly high confidence with a fake present suggests
	// synthetic batch generation rather than natural variance.
	if video != nil && doc != nil &&
		video.Confidence > uniformConfFloor && doc.Confidence > uniformConfFloor && similarity > uniformConfFloor &&
		(videoFake || docFake) {
		patterns = append(patterns, "Unnaturally high confidence across all fake artifacts")
		score += scoreUniformConf
	}

	// Pattern 4: shared high-frequency fingerprints across the artifacts.
	if artifacts != nil {
		freqCorr := a.frequencyCorrelation(artifacts)
		score += freqCorr * freqWeight
		if freqCorr > freqReportThreshold {
			patterns = append(patterns, fmt.Sprintf("Similar generation artifacts detected across inputs (correlation: %.2f)", freqCorr))
		}
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	result := &domain.CorrelationResult{
		CorrelationScore:   score,
		SuspiciousPatterns: patterns,
	}
	switch {
	case score >= tierCritical:
		result.RiskLevel = domain.RiskCritical
		result.ProKYCDetected = true
	case score >= tierHigh:
		result.RiskLevel = domain.RiskHigh
		result.ProKYCDetected = true
	case score >= tierMedium:
		result.RiskLevel = domain.RiskMedium
	default:
		result.RiskLevel = domain.RiskLow
	}

	a.logger.Debug("correlation analysis completed",
		"correlation_score", result.CorrelationScore,
		"risk_level", result.RiskLevel,
		"prokyc_detected", result.ProKYCDetected,
		"patterns", len(result.SuspiciousPatterns))

	return result
}

// frequencyCorrelation computes the average absolute pairwise correlation
// between the high-frequency maps of the three artifacts. Any load or
// decode failure returns 0.
func (a *Analyzer) frequencyCorrelation(artifacts *domain.ArtifactSet) float64 {
	videoFreq, err := highFreqMap(artifacts.VideoFramePath)
	if err != nil {
		a.logger.Warn("frequency analysis skipped", "artifact", "video_frame", "error", err)
		return 0
	}
	selfieFreq, err := highFreqMap(artifacts.SelfiePath)
	if err != nil {
		a.logger.Warn("frequency analysis skipped", "artifact", "selfie", "error", err)
		return 0
	}
	docFreq, err := highFreqMap(artifacts.DocumentPath)
	if err != nil {
		a.logger.Warn("frequency analysis skipped", "artifact", "document", "error", err)
		return 0
	}

	avg := (abs(pearson(videoFreq, selfieFreq)) +
		abs(pearson(videoFreq, docFreq)) +
		abs(pearson(selfieFreq, docFreq))) / 3

	if avg < 0 {
		return 0
	}
	if avg > 1 {
		return 1
	}
	return avg
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
