// Package ensemble fuses classifier, correlation and fraud signals into a
// terminal verification verdict.
package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kycshield/kycshield/internal/correlation"
	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/fraud"
)

// Engine orchestrates the verification pipeline. Classifier calls run
// concurrently, each bounded by its own timeout; a timed-out or failed
// call yields an ERROR result, never a silent positive.
type Engine struct {
	classifiers map[domain.ArtifactKind]domain.Classifier
	fraud       *fraud.Engine
	correlation *correlation.Analyzer
	timeout     time.Duration
	logger      *slog.Logger
}

// NewEngine creates an ensemble engine over the given classifier set.
func NewEngine(classifiers map[domain.ArtifactKind]domain.Classifier, fraudEngine *fraud.Engine, analyzer *correlation.Analyzer, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		classifiers: classifiers,
		fraud:       fraudEngine,
		correlation: analyzer,
		timeout:     timeout,
		logger:      slog.Default().With("component", "ensemble"),
	}
}

// VerifyComplete runs the video-inclusive cascade mode: video, face and
// document classification followed by cross-artifact correlation and the
// priority-cascade decision.
func (e *Engine) VerifyComplete(ctx context.Context, userID string, artifacts *domain.ArtifactSet) *domain.EnsembleVerdict {
	var video, face, doc *domain.ClassifierResult

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		video = e.classify(ctx, domain.ArtifactVideo, artifacts.VideoFramePath)
	}()
	go func() {
		defer wg.Done()
		face = e.classify(ctx, domain.ArtifactFace, artifacts.SelfiePath)
	}()
	go func() {
		defer wg.Done()
		doc = e.classify(ctx, domain.ArtifactDocument, artifacts.DocumentPath)
	}()
	wg.Wait()

	// Terminal ERROR only when nothing at all came back.
	if video.IsError() && face.IsError() && doc.IsError() {
		e.logger.Error("no classifier results available", "user_id", userID)
		return &domain.EnsembleVerdict{
			Verdict:    domain.VerdictFinalError,
			Confidence: 0.0,
			RiskScore:  1.0,
			Reason:     "No classifier results available",
		}
	}

	corr := e.correlation.Analyze(ctx, artifacts, video, face, doc)
	verdict := Decide(video, face, doc, corr)
	verdict.ComponentBreakdown = map[string]any{
		"video_analysis":       video,
		"face_matching":        face,
		"document_analysis":    doc,
		"correlation_analysis": corr,
	}

	e.logger.Info("verification completed",
		"user_id", userID,
		"verdict", verdict.Verdict,
		"confidence", verdict.Confidence,
		"reason", verdict.Reason)

	return verdict
}

// VerifyKYC runs the selfie-only weighted mode: document, face and
// liveness classification plus fraud scoring, combined by weighted sum.
func (e *Engine) VerifyKYC(ctx context.Context, userID string, device *domain.DeviceInfo, artifacts *domain.ArtifactSet) *domain.KYCDecision {
	var doc, face, liveness *domain.ClassifierResult

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		doc = e.classify(ctx, domain.ArtifactDocument, artifacts.DocumentPath)
	}()
	go func() {
		defer wg.Done()
		face = e.classify(ctx, domain.ArtifactFace, artifacts.SelfiePath)
	}()
	go func() {
		defer wg.Done()
		liveness = e.classify(ctx, domain.ArtifactLiveness, artifacts.SelfiePath)
	}()
	wg.Wait()

	// Classifier-derived signals feed the fraud engine's quality checks.
	verification := &domain.VerificationData{}
	if !face.IsError() {
		verification.FaceMatch = &domain.FaceMatchData{
			Match:      face.IsPositive,
			Confidence: face.Confidence,
			Similarity: face.Score(domain.ScoreSimilarity, 0),
			Distance:   face.Score(domain.ScoreDistance, 0),
		}
	}
	if !liveness.IsError() {
		verification.Liveness = &domain.LivenessData{
			IsLive:     liveness.IsPositive,
			Confidence: liveness.Confidence,
			Score:      liveness.Score(domain.ScoreLiveness, 0.5),
		}
	}

	risk := e.fraud.Score(ctx, userID, device, verification)

	decision := DecideKYC(doc, face, liveness, risk)
	decision.ComponentBreakdown = map[string]any{
		"document_verification": doc,
		"face_matching":         face,
		"liveness_detection":    liveness,
		"fraud_scoring":         risk,
	}

	e.logger.Info("kyc verification completed",
		"user_id", userID,
		"verdict", decision.Verdict,
		"overall_score", decision.OverallScore,
		"recommendation", decision.Recommendation)

	return decision
}

// ScoreRisk exposes standalone fraud scoring for the decision API.
func (e *Engine) ScoreRisk(ctx context.Context, userID string, device *domain.DeviceInfo, verification *domain.VerificationData) *domain.RiskAssessment {
	return e.fraud.Score(ctx, userID, device, verification)
}

// classify invokes the classifier for the given kind, converting every
// failure mode into an ERROR result.
func (e *Engine) classify(ctx context.Context, kind domain.ArtifactKind, path string) *domain.ClassifierResult {
	c, ok := e.classifiers[kind]
	if !ok {
		return domain.ErrorResult(kind, fmt.Errorf("no classifier configured for %s", kind))
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := c.Classify(cctx, path)
	if err != nil {
		e.logger.Warn("classifier call failed", "kind", kind, "error", err)
		return domain.ErrorResult(kind, err)
	}
	if result == nil {
		return domain.ErrorResult(kind, fmt.Errorf("classifier %s returned no result", kind))
	}
	return result
}
