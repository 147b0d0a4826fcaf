// Package domain defines the core interfaces and types for KYCShield.
package domain

import (
	"context"
)

// ArtifactKind identifies which media artifact a classifier operates on.
type ArtifactKind string

const (
	ArtifactDocument ArtifactKind = "document"
	ArtifactFace     ArtifactKind = "face"
	ArtifactLiveness ArtifactKind = "liveness"
	ArtifactVideo    ArtifactKind = "video"
)

// Classifier verdict values. Each classifier kind reports its own vocabulary;
// VerdictError is shared and means the classifier could not produce a signal.
const (
	VerdictGenuine    = "GENUINE"
	VerdictFraudulent = "FRAUDULENT"
	VerdictMatch      = "MATCH"
	VerdictNoMatch    = "NO_MATCH"
	VerdictLive       = "LIVE"
	VerdictSpoof      = "SPOOF"
	VerdictReal       = "REAL"
	VerdictFake       = "FAKE"
	VerdictError      = "ERROR"
)

// Well-known raw score keys populated by classifiers.
const (
	ScoreSimilarity   = "similarity"
	ScoreDistance     = "distance"
	ScoreLiveness     = "score"
	ScoreQuality      = "quality_score"
	ScoreRealProb     = "real_probability"
	ScoreFakeProb     = "fake_probability"
	ScoreFraudProb    = "fraud_probability"
)

// ClassifierResult is the typed result returned at the classifier boundary.
// Results are copied into the decision engine and never mutated afterwards.
type ClassifierResult struct {
	Kind       ArtifactKind       `json:"kind"`
	Verdict    string             `json:"verdict"`
	Confidence float64            `json:"confidence"`
	IsPositive bool               `json:"isPositive"`
	RawScores  map[string]float64 `json:"rawScores,omitempty"`
	Err        string             `json:"error,omitempty"`
}

// IsError reports whether the classifier failed to produce a usable signal.
func (r *ClassifierResult) IsError() bool {
	return r == nil || r.Verdict == VerdictError
}

// Score returns a named raw score, or def when absent. Missing numeric fields
// degrade to the caller-provided conservative default rather than failing.
func (r *ClassifierResult) Score(name string, def float64) float64 {
	if r == nil || r.RawScores == nil {
		return def
	}
	if v, ok := r.RawScores[name]; ok {
		return v
	}
	return def
}

// ErrorResult builds the result used when a classifier fails or times out.
// Per the boundary contract it is a non-positive, zero-confidence signal,
// never an implicit pass.
func ErrorResult(kind ArtifactKind, err error) *ClassifierResult {
	msg := "classifier unavailable"
	if err != nil {
		msg = err.Error()
	}
	return &ClassifierResult{
		Kind:       kind,
		Verdict:    VerdictError,
		Confidence: 0.0,
		IsPositive: false,
		Err:        msg,
	}
}

// Classifier is the boundary to an external media classifier. Implementations
// should return an ERROR-verdict result for internal failures instead of an
// error; a non-nil error is reserved for transport-level problems and is
// converted to an ERROR result by the orchestrator.
type Classifier interface {
	Kind() ArtifactKind
	Classify(ctx context.Context, artifactPath string) (*ClassifierResult, error)
}

// ClassifierConfig holds the endpoints of the external model servers.
type ClassifierConfig struct {
	DocumentURL string `json:"documentUrl"`
	FaceURL     string `json:"faceUrl"`
	LivenessURL string `json:"livenessUrl"`
	VideoURL    string `json:"videoUrl"`

	// TimeoutSecs bounds each classifier call independently.
	TimeoutSecs int `json:"timeoutSecs"`
}
