package domain

import (
	"time"
)

// Terminal verdict values. VerdictFinalError is surfaced only when no
// classifier produced any result at all.
const (
	VerdictPass       = "PASS"
	VerdictFail       = "FAIL"
	VerdictReview     = "REVIEW"
	VerdictSuspicious = "SUSPICIOUS"
	VerdictFinalError = "ERROR"
)

// EnsembleVerdict is the terminal output of a verification request. It is
// handed to the audit collaborator and never mutated afterwards.
type EnsembleVerdict struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"` // [0,1]
	RiskScore  float64 `json:"riskScore"`  // [0,1]
	Reason     string  `json:"reason"`
	Pass       bool    `json:"pass"`

	// ComponentBreakdown carries the per-component evidence backing the
	// verdict, keyed by component name.
	ComponentBreakdown map[string]any `json:"componentBreakdown,omitempty"`
}

// KYCDecision is the result of the weighted full-KYC mode (selfie-only, no
// video artifact).
type KYCDecision struct {
	Verdict        string   `json:"verdict"`
	Confidence     float64  `json:"confidence"`   // [0,1]
	OverallScore   float64  `json:"overallScore"` // 0-100 weighted
	Recommendation string   `json:"recommendation"`
	Flags          []string `json:"flags,omitempty"`

	ComponentBreakdown map[string]any `json:"componentBreakdown,omitempty"`
}

// VerificationRecord is the persisted trace of a completed verification.
type VerificationRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Mode       string    `json:"mode"` // "complete" or "kyc"
	Verdict    string    `json:"verdict"`
	Confidence float64   `json:"confidence"`
	RiskScore  float64   `json:"riskScore"`
	Reason     string    `json:"reason"`
	Flags      []string  `json:"flags,omitempty"`
	Components any       `json:"components,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Verification modes stored on records.
const (
	ModeComplete = "complete"
	ModeKYC      = "kyc"
)
