package domain

// ArtifactSet references the three uploaded media artifacts by server-local
// path. Upload handling and video frame extraction happen at the media
// boundary; VideoFramePath points at a representative still frame so the
// correlation analyzer only decodes images.
type ArtifactSet struct {
	VideoFramePath string `json:"videoFramePath"`
	SelfiePath     string `json:"selfiePath"`
	DocumentPath   string `json:"documentPath"`
}

// CorrelationResult is the output of cross-artifact correlation analysis.
// Created fresh per request and immutable once returned.
type CorrelationResult struct {
	ProKYCDetected     bool     `json:"prokycDetected"`
	CorrelationScore   float64  `json:"correlationScore"` // [0,1]
	RiskLevel          string   `json:"riskLevel"`
	SuspiciousPatterns []string `json:"suspiciousPatterns,omitempty"`
}
