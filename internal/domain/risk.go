package domain

import (
	"time"
)

// DeviceInfo carries the device fingerprint signals submitted with a
// verification attempt. All fields are optional; absent signals contribute
// nothing to the risk score.
type DeviceInfo struct {
	DeviceID       string `json:"deviceId"`
	IPAddress      string `json:"ipAddress"`
	UsingVPN       bool   `json:"usingVpn"`
	IsEmulator     bool   `json:"isEmulator"`
	IsRooted       bool   `json:"isRooted"`
	DeviceMismatch bool   `json:"deviceMismatch"`
}

// FaceMatchData is the face-match slice of the verification payload.
type FaceMatchData struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// LivenessData is the liveness slice of the verification payload.
type LivenessData struct {
	IsLive     bool    `json:"isLive"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
}

// VerificationData carries classifier-derived quality signals into the
// fraud engine. A nil sub-struct means that signal was not collected.
type VerificationData struct {
	FaceMatch *FaceMatchData `json:"faceMatch,omitempty"`
	Liveness  *LivenessData  `json:"liveness,omitempty"`
}

// Risk levels shared by the fraud engine and the correlation analyzer.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Recommendations attached to a risk assessment.
const (
	RecommendApprove = "APPROVE"
	RecommendReview  = "REVIEW"
	RecommendReject  = "REJECT"
)

// Risk flags raised by the fraud engine's sub-checks.
const (
	FlagExcessiveAttemptsHourly = "EXCESSIVE_ATTEMPTS_HOURLY"
	FlagExcessiveAttemptsDaily  = "EXCESSIVE_ATTEMPTS_DAILY"
	FlagSuspiciousTimeOfDay     = "SUSPICIOUS_TIME_OF_DAY"
	FlagVPNDetected             = "VPN_DETECTED"
	FlagEmulatorDetected        = "EMULATOR_DETECTED"
	FlagRootedDevice            = "ROOTED_DEVICE"
	FlagDeviceMismatch          = "DEVICE_MISMATCH"
	FlagFaceMatchFailed         = "FACE_MATCH_FAILED"
	FlagLowFaceConfidence       = "LOW_FACE_CONFIDENCE"
	FlagLivenessFailed          = "LIVENESS_FAILED"
	FlagLowLivenessConfidence   = "LOW_LIVENESS_CONFIDENCE"
	FlagHighFaceDistance        = "HIGH_FACE_DISTANCE"
	FlagUserBlacklisted         = "USER_BLACKLISTED"
	FlagDeviceBlacklisted       = "DEVICE_BLACKLISTED"
)

// RiskAssessment is the output of the fraud engine. Created fresh per request.
type RiskAssessment struct {
	RiskScore      int            `json:"riskScore"` // 0-100, clamped
	RiskLevel      string         `json:"riskLevel"`
	Flags          []string       `json:"flags"`
	Recommendation string         `json:"recommendation"`
	Details        map[string]int `json:"details,omitempty"` // per-check subtotal
	Timestamp      time.Time      `json:"timestamp"`
}

// HasFlag reports whether the assessment raised the given flag.
func (a *RiskAssessment) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// UserHistory summarizes a user's verification attempt history.
type UserHistory struct {
	UserID           string     `json:"userId"`
	TotalAttempts    int        `json:"totalAttempts"`
	AttemptsLastHour int        `json:"attemptsLastHour"`
	AttemptsLastDay  int        `json:"attemptsLastDay"`
	LastAttempt      *time.Time `json:"lastAttempt,omitempty"`
	IsBlacklisted    bool       `json:"isBlacklisted"`
}

// BlacklistEntry is a persisted blacklist record: either a user ID or a
// device fingerprint hash. Membership is permanent until explicitly removed.
type BlacklistEntry struct {
	Value     string    `json:"value"`
	Kind      string    `json:"kind"` // "user" or "device"
	CreatedAt time.Time `json:"createdAt"`
}

const (
	BlacklistKindUser   = "user"
	BlacklistKindDevice = "device"
)
