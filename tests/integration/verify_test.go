//go:build integration
// +build integration

// Package integration provides end-to-end tests for the KYCShield
// verification service.
//
// These tests exercise the COMPLETE verification pipeline over HTTP:
//
//	Artifacts → Classifiers → Correlation → Cascade / Weighted Decision
//	Attempt   → Velocity + Device + Quality + Blacklist → Risk Score
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must be running with classifier endpoints configured (or
// left unconfigured, in which case classifier components degrade to
// ERROR and the cascade stays conservative).
//
// UNDERSTANDING THE DOMAIN:
//
// 1. FRAUD SCORE: Additive 0-100 score over velocity, timing, device,
//    quality and blacklist signals. >=80 CRITICAL/REJECT, >=60
//    HIGH/REVIEW, >=40 MEDIUM/REVIEW, else LOW/APPROVE.
//
// 2. BLACKLIST: Membership forces the score to 100 and the
//    recommendation to REJECT.
//
// 3. VELOCITY: More than 5 attempts in an hour or 20 in a day raises
//    flags and score.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KYCSHIELD_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching KYCShield's API contract)
// ============================================================================

type Device struct {
	DeviceID       string `json:"deviceId"`
	UsingVPN       bool   `json:"usingVpn"`
	IsEmulator     bool   `json:"isEmulator"`
	IsRooted       bool   `json:"isRooted"`
	DeviceMismatch bool   `json:"deviceMismatch"`
}

type ScoreRequest struct {
	UserID string  `json:"userId"`
	Device *Device `json:"device,omitempty"`
}

type ScoreResponse struct {
	RiskScore      int      `json:"riskScore"`
	RiskLevel      string   `json:"riskLevel"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"`
}

type BlacklistRequest struct {
	UserID string  `json:"userId,omitempty"`
	Device *Device `json:"device,omitempty"`
}

type HistoryResponse struct {
	UserID           string `json:"userId"`
	AttemptsLastHour int    `json:"attemptsLastHour"`
	AttemptsLastDay  int    `json:"attemptsLastDay"`
	IsBlacklisted    bool   `json:"isBlacklisted"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func postJSON(t *testing.T, config TestConfig, method, path string, req any, out any) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
}

func score(t *testing.T, config TestConfig, req ScoreRequest) ScoreResponse {
	t.Helper()
	var out ScoreResponse
	postJSON(t, config, http.MethodPost, "/fraud/score", req, &out)
	return out
}

// uniqueUser avoids velocity carryover between test runs against a
// long-lived server.
func uniqueUser(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ============================================================================
// SCENARIO 1: Clean first attempt
// ============================================================================

func TestCleanAttempt_Approved(t *testing.T) {
	config := getTestConfig()
	userID := uniqueUser("it-clean")

	result := score(t, config, ScoreRequest{UserID: userID})

	if result.RiskScore != 0 {
		t.Errorf("Expected risk score 0, got %d (flags: %v)", result.RiskScore, result.Flags)
	}
	if result.Recommendation != "APPROVE" {
		t.Errorf("Expected APPROVE, got %s", result.Recommendation)
	}
}

// ============================================================================
// SCENARIO 2: Velocity abuse
// ============================================================================

func TestExcessiveAttempts_Flagged(t *testing.T) {
	config := getTestConfig()
	userID := uniqueUser("it-velocity")

	var last ScoreResponse
	for i := 0; i < 7; i++ {
		last = score(t, config, ScoreRequest{UserID: userID})
	}

	if last.RiskScore < 30 {
		t.Errorf("Expected score >= 30 after 7 attempts, got %d", last.RiskScore)
	}

	found := false
	for _, f := range last.Flags {
		if f == "EXCESSIVE_ATTEMPTS_HOURLY" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected EXCESSIVE_ATTEMPTS_HOURLY flag, got %v", last.Flags)
	}

	// History must agree with the scoring path.
	var history HistoryResponse
	postJSON(t, config, http.MethodGet, "/fraud/history/"+userID, nil, &history)
	if history.AttemptsLastHour != 7 {
		t.Errorf("Expected 7 attempts last hour, got %d", history.AttemptsLastHour)
	}
}

// ============================================================================
// SCENARIO 3: Hostile device fingerprint
// ============================================================================

func TestHostileDevice_Review(t *testing.T) {
	config := getTestConfig()
	userID := uniqueUser("it-device")

	result := score(t, config, ScoreRequest{
		UserID: userID,
		Device: &Device{
			DeviceID:   "emulator-device",
			UsingVPN:   true,
			IsEmulator: true,
			IsRooted:   true,
		},
	})

	// VPN 15 + emulator 25 + rooted 20 = 60 -> HIGH / REVIEW
	if result.RiskScore != 60 {
		t.Errorf("Expected risk score 60, got %d (flags: %v)", result.RiskScore, result.Flags)
	}
	if result.RiskLevel != "HIGH" {
		t.Errorf("Expected HIGH, got %s", result.RiskLevel)
	}
	if result.Recommendation != "REVIEW" {
		t.Errorf("Expected REVIEW, got %s", result.Recommendation)
	}
}

// ============================================================================
// SCENARIO 4: Blacklist lifecycle
// ============================================================================

func TestBlacklist_RejectThenRestore(t *testing.T) {
	config := getTestConfig()
	userID := uniqueUser("it-blacklist")

	postJSON(t, config, http.MethodPost, "/blacklist", BlacklistRequest{UserID: userID}, nil)

	result := score(t, config, ScoreRequest{UserID: userID})
	if result.RiskScore != 100 {
		t.Errorf("Expected risk score 100 for blacklisted user, got %d", result.RiskScore)
	}
	if result.Recommendation != "REJECT" {
		t.Errorf("Expected REJECT, got %s", result.Recommendation)
	}

	postJSON(t, config, http.MethodDelete, "/blacklist", BlacklistRequest{UserID: userID}, nil)

	var history HistoryResponse
	postJSON(t, config, http.MethodGet, "/fraud/history/"+userID, nil, &history)
	if history.IsBlacklisted {
		t.Error("User should no longer be blacklisted after removal")
	}
}

// ============================================================================
// SCENARIO 5: Health endpoints
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	config := getTestConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health", "/ready"} {
		resp, err := client.Get(config.BaseURL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s returned %d", path, resp.StatusCode)
		}
	}
}
