package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kycshield/kycshield/internal/audit"
	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/ensemble"
	"github.com/kycshield/kycshield/internal/fraud"
	"github.com/kycshield/kycshield/internal/repository"
	"github.com/kycshield/kycshield/internal/rules"
)

// verificationCacheTTL bounds how long completed verifications stay in
// the read-through cache.
const verificationCacheTTL = 15 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	ensemble   *ensemble.Engine
	fraud      *fraud.Engine
	blacklist  *fraud.Blacklist
	ruleEngine *rules.Engine
	auditor    *audit.Emitter
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, ens *ensemble.Engine, fraudEngine *fraud.Engine, blacklist *fraud.Blacklist, ruleEngine *rules.Engine, auditor *audit.Emitter, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		ensemble:   ens,
		fraud:      fraudEngine,
		blacklist:  blacklist,
		ruleEngine: ruleEngine,
		auditor:    auditor,
		version:    version,
	}
}

// VerifyRequest is the request body for POST /verify/complete and
// POST /verify/kyc.
type VerifyRequest struct {
	UserID    string             `json:"userId"`
	Device    *domain.DeviceInfo `json:"device,omitempty"`
	Artifacts domain.ArtifactSet `json:"artifacts"`
}

// VerifyCompleteResponse is the response for POST /verify/complete.
type VerifyCompleteResponse struct {
	VerificationID string                 `json:"verificationId"`
	Verdict        *domain.EnsembleVerdict `json:"verdict"`
	Metadata       ResponseMetadata       `json:"metadata"`
}

// VerifyKYCResponse is the response for POST /verify/kyc.
type VerifyKYCResponse struct {
	VerificationID string              `json:"verificationId"`
	Decision       *domain.KYCDecision `json:"decision"`
	Metadata       ResponseMetadata    `json:"metadata"`
}

// ResponseMetadata carries trace and timing info on verification responses.
type ResponseMetadata struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

// VerifyComplete handles POST /verify/complete requests: the three-stream
// ensemble over a video frame, a selfie and a document image.
func (h *Handler) VerifyComplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	clientIP := ClientIP(r)

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if req.Artifacts.VideoFramePath == "" || req.Artifacts.SelfiePath == "" || req.Artifacts.DocumentPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "artifacts.videoFramePath, artifacts.selfiePath and artifacts.documentPath are required",
		})
		return
	}

	h.auditor.VerificationRequest(ctx, req.UserID, clientIP, domain.ModeComplete)

	verdict := h.ensemble.VerifyComplete(ctx, req.UserID, &req.Artifacts)

	rec := &domain.VerificationRecord{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Mode:       domain.ModeComplete,
		Verdict:    verdict.Verdict,
		Confidence: verdict.Confidence,
		RiskScore:  verdict.RiskScore,
		Reason:     verdict.Reason,
		Components: verdict.ComponentBreakdown,
		CreatedAt:  time.Now().UTC(),
	}
	h.persistRecord(ctx, rec)

	h.auditor.VerificationResult(ctx, req.UserID, clientIP, domain.ModeComplete, verdict.Verdict, verdict.Confidence)

	resp := VerifyCompleteResponse{
		VerificationID: rec.ID,
		Verdict:        verdict,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// VerifyKYC handles POST /verify/kyc requests: the weighted selfie-only
// mode with fraud scoring folded in.
func (h *Handler) VerifyKYC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	clientIP := ClientIP(r)

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if req.Artifacts.SelfiePath == "" || req.Artifacts.DocumentPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "artifacts.selfiePath and artifacts.documentPath are required",
		})
		return
	}

	h.auditor.VerificationRequest(ctx, req.UserID, clientIP, domain.ModeKYC)

	decision := h.ensemble.VerifyKYC(ctx, req.UserID, req.Device, &req.Artifacts)

	rec := &domain.VerificationRecord{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Mode:       domain.ModeKYC,
		Verdict:    decision.Verdict,
		Confidence: decision.Confidence,
		RiskScore:  kycRiskScore(decision),
		Reason:     decision.Recommendation,
		Flags:      decision.Flags,
		Components: decision.ComponentBreakdown,
		CreatedAt:  time.Now().UTC(),
	}
	h.persistRecord(ctx, rec)

	h.auditor.VerificationResult(ctx, req.UserID, clientIP, domain.ModeKYC, decision.Verdict, decision.Confidence)

	resp := VerifyKYCResponse{
		VerificationID: rec.ID,
		Decision:       decision,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// kycRiskScore lifts the fraud assessment's 0-100 score out of the
// component breakdown, normalized to [0,1].
func kycRiskScore(decision *domain.KYCDecision) float64 {
	if risk, ok := decision.ComponentBreakdown["fraud_scoring"].(*domain.RiskAssessment); ok && risk != nil {
		return float64(risk.RiskScore) / 100.0
	}
	return 0
}

// persistRecord saves a verification record and primes the cache.
// Persistence failures are logged; the verdict already computed is
// still returned to the caller.
func (h *Handler) persistRecord(ctx context.Context, rec *domain.VerificationRecord) {
	if h.repo != nil {
		if err := h.repo.SaveVerification(ctx, rec); err != nil {
			slog.Error("failed to save verification", "id", rec.ID, "error", err)
		}
	}
	if h.cache != nil {
		if err := h.cache.SetVerification(ctx, rec.ID, rec, verificationCacheTTL); err != nil {
			slog.Warn("failed to cache verification", "id", rec.ID, "error", err)
		}
	}
}

// ScoreRequest is the request body for POST /fraud/score.
type ScoreRequest struct {
	UserID       string                   `json:"userId"`
	Device       *domain.DeviceInfo       `json:"device,omitempty"`
	Verification *domain.VerificationData `json:"verification,omitempty"`
}

// ScoreFraud handles POST /fraud/score: standalone risk scoring without
// running classifiers. The attempt is still recorded.
func (h *Handler) ScoreFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}

	assessment := h.ensemble.ScoreRisk(ctx, req.UserID, req.Device, req.Verification)

	h.auditor.Emit(ctx, domain.EventRiskScore, req.UserID, ClientIP(r), map[string]any{
		"riskScore":      assessment.RiskScore,
		"riskLevel":      assessment.RiskLevel,
		"recommendation": assessment.Recommendation,
	})

	writeJSON(w, http.StatusOK, assessment)
}

// GetFraudHistory handles GET /fraud/history/{userId}.
func (h *Handler) GetFraudHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.fraud.History(userID))
}

// BlacklistRequest is the request body for POST and DELETE /blacklist.
// Either a user ID, a device, or both may be given.
type BlacklistRequest struct {
	UserID string             `json:"userId,omitempty"`
	Device *domain.DeviceInfo `json:"device,omitempty"`
}

// AddBlacklist handles POST /blacklist.
func (h *Handler) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" && req.Device == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId or device is required",
		})
		return
	}

	h.blacklist.Add(ctx, req.UserID, req.Device)
	h.auditor.BlacklistUpdate(ctx, req.UserID, ClientIP(r), "add")

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "blacklist updated",
		"size":    h.blacklist.Size(),
	})
}

// RemoveBlacklist handles DELETE /blacklist.
func (h *Handler) RemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" && req.Device == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId or device is required",
		})
		return
	}

	h.blacklist.Remove(ctx, req.UserID, req.Device)
	h.auditor.BlacklistUpdate(ctx, req.UserID, ClientIP(r), "remove")

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "blacklist updated",
		"size":    h.blacklist.Size(),
	})
}

// GetVerification handles GET /verifications/{id} with cache read-through.
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "verification id is required",
		})
		return
	}

	if h.cache != nil {
		if rec, err := h.cache.GetVerification(ctx, id); err == nil && rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetVerification(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get verification", "id", id, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "verification not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetVerification(ctx, id, rec, verificationCacheTTL); err != nil {
			slog.Warn("failed to cache verification", "id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, rec)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.ruleEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Score       int    `json:"score"`
	Flag        string `json:"flag"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.RiskRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Score:       req.Score,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if err := h.ruleEngine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRiskRule(ctx, rule); err != nil {
			slog.Error("failed to save risk rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRiskRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.ruleEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
