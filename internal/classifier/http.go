// Package classifier implements the boundary to external media classifiers.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
)

// HTTPClassifier calls an external model server over HTTP. The server
// receives the artifact path and responds with a classification; internal
// model failures come back as an ERROR verdict per the boundary contract.
type HTTPClassifier struct {
	kind    domain.ArtifactKind
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier creates a classifier client for one artifact kind.
func NewHTTPClassifier(kind domain.ArtifactKind, baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClassifier{
		kind:    kind,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Kind returns the artifact kind this classifier handles.
func (c *HTTPClassifier) Kind() domain.ArtifactKind {
	return c.kind
}

type classifyRequest struct {
	ArtifactPath string `json:"artifactPath"`
}

type classifyResponse struct {
	Verdict    string             `json:"verdict"`
	Confidence float64            `json:"confidence"`
	IsPositive bool               `json:"isPositive"`
	RawScores  map[string]float64 `json:"rawScores,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Classify submits the artifact for classification. Transport failures
// return an error; the orchestrator converts those to ERROR results.
func (c *HTTPClassifier) Classify(ctx context.Context, artifactPath string) (*domain.ClassifierResult, error) {
	body, err := json.Marshal(classifyRequest{ArtifactPath: artifactPath})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier %s unreachable: %w", c.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier %s returned status %d", c.kind, resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classifier %s response: %w", c.kind, err)
	}

	return &domain.ClassifierResult{
		Kind:       c.kind,
		Verdict:    out.Verdict,
		Confidence: out.Confidence,
		IsPositive: out.IsPositive,
		RawScores:  out.RawScores,
		Err:        out.Error,
	}, nil
}

// BuildClassifiers wires one HTTP classifier per configured endpoint.
// Kinds without an endpoint are absent from the map; the ensemble engine
// reports them as ERROR results when asked for them.
func BuildClassifiers(cfg domain.ClassifierConfig) map[domain.ArtifactKind]domain.Classifier {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	out := make(map[domain.ArtifactKind]domain.Classifier)
	if cfg.DocumentURL != "" {
		out[domain.ArtifactDocument] = NewHTTPClassifier(domain.ArtifactDocument, cfg.DocumentURL, timeout)
	}
	if cfg.FaceURL != "" {
		out[domain.ArtifactFace] = NewHTTPClassifier(domain.ArtifactFace, cfg.FaceURL, timeout)
	}
	if cfg.LivenessURL != "" {
		out[domain.ArtifactLiveness] = NewHTTPClassifier(domain.ArtifactLiveness, cfg.LivenessURL, timeout)
	}
	if cfg.VideoURL != "" {
		out[domain.ArtifactVideo] = NewHTTPClassifier(domain.ArtifactVideo, cfg.VideoURL, timeout)
	}
	return out
}
