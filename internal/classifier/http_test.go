package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
)

func TestHTTPClassifierClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("path = %s, want /classify", r.URL.Path)
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ArtifactPath != "/tmp/doc.png" {
			t.Errorf("artifactPath = %s", req.ArtifactPath)
		}

		json.NewEncoder(w).Encode(classifyResponse{
			Verdict:    domain.VerdictGenuine,
			Confidence: 0.97,
			IsPositive: true,
			RawScores:  map[string]float64{domain.ScoreQuality: 88},
		})
	}))
	defer server.Close()

	c := NewHTTPClassifier(domain.ArtifactDocument, server.URL, 5*time.Second)
	result, err := c.Classify(context.Background(), "/tmp/doc.png")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if result.Kind != domain.ArtifactDocument {
		t.Errorf("Kind = %s", result.Kind)
	}
	if result.Verdict != domain.VerdictGenuine || !result.IsPositive {
		t.Errorf("result = %+v", result)
	}
	if got := result.Score(domain.ScoreQuality, 0); got != 88 {
		t.Errorf("quality score = %v, want 88", got)
	}
}

func TestHTTPClassifierServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewHTTPClassifier(domain.ArtifactVideo, server.URL, 5*time.Second)
	if _, err := c.Classify(context.Background(), "/tmp/frame.png"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPClassifierContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewHTTPClassifier(domain.ArtifactFace, server.URL, 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if _, err := c.Classify(ctx, "/tmp/selfie.png"); err == nil {
		t.Fatal("expected error after cancellation")
	}
}

func TestBuildClassifiers(t *testing.T) {
	cfg := domain.ClassifierConfig{
		DocumentURL: "http://localhost:9001",
		FaceURL:     "http://localhost:9002",
		TimeoutSecs: 10,
	}

	classifiers := BuildClassifiers(cfg)
	if len(classifiers) != 2 {
		t.Fatalf("got %d classifiers, want 2", len(classifiers))
	}
	if _, ok := classifiers[domain.ArtifactDocument]; !ok {
		t.Error("missing document classifier")
	}
	if _, ok := classifiers[domain.ArtifactVideo]; ok {
		t.Error("video classifier should not be configured")
	}
}
