package correlation

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kycshield/kycshield/internal/domain"
)

func result(kind domain.ArtifactKind, positive bool, confidence float64, scores map[string]float64) *domain.ClassifierResult {
	verdict := domain.VerdictReal
	if !positive {
		verdict = domain.VerdictFake
	}
	return &domain.ClassifierResult{
		Kind:       kind,
		Verdict:    verdict,
		Confidence: confidence,
		IsPositive: positive,
		RawScores:  scores,
	}
}

func TestAnalyzeAllClean(t *testing.T) {
	analyzer := NewAnalyzer()

	out := analyzer.Analyze(context.Background(), nil,
		result(domain.ArtifactVideo, true, 0.95, nil),
		result(domain.ArtifactFace, true, 0.95, map[string]float64{domain.ScoreSimilarity: 0.95}),
		result(domain.ArtifactDocument, true, 0.98, nil))

	if out.CorrelationScore != 0 {
		t.Errorf("CorrelationScore = %v, want 0", out.CorrelationScore)
	}
	if out.ProKYCDetected {
		t.Error("clean artifacts should not trigger ProKYC detection")
	}
	if out.RiskLevel != domain.RiskLow {
		t.Errorf("RiskLevel = %s, want LOW", out.RiskLevel)
	}
}

func TestAnalyzeAllFakePattern(t *testing.T) {
	analyzer := NewAnalyzer()

	out := analyzer.Analyze(context.Background(), nil,
		result(domain.ArtifactVideo, false, 0.8, nil),
		result(domain.ArtifactFace, false, 0.8, map[string]float64{domain.ScoreSimilarity: 0.4}),
		result(domain.ArtifactDocument, false, 0.8, nil))

	if out.CorrelationScore < 0.4 {
		t.Errorf("CorrelationScore = %v, want >= 0.4", out.CorrelationScore)
	}
	if out.RiskLevel != domain.RiskMedium {
		t.Errorf("RiskLevel = %s, want MEDIUM", out.RiskLevel)
	}
	if out.ProKYCDetected {
		t.Error("score below 0.50 should not set ProKYCDetected")
	}
}

func TestAnalyzeImpossibleCombination(t *testing.T) {
	analyzer := NewAnalyzer()

	// Scenario: near-perfect face match on a fake video and fake document.
	out := analyzer.Analyze(context.Background(), nil,
		result(domain.ArtifactVideo, false, 0.95, nil),
		result(domain.ArtifactFace, true, 0.92, map[string]float64{domain.ScoreSimilarity: 0.92}),
		result(domain.ArtifactDocument, false, 0.92, nil))

	if out.CorrelationScore < 0.5 {
		t.Errorf("CorrelationScore = %v, want >= 0.5", out.CorrelationScore)
	}
	if !out.ProKYCDetected {
		t.Error("expected ProKYC detection")
	}
	if out.RiskLevel != domain.RiskHigh {
		t.Errorf("RiskLevel = %s, want HIGH", out.RiskLevel)
	}

	found := false
	for _, p := range out.SuspiciousPatterns {
		if strings.Contains(p, "ProKYC") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a ProKYC pattern, got %v", out.SuspiciousPatterns)
	}
}

func TestAnalyzeUniformConfidencePattern(t *testing.T) {
	analyzer := NewAnalyzer()

	out := analyzer.Analyze(context.Background(), nil,
		result(domain.ArtifactVideo, false, 0.99, nil),
		result(domain.ArtifactFace, true, 0.99, map[string]float64{domain.ScoreSimilarity: 0.99}),
		result(domain.ArtifactDocument, true, 0.99, nil))

	// Pattern 2 needs both video and document fake; only pattern 3 fires.
	if out.CorrelationScore != 0.3 {
		t.Errorf("CorrelationScore = %v, want 0.3", out.CorrelationScore)
	}
}

func TestAnalyzeScoreClampedToOne(t *testing.T) {
	analyzer := NewAnalyzer()

	// Patterns 1, 2 and 3 all fire: 0.4 + 0.5 + 0.3 clamps to 1.
	out := analyzer.Analyze(context.Background(), nil,
		result(domain.ArtifactVideo, false, 0.99, nil),
		result(domain.ArtifactFace, false, 0.99, map[string]float64{domain.ScoreSimilarity: 0.99}),
		result(domain.ArtifactDocument, false, 0.99, nil))

	if out.CorrelationScore != 1.0 {
		t.Errorf("CorrelationScore = %v, want 1.0", out.CorrelationScore)
	}
	if out.RiskLevel != domain.RiskCritical {
		t.Errorf("RiskLevel = %s, want CRITICAL", out.RiskLevel)
	}
	if !out.ProKYCDetected {
		t.Error("expected ProKYC detection")
	}
}

func TestAnalyzeUnreadableArtifactsDegradeToZero(t *testing.T) {
	analyzer := NewAnalyzer()

	artifacts := &domain.ArtifactSet{
		VideoFramePath: "/nonexistent/frame.png",
		SelfiePath:     "/nonexistent/selfie.png",
		DocumentPath:   "/nonexistent/doc.png",
	}
	out := analyzer.Analyze(context.Background(), artifacts,
		result(domain.ArtifactVideo, true, 0.9, nil),
		result(domain.ArtifactFace, true, 0.9, map[string]float64{domain.ScoreSimilarity: 0.9}),
		result(domain.ArtifactDocument, true, 0.9, nil))

	if out.CorrelationScore != 0 {
		t.Errorf("CorrelationScore = %v, want 0 when frequency term degrades", out.CorrelationScore)
	}
}

func writeTestImage(t *testing.T, dir, name string, seed int64) string {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

func TestFrequencyCorrelationIdenticalImages(t *testing.T) {
	dir := t.TempDir()
	analyzer := NewAnalyzer()

	// The same image three times correlates perfectly with itself.
	path := writeTestImage(t, dir, "same.png", 1)
	artifacts := &domain.ArtifactSet{VideoFramePath: path, SelfiePath: path, DocumentPath: path}

	corr := analyzer.frequencyCorrelation(artifacts)
	if corr < 0.99 {
		t.Errorf("identical images correlation = %v, want ~1.0", corr)
	}
}

func TestFrequencyCorrelationIndependentImages(t *testing.T) {
	dir := t.TempDir()
	analyzer := NewAnalyzer()

	artifacts := &domain.ArtifactSet{
		VideoFramePath: writeTestImage(t, dir, "a.png", 1),
		SelfiePath:     writeTestImage(t, dir, "b.png", 2),
		DocumentPath:   writeTestImage(t, dir, "c.png", 3),
	}

	corr := analyzer.frequencyCorrelation(artifacts)
	if corr < 0 || corr > 1 {
		t.Fatalf("correlation = %v out of bounds", corr)
	}
	if corr > 0.5 {
		t.Errorf("independent noise images correlation = %v, want low", corr)
	}
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	if got := pearson(a, b); got < 0.999 {
		t.Errorf("pearson(a, 2a) = %v, want 1", got)
	}

	c := []float64{5, 4, 3, 2, 1}
	if got := pearson(a, c); got > -0.999 {
		t.Errorf("pearson(a, reversed) = %v, want -1", got)
	}

	flat := []float64{3, 3, 3, 3, 3}
	if got := pearson(a, flat); got != 0 {
		t.Errorf("pearson with zero variance = %v, want 0", got)
	}
}
