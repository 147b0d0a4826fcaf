// Benchmark tool for testing KYCShield against labeled fraud-attempt data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/attempts.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled verification attempts (with fraud labels)
//   2. Sends each attempt to KYCShield for fraud scoring
//   3. Compares KYCShield's recommendation (REVIEW/REJECT vs APPROVE) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns:
//   user_id, using_vpn, is_emulator, is_rooted, device_mismatch,
//   face_match, face_confidence, face_similarity, is_live, liveness_confidence, is_fraud
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledAttempt represents a row from the dataset.
type LabeledAttempt struct {
	UserID             string
	UsingVPN           bool
	IsEmulator         bool
	IsRooted           bool
	DeviceMismatch     bool
	FaceMatch          bool
	FaceConfidence     float64
	FaceSimilarity     float64
	IsLive             bool
	LivenessConfidence float64
	IsFraud            bool
}

// ScoreRequest is the KYCShield API request format.
type ScoreRequest struct {
	UserID       string        `json:"userId"`
	Device       *Device       `json:"device,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

type Device struct {
	DeviceID       string `json:"deviceId"`
	UsingVPN       bool   `json:"usingVpn"`
	IsEmulator     bool   `json:"isEmulator"`
	IsRooted       bool   `json:"isRooted"`
	DeviceMismatch bool   `json:"deviceMismatch"`
}

type Verification struct {
	FaceMatch *FaceMatch `json:"faceMatch,omitempty"`
	Liveness  *Liveness  `json:"liveness,omitempty"`
}

type FaceMatch struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
}

type Liveness struct {
	IsLive     bool    `json:"isLive"`
	Confidence float64 `json:"confidence"`
}

// ScoreResponse is the KYCShield API response format.
type ScoreResponse struct {
	RiskScore      int      `json:"riskScore"`
	RiskLevel      string   `json:"riskLevel"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"` // APPROVE, REVIEW, REJECT
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraud flagged for review or rejected
	FalsePositives int64 // Legitimate attempt flagged
	TrueNegatives  int64 // Legitimate attempt approved
	FalseNegatives int64 // Fraud approved (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled attempts CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "KYCShield base URL")
	limit := flag.Int("limit", 10000, "Maximum attempts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud attempts")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each attempt result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/attempts.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KYCSHIELD BENCHMARK - Fraud Scoring Evaluation         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:       %s\n", *csvPath)
	fmt.Printf("KYCShield URL:  %s\n", *baseURL)
	fmt.Printf("Workers:        %d\n", *workers)
	fmt.Printf("Limit:          %d\n", *limit)
	fmt.Printf("Fraud Only:     %v\n", *fraudOnly)
	fmt.Printf("Sample Rate:    %.2f\n", *sampleRate)
	fmt.Println()

	// Check KYCShield is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: KYCShield not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure KYCShield is running:")
		fmt.Println("  cd kycshield && go run cmd/kycshield/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ KYCShield is healthy")

	// Read labeled data
	fmt.Printf("\nReading labeled attempts from %s...\n", *csvPath)
	attempts, err := readAttemptsCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d attempts\n", len(attempts))

	// Count fraud vs non-fraud
	fraudCount := 0
	for _, a := range attempts {
		if a.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(attempts)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(attempts)-fraudCount, 100*float64(len(attempts)-fraudCount)/float64(len(attempts)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(attempts, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readAttemptsCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledAttempt, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	boolCol := func(record []string, name string) bool {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return false
		}
		return record[idx] == "1" || strings.EqualFold(record[idx], "true")
	}
	floatCol := func(record []string, name string) float64 {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(record[idx], 64)
		return v
	}

	var attempts []LabeledAttempt
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := boolCol(record, "is_fraud")

		// Apply filters
		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud attempts
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		a := LabeledAttempt{
			UserID:             record[colIndex["user_id"]],
			UsingVPN:           boolCol(record, "using_vpn"),
			IsEmulator:         boolCol(record, "is_emulator"),
			IsRooted:           boolCol(record, "is_rooted"),
			DeviceMismatch:     boolCol(record, "device_mismatch"),
			FaceMatch:          boolCol(record, "face_match"),
			FaceConfidence:     floatCol(record, "face_confidence"),
			FaceSimilarity:     floatCol(record, "face_similarity"),
			IsLive:             boolCol(record, "is_live"),
			LivenessConfidence: floatCol(record, "liveness_confidence"),
			IsFraud:            isFraud,
		}

		attempts = append(attempts, a)

		if limit > 0 && len(attempts) >= limit {
			break
		}
	}

	return attempts, nil
}

func runBenchmark(attempts []LabeledAttempt, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledAttempt, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for a := range work {
				start := time.Now()
				result, err := scoreAttempt(client, baseURL, a)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", a.UserID, err)
					}
					continue
				}

				// Track actual labels
				if a.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				// Calculate confusion matrix
				predicted := result.Recommendation != "APPROVE"
				actual := a.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := a.UserID
					if len(name) > 10 {
						name = name[:10]
					}
					fmt.Printf("%s %-10s | Fraud: %-5v | Risk: %3d (%s) | Rec: %-7s | Flags: %d\n",
						status,
						name,
						a.IsFraud,
						result.RiskScore,
						result.RiskLevel,
						result.Recommendation,
						len(result.Flags),
					)
				}
			}
		}()
	}

	// Send work
	for _, a := range attempts {
		work <- a
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scoreAttempt(client *http.Client, baseURL string, a LabeledAttempt) (*ScoreResponse, error) {
	// Build request matching KYCShield's expected format
	req := ScoreRequest{
		UserID: a.UserID,
		Device: &Device{
			DeviceID:       a.UserID + "-device",
			UsingVPN:       a.UsingVPN,
			IsEmulator:     a.IsEmulator,
			IsRooted:       a.IsRooted,
			DeviceMismatch: a.DeviceMismatch,
		},
		Verification: &Verification{
			FaceMatch: &FaceMatch{
				Match:      a.FaceMatch,
				Confidence: a.FaceConfidence,
				Similarity: a.FaceSimilarity,
			},
			Liveness: &Liveness{
				IsLive:     a.IsLive,
				Confidence: a.LivenessConfidence,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/fraud/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED     APPROVED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged attempts, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Caught:      %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f attempts/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
