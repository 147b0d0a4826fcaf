// KYCShield - Identity verification hardened against AI-generated fraud.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kycshield/kycshield/internal/api"
	"github.com/kycshield/kycshield/internal/audit"
	"github.com/kycshield/kycshield/internal/bus"
	"github.com/kycshield/kycshield/internal/cache"
	"github.com/kycshield/kycshield/internal/classifier"
	"github.com/kycshield/kycshield/internal/correlation"
	"github.com/kycshield/kycshield/internal/domain"
	"github.com/kycshield/kycshield/internal/ensemble"
	"github.com/kycshield/kycshield/internal/fraud"
	"github.com/kycshield/kycshield/internal/ratelimit"
	"github.com/kycshield/kycshield/internal/repository"
	"github.com/kycshield/kycshield/internal/rules"
	"github.com/kycshield/kycshield/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KYCSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kycshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KYCSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	ruleEngine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize Blacklist (in-memory store rebuilt from the repository)
	blacklist := fraud.NewBlacklist(repo)
	if err := blacklist.Load(ctx); err != nil {
		slog.Warn("failed to load blacklist from database", "error", err)
	}
	slog.Info("blacklist initialized", "size", blacklist.Size())

	// Initialize Fraud Engine
	var fraudCache domain.Cache
	if cfg.Tier == domain.TierPro {
		// Distributed attempt counters only make sense with a shared cache.
		fraudCache = cacheImpl
	}
	fraudEngine := fraud.NewEngine(cfg.Fraud, fraud.NewTracker(), blacklist, ruleEngine, fraudCache)
	slog.Info("fraud engine initialized",
		"max_per_hour", cfg.Fraud.MaxAttemptsPerHour,
		"max_per_day", cfg.Fraud.MaxAttemptsPerDay,
	)

	// Initialize Classifiers and Ensemble Engine
	classifiers := classifier.BuildClassifiers(cfg.Classifiers)
	slog.Info("classifiers initialized", "count", len(classifiers))

	timeout := time.Duration(cfg.Classifiers.TimeoutSecs) * time.Second
	ensembleEngine := ensemble.NewEngine(classifiers, fraudEngine, correlation.NewAnalyzer(), timeout)

	// Initialize Rate Limiter and Audit Emitter
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
	auditor := audit.NewEmitter(busImpl)

	// Initialize audit sink: drains audit events into the repository
	auditSink := worker.NewAuditSink(busImpl, repo)
	if err := auditSink.Start(); err != nil {
		slog.Error("failed to start audit sink", "error", err)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, ensembleEngine, fraudEngine, blacklist, ruleEngine, limiter, auditor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kycshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop audit sink first so in-flight events drain
	if err := auditSink.Stop(); err != nil {
		slog.Error("failed to stop audit sink", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kycshield shutdown complete")
}

// applyEnvOverrides maps environment variables onto the config.
func applyEnvOverrides(cfg *domain.Config) {
	if port := os.Getenv("KYCSHIELD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("KYCSHIELD_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if host := os.Getenv("KYCSHIELD_POSTGRES_HOST"); host != "" {
		cfg.Repository.PostgresHost = host
	}
	if user := os.Getenv("KYCSHIELD_POSTGRES_USER"); user != "" {
		cfg.Repository.PostgresUser = user
	}
	if pass := os.Getenv("KYCSHIELD_POSTGRES_PASSWORD"); pass != "" {
		cfg.Repository.PostgresPassword = pass
	}
	if addr := os.Getenv("KYCSHIELD_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("KYCSHIELD_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if rpm := os.Getenv("KYCSHIELD_RATE_LIMIT_RPM"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}
	if url := os.Getenv("KYCSHIELD_DOCUMENT_CLASSIFIER_URL"); url != "" {
		cfg.Classifiers.DocumentURL = url
	}
	if url := os.Getenv("KYCSHIELD_FACE_CLASSIFIER_URL"); url != "" {
		cfg.Classifiers.FaceURL = url
	}
	if url := os.Getenv("KYCSHIELD_LIVENESS_CLASSIFIER_URL"); url != "" {
		cfg.Classifiers.LivenessURL = url
	}
	if url := os.Getenv("KYCSHIELD_VIDEO_CLASSIFIER_URL"); url != "" {
		cfg.Classifiers.VideoURL = url
	}
}

// loadRulesFromDatabase loads rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRiskRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║             🛡  KYCSHIELD                  ║")
	fmt.Println("  ║     Identity Verification Ensemble        ║")
	fmt.Println("  ║     Trust no artifact. Verify all.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /verify/complete        - Full ensemble verification")
	fmt.Println("    POST /verify/kyc             - Weighted KYC verification")
	fmt.Println("    POST /fraud/score            - Standalone fraud scoring")
	fmt.Println("    GET  /fraud/history/{userId} - Attempt history for a user")
	fmt.Println("    POST /blacklist              - Add user/device to blacklist")
	fmt.Println("    DELETE /blacklist            - Remove from blacklist")
	fmt.Println("    GET  /verifications/{id}     - Get verification by ID")
	fmt.Println("    GET  /rules                  - List all rules")
	fmt.Println("    POST /rules                  - Create a new rule")
	fmt.Println("    POST /rules/reload           - Hot-reload rules from database")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
