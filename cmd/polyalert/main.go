package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantfold/polyalert/internal/alert"
	"github.com/quantfold/polyalert/internal/config"
	"github.com/quantfold/polyalert/internal/detect"
	"github.com/quantfold/polyalert/internal/logger"
	"github.com/quantfold/polyalert/internal/models"
	"github.com/quantfold/polyalert/internal/polymarket"
	"github.com/quantfold/polyalert/internal/storage"
	"github.com/quantfold/polyalert/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	runOnce    = flag.Bool("once", false, "Run a single scan cycle and exit")
	dryRun     = flag.Bool("dry-run", false, "Detect opportunities but do not send alerts")
)

const maxBackoff = 10 * time.Minute

func main() {
	flag.Parse()

	// Local deployments keep secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	var store *storage.Storage
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage.MaxDispatches, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
	}

	polyClient := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.RequestTimeout(),
		polymarket.ClientConfig{
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: time.Duration(cfg.Polymarket.RetryDelaySeconds) * time.Second,
			PageSize:       cfg.Polymarket.PageSize,
			MaxEvents:      cfg.Polymarket.MaxEventsPerCycle,
		},
	)

	detectCfg := detect.Config{
		OddsShiftThreshold:    cfg.Detect.OddsShiftThreshold,
		VolumeSpikeMultiplier: cfg.Detect.VolumeSpikeMultiplier,
		MinVolume24h:          cfg.Detect.MinVolume24h,
		ClosingSoonHours:      float64(cfg.Detect.ClosingSoonHours),
		ClosingEdgeMin:        cfg.Detect.ClosingEdgeMin,
		ClosingEdgeMax:        cfg.Detect.ClosingEdgeMax,
		NewMarketHours:        float64(cfg.Detect.NewMarketHours),
		NewMarketMinLiquidity: cfg.Detect.NewMarketMinLiquidity,
		MispriceSumDeviation:  cfg.Detect.MispriceSumDeviation,
		MispriceMinLiquidity:  cfg.Detect.MispriceMinLiquidity,
		TopicKeywords:         cfg.TopicKeywords(),
	}

	var telegramClient *telegram.Client
	var notifier alert.Notifier = alert.ConsoleNotifier{}
	if cfg.TelegramConfigured() {
		telegramClient, err = telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries,
			time.Duration(cfg.Telegram.RetryDelaySeconds)*time.Second,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Warn("Telegram not configured; alerts will be logged to console")
	}

	minConfidence, ok := models.ParseConfidence(cfg.Alerts.MinConfidence)
	if !ok {
		logger.Fatal("Unrecognized minimum confidence: %s", cfg.Alerts.MinConfidence)
	}

	var recorder alert.Recorder
	if store != nil {
		recorder = store
	}
	pipeline := alert.New(alert.Config{
		MinConfidence:  minConfidence,
		AllowedActions: cfg.AllowedActions(),
		MaxPerDay:      cfg.Alerts.MaxPerDay,
		Cooldown:       cfg.Cooldown(),
	}, notifier, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
		if !*dryRun {
			if err := telegramClient.SendStartup(telegram.StartupInfo{
				PollInterval:          cfg.PollInterval(),
				MinConfidence:         cfg.Alerts.MinConfidence,
				AllowedActions:        cfg.Alerts.AllowedActions,
				MaxPerDay:             cfg.Alerts.MaxPerDay,
				Cooldown:              cfg.Cooldown(),
				OddsShiftThreshold:    cfg.Detect.OddsShiftThreshold,
				VolumeSpikeMultiplier: cfg.Detect.VolumeSpikeMultiplier,
				ClosingSoonHours:      float64(cfg.Detect.ClosingSoonHours),
				NewMarketHours:        float64(cfg.Detect.NewMarketHours),
				MispriceSumDeviation:  cfg.Detect.MispriceSumDeviation,
				TopicKeywords:         cfg.Detect.TopicKeywords,
			}); err != nil {
				logger.Warn("Failed to send startup notification: %v", err)
			}
		}
	}

	logger.Info("Starting alert service (interval: %v, min_confidence: %s, max_per_day: %d, cooldown: %v)",
		cfg.PollInterval(),
		cfg.Alerts.MinConfidence,
		cfg.Alerts.MaxPerDay,
		cfg.Cooldown(),
	)

	if *runOnce {
		if err := runScanCycle(ctx, polyClient, pipeline, detectCfg, *dryRun); err != nil {
			logger.Error("Scan cycle failed: %v", err)
			os.Exit(1)
		}
		return
	}

	consecutiveFailures := 0

	for {
		err := runScanCycle(ctx, polyClient, pipeline, detectCfg, *dryRun)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			consecutiveFailures++
			logger.Error("Scan cycle failed (%d consecutive): %v", consecutiveFailures, err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			delay := backoffDelay(consecutiveFailures)
			logger.Info("Backing off %v before next attempt", delay)
			if !sleepCtx(ctx, delay) {
				break
			}
			continue
		}
		if consecutiveFailures > 0 {
			if telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
		if !sleepCtx(ctx, cfg.PollInterval()) {
			break
		}
	}

	logger.Info("Service stopped")
}

func runScanCycle(
	ctx context.Context,
	polyClient *polymarket.Client,
	pipeline *alert.Pipeline,
	detectCfg detect.Config,
	dryRun bool,
) error {
	startTime := time.Now()

	// No point hammering the API once the daily cap is spent.
	if !dryRun && pipeline.QuotaReached() {
		logger.Info("Daily alert cap reached, skipping scan until UTC midnight")
		return nil
	}

	events, err := polyClient.FetchActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}
	if len(events) == 0 {
		logger.Warn("No active events returned this cycle")
		return nil
	}

	marketCount := 0
	for i := range events {
		marketCount += len(events[i].Markets)
	}
	logger.Info("Scanning %d events (%d markets)", len(events), marketCount)

	signals := detect.RunAll(events, detectCfg, time.Now())
	if len(signals) == 0 {
		logger.Info("No opportunities detected this cycle")
		return nil
	}
	logger.Info("Detected %d raw signal(s)", len(signals))

	if dryRun {
		preview := pipeline.Preview(signals)
		logger.Info("[DRY RUN] Would send %d alert(s):", len(preview))
		for i := range preview {
			sig := &preview[i]
			logger.Info("  %d. [%s] %s | %s %s | score %.1f",
				i+1, sig.Type, truncateQuestion(sig.MarketQuestion), sig.Action, sig.Confidence, alert.Score(sig))
		}
	} else {
		sent := pipeline.Dispatch(signals)
		logger.Info("Dispatched %d alert(s)", sent)
	}

	logger.Info("Scan cycle completed in %v", time.Since(startTime))
	return nil
}

// backoffDelay grows exponentially from one minute, capped at maxBackoff.
func backoffDelay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if failures > 4 {
		return maxBackoff
	}
	d := time.Minute << (failures - 1)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// sleepCtx waits for d, returning false if the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncateQuestion(q string) string {
	runes := []rune(q)
	if len(runes) > 80 {
		return string(runes[:77]) + "..."
	}
	return q
}
