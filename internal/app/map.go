package app

import (
	"os"
	"time"

	"autopub/internal/config"
	"autopub/internal/escalate"
	"autopub/internal/storage"
	"autopub/internal/watch"
	"autopub/pkg/logx"
)

// Secrets never live in the config file; they are resolved from the
// environment once at startup (main loads .env first).
type secrets struct {
	apiUsername     string
	apiPassword     string
	webhookUsername string
	webhookPassword string
	minioAccessKey  string
	minioSecretKey  string
	workflowAPIKey  string
	telegramToken   string
}

func loadSecrets() secrets {
	return secrets{
		apiUsername:     os.Getenv("API_USERNAME"),
		apiPassword:     os.Getenv("API_PASSWORD"),
		webhookUsername: os.Getenv("WEBHOOK_USERNAME"),
		webhookPassword: os.Getenv("WEBHOOK_PASSWORD"),
		minioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		minioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		workflowAPIKey:  os.Getenv("WORKFLOW_API_KEY"),
		telegramToken:   os.Getenv("TELEGRAM_TOKEN"),
	}
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Operator: logx.OperatorConfig{
			Enabled:    cfg.Logging.Operator.Enabled,
			MinLevel:   cfg.Logging.Operator.MinLevel,
			RatePerSec: cfg.Logging.Operator.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapEscalateConfig(cfg *config.Config) (escalate.Config, error) {
	window, err := config.ParseDurationField("escalate.dedup_window", cfg.Escalate.DedupWindow)
	if err != nil {
		return escalate.Config{}, err
	}
	return escalate.Config{
		DedupWindow:   window,
		RatePerMinute: cfg.Escalate.RatePerMinute,
	}, nil
}

func mapWatcherConfig(cfg *config.Config) (watch.Config, error) {
	maxAge, err := config.ParseDurationOrDefault("watcher.max_age", cfg.Watcher.MaxAge, 24*time.Hour)
	if err != nil {
		return watch.Config{}, err
	}
	return watch.Config{
		Enabled: cfg.Watcher.Enabled,
		Spec:    cfg.Watcher.Spec,
		MaxAge:  maxAge,
	}, nil
}
