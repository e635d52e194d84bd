package config

// Config is the full on-disk configuration. Secrets (basic-auth credentials,
// MinIO keys, workflow API key, Telegram token) are NOT stored here; they come
// from the environment so the file can be committed.
type Config struct {
	Server   ServerConfig    `json:"server"`
	Sessions SessionsConfig  `json:"sessions"`
	Stage    StageConfig     `json:"stage"`
	Bridge   BridgeConfig    `json:"bridge"`
	Logging  LoggingConfig   `json:"logging"`
	Webhook  *WebhookConfig  `json:"webhook,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Minio    *MinioConfig    `json:"minio,omitempty"`
	Workflow *WorkflowConfig `json:"workflow,omitempty"`
	Watcher  WatcherConfig   `json:"watcher"`
	Escalate EscalateConfig  `json:"escalate"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

// ServerConfig controls the HTTP API listener.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr string `json:"addr"` // default ":8000"
	// ReadTimeout bounds header+body reads. Uploads can be large, so the
	// default is generous ("10m").
	ReadTimeout     string `json:"read_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"` // default "10s"
}

// SessionsConfig locates the persisted session artifacts.
type SessionsConfig struct {
	Dir string `json:"dir"` // default "./cookies"
}

// StageConfig controls the staging area for uploaded media.
type StageConfig struct {
	Root string `json:"root,omitempty"` // default: os temp dir
}

// BridgeConfig points at the browser-automation sidecar.
type BridgeConfig struct {
	BaseURL string `json:"base_url"`
	// SetupTimeout bounds a setup call to the sidecar. Default 30s; QR scans
	// need more, so interactive deployments should raise it.
	SetupTimeout string `json:"setup_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Operator LoggingOperator `json:"operator"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingOperator forwards warn-and-above log lines to the notification
// channel so the operator hears about failures without tailing files.
type LoggingOperator struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// WebhookConfig points at the notification webhook backend.
// Username/password come from WEBHOOK_USERNAME / WEBHOOK_PASSWORD.
type WebhookConfig struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout,omitempty"` // Go duration string
}

// TelegramConfig selects Telegram as the escalation channel instead of the
// webhook. Token comes from TELEGRAM_TOKEN.
type TelegramConfig struct {
	Enabled bool  `json:"enabled"`
	ChatID  int64 `json:"chat_id"`
}

// MinioConfig locates the diagnostics bucket.
// Access/secret keys come from MINIO_ACCESS_KEY / MINIO_SECRET_KEY.
type MinioConfig struct {
	Endpoint string `json:"endpoint"`
	Bucket   string `json:"bucket"`
	UseSSL   bool   `json:"use_ssl"`
}

// WorkflowConfig points at the downstream remediation workflow.
// The API key comes from WORKFLOW_API_KEY.
type WorkflowConfig struct {
	URL  string `json:"url"`
	User string `json:"user,omitempty"`
}

// WatcherConfig controls the periodic session-artifact scan.
type WatcherConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`    // 5-field cron, default "*/10 * * * *"
	MaxAge  string `json:"max_age,omitempty"` // Go duration string, default "24h"
}

// EscalateConfig tunes the escalation pipeline.
type EscalateConfig struct {
	DedupWindow   string `json:"dedup_window,omitempty"` // Go duration string
	RatePerMinute int    `json:"rate_per_minute,omitempty"`
}

// StorageConfig controls the optional audit/dedup persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./autopub.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
