package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the nova server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where nova stores its own data
	DSN string
	// Driver is the store driver (sqlite or memory)
	Driver string
	// Version is the current version of server
	Version string
	// UserID identifies the single local user events are recorded for.
	UserID string
	// StorageQuotaBytes is the capacity ceiling of the key-value store. Zero uses the store default.
	StorageQuotaBytes int64

	// Reference location used for proximity checks.
	Latitude  float64 // NOVA_LATITUDE
	Longitude float64 // NOVA_LONGITUDE

	// Notification configuration
	QuietHoursStart         int  // NOVA_QUIET_HOURS_START (default: 23)
	QuietHoursEnd           int  // NOVA_QUIET_HOURS_END (default: 7)
	MaxNotificationsPerHour int  // NOVA_MAX_NOTIFICATIONS_PER_HOUR (default: 3, 0 disables)
	SocialContext           bool // NOVA_SOCIAL_CONTEXT (default: true)

	// AI Configuration
	LLMProvider    string  // NOVA_LLM_PROVIDER (default: openai)
	LLMAPIKey      string  // NOVA_LLM_API_KEY
	LLMBaseURL     string  // NOVA_LLM_BASE_URL (default: https://api.openai.com/v1)
	LLMModel       string  // NOVA_LLM_MODEL (default: gpt-4o-mini)
	LLMMaxTokens   int     // NOVA_LLM_MAX_TOKENS (default: 300)
	LLMTemperature float32 // NOVA_LLM_TEMPERATURE (default: 0.7)

	// Delivery channels
	TelegramToken  string // NOVA_TELEGRAM_TOKEN
	TelegramChatID int64  // NOVA_TELEGRAM_CHAT_ID
	RedisAddr      string // NOVA_REDIS_ADDR
	RedisChannel   string // NOVA_REDIS_CHANNEL (default: nova:stream)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled returns true if an API key is configured for the chat-completion endpoint.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMAPIKey != ""
}

// IsTelegramEnabled returns true if telegram delivery is configured.
func (p *Profile) IsTelegramEnabled() bool {
	return p.TelegramToken != "" && p.TelegramChatID != 0
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring invalid integer env", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("ignoring invalid float env", "key", key, "value", value)
		return defaultValue
	}
	return f
}

// FromEnv loads configuration from NOVA_* environment variables.
// Unset variables keep their defaults; values already set on p are overwritten only when present.
func (p *Profile) FromEnv() {
	p.UserID = getEnvOrDefault("NOVA_USER_ID", firstNonEmpty(p.UserID, "local"))
	p.Latitude = getFloatEnvOrDefault("NOVA_LATITUDE", p.Latitude)
	p.Longitude = getFloatEnvOrDefault("NOVA_LONGITUDE", p.Longitude)

	p.QuietHoursStart = getIntEnvOrDefault("NOVA_QUIET_HOURS_START", 23)
	p.QuietHoursEnd = getIntEnvOrDefault("NOVA_QUIET_HOURS_END", 7)
	p.MaxNotificationsPerHour = getIntEnvOrDefault("NOVA_MAX_NOTIFICATIONS_PER_HOUR", 3)
	p.SocialContext = getEnvOrDefault("NOVA_SOCIAL_CONTEXT", "true") == "true"
	p.StorageQuotaBytes = int64(getIntEnvOrDefault("NOVA_STORAGE_QUOTA_BYTES", int(p.StorageQuotaBytes)))

	p.LLMProvider = getEnvOrDefault("NOVA_LLM_PROVIDER", "openai")
	p.LLMAPIKey = os.Getenv("NOVA_LLM_API_KEY")
	p.LLMBaseURL = getEnvOrDefault("NOVA_LLM_BASE_URL", "https://api.openai.com/v1")
	p.LLMModel = getEnvOrDefault("NOVA_LLM_MODEL", "gpt-4o-mini")
	p.LLMMaxTokens = getIntEnvOrDefault("NOVA_LLM_MAX_TOKENS", 300)
	p.LLMTemperature = float32(getFloatEnvOrDefault("NOVA_LLM_TEMPERATURE", 0.7))

	p.TelegramToken = os.Getenv("NOVA_TELEGRAM_TOKEN")
	p.TelegramChatID = int64(getIntEnvOrDefault("NOVA_TELEGRAM_CHAT_ID", 0))
	p.RedisAddr = os.Getenv("NOVA_REDIS_ADDR")
	p.RedisChannel = getEnvOrDefault("NOVA_REDIS_CHANNEL", "nova:stream")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if err := os.MkdirAll(dataDir, 0o770); err != nil {
		return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
	}
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "memory" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.UserID == "" {
		p.UserID = "local"
	}
	if !validHour(p.QuietHoursStart) || !validHour(p.QuietHoursEnd) {
		return errors.Errorf("quiet hours must be within 0-23, got %d-%d", p.QuietHoursStart, p.QuietHoursEnd)
	}
	if p.MaxNotificationsPerHour < 0 {
		return errors.New("max notifications per hour must not be negative")
	}
	if p.LLMTemperature < 0 || p.LLMTemperature > 2 {
		return errors.Errorf("llm temperature %.2f out of range", p.LLMTemperature)
	}

	if p.Driver == "memory" {
		return nil
	}

	if p.Data == "" {
		if p.Mode == "prod" {
			p.Data = "/var/opt/nova"
		} else {
			p.Data = ".nova"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		dbFile := fmt.Sprintf("nova_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
