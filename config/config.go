// Package config loads engine configuration from config.json with
// environment variable overrides. Environment values always win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"crypto-signal-engine/internal/backtest"
	"crypto-signal-engine/internal/signal"
)

// Config is the root configuration for the engine and its surfaces
type Config struct {
	Server    ServerConfig          `json:"server"`
	Logging   LoggingConfig         `json:"logging"`
	Composer  signal.ComposerConfig `json:"composer"`
	Validator ValidatorConfig       `json:"validator"`
	Backtest  BacktestConfig        `json:"backtest"`
	Database  DatabaseConfig        `json:"database"`
	Redis     RedisConfig           `json:"redis"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"` // "stdout", "stderr", or file path
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// ValidatorConfig holds the signal validation gates. Durations are given in
// seconds in the JSON file.
type ValidatorConfig struct {
	MinConfidence     float64 `json:"min_confidence"`
	MinConfidenceSell float64 `json:"min_confidence_sell"`
	MinRiskReward     float64 `json:"min_risk_reward"`
	CooldownSec       int     `json:"cooldown_sec"`
	RetentionSec      int     `json:"retention_sec"`
}

// BacktestConfig holds the default simulation parameters applied when a
// request omits them.
type BacktestConfig struct {
	InitialBalance float64 `json:"initial_balance"`
	Sizing         string  `json:"sizing"`
	SizingValue    float64 `json:"sizing_value"`
	SlippagePct    float64 `json:"slippage_pct"`
	CommissionPct  float64 `json:"commission_pct"`
	TimeStopHours  float64 `json:"time_stop_hours"`
}

// DatabaseConfig holds PostgreSQL settings. Enabled false runs without
// persistence.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for the shared validator history. Enabled
// false keeps history in memory.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load reads config.json when present and applies environment overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"*"}
	}

	if cfg.Composer.SignalThreshold == 0 {
		cfg.Composer = signal.DefaultComposerConfig()
	}

	if cfg.Validator.MinConfidence == 0 {
		def := signal.DefaultValidatorConfig()
		cfg.Validator.MinConfidence = def.MinConfidence
		cfg.Validator.MinConfidenceSell = def.MinConfidenceSell
		cfg.Validator.MinRiskReward = def.MinRiskReward
		cfg.Validator.CooldownSec = int(def.Cooldown.Seconds())
		cfg.Validator.RetentionSec = int(def.Retention.Seconds())
	}

	if cfg.Backtest.InitialBalance == 0 {
		def := backtest.DefaultConfig("")
		cfg.Backtest.InitialBalance = def.InitialBalance
		cfg.Backtest.Sizing = string(def.Sizing)
		cfg.Backtest.SizingValue = def.SizingValue
		cfg.Backtest.SlippagePct = def.SlippagePct
		cfg.Backtest.CommissionPct = def.CommissionPct
		cfg.Backtest.TimeStopHours = def.TimeStopHours
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", cfg.Server.Port)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	cfg.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.Logging.JSONFormat)) == "true"
	cfg.Logging.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", boolString(cfg.Logging.IncludeFile)) == "true"

	cfg.Validator.MinConfidence = getEnvFloatOrDefault("VALIDATOR_MIN_CONFIDENCE", cfg.Validator.MinConfidence)
	cfg.Validator.MinRiskReward = getEnvFloatOrDefault("VALIDATOR_MIN_RISK_REWARD", cfg.Validator.MinRiskReward)
	cfg.Validator.CooldownSec = getEnvIntOrDefault("VALIDATOR_COOLDOWN_SEC", cfg.Validator.CooldownSec)
	cfg.Validator.RetentionSec = getEnvIntOrDefault("VALIDATOR_RETENTION_SEC", cfg.Validator.RetentionSec)

	cfg.Backtest.InitialBalance = getEnvFloatOrDefault("BACKTEST_INITIAL_BALANCE", cfg.Backtest.InitialBalance)
	cfg.Backtest.SlippagePct = getEnvFloatOrDefault("BACKTEST_SLIPPAGE_PCT", cfg.Backtest.SlippagePct)
	cfg.Backtest.CommissionPct = getEnvFloatOrDefault("BACKTEST_COMMISSION_PCT", cfg.Backtest.CommissionPct)

	cfg.Database.Enabled = getEnvOrDefault("DB_ENABLED", boolString(cfg.Database.Enabled)) == "true"
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.Redis.Enabled)) == "true"
	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
}

// ToValidatorConfig converts the section into the signal package's config.
func (v *ValidatorConfig) ToValidatorConfig() signal.ValidatorConfig {
	def := signal.DefaultValidatorConfig()
	out := def
	out.MinConfidence = v.MinConfidence
	out.MinConfidenceSell = v.MinConfidenceSell
	out.MinRiskReward = v.MinRiskReward
	if v.CooldownSec > 0 {
		out.Cooldown = time.Duration(v.CooldownSec) * time.Second
	}
	if v.RetentionSec > 0 {
		out.Retention = time.Duration(v.RetentionSec) * time.Second
	}
	return out
}

// ToBacktestConfig converts the section into a per-run backtest config.
func (b *BacktestConfig) ToBacktestConfig(pair string) backtest.Config {
	cfg := backtest.DefaultConfig(pair)
	cfg.InitialBalance = b.InitialBalance
	cfg.Sizing = backtest.PositionSizing(b.Sizing)
	cfg.SizingValue = b.SizingValue
	cfg.SlippagePct = b.SlippagePct
	cfg.CommissionPct = b.CommissionPct
	cfg.TimeStopHours = b.TimeStopHours
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
