package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token" validate:"required"`
		ChatID   int64  `yaml:"chat_id" validate:"required"`
	} `yaml:"telegram"`
	IMAP struct {
		Host          string `yaml:"host"`
		Port          int    `yaml:"port" validate:"min=1,max=65535"`
		Username      string `yaml:"username" validate:"required_with=Host"`
		Password      string `yaml:"password" validate:"required_with=Host"`
		DisableTLS    bool   `yaml:"disable_tls"`
		Mailbox       string `yaml:"mailbox"`
		SubjectFilter string `yaml:"subject_filter"`
	} `yaml:"imap"`
	Market struct {
		Providers      []string      `yaml:"providers" validate:"min=1,dive,oneof=yahoo finnhub mock"`
		FinnhubAPIKey  string        `yaml:"finnhub_api_key"`
		MaxConcurrency int           `yaml:"max_concurrency" validate:"min=1,max=32"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
		RequestsPerSec float64       `yaml:"requests_per_sec" validate:"gt=0"`
	} `yaml:"market"`
	Cache struct {
		Enabled   bool          `yaml:"enabled"`
		RedisAddr string        `yaml:"redis_addr" validate:"required_if=Enabled true"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db" validate:"min=0"`
		TTL       time.Duration `yaml:"ttl" validate:"gt=0"`
	} `yaml:"cache"`
	Schedule struct {
		PollCron    string `yaml:"poll_cron" validate:"required"`
		RefreshCron string `yaml:"refresh_cron" validate:"required"`
		RunOnStart  bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env and the YAML file at path, then applies environment
// variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("IMAP_HOST", &c.IMAP.Host)
	setString("IMAP_USERNAME", &c.IMAP.Username)
	setString("IMAP_PASSWORD", &c.IMAP.Password)
	setString("IMAP_MAILBOX", &c.IMAP.Mailbox)
	setString("FINNHUB_API_KEY", &c.Market.FinnhubAPIKey)
	setString("REDIS_ADDR", &c.Cache.RedisAddr)
	setString("REDIS_PASSWORD", &c.Cache.Password)
	setString("CRON_POLL", &c.Schedule.PollCron)
	setString("CRON_REFRESH", &c.Schedule.RefreshCron)
	setString("SQLITE_PATH", &c.Database.SQLitePath)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("HTTPS_PROXY", &c.Proxy)

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("IMAP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMAP_PORT: %w", err)
		}
		c.IMAP.Port = port
	}
	if v := os.Getenv("MARKET_PROVIDERS"); v != "" {
		c.Market.Providers = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Market.Providers = append(c.Market.Providers, strings.ToLower(p))
			}
		}
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CACHE_ENABLED: %w", err)
		}
		c.Cache.Enabled = enabled
	}
	if os.Getenv("RUN_ON_START") == "true" {
		c.Schedule.RunOnStart = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if c.IMAP.Mailbox == "" {
		c.IMAP.Mailbox = "INBOX"
	}
	if len(c.Market.Providers) == 0 {
		c.Market.Providers = []string{"yahoo"}
	}
	if c.Market.MaxConcurrency == 0 {
		c.Market.MaxConcurrency = 4
	}
	if c.Market.FetchTimeout == 0 {
		c.Market.FetchTimeout = 20 * time.Second
	}
	if c.Market.RequestsPerSec == 0 {
		c.Market.RequestsPerSec = 5
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Schedule.PollCron == "" {
		c.Schedule.PollCron = "0 */5 * * * *"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 0 22 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/tli_sentinel.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, p := range c.Market.Providers {
		if p == "finnhub" && c.Market.FinnhubAPIKey == "" {
			return errors.New("market.finnhub_api_key is required when the finnhub provider is enabled")
		}
	}
	return nil
}

// InboxEnabled reports whether an IMAP host is configured.
func (c *Config) InboxEnabled() bool {
	return c.IMAP.Host != ""
}
