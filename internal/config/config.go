package config

import (
	"log"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "ARXIV_MONITOR_CONFIG"
	databasePathEnv  = "ARXIV_MONITOR_DB"
	claudeAPIKeyEnv  = "CLAUDE_API_KEY"
	claudeModelEnv   = "CLAUDE_MODEL"
	slackTokenEnv    = "SLACK_TOKEN"
	smtpHostEnv      = "SMTP_HOST"
	smtpPortEnv      = "SMTP_PORT"
	smtpUsernameEnv  = "SMTP_USERNAME"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	smtpFromEnv      = "SMTP_FROM_EMAIL"
	smtpUseTLSEnv    = "SMTP_USE_TLS"
	defaultDatabase  = "./data/arxiv_monitor.db"
	defaultDownloads = "./data/pdfs"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Claude       ClaudeConfig       `yaml:"claude"`
	Distribution DistributionConfig `yaml:"distribution"`
	Downloads    DownloadConfig     `yaml:"downloads"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig tunes feed polling, retries and deduplication.
type MonitorConfig struct {
	Feeds                  []string `yaml:"feeds"`
	PapersPerFeed          int      `yaml:"papersPerFeed"`
	MaxRetries             int      `yaml:"maxRetries"`
	FetchBaseDelaySeconds  int      `yaml:"fetchBaseDelaySeconds"`
	LookupBaseDelaySeconds int      `yaml:"lookupBaseDelaySeconds"`
	RequestDelaySeconds    int      `yaml:"requestDelaySeconds"`
	EmptyWarningThreshold  int      `yaml:"emptyWarningThreshold"`
	WatchIntervalMinutes   int      `yaml:"watchIntervalMinutes"`
}

// FetchBaseDelay is the first backoff step for feed fetches.
func (m MonitorConfig) FetchBaseDelay() time.Duration {
	return time.Duration(m.FetchBaseDelaySeconds) * time.Second
}

// LookupBaseDelay is the first backoff step for single-paper lookups.
func (m MonitorConfig) LookupBaseDelay() time.Duration {
	return time.Duration(m.LookupBaseDelaySeconds) * time.Second
}

// RequestDelay is the pause between consecutive feed fetches.
func (m MonitorConfig) RequestDelay() time.Duration {
	return time.Duration(m.RequestDelaySeconds) * time.Second
}

// WatchInterval is the period between pipeline runs in watch mode.
func (m MonitorConfig) WatchInterval() time.Duration {
	return time.Duration(m.WatchIntervalMinutes) * time.Minute
}

// ClaudeConfig defines how to contact the Claude messages API.
type ClaudeConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	SystemPrompt  string `yaml:"systemPrompt"`
	MaxTokens     int    `yaml:"maxTokens"`
	FullTextLimit int    `yaml:"fullTextLimit"`
}

// DistributionConfig wires the outbound channels.
type DistributionConfig struct {
	MinRelevance    int         `yaml:"minRelevance"`
	Slack           SlackConfig `yaml:"slack"`
	SMTP            SMTPConfig  `yaml:"smtp"`
	EmailRecipients []string    `yaml:"emailRecipients"`
}

// SlackConfig carries the bot token and default channels.
type SlackConfig struct {
	Token    string   `yaml:"token"`
	Channels []string `yaml:"channels"`
}

// SMTPConfig carries everything needed to send mail.
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"fromEmail"`
	UseTLS    bool   `yaml:"useTls"`
}

// DownloadConfig describes where PDF artifacts land.
type DownloadConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig selects verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A .env file next to the process is honored first.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Monitor.Feeds) == 0 {
		cfg.Monitor.Feeds = defaultConfig().Monitor.Feeds
	}

	return cfg
}

// Validate reports configuration values that cannot work at runtime.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Monitor,
		validation.Field(&c.Monitor.PapersPerFeed, validation.Required, validation.Min(1)),
		validation.Field(&c.Monitor.MaxRetries, validation.Min(0)),
		validation.Field(&c.Monitor.FetchBaseDelaySeconds, validation.Min(0)),
		validation.Field(&c.Monitor.LookupBaseDelaySeconds, validation.Min(0)),
		validation.Field(&c.Monitor.Feeds, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Distribution,
		validation.Field(&c.Distribution.MinRelevance, validation.Min(0), validation.Max(10)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Claude,
		validation.Field(&c.Claude.Model, validation.Required),
		validation.Field(&c.Claude.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Claude.FullTextLimit, validation.Min(0)),
	)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(claudeAPIKeyEnv); v != "" {
		c.Claude.APIKey = v
	}

	if v := os.Getenv(claudeModelEnv); v != "" {
		c.Claude.Model = v
	}

	if v := os.Getenv(slackTokenEnv); v != "" {
		c.Distribution.Slack.Token = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Distribution.SMTP.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := parsePort(v); err == nil {
			c.Distribution.SMTP.Port = port
		}
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.Distribution.SMTP.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.Distribution.SMTP.Password = v
	}
	if v := os.Getenv(smtpFromEnv); v != "" {
		c.Distribution.SMTP.FromEmail = v
	}
	if v := os.Getenv(smtpUseTLSEnv); v != "" {
		c.Distribution.SMTP.UseTLS = v == "true" || v == "1"
	}
}

func parsePort(v string) (int, error) {
	if v == "" {
		return 0, os.ErrInvalid
	}
	var port int
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, os.ErrInvalid
		}
		port = port*10 + int(r-'0')
	}
	return port, nil
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if len(override.Monitor.Feeds) > 0 {
		base.Monitor.Feeds = override.Monitor.Feeds
	}
	if override.Monitor.PapersPerFeed > 0 {
		base.Monitor.PapersPerFeed = override.Monitor.PapersPerFeed
	}
	if override.Monitor.MaxRetries > 0 {
		base.Monitor.MaxRetries = override.Monitor.MaxRetries
	}
	if override.Monitor.FetchBaseDelaySeconds > 0 {
		base.Monitor.FetchBaseDelaySeconds = override.Monitor.FetchBaseDelaySeconds
	}
	if override.Monitor.LookupBaseDelaySeconds > 0 {
		base.Monitor.LookupBaseDelaySeconds = override.Monitor.LookupBaseDelaySeconds
	}
	if override.Monitor.RequestDelaySeconds > 0 {
		base.Monitor.RequestDelaySeconds = override.Monitor.RequestDelaySeconds
	}
	if override.Monitor.EmptyWarningThreshold > 0 {
		base.Monitor.EmptyWarningThreshold = override.Monitor.EmptyWarningThreshold
	}
	if override.Monitor.WatchIntervalMinutes > 0 {
		base.Monitor.WatchIntervalMinutes = override.Monitor.WatchIntervalMinutes
	}

	if override.Claude.Endpoint != "" {
		base.Claude.Endpoint = override.Claude.Endpoint
	}
	if override.Claude.Model != "" {
		base.Claude.Model = override.Claude.Model
	}
	if override.Claude.APIKey != "" {
		base.Claude.APIKey = override.Claude.APIKey
	}
	if override.Claude.SystemPrompt != "" {
		base.Claude.SystemPrompt = override.Claude.SystemPrompt
	}
	if override.Claude.MaxTokens > 0 {
		base.Claude.MaxTokens = override.Claude.MaxTokens
	}
	if override.Claude.FullTextLimit > 0 {
		base.Claude.FullTextLimit = override.Claude.FullTextLimit
	}

	if override.Distribution.MinRelevance > 0 {
		base.Distribution.MinRelevance = override.Distribution.MinRelevance
	}
	if override.Distribution.Slack.Token != "" {
		base.Distribution.Slack.Token = override.Distribution.Slack.Token
	}
	if len(override.Distribution.Slack.Channels) > 0 {
		base.Distribution.Slack.Channels = override.Distribution.Slack.Channels
	}
	if override.Distribution.SMTP.Host != "" {
		base.Distribution.SMTP = override.Distribution.SMTP
	}
	if len(override.Distribution.EmailRecipients) > 0 {
		base.Distribution.EmailRecipients = override.Distribution.EmailRecipients
	}

	if override.Downloads.Dir != "" {
		base.Downloads = override.Downloads
	}

	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database:  DatabaseConfig{Path: defaultDatabase},
		Downloads: DownloadConfig{Dir: defaultDownloads},
		Monitor: MonitorConfig{
			Feeds: []string{
				"http://export.arxiv.org/rss/cs.IR",
				"http://export.arxiv.org/rss/cs.LG",
				"http://export.arxiv.org/rss/cs.AI",
				"http://export.arxiv.org/rss/econ.GN",
			},
			PapersPerFeed:          10,
			MaxRetries:             3,
			FetchBaseDelaySeconds:  5,
			LookupBaseDelaySeconds: 3,
			RequestDelaySeconds:    5,
			EmptyWarningThreshold:  3,
			WatchIntervalMinutes:   360,
		},
		Claude: ClaudeConfig{
			Endpoint:      "https://api.anthropic.com/v1/messages",
			Model:         "claude-3-haiku-20240307",
			APIKey:        "",
			SystemPrompt:  "You are an expert on AI and ML, and your job is to evaluate the relevance of a research paper to an e-commerce marketplace, both in terms of business opportunities and technical advances.",
			MaxTokens:     1000,
			FullTextLimit: 50000,
		},
		Distribution: DistributionConfig{
			MinRelevance: 7,
			Slack: SlackConfig{
				Channels: []string{"#research-papers"},
			},
			SMTP: SMTPConfig{Port: 587, UseTLS: true},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
