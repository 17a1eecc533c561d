package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/trendfit/pkg/decision"
	"github.com/elonfeng/trendfit/pkg/diversity"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Sources   SourcesConfig   `yaml:"sources"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Selection SelectionConfig `yaml:"selection"`
	Decision  DecisionConfig  `yaml:"decision"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ScheduleConfig configures collection and recommendation intervals.
type ScheduleConfig struct {
	CollectInterval   string `yaml:"collect_interval"`
	RecommendInterval string `yaml:"recommend_interval"`
}

// ParseCollectInterval returns the collect interval as time.Duration.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	d, err := time.ParseDuration(s.CollectInterval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// ParseRecommendInterval returns the recommendation interval as time.Duration.
func (s ScheduleConfig) ParseRecommendInterval() time.Duration {
	d, err := time.ParseDuration(s.RecommendInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SourcesConfig holds configuration for trend ingestion.
type SourcesConfig struct {
	RSS RSSConfig `yaml:"rss"`
}

// RSSConfig for the RSS feed collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Window  string     `yaml:"window"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseWindow returns how far back feed entries are accepted.
func (r RSSConfig) ParseWindow() time.Duration {
	d, err := time.ParseDuration(r.Window)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ClassifyConfig configures trend tagging.
type ClassifyConfig struct {
	Domains  map[string][]string `yaml:"domains"` // domain -> extra keywords
	Entities []EntityConfig      `yaml:"entities"`
	LLM      LLMConfig           `yaml:"llm"`
}

// EntityConfig is a tracked name the keyword tagger attaches to signals.
type EntityConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "politician", "organization" or "legislation"
}

// LLMConfig configures the optional LLM domain tagger.
type LLMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
}

// SelectionConfig configures the diversity selector.
type SelectionConfig struct {
	MaxCount          int     `yaml:"max_count"`
	IncludeBreaking   bool    `yaml:"include_breaking"`
	MaxBreaking       int     `yaml:"max_breaking"`
	BreakingMinScore  int     `yaml:"breaking_min_score"`
	EnableExploration bool    `yaml:"enable_exploration"`
	ExplorationRatio  float64 `yaml:"exploration_ratio"`
}

// DiversityConfig converts to the selector's config.
func (s SelectionConfig) DiversityConfig() diversity.Config {
	return diversity.Config{
		IncludeBreaking:   s.IncludeBreaking,
		MaxBreaking:       s.MaxBreaking,
		BreakingMinScore:  s.BreakingMinScore,
		EnableExploration: s.EnableExploration,
		ExplorationRatio:  s.ExplorationRatio,
	}
}

// DecisionConfig configures decision scoring and action alerts.
type DecisionConfig struct {
	SensitiveKeywords       []string `yaml:"sensitive_keywords"`
	ControversialAlertTypes []string `yaml:"controversial_alert_types"`
	AlertActNow             bool     `yaml:"alert_act_now"`
}

// Options converts to decision scorer options. Empty lists keep the defaults.
func (d DecisionConfig) Options() decision.Options {
	opts := decision.DefaultOptions()
	if len(d.SensitiveKeywords) > 0 {
		opts.SensitiveKeywords = d.SensitiveKeywords
	}
	if len(d.ControversialAlertTypes) > 0 {
		opts.ControversialAlertTypes = d.ControversialAlertTypes
	}
	return opts
}

// PipelineConfig configures the scoring worker pool.
type PipelineConfig struct {
	Workers      int    `yaml:"workers"`
	DecisionTopN int    `yaml:"decision_top_n"`
	SignalWindow string `yaml:"signal_window"`
	SignalLimit  int    `yaml:"signal_limit"`
}

// ParseSignalWindow returns the age limit of signals fed to the pipeline.
func (p PipelineConfig) ParseSignalWindow() time.Duration {
	d, err := time.ParseDuration(p.SignalWindow)
	if err != nil || d <= 0 {
		return 48 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	div := diversity.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{Path: "./trendfit.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{
			CollectInterval:   "15m",
			RecommendInterval: "1h",
		},
		Sources: SourcesConfig{
			RSS: RSSConfig{
				Enabled: true,
				Window:  "24h",
				Feeds: []FeedItem{
					{Name: "NPR Politics", URL: "https://feeds.npr.org/1014/rss.xml"},
					{Name: "The Hill", URL: "https://thehill.com/feed/"},
					{Name: "Politico", URL: "https://rss.politico.com/politics-news.xml"},
				},
			},
		},
		Classify: ClassifyConfig{
			LLM: LLMConfig{
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
		},
		Selection: SelectionConfig{
			MaxCount:          10,
			IncludeBreaking:   div.IncludeBreaking,
			MaxBreaking:       div.MaxBreaking,
			BreakingMinScore:  div.BreakingMinScore,
			EnableExploration: div.EnableExploration,
			ExplorationRatio:  div.ExplorationRatio,
		},
		Decision: DecisionConfig{AlertActNow: true},
		Pipeline: PipelineConfig{
			Workers:      4,
			DecisionTopN: 20,
			SignalWindow: "48h",
			SignalLimit:  500,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Selection.MaxCount <= 0 {
		return fmt.Errorf("selection.max_count must be positive, got %d", c.Selection.MaxCount)
	}
	if r := c.Selection.ExplorationRatio; r < 0 || r > 1 {
		return fmt.Errorf("selection.exploration_ratio must be within [0,1], got %g", r)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRENDFIT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRENDFIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TRENDFIT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TRENDFIT_MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Selection.MaxCount = n
		}
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Classify.LLM.APIKey = v
		cfg.Classify.LLM.Enabled = true
		cfg.Classify.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Classify.LLM.APIKey = v
		cfg.Classify.LLM.Enabled = true
		cfg.Classify.LLM.Provider = "anthropic"
	}
}
