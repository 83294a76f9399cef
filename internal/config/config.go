package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	SES        SESConfig        `yaml:"ses" mapstructure:"ses"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Contacts   ContactsConfig   `yaml:"contacts" mapstructure:"contacts"`
	Campaign   CampaignConfig   `yaml:"campaign" mapstructure:"campaign"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds business-directory search settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (page fetch + site map).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SESConfig holds AWS SES transport settings.
type SESConfig struct {
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// DiscoveryConfig configures the lead-discovery pipeline.
type DiscoveryConfig struct {
	ResultLimit         int     `yaml:"result_limit" mapstructure:"result_limit"`
	EnrichBatchSize     int     `yaml:"enrich_batch_size" mapstructure:"enrich_batch_size"`
	EnrichConcurrency   int     `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	FetchTimeoutSecs    int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	ResearchTimeoutSecs int     `yaml:"research_timeout_secs" mapstructure:"research_timeout_secs"`
	MinICPScore         float64 `yaml:"min_icp_score" mapstructure:"min_icp_score"`
}

// ContactsConfig configures the contact-discovery stage.
type ContactsConfig struct {
	MaxPages       int `yaml:"max_pages" mapstructure:"max_pages"`
	MaxSiteURLs    int `yaml:"max_site_urls" mapstructure:"max_site_urls"`
	ExtractRetries int `yaml:"extract_retries" mapstructure:"extract_retries"`
}

// CampaignConfig configures the send scheduler.
type CampaignConfig struct {
	HourlyLimit   int  `yaml:"hourly_limit" mapstructure:"hourly_limit"`
	DailyLimit    int  `yaml:"daily_limit" mapstructure:"daily_limit"`
	MinDelaySecs  int  `yaml:"min_delay_secs" mapstructure:"min_delay_secs"`
	WarmupEnabled bool `yaml:"warmup_enabled" mapstructure:"warmup_enabled"`
}

// ServerConfig configures the event webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ses.region", "us-east-1")
	v.SetDefault("discovery.result_limit", 50)
	v.SetDefault("discovery.enrich_batch_size", 5)
	v.SetDefault("discovery.enrich_concurrency", 3)
	v.SetDefault("discovery.fetch_timeout_secs", 30)
	v.SetDefault("discovery.research_timeout_secs", 60)
	v.SetDefault("discovery.min_icp_score", 0.5)
	v.SetDefault("contacts.max_pages", 8)
	v.SetDefault("contacts.max_site_urls", 100)
	v.SetDefault("contacts.extract_retries", 3)
	v.SetDefault("campaign.hourly_limit", 50)
	v.SetDefault("campaign.daily_limit", 200)
	v.SetDefault("campaign.min_delay_secs", 5)
	v.SetDefault("campaign.warmup_enabled", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
