package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trading-bot-dashboard/internal/types"
)

type Config struct {
	Mode   string `yaml:"mode"`
	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	} `yaml:"server"`
	Dashboard struct {
		CapitalPerTrade    int     `yaml:"capital_per_trade"`
		SentimentThreshold float64 `yaml:"sentiment_threshold"`
		NotebookURL        string  `yaml:"notebook_url"`
	} `yaml:"dashboard"`
	Simulator struct {
		MinDelayMs         int     `yaml:"min_delay_ms"`
		MaxDelayMs         int     `yaml:"max_delay_ms"`
		SuccessRateCeiling float64 `yaml:"success_rate_ceiling"`
		SuccessRateStep    float64 `yaml:"success_rate_step"`
	} `yaml:"simulator"`
	Notifications struct {
		TTLMs int `yaml:"ttl_ms"`
	} `yaml:"notifications"`
	Log struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"log"`
	Login struct {
		LatencyMs int `yaml:"latency_ms"`
	} `yaml:"login"`
	Broker struct {
		Exchange     string `yaml:"exchange"`
		APIKeyEnv    string `yaml:"api_key_env"`
		APISecretEnv string `yaml:"api_secret_env"`
	} `yaml:"broker"`
}

// DefaultConfig is the configuration used when no config file exists.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Dashboard.CapitalPerTrade == 0 {
		c.Dashboard.CapitalPerTrade = 25000
	}
	if c.Dashboard.SentimentThreshold == 0 {
		c.Dashboard.SentimentThreshold = 0.8
	}
	if c.Simulator.MinDelayMs == 0 {
		c.Simulator.MinDelayMs = 2000
	}
	if c.Simulator.MaxDelayMs == 0 {
		c.Simulator.MaxDelayMs = 5000
	}
	if c.Simulator.SuccessRateCeiling == 0 {
		c.Simulator.SuccessRateCeiling = 95
	}
	if c.Simulator.SuccessRateStep == 0 {
		c.Simulator.SuccessRateStep = 5
	}
	if c.Notifications.TTLMs == 0 {
		c.Notifications.TTLMs = 5000
	}
	if c.Log.Capacity == 0 {
		c.Log.Capacity = 50
	}
	if c.Login.LatencyMs == 0 {
		c.Login.LatencyMs = 2000
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = "NSE"
	}
	if c.Broker.APIKeyEnv == "" {
		c.Broker.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Broker.APISecretEnv == "" {
		c.Broker.APISecretEnv = "KITE_API_SECRET"
	}
}

func (c *Config) Validate() error {
	if c.Mode == "LIVE" {
		return errors.New("mode 'LIVE' is not supported: the dashboard only simulates trading, use 'DRY_RUN'")
	}
	if c.Mode != "DRY_RUN" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN'", c.Mode)
	}
	if c.Dashboard.CapitalPerTrade < 1000 {
		return fmt.Errorf("dashboard.capital_per_trade must be at least 1000, got %d", c.Dashboard.CapitalPerTrade)
	}
	if c.Dashboard.SentimentThreshold < 0.1 || c.Dashboard.SentimentThreshold > 1.0 {
		return fmt.Errorf("dashboard.sentiment_threshold must be between 0.1-1.0, got %.2f", c.Dashboard.SentimentThreshold)
	}
	if c.Simulator.MinDelayMs <= 0 || c.Simulator.MinDelayMs >= c.Simulator.MaxDelayMs {
		return fmt.Errorf("simulator delays must satisfy 0 < min_delay_ms < max_delay_ms, got %d/%d",
			c.Simulator.MinDelayMs, c.Simulator.MaxDelayMs)
	}
	if c.Simulator.SuccessRateCeiling <= 0 || c.Simulator.SuccessRateCeiling > 100 {
		return fmt.Errorf("simulator.success_rate_ceiling must be between 0-100, got %.2f", c.Simulator.SuccessRateCeiling)
	}
	if c.Log.Capacity < 1 {
		return fmt.Errorf("log.capacity must be at least 1, got %d", c.Log.Capacity)
	}
	if c.Notifications.TTLMs < 0 || c.Login.LatencyMs < 0 {
		return errors.New("notifications.ttl_ms and login.latency_ms cannot be negative")
	}
	return nil
}

// LoadConfig reads path, applies defaults and environment overrides, and
// validates the result. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var c *Config

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c = DefaultConfig()
	case err != nil:
		return nil, err
	default:
		c = &Config{}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		c.applyDefaults()
	}

	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		c.Server.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// InitialConfiguration is the dashboard configuration the store starts with.
func (c *Config) InitialConfiguration() types.Configuration {
	return types.Configuration{
		CapitalPerTrade:    c.Dashboard.CapitalPerTrade,
		SentimentThreshold: c.Dashboard.SentimentThreshold,
		NotebookURL:        c.Dashboard.NotebookURL,
	}
}

// EnvCredentials returns the Kite credentials pre-seeded from the environment.
func (c *Config) EnvCredentials() types.CredentialsPatch {
	var p types.CredentialsPatch
	if v := os.Getenv(c.Broker.APIKeyEnv); v != "" {
		p.APIKey = &v
	}
	if v := os.Getenv(c.Broker.APISecretEnv); v != "" {
		p.APISecret = &v
	}
	return p
}

func (c *Config) MinDelay() time.Duration {
	return time.Duration(c.Simulator.MinDelayMs) * time.Millisecond
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Simulator.MaxDelayMs) * time.Millisecond
}

func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.Notifications.TTLMs) * time.Millisecond
}

func (c *Config) LoginLatency() time.Duration {
	return time.Duration(c.Login.LatencyMs) * time.Millisecond
}
