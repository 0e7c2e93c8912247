// Package config loads the gateway configuration from YAML with
// environment-variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen string `yaml:"listen"`

	Buffer struct {
		BaseURL   string `yaml:"base_url"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"buffer"`

	Push struct {
		NatsSubject   string `yaml:"nats_subject"`
		WebhookSecret string `yaml:"webhook_secret"`
		CacheMaxBytes int64  `yaml:"cache_max_bytes"`
	} `yaml:"push"`

	Unread struct {
		PollIntervalS int `yaml:"poll_interval_s"`
	} `yaml:"unread"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	Audit struct {
		DSN string `yaml:"dsn"`
	} `yaml:"audit"`

	Auth struct {
		SigningKey string `yaml:"signing_key"`
	} `yaml:"auth"`
}

// Load reads path (missing file is fine: defaults + env only) and applies
// env overrides. Env vars win so secrets stay out of the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Listen = ":8090"
	cfg.Push.NatsSubject = "frigate.events.lifecycle"
	cfg.Push.CacheMaxBytes = 64 << 20
	cfg.Unread.PollIntervalS = 60
	cfg.Buffer.TimeoutMs = 15000

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	overrideStr(&cfg.Listen, "GATEWAY_LISTEN")
	overrideStr(&cfg.Buffer.BaseURL, "BUFFER_BASE_URL")
	overrideStr(&cfg.Push.NatsSubject, "PUSH_NATS_SUBJECT")
	overrideStr(&cfg.Push.WebhookSecret, "PUSH_WEBHOOK_SECRET")
	overrideStr(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideStr(&cfg.Audit.DSN, "AUDIT_DSN")
	overrideStr(&cfg.Auth.SigningKey, "JWT_SIGNING_KEY")

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = "dev-secret-do-not-use-in-prod"
	}
	return cfg, nil
}

func (c *Config) BufferTimeout() time.Duration {
	return time.Duration(c.Buffer.TimeoutMs) * time.Millisecond
}

func (c *Config) UnreadPollInterval() time.Duration {
	return time.Duration(c.Unread.PollIntervalS) * time.Second
}

func overrideStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
