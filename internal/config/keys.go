package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SUPPORTBOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "SUPPORTBOT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "model.base_url", typ: kString, env: "SUPPORTBOT_MODEL_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Model.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.BaseURL },
	},
	{
		key: "model.name", typ: kString, env: "SUPPORTBOT_MODEL_NAME",
		apply:   func(cfg *Config, v any) { cfg.Model.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.Name },
	},
	{
		key: "model.retry_attempts", typ: kInt, env: "SUPPORTBOT_MODEL_RETRY_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Model.RetryAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Model.RetryAttempts },
	},
	{
		key: "model.retry_delay", typ: kString, env: "SUPPORTBOT_MODEL_RETRY_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Model.RetryDelay = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.RetryDelay },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SUPPORTBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "session.expiration_minutes", typ: kInt, env: "SUPPORTBOT_SESSION_EXPIRATION_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Session.ExpirationMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.ExpirationMinutes },
	},
	{
		key: "log.level", typ: kString, env: "SUPPORTBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "faq.path", typ: kString, env: "SUPPORTBOT_FAQ_PATH",
		apply:   func(cfg *Config, v any) { cfg.FAQ.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.FAQ.Path },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
