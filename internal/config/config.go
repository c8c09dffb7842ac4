package config

import (
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Model   ModelConfig
	Storage StorageConfig
	Session SessionConfig
	Log     LogConfig
	FAQ     FAQConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type ModelConfig struct {
	BaseURL       string
	Name          string
	RetryAttempts int
	RetryDelay    string
}

type StorageConfig struct {
	DataDir string
}

type SessionConfig struct {
	ExpirationMinutes int
}

type LogConfig struct {
	Level string
}

type FAQConfig struct {
	// Path overrides the embedded FAQ dataset when non-empty.
	Path string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Model: ModelConfig{
			BaseURL:       "http://localhost:11434",
			Name:          "llama3.2",
			RetryAttempts: 3,
			RetryDelay:    "2s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			ExpirationMinutes: 1440,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Expiration returns the session expiration window as a duration.
func (c Config) Expiration() time.Duration {
	return time.Duration(c.Session.ExpirationMinutes) * time.Minute
}

// RetryDelayDuration parses the configured retry delay, falling back to
// 2s when the value does not parse.
func (c Config) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.Model.RetryDelay)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.supportbot.app) and the
// server token falls back to macOS Keychain.
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/supportbot/config.json and secrets come from a secrets
// file or environment variables.
//
// Environment variables (SUPPORTBOT_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts platform secret access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The bearer token is optional; an empty token leaves the management
	// routes open. Try the platform secret store if nothing else set it.
	if cfg.Server.Token == "" {
		if token, err := kc.Get("supportbot", "server_token"); err == nil && token != "" {
			cfg.Server.Token = token
		}
	}

	return cfg, nil
}

type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
