package config

import (
	"errors"
	"testing"
	"time"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	strings map[string]string
	ints    map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strings: make(map[string]string), ints: make(map[string]int)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.strings[key]
	return v, ok, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.ints[key]
	return v, ok, nil
}

func (b *memBackend) SetString(key, val string) error { b.strings[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.ints[key] = val; return nil }
func (b *memBackend) Delete(key string) error {
	delete(b.strings, key)
	delete(b.ints, key)
	return nil
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend(), mockKeychain{err: errors.New("no keychain")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Model.BaseURL != "http://localhost:11434" {
		t.Errorf("Model.BaseURL = %q", cfg.Model.BaseURL)
	}
	if cfg.Model.RetryAttempts != 3 {
		t.Errorf("Model.RetryAttempts = %d, want 3", cfg.Model.RetryAttempts)
	}
	if cfg.Session.ExpirationMinutes != 1440 {
		t.Errorf("Session.ExpirationMinutes = %d, want 1440", cfg.Session.ExpirationMinutes)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty", cfg.Server.Token)
	}
}

func TestBackendValues(t *testing.T) {
	b := newMemBackend()
	b.SetInt("server.port", 5000)
	b.SetString("model.name", "custom-model")
	b.SetString("storage.data_dir", "/tmp/supportbot-test")
	b.SetInt("session.expiration_minutes", 60)
	b.SetString("faq.path", "/etc/supportbot/faqs.json")

	cfg, err := loadWith(b, mockKeychain{err: errors.New("no keychain")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Model.Name != "custom-model" {
		t.Errorf("Model.Name = %q", cfg.Model.Name)
	}
	if cfg.Storage.DataDir != "/tmp/supportbot-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Session.ExpirationMinutes != 60 {
		t.Errorf("Session.ExpirationMinutes = %d, want 60", cfg.Session.ExpirationMinutes)
	}
	if cfg.FAQ.Path != "/etc/supportbot/faqs.json" {
		t.Errorf("FAQ.Path = %q", cfg.FAQ.Path)
	}
}

func TestEnvOverride(t *testing.T) {
	b := newMemBackend()
	b.SetInt("server.port", 5000)

	t.Setenv("SUPPORTBOT_SERVER_PORT", "6000")
	t.Setenv("SUPPORTBOT_MODEL_NAME", "env-model")

	cfg, err := loadWith(b, mockKeychain{err: errors.New("no keychain")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.Model.Name != "env-model" {
		t.Errorf("Model.Name = %q, want env-model", cfg.Model.Name)
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("SUPPORTBOT_SERVER_TOKEN", "env-token")

	cfg, err := loadWith(newMemBackend(), mockKeychain{value: "keychain-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("Server.Token = %q, want env value", cfg.Server.Token)
	}
}

func TestTokenKeychainFallback(t *testing.T) {
	t.Setenv("SUPPORTBOT_SERVER_TOKEN", "")

	cfg, err := loadWith(newMemBackend(), mockKeychain{value: "keychain-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "keychain-token" {
		t.Errorf("Server.Token = %q, want keychain fallback", cfg.Server.Token)
	}
}

func TestExpiration(t *testing.T) {
	cfg := defaults()
	cfg.Session.ExpirationMinutes = 90
	if got := cfg.Expiration(); got != 90*time.Minute {
		t.Errorf("Expiration() = %v, want 90m", got)
	}
}

func TestRetryDelayDuration(t *testing.T) {
	cfg := defaults()
	if got := cfg.RetryDelayDuration(); got != 2*time.Second {
		t.Errorf("default RetryDelayDuration() = %v, want 2s", got)
	}

	cfg.Model.RetryDelay = "500ms"
	if got := cfg.RetryDelayDuration(); got != 500*time.Millisecond {
		t.Errorf("RetryDelayDuration() = %v, want 500ms", got)
	}

	cfg.Model.RetryDelay = "garbage"
	if got := cfg.RetryDelayDuration(); got != 2*time.Second {
		t.Errorf("RetryDelayDuration() on bad value = %v, want 2s", got)
	}
}

func TestShowAllSkipsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "hidden"

	for _, info := range ShowAll(cfg) {
		if info.Key == "server.token" {
			t.Error("ShowAll exposed the secret token key")
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	found := false
	for _, k := range keys {
		if k == "server.token" {
			t.Error("ValidKeys lists the secret token key")
		}
		if k == "model.base_url" {
			found = true
		}
	}
	if !found {
		t.Error("ValidKeys missing model.base_url")
	}
}
