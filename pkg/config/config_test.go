package config

import (
	"path/filepath"
	"testing"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", cfg.ListenAddr)
	}
	if cfg.BaseURL != "https://g4f.dev" {
		t.Errorf("BaseURL = %q, want https://g4f.dev", cfg.BaseURL)
	}
	if cfg.MaxKeys != 3 || cfg.KeyExpireMinutes != 60 || cfg.ModelCacheDays != 7 {
		t.Errorf("pool defaults = %d/%d/%d, want 3/60/7", cfg.MaxKeys, cfg.KeyExpireMinutes, cfg.ModelCacheDays)
	}
	if !cfg.UseSQLite {
		t.Error("UseSQLite should default to true")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ApplyEnvOverrides(envFrom(map[string]string{
		"BASE_URL":           "https://example.com/",
		"AUTH_TOKENS":        "sk-a, sk-b,sk-a",
		"FILE_PROXY_URL":     "https://p.example/proxy/",
		"FILE_PROXY_ENCODE":  "TRUE",
		"MAX_KEYS":           "5",
		"KEY_EXPIRE_MINUTES": "30",
		"MODEL_CACHE_DAYS":   "1",
		"USE_SQLITE":         "false",
		"DB_PATH":            "/tmp/x.db",
	}))
	cfg.Normalize()

	if cfg.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	want := []string{"sk-a", "sk-b"}
	if len(cfg.AuthTokens) != len(want) {
		t.Fatalf("AuthTokens = %v, want %v", cfg.AuthTokens, want)
	}
	for i := range want {
		if cfg.AuthTokens[i] != want[i] {
			t.Errorf("AuthTokens[%d] = %q, want %q", i, cfg.AuthTokens[i], want[i])
		}
	}
	if !cfg.FileProxyEncode {
		t.Error("FILE_PROXY_ENCODE=TRUE should enable encoding")
	}
	if cfg.MaxKeys != 5 || cfg.KeyExpireMinutes != 30 || cfg.ModelCacheDays != 1 {
		t.Errorf("pool overrides = %d/%d/%d, want 5/30/1", cfg.MaxKeys, cfg.KeyExpireMinutes, cfg.ModelCacheDays)
	}
	if cfg.UseSQLite {
		t.Error("USE_SQLITE=false should disable persistence")
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
}

func TestEnvOverridesIgnoreGarbageNumbers(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ApplyEnvOverrides(envFrom(map[string]string{"MAX_KEYS": "many"}))
	if cfg.MaxKeys != 3 {
		t.Errorf("MaxKeys = %d, want default preserved on parse failure", cfg.MaxKeys)
	}
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.AuthTokens = nil
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Error("empty auth_tokens should fail validation")
	}

	cfg = NewDefaultConfig()
	cfg.BaseURL = "g4f.dev"
	if err := cfg.Validate(); err == nil {
		t.Error("scheme-less base_url should fail validation")
	}

	cfg = NewDefaultConfig()
	cfg.TLS.Enabled = true
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Error("tls without domain should fail validation")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g4f-azure.toml")
	cfg := NewDefaultConfig()
	cfg.ListenAddr = ":9100"
	cfg.AuthTokens = []string{"sk-test"}
	cfg.ModelCacheDays = 2
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ListenAddr != ":9100" {
		t.Errorf("ListenAddr = %q, want :9100", loaded.ListenAddr)
	}
	if len(loaded.AuthTokens) != 1 || loaded.AuthTokens[0] != "sk-test" {
		t.Errorf("AuthTokens = %v", loaded.AuthTokens)
	}
	if loaded.ModelCacheDays != 2 {
		t.Errorf("ModelCacheDays = %d, want 2", loaded.ModelCacheDays)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.BaseURL != "https://g4f.dev" {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
}
