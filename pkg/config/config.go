package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const defaultConfigFileName = "g4f-azure.toml"

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Domain   string `toml:"domain"`
	Email    string `toml:"email"`
	CacheDir string `toml:"cache_dir"`
}

// Config is the full server configuration. Every field can be set from the
// TOML file and overridden by the environment variables the original
// deployment used (BASE_URL, AUTH_TOKENS, FILE_PROXY_URL, ...).
type Config struct {
	ListenAddr       string    `toml:"listen_addr"`
	BaseURL          string    `toml:"base_url"`
	AuthTokens       []string  `toml:"auth_tokens"`
	FileProxyURL     string    `toml:"file_proxy_url"`
	FileProxyEncode  bool      `toml:"file_proxy_encode"`
	MaxKeys          int       `toml:"max_keys"`
	KeyExpireMinutes int       `toml:"key_expire_minutes"`
	ModelCacheDays   int       `toml:"model_cache_days"`
	UseSQLite        bool      `toml:"use_sqlite"`
	DBPath           string    `toml:"db_path"`
	LogLevel         string    `toml:"log_level"`
	TLS              TLSConfig `toml:"tls"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigFileName
	}
	return filepath.Join(home, ".config", "g4f-azure", defaultConfigFileName)
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "azure_keys.db"
	}
	return filepath.Join(home, ".cache", "g4f-azure", "azure_keys.db")
}

func DefaultTLSCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tls-autocert"
	}
	return filepath.Join(home, ".cache", "g4f-azure", "tls-autocert")
}

func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8000",
		BaseURL:          "https://g4f.dev",
		AuthTokens:       []string{"sk-default", "sk-false"},
		FileProxyURL:     "https://proxy.mengze.vip/proxy/",
		FileProxyEncode:  false,
		MaxKeys:          3,
		KeyExpireMinutes: 60,
		ModelCacheDays:   7,
		UseSQLite:        true,
		DBPath:           DefaultDBPath(),
		LogLevel:         "info",
		TLS: TLSConfig{
			Enabled:  false,
			CacheDir: DefaultTLSCacheDir(),
		},
	}
}

// Load reads the TOML file at path and applies environment overrides on top.
// A missing file is not an error: the original deployment was configured
// purely through the environment, so defaults plus env vars are a valid setup.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	b, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.ApplyEnvOverrides(os.Getenv)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies the legacy environment variable surface. lookup
// is injectable so tests do not have to mutate the process environment.
func (c *Config) ApplyEnvOverrides(lookup func(string) string) {
	if v := strings.TrimSpace(lookup("LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(lookup("BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(lookup("AUTH_TOKENS")); v != "" {
		c.AuthTokens = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(lookup("FILE_PROXY_URL")); v != "" {
		c.FileProxyURL = v
	}
	if v := strings.TrimSpace(lookup("FILE_PROXY_ENCODE")); v != "" {
		c.FileProxyEncode = strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(lookup("MAX_KEYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxKeys = n
		}
	}
	if v := strings.TrimSpace(lookup("KEY_EXPIRE_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.KeyExpireMinutes = n
		}
	}
	if v := strings.TrimSpace(lookup("MODEL_CACHE_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ModelCacheDays = n
		}
	}
	if v := strings.TrimSpace(lookup("USE_SQLITE")); v != "" {
		c.UseSQLite = strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(lookup("DB_PATH")); v != "" {
		c.DBPath = v
	}
}

func (c *Config) Normalize() {
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://g4f.dev"
	}
	c.FileProxyURL = strings.TrimSpace(c.FileProxyURL)
	tokens := make([]string, 0, len(c.AuthTokens))
	seen := map[string]struct{}{}
	for _, t := range c.AuthTokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	c.AuthTokens = tokens
	if c.MaxKeys <= 0 {
		c.MaxKeys = 3
	}
	if c.KeyExpireMinutes <= 0 {
		c.KeyExpireMinutes = 60
	}
	if c.ModelCacheDays <= 0 {
		c.ModelCacheDays = 7
	}
	c.DBPath = strings.TrimSpace(c.DBPath)
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.TLS.Domain = strings.TrimSpace(c.TLS.Domain)
	c.TLS.Email = strings.TrimSpace(c.TLS.Email)
	c.TLS.CacheDir = strings.TrimSpace(c.TLS.CacheDir)
	if c.TLS.CacheDir == "" {
		c.TLS.CacheDir = DefaultTLSCacheDir()
	}
}

func (c *Config) Validate() error {
	if len(c.AuthTokens) == 0 {
		return errors.New("auth_tokens cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must be an http(s) origin", c.BaseURL)
	}
	if c.TLS.Enabled && c.TLS.Domain == "" {
		return errors.New("tls.domain is required when tls.enabled=true")
	}
	return nil
}

func (c *Config) KeyExpiry() time.Duration {
	return time.Duration(c.KeyExpireMinutes) * time.Minute
}

func (c *Config) ModelCacheWindow() time.Duration {
	return time.Duration(c.ModelCacheDays) * 24 * time.Hour
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	b, err := marshalTOML(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func marshalTOML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetArraysMultiline(true)
	enc.SetIndentSymbol("  ")
	enc.SetIndentTables(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out, nil
}
