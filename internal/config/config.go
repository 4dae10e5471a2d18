// Package config loads branchtale settings from an optional YAML file and
// BRANCHTALE_* environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BRANCHTALE_STORE_BACKEND.
const EnvPrefix = "BRANCHTALE_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	Story     string          `mapstructure:"story" yaml:"story"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
}

// StoreConfig selects and configures the ProgressStore.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	File    FileConfig  `mapstructure:"file" yaml:"file"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`
	SQLite  SQLConfig   `mapstructure:"sqlite" yaml:"sqlite"`

	// EncryptionKey is a base64 AES-256 key. When set, sessions are encrypted at rest.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

// FileConfig configures the JSON file store.
type FileConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RedisConfig configures the Redis store and distributed locking.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Lock     bool          `mapstructure:"lock" yaml:"lock"`
}

// SQLConfig configures the SQLite store.
type SQLConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// GeneratorConfig configures the OpenAI-compatible continuation source.
type GeneratorConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKeyEnv      string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout"`
}

// HTTPConfig configures the HTTP host.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Store: StoreConfig{
			Backend: BackendFile,
			File:    FileConfig{Dir: ".branchtale/progress"},
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "branchtale:progress:"},
			SQLite:  SQLConfig{Path: ".branchtale/branchtale.db"},
		},
		Generator: GeneratorConfig{
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			MaxAttempts:    10,
			AttemptTimeout: 15 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// Load reads path (if non-empty), applies environment overrides and validates
// the result. environ is usually os.Environ().
func Load(path string, environ []string) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	applyEnv(raw, environ)

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file, redis or sqlite)", c.Store.Backend)
	}
	if _, err := c.Store.Key(); err != nil {
		return err
	}
	if c.Generator.MaxAttempts < 1 {
		return fmt.Errorf("generator.max_attempts must be at least 1")
	}
	if c.Generator.AttemptTimeout < 0 {
		return fmt.Errorf("generator.attempt_timeout must not be negative")
	}
	return nil
}

// Key decodes EncryptionKey. It returns nil when encryption is disabled.
func (s StoreConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// APIKey resolves the generator API key from the configured environment variable.
func (g GeneratorConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// applyEnv overlays BRANCHTALE_* variables onto raw. The first underscore after
// a known section splits the path, so BRANCHTALE_GENERATOR_BASE_URL sets
// generator.base_url and BRANCHTALE_STORE_REDIS_ADDR sets store.redis.addr.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path := envPath(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)))
		if path == nil {
			continue
		}
		setPath(raw, path, value)
	}
}

// sections lists the nested config tables and their sub-tables.
var sections = map[string][]string{
	"store":     {"file", "redis", "sqlite"},
	"generator": nil,
	"http":      nil,
}

// topLevel lists the scalar keys at the root of Config.
var topLevel = map[string]bool{
	"log_level": true,
	"story":     true,
}

func envPath(key string) []string {
	head, rest, nested := strings.Cut(key, "_")
	subs, isSection := sections[head]
	if !nested || !isSection {
		if topLevel[key] {
			return []string{key}
		}
		// Not a config key, e.g. BRANCHTALE_MAX_INPUT_SIZE.
		return nil
	}
	for _, sub := range subs {
		if leaf, ok := strings.CutPrefix(rest, sub+"_"); ok {
			return []string{head, sub, leaf}
		}
	}
	return []string{head, rest}
}

func setPath(m map[string]any, path []string, value string) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
