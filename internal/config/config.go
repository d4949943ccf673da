package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7411"
	DefaultDBFileName = ".taskmatch.db"
	DefaultLogLevel   = "debug"

	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	ClassifierDeterministic = "deterministic"
	ClassifierRemote        = "remote"

	DefaultMatchThreshold    = 0.75
	DefaultPathBonus         = 0.1
	DefaultBatchConcurrency  = 4
	DefaultDedupeSize        = 1024
	DefaultDedupeTTL         = 10 * time.Minute
	DefaultClassifierTimeout = 20 * time.Second
	DefaultClassifierRetries = 2

	maxBatchConcurrency  = 64
	maxClassifierRetries = 10

	configFileName           = ".taskmatch.toml"
	configDirEnvKey          = "TASKMATCH_CONFIG_DIR"
	trustProjectConfigEnvKey = "TASKMATCH_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "TASKMATCH_API_URL"
	dbPathEnvKey             = "TASKMATCH_DB"
	postgresDSNEnvKey        = "TASKMATCH_PG_DSN"
	webhookSecretEnvKey      = "TASKMATCH_WEBHOOK_SECRET"
	classifierURLEnvKey      = "TASKMATCH_CLASSIFIER_URL"
	classifierTokenEnvKey    = "TASKMATCH_CLASSIFIER_TOKEN"
)

// Duration decodes TOML strings such as "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// StoreConfig selects the graph store backend.
type StoreConfig struct {
	Driver      string `toml:"driver"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// MatchConfig tunes the matching engine.
type MatchConfig struct {
	Threshold        float64 `toml:"threshold"`
	PathBonus        float64 `toml:"path_bonus"`
	BatchConcurrency int     `toml:"batch_concurrency"`
}

// WebhookConfig controls GitHub webhook ingestion.
type WebhookConfig struct {
	Secret     string   `toml:"secret"`
	DedupeSize int      `toml:"dedupe_size"`
	DedupeTTL  Duration `toml:"dedupe_ttl"`
	Archive    bool     `toml:"archive"`
}

// ClassifierConfig selects and configures the classifier behind the pipeline.
type ClassifierConfig struct {
	Mode    string   `toml:"mode"`
	URL     string   `toml:"url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
	Retries int      `toml:"retries"`
}

// Config defines runtime configuration for taskmatch.
type Config struct {
	APIURL                   string           `toml:"api_url"`
	DBPath                   string           `toml:"db_path"`
	LogLevel                 string           `toml:"log_level"`
	APITokenHash             string           `toml:"api_token_hash"`
	Store                    StoreConfig      `toml:"store"`
	Match                    MatchConfig      `toml:"match"`
	Webhook                  WebhookConfig    `toml:"webhook"`
	Classifier               ClassifierConfig `toml:"classifier"`
	TrustedProjectConfigPath string           `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Store:    StoreConfig{Driver: StoreDriverSQLite},
		Match: MatchConfig{
			Threshold:        DefaultMatchThreshold,
			PathBonus:        DefaultPathBonus,
			BatchConcurrency: DefaultBatchConcurrency,
		},
		Webhook: WebhookConfig{
			DedupeSize: DefaultDedupeSize,
			DedupeTTL:  Duration{DefaultDedupeTTL},
		},
		Classifier: ClassifierConfig{
			Mode:    ClassifierDeterministic,
			Timeout: Duration{DefaultClassifierTimeout},
			Retries: DefaultClassifierRetries,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"api_token_hash",
	"store.driver",
	"store.postgres_dsn",
	"match.threshold",
	"match.path_bonus",
	"match.batch_concurrency",
	"webhook.secret",
	"webhook.dedupe_size",
	"webhook.dedupe_ttl",
	"webhook.archive",
	"classifier.mode",
	"classifier.url",
	"classifier.token",
	"classifier.timeout",
	"classifier.retries",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "api_token_hash":
		return c.APITokenHash, nil
	case "store.driver":
		return c.Store.Driver, nil
	case "store.postgres_dsn":
		return c.Store.PostgresDSN, nil
	case "match.threshold":
		return strconv.FormatFloat(c.Match.Threshold, 'f', -1, 64), nil
	case "match.path_bonus":
		return strconv.FormatFloat(c.Match.PathBonus, 'f', -1, 64), nil
	case "match.batch_concurrency":
		return strconv.Itoa(c.Match.BatchConcurrency), nil
	case "webhook.secret":
		return c.Webhook.Secret, nil
	case "webhook.dedupe_size":
		return strconv.Itoa(c.Webhook.DedupeSize), nil
	case "webhook.dedupe_ttl":
		return c.Webhook.DedupeTTL.String(), nil
	case "webhook.archive":
		return strconv.FormatBool(c.Webhook.Archive), nil
	case "classifier.mode":
		return c.Classifier.Mode, nil
	case "classifier.url":
		return c.Classifier.URL, nil
	case "classifier.token":
		return c.Classifier.Token, nil
	case "classifier.timeout":
		return c.Classifier.Timeout.String(), nil
	case "classifier.retries":
		return strconv.Itoa(c.Classifier.Retries), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	envOverrides := []struct {
		key    string
		target *string
	}{
		{apiURLEnvKey, &cfg.APIURL},
		{dbPathEnvKey, &cfg.DBPath},
		{postgresDSNEnvKey, &cfg.Store.PostgresDSN},
		{webhookSecretEnvKey, &cfg.Webhook.Secret},
		{classifierURLEnvKey, &cfg.Classifier.URL},
		{classifierTokenEnvKey, &cfg.Classifier.Token},
	}
	for _, o := range envOverrides {
		if value := os.Getenv(o.key); value != "" {
			*o.target = value
		}
	}

	cfg.normalize()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "match.threshold":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			return nil, fmt.Errorf("%s must be a number in (0, 1]", key)
		}
		return parsed, nil
	case "match.path_bonus":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, fmt.Errorf("%s must be a number in [0, 1]", key)
		}
		return parsed, nil
	case "match.batch_concurrency", "webhook.dedupe_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "classifier.retries":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 || parsed > maxClassifierRetries {
			return nil, fmt.Errorf("%s must be an integer between 0 and %d", key, maxClassifierRetries)
		}
		return parsed, nil
	case "webhook.dedupe_ttl", "classifier.timeout":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 30s", key)
		}
		return parsed.String(), nil
	case "webhook.archive":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "store.driver":
		lowered := strings.ToLower(value)
		if lowered != StoreDriverSQLite && lowered != StoreDriverPostgres {
			return nil, fmt.Errorf("%s must be %s or %s", key, StoreDriverSQLite, StoreDriverPostgres)
		}
		return lowered, nil
	case "classifier.mode":
		lowered := strings.ToLower(value)
		if lowered != ClassifierDeterministic && lowered != ClassifierRemote {
			return nil, fmt.Errorf("%s must be %s or %s", key, ClassifierDeterministic, ClassifierRemote)
		}
		return lowered, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// normalize puts out-of-range values back to their defaults.
func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver != StoreDriverPostgres {
		c.Store.Driver = StoreDriverSQLite
	}

	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		c.Match.Threshold = DefaultMatchThreshold
	}
	if c.Match.PathBonus < 0 || c.Match.PathBonus > 1 {
		c.Match.PathBonus = DefaultPathBonus
	}
	if c.Match.BatchConcurrency <= 0 || c.Match.BatchConcurrency > maxBatchConcurrency {
		c.Match.BatchConcurrency = DefaultBatchConcurrency
	}

	if c.Webhook.DedupeSize <= 0 {
		c.Webhook.DedupeSize = DefaultDedupeSize
	}
	if c.Webhook.DedupeTTL.Duration <= 0 {
		c.Webhook.DedupeTTL = Duration{DefaultDedupeTTL}
	}

	c.Classifier.Mode = strings.ToLower(strings.TrimSpace(c.Classifier.Mode))
	if c.Classifier.Mode != ClassifierRemote {
		c.Classifier.Mode = ClassifierDeterministic
	}
	if c.Classifier.Timeout.Duration <= 0 {
		c.Classifier.Timeout = Duration{DefaultClassifierTimeout}
	}
	if c.Classifier.Retries < 0 || c.Classifier.Retries > maxClassifierRetries {
		c.Classifier.Retries = DefaultClassifierRetries
	}
}
