// Package config loads orgtree settings from a YAML file and ORGTREE_* environment variables.
// Command-line flags are applied last by the CLI.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/orgtree/internal/logging"
	"github.com/aretw0/orgtree/pkg/analysis"
	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/aretw0/orgtree/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ORGTREE_"

// DefaultFile is read when present and no explicit path is given.
const DefaultFile = "orgtree.yaml"

// Config is the resolved runtime configuration.
type Config struct {
	Source string `mapstructure:"source"`
	// Mapping stays empty unless set, so every adapter keeps its own default keys.
	Mapping domain.FieldMapping `mapstructure:"mapping"`
	// Fields declares the expected type of opaque fields, e.g. {salary: float, vacancies: "int?"}.
	Fields map[string]string `mapstructure:"fields"`
	// SnapshotStore is a store address (see registry.Parse). Successful loads are
	// saved there and used as fallback when the source fails.
	SnapshotStore    string         `mapstructure:"snapshot_store"`
	SnapshotName     string         `mapstructure:"snapshot_name"`
	Redis            RedisConfig    `mapstructure:"redis"`
	HTTP             HTTPConfig     `mapstructure:"http"`
	Redact           []string       `mapstructure:"redact"`
	EncryptionKeyEnv string         `mapstructure:"encryption_key_env"`
	Log              LogConfig      `mapstructure:"log"`
	Analysis         AnalysisConfig `mapstructure:"analysis"`
}

// AnalysisConfig names the fields read by the stats and valuation commands.
// Preset is "default" or "rpt"; the other values override single names.
type AnalysisConfig struct {
	Preset       string   `mapstructure:"preset"`
	GroupField   string   `mapstructure:"group_field"`
	SalaryField  string   `mapstructure:"salary_field"`
	VacancyField string   `mapstructure:"vacancy_field"`
	FactorPrefix string   `mapstructure:"factor_prefix"`
	Factors      []string `mapstructure:"factors"`
}

// RedisConfig is used for the import lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Source:       ".",
		SnapshotName: "main",
		Redis:        RedisConfig{LockTTL: 30 * time.Second},
		HTTP:         HTTPConfig{Addr: ":8080"},
		Log:          LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves defaults, then the file at path, then the environment.
// An empty path reads DefaultFile when it exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// ApplyEnv overrides fields from ORGTREE_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"SOURCE":             &c.Source,
		"ID_FIELD":           &c.Mapping.ID,
		"LABEL_FIELD":        &c.Mapping.Label,
		"SUPERIOR_FIELD":     &c.Mapping.Superior,
		"SNAPSHOT_STORE":     &c.SnapshotStore,
		"SNAPSHOT_NAME":      &c.SnapshotName,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"HTTP_ADDR":          &c.HTTP.Addr,
		"ENCRYPTION_KEY_ENV": &c.EncryptionKeyEnv,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"ANALYSIS_PRESET":    &c.Analysis.Preset,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Redis.DB = db
	}
	if v, ok := lookup(EnvPrefix + "REDIS_LOCK_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_LOCK_TTL: %w", EnvPrefix, err)
		}
		c.Redis.LockTTL = ttl
	}
	if v, ok := lookup(EnvPrefix + "REDACT"); ok {
		c.Redact = splitList(v)
	}
	return nil
}

// Validate checks the values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Redis.LockTTL < 0 {
		return fmt.Errorf("redis.lock_ttl must not be negative")
	}
	if _, err := c.FieldSchema(); err != nil {
		return err
	}
	if _, err := c.Analyzer(); err != nil {
		return err
	}
	return nil
}

// Analyzer resolves the analysis preset and applies the single overrides.
func (c Config) Analyzer() (analysis.Analyzer, error) {
	a, ok := analysis.Preset(c.Analysis.Preset)
	if !ok {
		return analysis.Analyzer{}, fmt.Errorf("analysis.preset: unknown preset %q (want default or rpt)", c.Analysis.Preset)
	}
	if v := c.Analysis.GroupField; v != "" {
		a.GroupField = v
	}
	if v := c.Analysis.SalaryField; v != "" {
		a.SalaryField = v
	}
	if v := c.Analysis.VacancyField; v != "" {
		a.VacancyField = v
	}
	if v := c.Analysis.FactorPrefix; v != "" {
		a.Valuation.Prefix = v
	}
	if len(c.Analysis.Factors) > 0 {
		a.Valuation.Keys = c.Analysis.Factors
	}
	return a, nil
}

// FieldSchema parses Fields. It returns nil when no field is declared.
func (c Config) FieldSchema() (schema.Schema, error) {
	s, err := schema.Parse(c.Fields)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	return s, nil
}

// EncryptionKey reads the snapshot key from the variable named by EncryptionKeyEnv.
// The value is either 32 raw bytes or their standard base64 encoding.
// It returns nil when no variable is configured.
func (c Config) EncryptionKey(lookup func(string) (string, bool)) ([]byte, error) {
	if c.EncryptionKeyEnv == "" {
		return nil, nil
	}
	v, ok := lookup(c.EncryptionKeyEnv)
	if !ok || v == "" {
		return nil, fmt.Errorf("encryption key variable %s is not set", c.EncryptionKeyEnv)
	}
	if len(v) == 32 {
		return []byte(v), nil
	}
	key, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("encryption key %s: %w", c.EncryptionKeyEnv, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key %s must be 32 bytes, got %d", c.EncryptionKeyEnv, len(key))
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
