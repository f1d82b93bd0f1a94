// Package config loads objgate's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/rules"
	"github.com/roach88/objgate/internal/store"
)

// ID strategies.
const (
	IDStrategyUUIDv7 = "uuidv7"
	IDStrategyULID   = "ulid"
)

// Driver kinds.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// Config is the top-level configuration document.
type Config struct {
	IDField     string `yaml:"id_field"`
	IDStrategy  string `yaml:"id_strategy"`
	Strict      bool   `yaml:"strict"`
	StrictApply bool   `yaml:"strict_apply"`
	FieldPolicy string `yaml:"field_policy"`
	StampField  string `yaml:"stamp_field"`
	Log         Log    `yaml:"log"`

	// Models is a directory of CUE model definitions.
	Models    string `yaml:"models"`
	OpenTypes bool   `yaml:"open_types"`

	// Policy is a YAML rule policy file.
	Policy string `yaml:"policy"`

	Auth       Auth           `yaml:"auth"`
	Drivers    []DriverConfig `yaml:"drivers"`
	LogDrivers []DriverConfig `yaml:"log_drivers"`
}

// Log configures the audit log.
type Log struct {
	Type         string `yaml:"type"`
	DefaultLimit int    `yaml:"default_limit"`
}

// Auth configures caller identity.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// DriverConfig declares one storage driver.
type DriverConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Authority string `yaml:"authority"`

	// Path is the database file for sqlite drivers.
	Path string `yaml:"path,omitempty"`
}

// Default returns the configuration used when no file is given: one memory
// data driver and one memory log driver.
func Default() *Config {
	return &Config{
		IDField:     ir.DefaultIDField,
		IDStrategy:  IDStrategyUUIDv7,
		FieldPolicy: string(rules.FieldStrict),
		StampField:  "updatedAt",
		Log: Log{
			Type:         store.DefaultLogType,
			DefaultLimit: store.DefaultLogLimit,
		},
		OpenTypes: true,
		Drivers: []DriverConfig{
			{Name: "primary", Kind: KindMemory, Authority: "get,query,search"},
		},
		LogDrivers: []DriverConfig{
			{Name: "audit", Kind: KindMemory, Authority: "query"},
		},
	}
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.IDField == "" {
		return errors.New("id_field must not be empty")
	}
	switch c.IDStrategy {
	case IDStrategyUUIDv7, IDStrategyULID:
	default:
		return fmt.Errorf("id_strategy: unknown strategy %q", c.IDStrategy)
	}
	if _, err := rules.ParseFieldPolicy(c.FieldPolicy); err != nil {
		return fmt.Errorf("field_policy: %w", err)
	}
	if c.Log.Type == "" {
		return errors.New("log.type must not be empty")
	}
	if c.Log.DefaultLimit < 0 || c.Log.DefaultLimit > store.MaxLogLimit {
		return fmt.Errorf("log.default_limit must be between 0 and %d", store.MaxLogLimit)
	}
	if len(c.Drivers) == 0 {
		return errors.New("at least one data driver is required")
	}
	if err := validateDrivers("drivers", c.Drivers); err != nil {
		return err
	}
	return validateDrivers("log_drivers", c.LogDrivers)
}

func validateDrivers(section string, list []DriverConfig) error {
	seen := make(map[string]bool, len(list))
	for i, d := range list {
		if d.Name == "" {
			return fmt.Errorf("%s[%d]: name is required", section, i)
		}
		if seen[d.Name] {
			return fmt.Errorf("%s[%d]: duplicate name %q", section, i, d.Name)
		}
		seen[d.Name] = true

		switch d.Kind {
		case KindMemory:
		case KindSQLite:
			if d.Path == "" {
				return fmt.Errorf("%s[%d]: sqlite driver %q needs a path", section, i, d.Name)
			}
		default:
			return fmt.Errorf("%s[%d]: unknown kind %q", section, i, d.Kind)
		}
		if _, err := driver.ParseAuthority(d.Authority); err != nil {
			return fmt.Errorf("%s[%d]: %w", section, i, err)
		}
	}
	return nil
}
