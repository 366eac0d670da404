// Package config loads service configuration from config.yaml and TB_
// environment variables, with env taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	OpenAI  OpenAIConfig  `koanf:"openai"`
	Storage StorageConfig `koanf:"storage"`
	Spec    SpecConfig    `koanf:"spec"`
	Pricing PricingConfig `koanf:"pricing"`
	Blend   BlendConfig   `koanf:"blend"`
}

// BlendConfig points at the production ordering API the blend creation tool
// posts finished formulations to.
type BlendConfig struct {
	APIURL string `koanf:"api_url"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// SpecConfig locates the prompt and catalog files the agents are built from.
type SpecConfig struct {
	Dir                      string `koanf:"dir"`
	InstructionsFile         string `koanf:"instructions_file"`
	PractitionerInstructions string `koanf:"practitioner_instructions_file"`
	IngredientsFile          string `koanf:"ingredients_file"`
	BaseMixesFile            string `koanf:"base_mixes_file"`
}

type PricingConfig struct {
	USDToZAR float64 `koanf:"usd_to_zar"`
}

// InstructionsPath returns the absolute consumer instructions path.
func (s SpecConfig) InstructionsPath() string {
	return filepath.Join(s.Dir, s.InstructionsFile)
}

// PractitionerInstructionsPath returns the practitioner instructions path.
func (s SpecConfig) PractitionerInstructionsPath() string {
	return filepath.Join(s.Dir, s.PractitionerInstructions)
}

// IngredientsPath returns the ingredients database path.
func (s SpecConfig) IngredientsPath() string {
	return filepath.Join(s.Dir, s.IngredientsFile)
}

// BaseMixesPath returns the base mixes database path.
func (s SpecConfig) BaseMixesPath() string {
	return filepath.Join(s.Dir, s.BaseMixesFile)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the given YAML file (missing file is fine)
// and overlays TB_ environment variables. TB_SERVER__PORT=9000 sets
// server.port.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("TB_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "TB_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                         8000,
		"storage.type":                        "memory",
		"storage.sqlite.path":                 "consultant.db",
		"spec.dir":                            "spec",
		"spec.instructions_file":              "instructions.txt",
		"spec.practitioner_instructions_file": "practitioner-instructions.txt",
		"spec.ingredients_file":               "Ingredients3.json",
		"spec.base_mixes_file":                "BaseAddMixes2.json",
		"pricing.usd_to_zar":                  17.50,
		"blend.api_url":                       "https://api.tailorblend.co.za/api/v1/blend/aicreateblend",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set TB_OPENAI__API_KEY or OPENAI_API_KEY)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Type {
	case "memory", "sqlite", "none":
	default:
		return fmt.Errorf("storage.type %q must be memory, sqlite, or none", c.Storage.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
