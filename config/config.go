package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Response variants served by the API.
const (
	VariantClassic  = "classic"
	VariantExtended = "extended"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Deployment struct {
		Dir          string `yaml:"dir"`
		ModelFile    string `yaml:"model_file"`
		FeaturesFile string `yaml:"features_file"`
		ClassesFile  string `yaml:"classes_file"`
		Watch        bool   `yaml:"watch"`
	} `yaml:"deployment"`
	API struct {
		Variant       string   `yaml:"variant"`
		BooleanFields []string `yaml:"boolean_fields"`
		CacheSize     *int     `yaml:"cache_size"`
	} `yaml:"api"`
	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads a YAML file. A missing file is not an error: defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 5000
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 20
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Deployment.Dir == "" {
		c.Deployment.Dir = "artifacts"
	}
	if c.Deployment.ModelFile == "" {
		c.Deployment.ModelFile = "model.json"
	}
	if c.Deployment.FeaturesFile == "" {
		c.Deployment.FeaturesFile = "feature_columns.txt"
	}
	if c.Deployment.ClassesFile == "" {
		c.Deployment.ClassesFile = "class_names.txt"
	}
	if c.API.Variant == "" {
		c.API.Variant = VariantExtended
	}
	if c.API.BooleanFields == nil {
		c.API.BooleanFields = []string{"fbs"}
	}
	if c.API.CacheSize == nil {
		size := 256
		c.API.CacheSize = &size
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
}

func (c *Config) applyEnv() error {
	if dir := os.Getenv("HEARTRISK_DEPLOYMENT_DIR"); dir != "" {
		c.Deployment.Dir = dir
	}
	if variant := os.Getenv("HEARTRISK_VARIANT"); variant != "" {
		c.API.Variant = variant
	}
	if port := os.Getenv("HEARTRISK_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid HEARTRISK_PORT %q: %w", port, err)
		}
		c.Http.Port = p
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Http.Port)
	}
	switch c.API.Variant {
	case VariantClassic, VariantExtended:
	default:
		return fmt.Errorf("unknown api variant %q", c.API.Variant)
	}
	if *c.API.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}
