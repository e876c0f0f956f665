// Package config handles loading and managing rivaldex configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the rivaldex service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"profile_source"`
	Images   ImagesConfig   `yaml:"images"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           string `yaml:"port"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-ingestion budget
}

// DatabaseConfig controls the Postgres connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SourceConfig controls the external profile source integration.
// An empty base URL means the integration is disabled.
type SourceConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// ImagesConfig selects and configures the image storage backend.
type ImagesConfig struct {
	Backend string         `yaml:"backend"` // "local", "s3", or "gcs"
	Local   LocalImagesCfg `yaml:"local"`
	S3      S3ImagesCfg    `yaml:"s3"`
	GCS     GCSImagesCfg   `yaml:"gcs"`
}

// LocalImagesCfg configures filesystem image storage.
type LocalImagesCfg struct {
	Dir        string `yaml:"dir"`
	PublicBase string `yaml:"public_base"`
}

// S3ImagesCfg configures S3 image storage.
type S3ImagesCfg struct {
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	PublicBase string `yaml:"public_base"`
}

// GCSImagesCfg configures Google Cloud Storage image storage.
type GCSImagesCfg struct {
	Bucket     string `yaml:"bucket"`
	PublicBase string `yaml:"public_base"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			TimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/rivaldex?sslmode=disable",
		},
		Images: ImagesConfig{
			Backend: "local",
			Local: LocalImagesCfg{
				Dir: "/tmp/rivaldex-images",
			},
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides config values from environment variables, so
// deployments can configure the daemon without a file.
func (c *Config) ApplyEnv() {
	setIfEnv(&c.Server.Port, "PORT")
	setIfEnv(&c.Server.APIKey, "RIVALDEX_API_KEY")
	setIfEnv(&c.Database.URL, "DATABASE_URL")
	setIfEnv(&c.Source.BaseURL, "PROFILE_SOURCE_URL")
	setIfEnv(&c.Source.APIKey, "PROFILE_SOURCE_API_KEY")
	setIfEnv(&c.Images.Backend, "IMAGE_BACKEND")
	setIfEnv(&c.Images.Local.Dir, "IMAGE_LOCAL_DIR")
	setIfEnv(&c.Images.Local.PublicBase, "IMAGE_PUBLIC_BASE")
	setIfEnv(&c.Images.S3.Bucket, "IMAGE_S3_BUCKET")
	setIfEnv(&c.Images.S3.Region, "IMAGE_S3_REGION")
	setIfEnv(&c.Images.S3.Endpoint, "IMAGE_S3_ENDPOINT")
	setIfEnv(&c.Images.S3.AccessKey, "IMAGE_S3_ACCESS_KEY")
	setIfEnv(&c.Images.S3.SecretKey, "IMAGE_S3_SECRET_KEY")
	setIfEnv(&c.Images.S3.PublicBase, "IMAGE_PUBLIC_BASE")
	setIfEnv(&c.Images.GCS.Bucket, "IMAGE_GCS_BUCKET")
	setIfEnv(&c.Images.GCS.PublicBase, "IMAGE_PUBLIC_BASE")
}

// Validate checks the parts of the config that cannot fail lazily.
func (c *Config) Validate() error {
	switch c.Images.Backend {
	case "local", "":
	case "s3":
		if c.Images.S3.Bucket == "" {
			return fmt.Errorf("images.s3.bucket is required for the s3 backend")
		}
	case "gcs":
		if c.Images.GCS.Bucket == "" {
			return fmt.Errorf("images.gcs.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown image backend %q", c.Images.Backend)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
