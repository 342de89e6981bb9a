// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads snapbite settings from defaults, a TOML file, .env
// files and environment variables, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is read when no explicit config file is given.
const DefaultFile = "snapbite.toml"

// Duration is a time.Duration written as "15s" in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete snapbite configuration.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Vision    VisionConfig    `toml:"vision"`
	Geocoding GeocodingConfig `toml:"geocoding"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	Location  LocationConfig  `toml:"location"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver" validate:"omitempty,oneof=duckdb sqlite"` // empty: guessed from the path
	Path   string `toml:"path" validate:"required"`
}

type VisionConfig struct {
	Provider        string   `toml:"provider" validate:"oneof=openai anthropic gemini none"`
	Model           string   `toml:"model"`
	BaseURL         string   `toml:"base_url" validate:"omitempty,url"`
	OpenAIAPIKey    string   `toml:"openai_api_key"`
	AnthropicAPIKey string   `toml:"anthropic_api_key"`
	GeminiAPIKey    string   `toml:"gemini_api_key"`
	MaxTokens       int      `toml:"max_tokens" validate:"gte=0"`
	Timeout         Duration `toml:"timeout" validate:"gte=0"`
}

// APIKey returns the key of the selected provider.
func (v VisionConfig) APIKey() string {
	switch v.Provider {
	case "openai":
		return v.OpenAIAPIKey
	case "anthropic":
		return v.AnthropicAPIKey
	case "gemini":
		return v.GeminiAPIKey
	default:
		return ""
	}
}

type GeocodingConfig struct {
	GoogleAPIKey     string   `toml:"google_api_key"`
	GoogleBaseURL    string   `toml:"google_base_url" validate:"omitempty,url"`
	DiscoverKey      bool     `toml:"discover_key"` // look the Google key up through ADC when unset
	KeyDisplayName   string   `toml:"key_display_name"`
	NominatimBaseURL string   `toml:"nominatim_base_url" validate:"omitempty,url"`
	UserAgent        string   `toml:"user_agent" validate:"required"`
	Delay            Duration `toml:"delay"`
	Timeout          Duration `toml:"timeout" validate:"gte=0"`
	CacheDir         string   `toml:"cache_dir"`
	CacheTTL         Duration `toml:"cache_ttl" validate:"gte=0"`
	DefaultLatitude  float64  `toml:"default_latitude" validate:"gte=-90,lte=90"`
	DefaultLongitude float64  `toml:"default_longitude" validate:"gte=-180,lte=180"`
	Jitter           float64  `toml:"jitter" validate:"gte=0,lte=1"`
}

type ServerConfig struct {
	Addr              string `toml:"addr" validate:"required"`
	RegeocodeSchedule string `toml:"regeocode_schedule"`
}

type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=trace debug info warn error"`
}

// LocationConfig is the static position used by nearby and alerts when the
// caller does not give one.
type LocationConfig struct {
	Latitude  *float64 `toml:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude *float64 `toml:"longitude" validate:"omitnil,gte=-180,lte=180"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "snapbite.duckdb",
		},
		Vision: VisionConfig{
			Provider:  "openai",
			MaxTokens: 500,
			Timeout:   Duration(30 * time.Second),
		},
		Geocoding: GeocodingConfig{
			DiscoverKey:      false,
			KeyDisplayName:   "SnapBite Geocoding Key",
			UserAgent:        "snapbite/1.0 (+https://github.com/snapbite/snapbite)",
			Delay:            Duration(time.Second),
			Timeout:          Duration(15 * time.Second),
			CacheTTL:         Duration(30 * 24 * time.Hour),
			DefaultLatitude:  37.7749,
			DefaultLongitude: -122.4194,
			Jitter:           0.05,
		},
		Server: ServerConfig{
			Addr:              "localhost:8080",
			RegeocodeSchedule: "@every 6h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A missing file is only an error when path
// was given explicitly; envFiles that do not exist are skipped.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the user
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"SNAPBITE_DB", &cfg.Database.Path},
		{"SNAPBITE_DB_DRIVER", &cfg.Database.Driver},
		{"SNAPBITE_VISION_PROVIDER", &cfg.Vision.Provider},
		{"SNAPBITE_VISION_MODEL", &cfg.Vision.Model},
		{"OPENAI_API_KEY", &cfg.Vision.OpenAIAPIKey},
		{"ANTHROPIC_API_KEY", &cfg.Vision.AnthropicAPIKey},
		{"GEMINI_API_KEY", &cfg.Vision.GeminiAPIKey},
		{"GOOGLE_MAPS_API_KEY", &cfg.Geocoding.GoogleAPIKey},
		{"SNAPBITE_NOMINATIM_URL", &cfg.Geocoding.NominatimBaseURL},
		{"SNAPBITE_USER_AGENT", &cfg.Geocoding.UserAgent},
		{"SNAPBITE_GEOCODE_CACHE", &cfg.Geocoding.CacheDir},
		{"SNAPBITE_ADDR", &cfg.Server.Addr},
		{"SNAPBITE_LOG_LEVEL", &cfg.Logging.Level},
	}

	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	floats := []struct {
		env string
		dst **float64
	}{
		{"SNAPBITE_LATITUDE", &cfg.Location.Latitude},
		{"SNAPBITE_LONGITUDE", &cfg.Location.Longitude},
	}

	for _, f := range floats {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}

		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", f.env, v, err)
		}

		*f.dst = &parsed
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		return errors.New("invalid configuration: location needs both latitude and longitude")
	}

	return nil
}
