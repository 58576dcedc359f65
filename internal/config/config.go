// Package config loads chartfeed settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nupi-ai/chartfeed/internal/constants"
	"github.com/nupi-ai/chartfeed/internal/modes"
	"github.com/nupi-ai/chartfeed/internal/stream"
	"github.com/nupi-ai/chartfeed/internal/transport"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvEndpoint  = "CHARTFEED_ENDPOINT"
	EnvInterval  = "CHARTFEED_INTERVAL"
	EnvMode      = "CHARTFEED_MODE"
	EnvChunkSize = "CHARTFEED_CHUNK_SIZE"
)

// Config holds the settings for a streaming run.
type Config struct {
	Endpoint    string
	Path        string
	Interval    time.Duration
	Mode        string
	ChunkSize   int
	MetricsAddr string
}

// fileConfig mirrors the YAML layout. Interval is kept as text so that
// values like "500ms" read naturally.
type fileConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Path        string `yaml:"path"`
	Interval    string `yaml:"interval"`
	Mode        string `yaml:"mode"`
	ChunkSize   int    `yaml:"chunk_size"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Endpoint: constants.DefaultEndpoint,
		Path:     constants.DefaultPath,
		Interval: constants.StreamRequestInterval,
		Mode:     string(modes.Default),
	}
}

// Load reads path on top of Default and then applies environment overrides.
// An empty path reads the default config file if one exists; an explicit path
// must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = GetPaths().Config
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.merge(data); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
		log.Printf("[Config] loaded %s", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if fc.Endpoint != "" {
		c.Endpoint = fc.Endpoint
	}
	if fc.Path != "" {
		c.Path = fc.Path
	}
	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		c.Interval = d
	}
	if fc.Mode != "" {
		c.Mode = fc.Mode
	}
	if fc.ChunkSize != 0 {
		c.ChunkSize = fc.ChunkSize
	}
	if fc.MetricsAddr != "" {
		c.MetricsAddr = fc.MetricsAddr
	}
	return nil
}

// ApplyEnv overrides fields from the CHARTFEED_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvEndpoint); ok && strings.TrimSpace(v) != "" {
		c.Endpoint = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvInterval); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvInterval, err)
		}
		c.Interval = d
	}
	if v, ok := lookup(EnvMode); ok && strings.TrimSpace(v) != "" {
		c.Mode = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvChunkSize); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvChunkSize, err)
		}
		c.ChunkSize = n
	}
	return nil
}

// Validate checks that the settings describe a usable stream.
func (c Config) Validate() error {
	if _, err := transport.EndpointURL(c.Endpoint, c.Path); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be positive, got %s", c.Interval)
	}
	mode, err := modes.Lookup(c.Mode)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ChunkSize != 0 && !mode.Allows(c.ChunkSize) {
		return fmt.Errorf("config: %w: %d is not offered by %s (allowed %v)",
			stream.ErrInvalidChunkSize, c.ChunkSize, mode.Name, mode.ChunkSizes())
	}
	return nil
}

// StreamConfig converts c into controller settings.
func (c Config) StreamConfig() stream.Config {
	return stream.Config{
		Endpoint:         c.Endpoint,
		Path:             c.Path,
		Interval:         c.Interval,
		DefaultMode:      c.Mode,
		DefaultChunkSize: c.ChunkSize,
	}
}
