// Package config provides the optional YAML configuration file surface.
// Command-line flags take precedence over file values; the file only fills
// in what the caller left at defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration file layout.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
}

// AnalysisConfig mirrors the analysis defaults of the run command.
type AnalysisConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FPS       float64 `yaml:"fps"`
	Threshold float64 `yaml:"threshold"`
	BlockSize int     `yaml:"block_size"`
	Vectorize bool    `yaml:"vectorize"`
	Parallel  int     `yaml:"parallel"`
	MaxFrames int     `yaml:"max_frames"`
	Window    int     `yaml:"window"`
	MaxSave   int     `yaml:"max_save"`
	OutDir    string  `yaml:"out_dir"`
}

// ServerConfig holds the serve command's settings.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
}

// Default returns a Config with the documented default values.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			Threshold: 2.0,
			BlockSize: 8192,
			Vectorize: true,
			MaxSave:   50,
			OutDir:    "keyframes",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			DataDir: "./data",
		},
	}
}

// Load reads path over the defaults. Unknown fields are rejected so a typo
// in a config file fails loudly instead of being silently ignored.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Analysis.Threshold < 0 {
		return fmt.Errorf("invalid config: threshold cannot be negative")
	}
	if c.Analysis.BlockSize <= 0 {
		return fmt.Errorf("invalid config: block_size must be positive")
	}
	if c.Analysis.Parallel < 0 {
		return fmt.Errorf("invalid config: parallel cannot be negative")
	}
	if c.Analysis.MaxFrames < 0 {
		return fmt.Errorf("invalid config: max_frames cannot be negative")
	}
	return nil
}
