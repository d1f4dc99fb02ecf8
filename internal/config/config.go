package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/frocc/config.json"
	defaultWorkers    = 4
)

// Config holds user-editable settings for cube assembly.
type Config struct {
	Images     Images     `json:"images"`
	Cube       Cube       `json:"cube"`
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
}

// Images describes where the per-channel images land and how their
// filenames encode the channel number.
type Images struct {
	Dir           string `json:"dir"`
	Pattern       string `json:"pattern"`        // glob over filenames
	ChannelMarker string `json:"channel_marker"` // substring preceding the channel digits
}

// Cube configures the assembled outputs.
type Cube struct {
	OutputPath     string `json:"output_path"`     // empty: derived from the lowest channel file
	StatisticsPath string `json:"statistics_path"` // tab-separated statistics table
	ObjectName     string `json:"object_name"`     // OBJECT card written into the cube header
}

// Processing captures execution preferences.
type Processing struct {
	Workers         int `json:"workers"`
	WaitTimeoutSecs int `json:"wait_timeout_secs"` // cap on waiting for channel images to arrive
}

// Logging controls logging verbosity and format.
type Logging struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// Paths configures auxiliary locations.
type Paths struct {
	DatabasePath string `json:"database_path"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("FROCC_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Images: Images{
			Dir:           ".",
			Pattern:       "*image.fits",
			ChannelMarker: ".chan",
		},
		Cube: Cube{
			StatisticsPath: "cube.statistics.tab",
		},
		Processing: Processing{
			Workers:         defaultWorkers,
			WaitTimeoutSecs: 0,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Paths: Paths{
			DatabasePath: filepath.Join(os.TempDir(), "frocc.db"),
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
