// Package config handles JSON-backed emulator configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all user-adjustable emulator settings.
type Config struct {
	Window WindowConfig `json:"window"`
	Debug  DebugConfig  `json:"debug"`
	Paths  PathsConfig  `json:"paths"`

	configPath string
}

// WindowConfig controls the host display window.
type WindowConfig struct {
	Scale      int  `json:"scale"` // integer multiple of the 256x240 NES resolution
	Fullscreen bool `json:"fullscreen"`
	Resizable  bool `json:"resizable"`
}

// DebugConfig controls logging and the interactive debugger.
type DebugConfig struct {
	EnableREPL bool   `json:"enable_repl"`
	LogLevel   string `json:"log_level"` // "INFO", "WARNING", "ERROR"; stored only, the nescore binary does not apply it to glog
}

// PathsConfig holds filesystem locations the emulator reads or writes.
type PathsConfig struct {
	SaveData string `json:"save_data"`
}

// New returns a Config populated with sensible defaults.
func New() *Config {
	return &Config{
		Window: WindowConfig{
			Scale:     2,
			Resizable: true,
		},
		Debug: DebugConfig{
			LogLevel: "INFO",
		},
		Paths: PathsConfig{
			SaveData: "./saves",
		},
	}
}

// Load reads a JSON config file, writing out the defaults first if it
// doesn't yet exist.
func Load(path string) (*Config, error) {
	c := New()
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := c.Save(); err != nil {
			return nil, err
		}
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	c.configPath = path

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Window.Scale <= 0 {
		c.Window.Scale = 2
	}
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "INFO"
	}
	if c.Paths.SaveData == "" {
		c.Paths.SaveData = "./saves"
	}
}

// Save writes the config back to the path it was loaded from or last
// saved to. It returns an error if no path has been set yet; use
// SaveTo for a first save.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config: no path set; use SaveTo")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the config as indented JSON to path, creating parent
// directories as needed.
func (c *Config) SaveTo(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	c.configPath = path
	return nil
}

// WindowSize returns the host window resolution for the configured
// scale factor.
func (c *Config) WindowSize() (int, int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}
