package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tap selects the WebSocket connections whose frames are decoded.
type Tap struct {
	Name       string `yaml:"name"`
	URLPattern string `yaml:"url_pattern"`
}

// TapConfig is the top-level YAML tap configuration.
type TapConfig struct {
	Taps []Tap `yaml:"taps"`
}

// DefaultTapConfig matches every WebSocket connection.
func DefaultTapConfig() *TapConfig {
	return &TapConfig{Taps: []Tap{{Name: "all", URLPattern: "*"}}}
}

// LoadTapConfig reads and validates a tap YAML config file. An empty path
// yields DefaultTapConfig.
func LoadTapConfig(path string) (*TapConfig, error) {
	if path == "" {
		return DefaultTapConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tap config: %w", err)
	}
	var cfg TapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("tap config: %w", err)
	}
	if len(cfg.Taps) == 0 {
		return nil, fmt.Errorf("tap config: at least one tap is required")
	}
	for i, t := range cfg.Taps {
		if t.Name == "" {
			return nil, fmt.Errorf("tap config: taps[%d] missing name", i)
		}
		if t.URLPattern == "" {
			return nil, fmt.Errorf("tap config: taps[%d] (%s) missing url_pattern", i, t.Name)
		}
	}
	return &cfg, nil
}

// Match returns the first tap whose pattern matches url. The pattern "*"
// matches everything; other patterns match as substrings.
func (c *TapConfig) Match(url string) (Tap, bool) {
	for _, t := range c.Taps {
		if t.URLPattern == "*" || strings.Contains(url, t.URLPattern) {
			return t, true
		}
	}
	return Tap{}, false
}
