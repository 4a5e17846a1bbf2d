package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the debug log agent.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Optional browser launch
	LaunchBrowser bool
	BrowserPath   string
	StartURL      string
	ProfileDir    string
	Headless      bool

	// Tab matching and behavior
	TabURLFilter   string
	ReloadOnAttach bool
	TapConfigPath  string

	// HTTP API and logging
	BindAddr string
	LogLevel string
	LogFile  string

	// History and notification
	HistorySize  int
	RedisURL     string
	NTFYEndpoint string

	// Archives
	DataDir        string
	ArchiveFrames  bool
	ArchiveEntries bool
	MaxFrameBytes  int
	MaxFileSizeMB  int
	BufferSize     int
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:     getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		LaunchBrowser:  getEnvBoolOrDefault("DEVLOG_LAUNCH_BROWSER", false),
		BrowserPath:    getEnvOrDefault("DEVLOG_BROWSER_PATH", ""),
		StartURL:       getEnvOrDefault("DEVLOG_START_URL", ""),
		ProfileDir:     getEnvOrDefault("DEVLOG_PROFILE_DIR", "./browser_profile"),
		Headless:       getEnvBoolOrDefault("DEVLOG_HEADLESS", false),
		TabURLFilter:   getEnvOrDefault("DEVLOG_TAB_URL_FILTER", ""),
		ReloadOnAttach: getEnvBoolOrDefault("DEVLOG_RELOAD_ON_ATTACH", false),
		TapConfigPath:  getEnvOrDefault("DEVLOG_TAP_CONFIG", ""),
		BindAddr:       getEnvOrDefault("DEVLOG_BIND_ADDR", "127.0.0.1:8190"),
		LogLevel:       strings.ToLower(getEnvOrDefault("DEVLOG_LOG_LEVEL", "info")),
		LogFile:        getEnvOrDefault("DEVLOG_LOG_FILE", "logs/devlog_agent.log"),
		HistorySize:    getEnvIntOrDefault("DEVLOG_HISTORY_SIZE", 100),
		RedisURL:       getEnvOrDefault("DEVLOG_REDIS_URL", ""),
		NTFYEndpoint:   getEnvOrDefault("DEVLOG_NTFY_ENDPOINT", ""),
		DataDir:        getEnvOrDefault("DEVLOG_DATA_DIR", "./devlog_data"),
		ArchiveFrames:  getEnvBoolOrDefault("DEVLOG_ARCHIVE_FRAMES", false),
		ArchiveEntries: getEnvBoolOrDefault("DEVLOG_ARCHIVE_ENTRIES", true),
		MaxFrameBytes:  getEnvIntOrDefault("DEVLOG_MAX_FRAME_BYTES", 4*1024*1024),
		MaxFileSizeMB:  getEnvIntOrDefault("DEVLOG_MAX_FILE_SIZE_MB", 100),
		BufferSize:     getEnvIntOrDefault("DEVLOG_BUFFER_SIZE", 1000),
	}
	if cfg.HistorySize < 1 {
		return nil, fmt.Errorf("DEVLOG_HISTORY_SIZE must be positive, got %d", cfg.HistorySize)
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}

	return cfg, nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by chromedp remote allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
