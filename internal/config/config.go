// Package config provides application configuration management with
// support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Data       DataConfig
	Watch      WatchConfig
	OpenLibrary SourceConfig
	GoogleBooks SourceConfig
	AniList     SourceConfig
	MyAnimeList SourceConfig
	MangaDex    SourceConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage configuration.
type DataConfig struct {
	// BasePath is the parent of covers/, the settle cache, and the
	// reference SQLite store file.
	BasePath string
}

// WatchConfig holds filesystem-watcher configuration.
type WatchConfig struct {
	// Dir is the absolute path to the watched library root.
	Dir string
	// SettleDelay is how long a file must be unchanged before a
	// detection event fires (spec floor: 2s).
	SettleDelay time.Duration
}

// SourceConfig holds the per-external-source configuration block common
// to all five metadata clients.
type SourceConfig struct {
	BaseURL         string
	APIKey          string
	RateLimit       int           // tokens per window
	RateLimitWindow time.Duration // window duration
	SearchTimeout   time.Duration
	MaxRetries      int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for on-disk storage")
	watchDir := flag.String("watch-dir", "", "Path to the watched library root")
	settleDelay := flag.String("settle-delay", "", "File settle interval before detection (default: 2s)")

	googleBooksKey := flag.String("google-books-api-key", "", "Google Books API key")
	malClientID := flag.String("mal-client-id", "", "MyAnimeList client id")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_DIR", "./data"),
		},
		Watch: WatchConfig{
			Dir: getConfigValue(*watchDir, "WATCH_DIR", ""),
		},
		OpenLibrary: SourceConfig{
			BaseURL:         getConfigValue("", "OPENLIBRARY_BASE_URL", "https://openlibrary.org"),
			RateLimit:       getIntConfigValue("", "OPENLIBRARY_RATE_LIMIT", 100),
			RateLimitWindow: getDurationConfigValue("", "OPENLIBRARY_RATE_WINDOW", 5*time.Minute),
			SearchTimeout:   getDurationConfigValue("", "OPENLIBRARY_SEARCH_TIMEOUT", 10*time.Second),
			MaxRetries:      getIntConfigValue("", "OPENLIBRARY_MAX_RETRIES", 3),
		},
		GoogleBooks: SourceConfig{
			BaseURL:         getConfigValue("", "GOOGLE_BOOKS_BASE_URL", "https://www.googleapis.com/books/v1"),
			APIKey:          getConfigValue(*googleBooksKey, "GOOGLE_BOOKS_API_KEY", ""),
			RateLimit:       getIntConfigValue("", "GOOGLE_BOOKS_RATE_LIMIT", 100),
			RateLimitWindow: getDurationConfigValue("", "GOOGLE_BOOKS_RATE_WINDOW", time.Minute),
			SearchTimeout:   getDurationConfigValue("", "GOOGLE_BOOKS_SEARCH_TIMEOUT", 5*time.Second),
			MaxRetries:      getIntConfigValue("", "GOOGLE_BOOKS_MAX_RETRIES", 3),
		},
		AniList: SourceConfig{
			BaseURL:         getConfigValue("", "ANILIST_BASE_URL", "https://graphql.anilist.co"),
			RateLimit:       getIntConfigValue("", "ANILIST_RATE_LIMIT", 90),
			RateLimitWindow: getDurationConfigValue("", "ANILIST_RATE_WINDOW", time.Minute),
			SearchTimeout:   getDurationConfigValue("", "ANILIST_SEARCH_TIMEOUT", 10*time.Second),
			MaxRetries:      getIntConfigValue("", "ANILIST_MAX_RETRIES", 3),
		},
		MyAnimeList: SourceConfig{
			BaseURL:         getConfigValue("", "MAL_BASE_URL", "https://api.myanimelist.net/v2"),
			APIKey:          getConfigValue(*malClientID, "MAL_CLIENT_ID", ""),
			RateLimit:       getIntConfigValue("", "MAL_RATE_LIMIT", 60),
			RateLimitWindow: getDurationConfigValue("", "MAL_RATE_WINDOW", time.Minute),
			SearchTimeout:   getDurationConfigValue("", "MAL_SEARCH_TIMEOUT", 10*time.Second),
			MaxRetries:      getIntConfigValue("", "MAL_MAX_RETRIES", 3),
		},
		MangaDex: SourceConfig{
			BaseURL:         getConfigValue("", "MANGADEX_BASE_URL", "https://api.mangadex.org"),
			RateLimit:       getIntConfigValue("", "MANGADEX_RATE_LIMIT", 5),
			RateLimitWindow: getDurationConfigValue("", "MANGADEX_RATE_WINDOW", time.Second),
			SearchTimeout:   getDurationConfigValue("", "MANGADEX_SEARCH_TIMEOUT", 10*time.Second),
			MaxRetries:      getIntConfigValue("", "MANGADEX_MAX_RETRIES", 3),
		},
	}

	settleDelayStr := getConfigValue(*settleDelay, "WATCH_SETTLE_DELAY", "2s")
	settleDuration, err := time.ParseDuration(settleDelayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid settle delay %q: %w", settleDelayStr, err)
	}
	if settleDuration < 2*time.Second {
		settleDuration = 2 * time.Second
	}
	cfg.Watch.SettleDelay = settleDuration

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if err := cfg.expandWatchDir(); err != nil {
		return nil, fmt.Errorf("invalid watch dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	// WatchDir may be empty at startup (set later via an explicit Watch call);
	// the daemon refuses to start the watcher loop until it is non-empty.

	return nil
}

// expandPath expands ~ and makes the path absolute. An empty path
// returns defaultPath exactly as given, without expansion.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	expanded, err := expandPath(c.Data.BasePath, "./data")
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

func (c *Config) expandWatchDir() error {
	if c.Watch.Dir == "" {
		return nil
	}
	expanded, err := expandPath(c.Watch.Dir, "")
	if err != nil {
		return err
	}
	c.Watch.Dir = expanded
	return nil
}

func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) time.Duration {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}
	return d
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- config file path is operator-supplied, not attacker-controlled
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
