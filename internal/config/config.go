// Package config holds the runtime settings, loaded from environment
// variables (optionally seeded from a .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds service, cache, and scheduler settings.
type Config struct {
	// ServiceURL is the channel index document of the guide service.
	// It doubles as the service identity recorded in bookmark exports.
	ServiceURL string

	// ServiceName is a human label for log and CLI output.
	ServiceName string

	// CacheDB is the path of the SQLite document cache.
	CacheDB string

	// BookmarksFile is where the bookmark and tick set is persisted.
	BookmarksFile string

	// RefreshAge is how old a cached day document may be before a
	// network refresh is considered.
	RefreshAge time.Duration

	// LookaheadDays is how many days past the displayed day are
	// fetched at background priority.
	LookaheadDays int

	// FetchGap is the minimum pause between guide requests, per the
	// service's serial-access policy.
	FetchGap time.Duration

	// Listen is the address for the serve command's HTTP endpoint
	// (health and metrics).
	Listen string

	// UserAgent overrides the default descriptive agent string.
	UserAgent string

	// ConvertTimezones makes programme timestamps honour their wire
	// offset instead of being taken as literal local clock times.
	ConvertTimezones bool

	// HiddenChannels lists channel ids to hide, comma separated in the
	// environment.
	HiddenChannels []string
}

// FromEnv reads the configuration from TVMARK_* environment variables.
func FromEnv() *Config {
	return &Config{
		ServiceURL:       os.Getenv("TVMARK_SERVICE_URL"),
		ServiceName:      getEnv("TVMARK_SERVICE_NAME", "guide service"),
		CacheDB:          getEnv("TVMARK_CACHE_DB", "./guide-cache.db"),
		BookmarksFile:    getEnv("TVMARK_BOOKMARKS_FILE", "./bookmarks.xml"),
		RefreshAge:       getEnvDuration("TVMARK_REFRESH_AGE", 24*time.Hour),
		LookaheadDays:    getEnvInt("TVMARK_LOOKAHEAD_DAYS", 5),
		FetchGap:         getEnvDuration("TVMARK_FETCH_GAP", time.Second),
		Listen:           getEnv("TVMARK_LISTEN", ":9480"),
		UserAgent:        os.Getenv("TVMARK_USER_AGENT"),
		ConvertTimezones: getEnvBool("TVMARK_CONVERT_TIMEZONES", false),
		HiddenChannels:   splitList(os.Getenv("TVMARK_HIDDEN_CHANNELS")),
	}
}

// Validate reports the first missing or nonsensical setting.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("config: TVMARK_SERVICE_URL is required")
	}
	if c.LookaheadDays < 0 {
		return fmt.Errorf("config: lookahead days must not be negative")
	}
	if c.FetchGap < 0 {
		return fmt.Errorf("config: fetch gap must not be negative")
	}
	// The serve command runs its refresh ticker at this interval.
	if c.RefreshAge <= 0 {
		return fmt.Errorf("config: refresh age must be positive")
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are taken as hours, matching how refresh ages
		// were configured historically.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Hour
		}
	}
	return defaultVal
}
