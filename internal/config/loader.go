package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration for the timebox service.
type Config struct {
	HTTPPort   int
	SQLiteDSN  string
	SessionTTL time.Duration

	// BaseURL is the externally reachable address used to build the Outlook
	// webhook notification URL.
	BaseURL string

	Outlook OutlookConfig
}

// OutlookConfig holds the Microsoft identity platform application settings.
// All three values must be present for the integration to be enabled.
type OutlookConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether the Outlook integration is fully configured.
func (o OutlookConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.RedirectURL != ""
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; missing and malformed entries are
// aggregated so operators see every problem at once. Configuration is read
// exactly once at process start.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLiteDSN:  "file:timebox.db?_foreign_keys=on",
		SessionTTL: 24 * time.Hour,
		BaseURL:    "http://localhost:8080",
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("TIMEBOX_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TIMEBOX_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("TIMEBOX_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("TIMEBOX_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "TIMEBOX_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if base := strings.TrimSpace(os.Getenv("TIMEBOX_BASE_URL")); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}

	cfg.Outlook = OutlookConfig{
		ClientID:     strings.TrimSpace(os.Getenv("TIMEBOX_OUTLOOK_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("TIMEBOX_OUTLOOK_CLIENT_SECRET")),
		RedirectURL:  strings.TrimSpace(os.Getenv("TIMEBOX_OUTLOOK_REDIRECT_URL")),
	}

	partial := cfg.Outlook != (OutlookConfig{}) && !cfg.Outlook.Enabled()
	if partial {
		invalid = append(invalid, "TIMEBOX_OUTLOOK_CLIENT_ID/TIMEBOX_OUTLOOK_CLIENT_SECRET/TIMEBOX_OUTLOOK_REDIRECT_URL")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment configuration: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
