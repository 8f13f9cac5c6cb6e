package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the service configuration. It is loaded once at startup
// and never mutated afterwards; every component receives it by value or
// reads the fields it needs at construction time.
type Config struct {
	ListenAddr        string `json:"listenAddr"`        // HTTP listen address
	PublicBaseURL     string `json:"publicBaseUrl"`     // Base URL used in download links
	GeneratedDir      string `json:"generatedDir"`      // Directory for generated documents
	FilesDB           string `json:"filesDb"`           // SQLite registry path
	LogDir            string `json:"logDir"`            // Directory for log files
	FetchTimeoutSecs  int    `json:"fetchTimeoutSecs"`  // Per-request image fetch timeout
	FetchMaxBytes     int64  `json:"fetchMaxBytes"`     // Response body size cap
	AllowPrivateHosts bool   `json:"allowPrivateHosts"` // Permit fetching loopback/private addresses
	RetentionHours    int    `json:"retentionHours"`    // 0 keeps generated files forever
	ThemeRegistryURL  string `json:"themeRegistryUrl"`  // Optional theme palette registry, fetched at startup
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset.
func Load() Config {
	return Config{
		ListenAddr:        envString("LISTEN_ADDR", ":8000"),
		PublicBaseURL:     strings.TrimRight(envString("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		GeneratedDir:      envString("GENERATED_DIR", "generated"),
		FilesDB:           envString("FILES_DB", "deckgen.db"),
		LogDir:            envString("LOG_DIR", "logs"),
		FetchTimeoutSecs:  envInt("FETCH_TIMEOUT_SECONDS", 20),
		FetchMaxBytes:     envInt64("FETCH_MAX_BYTES", 20<<20),
		AllowPrivateHosts: envBool("DECKGEN_ALLOW_PRIVATE_HOSTS", false),
		RetentionHours:    envInt("RETENTION_HOURS", 0),
		ThemeRegistryURL:  envString("THEME_REGISTRY_URL", ""),
	}
}

// Validate checks the loaded configuration for values that would make
// the service unusable at runtime.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.FetchTimeoutSecs <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %d", c.FetchTimeoutSecs)
	}
	if c.FetchMaxBytes <= 0 {
		return fmt.Errorf("fetch size cap must be positive, got %d", c.FetchMaxBytes)
	}
	if c.RetentionHours < 0 {
		return fmt.Errorf("retention hours must not be negative, got %d", c.RetentionHours)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
