// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/medcompare-api/curation"
	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/recommendation"
	"github.com/giygas/medcompare-api/trust"
)

// Environment is the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short names and their long forms
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	SearchAPIURL    string
	VoteAPIURL      string
	UpstreamTimeout time.Duration
	VoteTimeout     time.Duration
	LookupCacheSize int
	LookupCacheTTL  time.Duration

	// Empty disables bearer authentication: every voter is anonymous
	JWTSecret string

	StoreTTL         time.Duration
	EvictionInterval time.Duration

	Trust      trust.Policy
	Thresholds recommendation.Thresholds
	Curation   curation.Policy // Comparison views only, stored entities stay keyed by identity
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		SearchAPIURL:    getEnvWithDefault("SEARCH_API_URL", "http://127.0.0.1:8001"),
		VoteAPIURL:      getEnvWithDefault("VOTE_API_URL", "http://127.0.0.1:8001"),
		UpstreamTimeout: getDurationEnvWithDefault("UPSTREAM_TIMEOUT", 10*time.Second),
		VoteTimeout:     getDurationEnvWithDefault("VOTE_TIMEOUT", 5*time.Second),
		LookupCacheSize: getIntEnvWithDefault("LOOKUP_CACHE_SIZE", 512),
		LookupCacheTTL:  getDurationEnvWithDefault("LOOKUP_CACHE_TTL", 5*time.Minute),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StoreTTL:         getDurationEnvWithDefault("STORE_TTL", 30*time.Minute),
		EvictionInterval: getDurationEnvWithDefault("EVICTION_INTERVAL", time.Minute),

		Trust: trust.Policy{
			CredentialWeights: map[entities.Credential]float64{
				entities.CredentialSpecialist: getFloatEnvWithDefault("CREDENTIAL_WEIGHT_SPECIALIST", 1.5),
				entities.CredentialGeneral:    getFloatEnvWithDefault("CREDENTIAL_WEIGHT_GENERAL", 1.0),
				entities.CredentialResident:   getFloatEnvWithDefault("CREDENTIAL_WEIGHT_RESIDENT", 0.7),
			},
			Clamp: getBoolEnvWithDefault("TRUST_SCORE_CLAMP", false),
		},
		Thresholds: recommendation.Thresholds{
			High: getFloatEnvWithDefault("BAND_THRESHOLD_HIGH", 75),
			Mid:  getFloatEnvWithDefault("BAND_THRESHOLD_MID", 50),
			Low:  getFloatEnvWithDefault("BAND_THRESHOLD_LOW", 25),
		},
		Curation: curation.Policy{
			Best:   curation.BestSelection(strings.ToLower(getEnvWithDefault("BEST_SELECTION", string(curation.BestCheapest)))),
			Dedupe: curation.DedupeKey(strings.ToLower(getEnvWithDefault("DEDUPE_KEY", string(curation.DedupeIdentity)))),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateUpstreamURL(cfg.SearchAPIURL); err != nil {
		return fmt.Errorf("invalid SEARCH_API_URL: %w", err)
	}

	if err := validateUpstreamURL(cfg.VoteAPIURL); err != nil {
		return fmt.Errorf("invalid VOTE_API_URL: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"UPSTREAM_TIMEOUT":  cfg.UpstreamTimeout,
		"VOTE_TIMEOUT":      cfg.VoteTimeout,
		"LOOKUP_CACHE_TTL":  cfg.LookupCacheTTL,
		"STORE_TTL":         cfg.StoreTTL,
		"EVICTION_INTERVAL": cfg.EvictionInterval,
	} {
		if err := validateDuration(d, name); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if cfg.LookupCacheSize <= 0 {
		return fmt.Errorf("invalid LOOKUP_CACHE_SIZE: must be positive, got: %d", cfg.LookupCacheSize)
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("invalid JWT_SECRET: must be at least 32 bytes")
	}

	if err := validateCredentialWeights(cfg.Trust.CredentialWeights); err != nil {
		return fmt.Errorf("invalid CREDENTIAL_WEIGHT: %w", err)
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid BAND_THRESHOLD: %w", err)
	}

	if err := cfg.Curation.Validate(); err != nil {
		return fmt.Errorf("invalid curation policy: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateUpstreamURL requires an absolute http(s) URL
func validateUpstreamURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("URL must be valid: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must include a host, got: %s", raw)
	}

	return nil
}

func validateDuration(d time.Duration, configName string) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got: %s", configName, d)
	}

	if d > 24*time.Hour {
		return fmt.Errorf("%s is too large (max 24h), got: %s", configName, d)
	}

	return nil
}

func validateCredentialWeights(weights map[entities.Credential]float64) error {
	for _, c := range entities.Credentials {
		w, ok := weights[c]
		if !ok {
			return fmt.Errorf("missing weight for %s", c)
		}
		if w <= 0 || w > 10 {
			return fmt.Errorf("weight for %s must be in (0, 10], got: %v", c, w)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("90s") or a bare number of seconds
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"SEARCH_API_URL",
		"VOTE_API_URL",
		"UPSTREAM_TIMEOUT",
		"VOTE_TIMEOUT",
		"LOOKUP_CACHE_SIZE",
		"LOOKUP_CACHE_TTL",
		"JWT_SECRET",
		"STORE_TTL",
		"EVICTION_INTERVAL",
		"CREDENTIAL_WEIGHT_SPECIALIST",
		"CREDENTIAL_WEIGHT_GENERAL",
		"CREDENTIAL_WEIGHT_RESIDENT",
		"BAND_THRESHOLD_HIGH",
		"BAND_THRESHOLD_MID",
		"BAND_THRESHOLD_LOW",
		"TRUST_SCORE_CLAMP",
		"BEST_SELECTION",
		"DEDUPE_KEY",
	}
}
