package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sjsage522/specialsworker/pkg/errors"
)

const (
	// DefaultPageDelay is the politeness pause between listing pages
	DefaultPageDelay = 750 * time.Millisecond
	// DefaultRetryDelay is the pause between fetch attempts after a transient failure
	DefaultRetryDelay = 750 * time.Millisecond
	// DefaultMaxPageNumber is the page ceiling of one crawl
	DefaultMaxPageNumber = 100
)

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	SiteURL        string
	PageDelay      time.Duration
	RetryDelay     time.Duration
	MaxPageNumber  int
	RequestTimeout time.Duration
	ProxyURL       string
	Debug          bool
	ConfigFile     string

	// Schedule is a cron expression; empty runs a single crawl
	Schedule string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Environment
	Environment string
}

// fileOptions mirrors the options file. Pointers tell missing keys apart from zero values.
type fileOptions struct {
	Timeout       *Duration `yaml:"timeout"`
	RetryTimeout  *Duration `yaml:"retry-timeout"`
	MaxPageNumber *int      `yaml:"max-page-number"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	maxPageNumber, err := strconv.Atoi(getEnv("MAX_PAGE_NUMBER", strconv.Itoa(DefaultMaxPageNumber)))
	if err != nil {
		maxPageNumber = DefaultMaxPageNumber
	}
	debug, _ := strconv.ParseBool(getEnv("SPECIALS_DEBUG", "false"))

	return &Config{
		SiteURL:              strings.TrimRight(getEnv("SPECIALS_SITE_URL", "https://store.steampowered.com"), "/"),
		PageDelay:            getSeconds("PAGE_DELAY_SECONDS", DefaultPageDelay),
		RetryDelay:           getSeconds("RETRY_DELAY_SECONDS", DefaultRetryDelay),
		MaxPageNumber:        maxPageNumber,
		RequestTimeout:       getSeconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second),
		ProxyURL:             getEnv("PROXY_URL", ""),
		Debug:                debug,
		ConfigFile:           getEnv("SPECIALS_CONFIG_FILE", "specials_config.yaml"),
		Schedule:             getEnv("SPECIALS_SCHEDULE", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "specials"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       getSeconds("RATE_LIMIT_BLOCK_SECONDS", 300*time.Second),
		Environment:          getEnv("SPECIALS_ENVIRONMENT", "development"),
	}
}

// ApplyFile overlays the options file on the configuration. Keys that are absent or
// hold an unusable value keep their current values and are returned so the caller can
// mention them. On a read or parse error the configuration is left untouched.
func (c *Config) ApplyFile(path string) (missing []string, invalid []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.NewConfiguration(fmt.Sprintf("read options file %s", path), err)
	}

	var opts fileOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, nil, errors.NewConfiguration(fmt.Sprintf("parse options file %s", path), err)
	}

	switch {
	case opts.Timeout == nil:
		missing = append(missing, "timeout")
	case opts.Timeout.Duration < 0:
		invalid = append(invalid, "timeout")
	default:
		c.PageDelay = opts.Timeout.Duration
	}

	switch {
	case opts.RetryTimeout == nil:
		missing = append(missing, "retry-timeout")
	case opts.RetryTimeout.Duration < 0:
		invalid = append(invalid, "retry-timeout")
	default:
		c.RetryDelay = opts.RetryTimeout.Duration
	}

	switch {
	case opts.MaxPageNumber == nil:
		missing = append(missing, "max-page-number")
	case *opts.MaxPageNumber < 1:
		invalid = append(invalid, "max-page-number")
	default:
		c.MaxPageNumber = *opts.MaxPageNumber
	}

	return missing, invalid, nil
}

// Validate rejects configurations the crawler cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.SiteURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewValidation("config", fmt.Sprintf("site url must be absolute (got %q)", c.SiteURL))
	}
	if c.MaxPageNumber < 1 {
		return errors.NewValidation("config", fmt.Sprintf("max page number must be >= 1 (got %d)", c.MaxPageNumber))
	}
	if c.PageDelay < 0 {
		return errors.NewValidation("config", fmt.Sprintf("page delay must be >= 0 (got %s)", c.PageDelay))
	}
	if c.RetryDelay < 0 {
		return errors.NewValidation("config", fmt.Sprintf("retry delay must be >= 0 (got %s)", c.RetryDelay))
	}
	if c.RequestTimeout <= 0 {
		return errors.NewValidation("config", fmt.Sprintf("request timeout must be > 0 (got %s)", c.RequestTimeout))
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return errors.NewValidation("config", fmt.Sprintf("invalid proxy url %q", c.ProxyURL))
		}
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewValidation("config", fmt.Sprintf("redis stream count must be >= 1 (got %d)", c.RedisStreamCount))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getSeconds reads a possibly fractional number of seconds
func getSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds * float64(time.Second))
}
