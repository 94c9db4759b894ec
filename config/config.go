// Package config loads scraper configuration from a YAML file with
// environment-variable overrides. Precedence, lowest to highest:
// built-in defaults, the config file, then CARS_* environment
// variables. A .env file in the working directory is loaded first so
// local development can keep overrides out of the shell.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// BaseURL is the search-results root start URLs are built from.
	BaseURL string        `yaml:"base_url"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
}

// ScrapeConfig tunes the pagination and extraction engine. The
// threshold fields are heuristics observed against the target site,
// kept configurable rather than hardcoded.
type ScrapeConfig struct {
	// MaxPages is the default page ceiling; 0 paginates until the site
	// runs out of results.
	MaxPages        int     `yaml:"max_pages"`
	PageSize        int     `yaml:"page_size"`
	MinResults      int     `yaml:"min_results"`
	OverlapFraction float64 `yaml:"overlap_fraction"`

	DelayMinMs        int `yaml:"delay_min_ms"`
	DelayMaxMs        int `yaml:"delay_max_ms"`
	InterQueryDelayMs int `yaml:"inter_query_delay_ms"`
	FetchTimeoutMs    int `yaml:"fetch_timeout_ms"`
	MaxElapsedMs      int `yaml:"max_elapsed_ms"`

	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`
	Referer        string `yaml:"referer"`

	Enrich    bool `yaml:"enrich"`
	MaxEnrich int  `yaml:"max_enrich"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Type is one of "memory", "sqlite", "postgres".
	Type string `yaml:"type"`
	// DSN is the sqlite path or lib/pq connection string.
	DSN string `yaml:"dsn"`
}

// APIConfig configures the HTTP query API.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logger construction.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: "https://autos.mercadolibre.com.ar",
		Scrape: ScrapeConfig{
			MaxPages:          10,
			PageSize:          48,
			MinResults:        5,
			OverlapFraction:   0.8,
			DelayMinMs:        1000,
			DelayMaxMs:        3000,
			InterQueryDelayMs: 10000,
			FetchTimeoutMs:    30000,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			DSN:  "cars.db",
		},
		API: APIConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment overrides apply; a named file that does not
// exist is an error, so typos fail loudly.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays CARS_* environment variables onto cfg.
func (c *Config) applyEnv() {
	c.BaseURL = getEnv("CARS_BASE_URL", c.BaseURL)

	c.Scrape.MaxPages = getEnvInt("CARS_MAX_PAGES", c.Scrape.MaxPages)
	c.Scrape.PageSize = getEnvInt("CARS_PAGE_SIZE", c.Scrape.PageSize)
	c.Scrape.MinResults = getEnvInt("CARS_MIN_RESULTS", c.Scrape.MinResults)
	c.Scrape.OverlapFraction = getEnvFloat("CARS_OVERLAP_FRACTION", c.Scrape.OverlapFraction)
	c.Scrape.DelayMinMs = getEnvInt("CARS_DELAY_MIN_MS", c.Scrape.DelayMinMs)
	c.Scrape.DelayMaxMs = getEnvInt("CARS_DELAY_MAX_MS", c.Scrape.DelayMaxMs)
	c.Scrape.InterQueryDelayMs = getEnvInt("CARS_INTER_QUERY_DELAY_MS", c.Scrape.InterQueryDelayMs)
	c.Scrape.FetchTimeoutMs = getEnvInt("CARS_FETCH_TIMEOUT_MS", c.Scrape.FetchTimeoutMs)
	c.Scrape.MaxElapsedMs = getEnvInt("CARS_MAX_ELAPSED_MS", c.Scrape.MaxElapsedMs)
	c.Scrape.UserAgent = getEnv("CARS_USER_AGENT", c.Scrape.UserAgent)

	c.Storage.Type = getEnv("CARS_STORAGE_TYPE", c.Storage.Type)
	c.Storage.DSN = getEnv("CARS_STORAGE_DSN", c.Storage.DSN)

	c.API.Addr = getEnv("CARS_API_ADDR", c.API.Addr)

	c.Log.Level = getEnv("CARS_LOG_LEVEL", c.Log.Level)
	if v := os.Getenv("CARS_LOG_JSON"); v != "" {
		c.Log.JSON = v == "1" || v == "true"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
