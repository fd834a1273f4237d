// Package config loads vodfetch settings from TOML files and VODFETCH_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/famomatic/vodfetch/internal/httpx"
)

// EnvPrefix prefixes every environment override, e.g. VODFETCH_DOWNLOAD_CONCURRENCY.
const EnvPrefix = "VODFETCH"

const defaultDownloadDir = "downloads"

// preferredDownloadDir replaces the default download dir when it exists,
// which is the case inside the container image.
var preferredDownloadDir = "/downloads"

type Config struct {
	LogLevel        string                    `toml:"log_level" mapstructure:"log_level"`
	DownloadDir     string                    `toml:"download_dir" mapstructure:"download_dir"`
	TempDir         string                    `toml:"temp_dir" mapstructure:"temp_dir"`
	DefaultChannel  string                    `toml:"default_channel" mapstructure:"default_channel"`
	Download        downloadConfig            `toml:"download" mapstructure:"download"`
	FFmpeg          ffmpegConfig              `toml:"ffmpeg" mapstructure:"ffmpeg"`
	HTTP            httpConfig                `toml:"http" mapstructure:"http"`
	Cache           cacheConfig               `toml:"cache" mapstructure:"cache"`
	Store           storeConfig               `toml:"store" mapstructure:"store"`
	UnifiedChannels map[string]UnifiedChannel `toml:"unified_channels" mapstructure:"unified_channels"`
	ScrapeChannels  map[string]ScrapeChannel  `toml:"scrape_channels" mapstructure:"scrape_channels"`
}

type downloadConfig struct {
	Concurrency int           `toml:"concurrency" mapstructure:"concurrency"`
	Cooldown    time.Duration `toml:"cooldown" mapstructure:"cooldown"`
	// RateLimit caps segment requests per second; 0 disables pacing.
	RateLimit float64 `toml:"rate_limit" mapstructure:"rate_limit"`
	// Strategy forces "segments" or "direct" for every channel. Empty
	// lets each channel pick.
	Strategy       string `toml:"strategy" mapstructure:"strategy"`
	CancelOnDetach bool   `toml:"cancel_on_detach" mapstructure:"cancel_on_detach"`
}

type ffmpegConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

type httpConfig struct {
	Proxy     string        `toml:"proxy" mapstructure:"proxy"`
	Timeout   time.Duration `toml:"timeout" mapstructure:"timeout"`
	UserAgent string        `toml:"user_agent" mapstructure:"user_agent"`
	// CookieFile is a cookies.txt export sent to scrape hosts.
	CookieFile string `toml:"cookie_file" mapstructure:"cookie_file"`
}

type cacheConfig struct {
	DetailTTL   time.Duration `toml:"detail_ttl" mapstructure:"detail_ttl"`
	NumCounters int64         `toml:"num_counters" mapstructure:"num_counters"`
	MaxCost     int64         `toml:"max_cost" mapstructure:"max_cost"`
}

type storeConfig struct {
	RedisAddr     string `toml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `toml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `toml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string `toml:"key_prefix" mapstructure:"key_prefix"`
}

// UnifiedChannel describes one MacCMS site.
type UnifiedChannel struct {
	Name    string `toml:"name" mapstructure:"name"`
	BaseURL string `toml:"base_url" mapstructure:"base_url"`
	// HTTPVersion is 1 or 2; 0 means 2.
	HTTPVersion int `toml:"http_version" mapstructure:"http_version"`
}

// ScrapeChannel describes one play-page site.
type ScrapeChannel struct {
	Name string `toml:"name" mapstructure:"name"`
	Host string `toml:"host" mapstructure:"host"`
}

var defaults = map[string]any{
	"log_level":    "info",
	"download_dir": defaultDownloadDir,
	"temp_dir":     "",

	"download.concurrency":      10,
	"download.cooldown":         "3s",
	"download.rate_limit":       0,
	"download.strategy":         "",
	"download.cancel_on_detach": true,

	"ffmpeg.path": "ffmpeg",

	"http.proxy":       "",
	"http.timeout":     "30s",
	"http.user_agent":  httpx.DefaultUserAgent,
	"http.cookie_file": "",

	"cache.detail_ttl":   "10m",
	"cache.num_counters": 10000,
	"cache.max_cost":     1000,

	"store.redis_addr":     "",
	"store.redis_password": "",
	"store.redis_db":       0,
	"store.key_prefix":     "vodfetch",
}

// Load reads configFile, or vodfetch.toml from the working directory or
// /etc/vodfetch when configFile is empty. A missing default file is not an
// error; defaults and environment overrides still apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vodfetch")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vodfetch/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DownloadDir = resolveDownloadDir(cfg.DownloadDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Download.Concurrency < 0 {
		return fmt.Errorf("download.concurrency must not be negative, got %d", c.Download.Concurrency)
	}
	if c.Download.RateLimit < 0 {
		return fmt.Errorf("download.rate_limit must not be negative, got %v", c.Download.RateLimit)
	}
	switch c.Download.Strategy {
	case "", "segments", "direct":
	default:
		return fmt.Errorf("download.strategy must be segments or direct, got %q", c.Download.Strategy)
	}
	for id, ch := range c.UnifiedChannels {
		if ch.BaseURL == "" {
			return fmt.Errorf("unified_channels.%s: base_url is required", id)
		}
		if ch.HTTPVersion != 0 && ch.HTTPVersion != 1 && ch.HTTPVersion != 2 {
			return fmt.Errorf("unified_channels.%s: http_version must be 1 or 2, got %d", id, ch.HTTPVersion)
		}
	}
	for id, ch := range c.ScrapeChannels {
		if ch.Host == "" {
			return fmt.Errorf("scrape_channels.%s: host is required", id)
		}
		if _, dup := c.UnifiedChannels[id]; dup {
			return fmt.Errorf("channel %q is configured as both unified and scrape", id)
		}
	}
	if c.DefaultChannel != "" {
		_, unified := c.UnifiedChannels[c.DefaultChannel]
		_, scrape := c.ScrapeChannels[c.DefaultChannel]
		if !unified && !scrape {
			return fmt.Errorf("default_channel %q is not configured", c.DefaultChannel)
		}
	}
	return nil
}

// TempRoot returns the directory that holds per-job segment folders.
func (c *Config) TempRoot() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return filepath.Join(os.TempDir(), "vodfetch")
}

func resolveDownloadDir(dir string) string {
	if dir != defaultDownloadDir {
		return dir
	}
	if info, err := os.Stat(preferredDownloadDir); err == nil && info.IsDir() {
		return preferredDownloadDir
	}
	return dir
}
