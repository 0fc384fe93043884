// Package config loads the SwingRun application configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/swingrun/internal/backtest"
	"github.com/sawpanic/swingrun/internal/calibration"
	"github.com/sawpanic/swingrun/internal/calibration/runtime"
	"github.com/sawpanic/swingrun/internal/infrastructure/db"
	httpapi "github.com/sawpanic/swingrun/internal/interfaces/http"
)

// Profile store kinds
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// AppConfig is the complete application configuration
type AppConfig struct {
	Backtest    backtest.Config               `yaml:"backtest"`
	WalkForward calibration.WalkForwardConfig `yaml:"walk_forward"`
	Calibration CalibrationConfig             `yaml:"calibration"`
	Data        DataConfig                    `yaml:"data"`
	Database    db.Config                     `yaml:"database"`
	Cache       CacheConfig                   `yaml:"cache"`
	HTTP        httpapi.ServerConfig          `yaml:"http"`
}

// CalibrationConfig selects where profiles live and how the loader reads them
type CalibrationConfig struct {
	Store      string         `yaml:"store"` // file, postgres or redis
	ProfileDir string         `yaml:"profile_dir"`
	Universe   []string       `yaml:"universe"`
	Loader     runtime.Config `yaml:"loader"`
}

// DataConfig describes where bars come from
type DataConfig struct {
	CSVDir    string  `yaml:"csv_dir"`
	Synthetic bool    `yaml:"synthetic"`
	RPS       float64 `yaml:"rps"` // 0 disables throttling
	Burst     int     `yaml:"burst"`
}

// CacheConfig configures the bar cache and the redis profile store
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr"` // empty keeps the cache in process
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	BarTTL        time.Duration `yaml:"bar_ttl"`
	MaxSymbols    int           `yaml:"max_symbols"`
	BarPrefix     string        `yaml:"bar_prefix"`
	ProfilePrefix string        `yaml:"profile_prefix"`
	ProfileTTL    time.Duration `yaml:"profile_ttl"` // retention of stored profiles, 0 keeps forever
}

// Default returns the built-in configuration
func Default() AppConfig {
	return AppConfig{
		Backtest:    backtest.DefaultConfig(),
		WalkForward: calibration.DefaultConfig(),
		Calibration: CalibrationConfig{
			Store:      StoreFile,
			ProfileDir: "out/calibration",
			Universe:   []string{"SPY", "QQQ", "IWM", "DIA", "AAPL", "MSFT", "NVDA", "AMZN"},
			Loader:     runtime.DefaultConfig(),
		},
		Data: DataConfig{
			CSVDir: "data/bars",
			RPS:    5,
			Burst:  2,
		},
		Database: db.DefaultConfig(),
		Cache: CacheConfig{
			BarTTL:        6 * time.Hour,
			MaxSymbols:    500,
			BarPrefix:     "swingrun:bars:",
			ProfilePrefix: "swingrun:calibration:",
		},
		HTTP: httpapi.DefaultServerConfig(),
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	cfg.Database.FillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from SWINGRUN_*, PG_* and REDIS_* variables
func (c *AppConfig) ApplyEnv() {
	if v := os.Getenv("SWINGRUN_PROFILE_STORE"); v != "" {
		c.Calibration.Store = strings.ToLower(v)
	}
	if v := os.Getenv("SWINGRUN_PROFILE_DIR"); v != "" {
		c.Calibration.ProfileDir = v
	}
	if v := os.Getenv("SWINGRUN_UNIVERSE"); v != "" {
		c.Calibration.Universe = strings.Split(v, ",")
	}
	if v := os.Getenv("SWINGRUN_CSV_DIR"); v != "" {
		c.Data.CSVDir = v
	}
	if v := os.Getenv("SWINGRUN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WalkForward.Workers = n
		}
	}
	if v := os.Getenv("SWINGRUN_HTTP_HOST"); v != "" {
		c.HTTP.Host = v
	}
	if v := os.Getenv("SWINGRUN_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = n
		}
	}

	c.Database.ApplyEnv()

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = n
		}
	}
}

// Validate reports every problem across all sections
func (c AppConfig) Validate() error {
	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	add(c.Backtest.Validate())
	add(c.WalkForward.Validate())
	add(c.Database.Validate())

	switch c.Calibration.Store {
	case StoreFile:
		if c.Calibration.ProfileDir == "" {
			problems = append(problems, "calibration.profile_dir is required for the file store")
		}
	case StorePostgres:
		if !c.Database.Enabled {
			problems = append(problems, "calibration.store=postgres requires database.enabled")
		}
	case StoreRedis:
		if c.Cache.RedisAddr == "" {
			problems = append(problems, "calibration.store=redis requires cache.redis_addr")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown calibration.store %q", c.Calibration.Store))
	}

	l := c.Calibration.Loader
	if l.TTL <= 0 {
		problems = append(problems, "calibration.loader.ttl must be positive")
	}
	if l.StaleAfter <= 0 {
		problems = append(problems, "calibration.loader.stale_after must be positive")
	}
	if l.BreakerFailures == 0 {
		problems = append(problems, "calibration.loader.breaker_failures must be at least 1")
	}

	if c.Data.RPS < 0 {
		problems = append(problems, "data.rps cannot be negative")
	}
	if c.Cache.Enabled && c.Cache.BarTTL <= 0 {
		problems = append(problems, "cache.bar_ttl must be positive when the cache is enabled")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port out of range: %d", c.HTTP.Port))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
