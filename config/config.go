package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"canteen-orders-api/cutoff"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

// Config is everything the server reads from the environment
type Config struct {
	Port           string        `env:"PORT"              envDefault:"8080"`
	GinMode        string        `env:"GIN_MODE"          envDefault:"debug"`
	DatabasePath   string        `env:"DATABASE_PATH"     envDefault:"canteen.db"`
	MaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS" envDefault:"4"`
	JWTSecret      string        `env:"JWT_SECRET"        envDefault:"canteen_dev_secret_change_me"`
	OrderCutoff    string        `env:"ORDER_CUTOFF"      envDefault:"19:00"`
	TimeZone       string        `env:"CANTEEN_TZ"        envDefault:"Local"`
	DailyCapacity  int           `env:"DAILY_CAPACITY"    envDefault:"200"`
	RewardStreak   int           `env:"REWARD_STREAK_DAYS" envDefault:"3"`
	MenuFile       string        `env:"MENU_FILE"`
	LogLevel       string        `env:"LOG_LEVEL"         envDefault:"info"`
	ShutdownWait   time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"   envDefault:"5s"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DailyCapacity < 0 {
		return fmt.Errorf("DAILY_CAPACITY must not be negative")
	}
	if c.RewardStreak < 1 {
		return fmt.Errorf("REWARD_STREAK_DAYS must be at least 1")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	return nil
}

// Location is the canteen time zone
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("CANTEEN_TZ: %w", err)
	}
	return loc, nil
}

// Cutoff builds the daily cutoff policy
func (c Config) Cutoff() (cutoff.Policy, error) {
	loc, err := c.Location()
	if err != nil {
		return cutoff.Policy{}, err
	}
	p, err := cutoff.ParsePolicy(c.OrderCutoff, loc)
	if err != nil {
		return cutoff.Policy{}, fmt.Errorf("ORDER_CUTOFF: %w", err)
	}
	return p, nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GormLogLevel keeps SQL logging at Warn unless debugging
func (c Config) GormLogLevel() logger.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}
