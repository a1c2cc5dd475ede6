package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "GO_BACKOFFICE"

// server.port -> GO_BACKOFFICE_SERVER_PORT
var envKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Cache   CacheConfig
	Session SessionConfig
	List    ListConfig
	Misc    MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// BackendConfig describes the upstream REST API the dashboard talks to.
type BackendConfig struct {
	BaseURL        string
	Timeout        time.Duration
	TokenFile      string
	Token          string
	RateLimitRPS   float64
	RateLimitBurst int
}

type CacheConfig struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	GCInterval time.Duration
}

type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type ListConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

type MiscConfig struct {
	LogLevel string
	GinMode  string
}

// LoadConfig reads .env, config.yaml and GO_BACKOFFICE_* environment variables, in
// increasing order of precedence, and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Warnf("cannot load .env file: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnvOrDefault(envPrefix+"_CONFIG_PATH", "./config"))
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("backend.base_url", "http://localhost:8000/api")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.token_file", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.rate_limit_rps", 20.0)
	v.SetDefault("backend.rate_limit_burst", 40)

	v.SetDefault("cache.stale_time", 5*time.Minute)
	v.SetDefault("cache.gc_time", 30*time.Minute)
	v.SetDefault("cache.gc_interval", time.Minute)

	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)

	v.SetDefault("list.default_page_size", 20)
	v.SetDefault("list.max_page_size", 100)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

func fromViper(v *viper.Viper) (*Config, error) {
	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Backend: BackendConfig{
			BaseURL:        v.GetString("backend.base_url"),
			Timeout:        v.GetDuration("backend.timeout"),
			TokenFile:      v.GetString("backend.token_file"),
			Token:          v.GetString("backend.token"),
			RateLimitRPS:   v.GetFloat64("backend.rate_limit_rps"),
			RateLimitBurst: v.GetInt("backend.rate_limit_burst"),
		},
		Cache: CacheConfig{
			StaleTime:  v.GetDuration("cache.stale_time"),
			GCTime:     v.GetDuration("cache.gc_time"),
			GCInterval: v.GetDuration("cache.gc_interval"),
		},
		Session: SessionConfig{
			IdleTTL:       v.GetDuration("session.idle_ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
		},
		List: ListConfig{
			DefaultPageSize: v.GetInt("list.default_page_size"),
			MaxPageSize:     v.GetInt("list.max_page_size"),
		},
		Misc: MiscConfig{
			LogLevel: v.GetString("misc.log_level"),
			GinMode:  v.GetString("misc.gin_mode"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server request timeout must be positive")
	}

	if c.Backend.BaseURL == "" {
		return errors.New("backend base url cannot be empty")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base url: %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if c.Backend.RateLimitRPS < 0 {
		return fmt.Errorf("backend rate limit cannot be negative: %v", c.Backend.RateLimitRPS)
	}
	if c.Backend.RateLimitRPS > 0 && c.Backend.RateLimitBurst <= 0 {
		return errors.New("backend rate limit burst must be positive when a rate limit is set")
	}

	if c.Cache.StaleTime < 0 {
		return errors.New("cache stale time cannot be negative")
	}
	if c.Cache.GCTime <= 0 || c.Cache.GCInterval <= 0 {
		return errors.New("cache gc time and interval must be positive")
	}
	if c.Cache.GCTime < c.Cache.StaleTime {
		return fmt.Errorf("cache gc time (%s) must not be shorter than stale time (%s)", c.Cache.GCTime, c.Cache.StaleTime)
	}

	if c.Session.IdleTTL <= 0 || c.Session.SweepInterval <= 0 {
		return errors.New("session idle ttl and sweep interval must be positive")
	}

	if c.List.DefaultPageSize <= 0 {
		return fmt.Errorf("invalid default page size: %d", c.List.DefaultPageSize)
	}
	if c.List.MaxPageSize < c.List.DefaultPageSize {
		return fmt.Errorf("max page size (%d) must be >= default page size (%d)", c.List.MaxPageSize, c.List.DefaultPageSize)
	}

	switch c.Misc.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid gin mode: %q", c.Misc.GinMode)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, val, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}
