package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store and feed drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverNSQ      = "nsq"
)

// Config holds the application configuration.
type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	FeedDriver     string `mapstructure:"FEED_DRIVER"`
	NSQDAddr       string `mapstructure:"NSQD_TCP_ADDR"`
	NSQLookupdAddr string `mapstructure:"NSQLOOKUPD_ADDR"`
	FeedTopic      string `mapstructure:"FEED_TOPIC"`
	ServerID       string `mapstructure:"SERVER_ID"`

	// RedisURL enables the shared rate limiter and the link retry jobs.
	RedisURL string `mapstructure:"REDIS_URL"`

	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	SearchLimit     int           `mapstructure:"SEARCH_LIMIT"`
	PageSize        int           `mapstructure:"PAGE_SIZE"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

var AppConfig *Config

var defaults = map[string]interface{}{
	"PORT":              "8080",
	"DATABASE_URL":      "",
	"STORE_DRIVER":      DriverPostgres,
	"JWT_SECRET":        "",
	"JWT_TTL":           "168h",
	"FEED_DRIVER":       DriverMemory,
	"NSQD_TCP_ADDR":     "127.0.0.1:4150",
	"NSQLOOKUPD_ADDR":   "",
	"FEED_TOPIC":        "pulse.changes",
	"SERVER_ID":         "",
	"REDIS_URL":         "",
	"RATE_LIMIT_MAX":    5,
	"RATE_LIMIT_WINDOW": "3s",
	"SEARCH_LIMIT":      20,
	"PAGE_SIZE":         50,
	"LOG_LEVEL":         "info",
}

// LoadConfig loads the configuration from a .env file in dir and the
// environment, which wins over the file.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "config.LoadConfig",
		}).Warn(".env file not found, loading from environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	AppConfig = &cfg
	return &cfg, nil
}
