package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	StoreDriver string // "memory" or "mysql"
	DB          DBConfig
	Redis       RedisConfig
	RabbitMQURL string
	JWTSecret   string

	SMS      SMSConfig
	Cache    CacheConfig
	Sweep    SweepConfig
	Realtime RealtimeConfig
	Notify   NotifyConfig
	Auction  AuctionConfig
}

type DBConfig struct {
	User, Pass, Host, Port, Name string
}

type RedisConfig struct {
	Addr     string // empty disables redis
	Password string
	DB       int
}

type SMSConfig struct {
	ProxyURL string // empty logs messages instead of sending them
	Timeout  time.Duration
}

type CacheConfig struct {
	RefreshInterval   time.Duration
	RecentEndedWindow time.Duration
}

type SweepConfig struct {
	Interval          time.Duration
	LeaseTTL          time.Duration
	ArchiveOnFinalize bool
}

type RealtimeConfig struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
}

type NotifyConfig struct {
	Workers   int
	QueueSize int
}

type AuctionConfig struct {
	DefaultDuration time.Duration
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine

	cfg := Config{
		Port:        envStr("PORT", "8080"),
		GinMode:     envStr("GIN_MODE", "release"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		StoreDriver: envStr("STORE_DRIVER", "memory"),
		DB: DBConfig{
			User: envStr("DB_USER", "auction"),
			Pass: os.Getenv("DB_PASS"),
			Host: envStr("DB_HOST", "127.0.0.1"),
			Port: envStr("DB_PORT", "3306"),
			Name: envStr("DB_NAME", "auction"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		JWTSecret:   envStr("JWT_SECRET", "dev-secret"),
		SMS: SMSConfig{
			ProxyURL: os.Getenv("SMS_PROXY_URL"),
			Timeout:  envDur("SMS_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			RefreshInterval:   envDur("CACHE_REFRESH_INTERVAL", 5*time.Second),
			RecentEndedWindow: envDur("CACHE_RECENT_ENDED_WINDOW", 24*time.Hour),
		},
		Sweep: SweepConfig{
			Interval:          envDur("SWEEP_INTERVAL", time.Minute),
			LeaseTTL:          envDur("SWEEP_LEASE_TTL", 2*time.Minute),
			ArchiveOnFinalize: envBool("SWEEP_ARCHIVE_ON_FINALIZE", true),
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval: envDur("WS_HEARTBEAT_INTERVAL", 30*time.Second),
			IdleTimeout:       envDur("WS_IDLE_TIMEOUT", 60*time.Second),
		},
		Notify: NotifyConfig{
			Workers:   envInt("NOTIFY_WORKERS", 4),
			QueueSize: envInt("NOTIFY_QUEUE_SIZE", 256),
		},
		Auction: AuctionConfig{
			DefaultDuration: envDur("AUCTION_DEFAULT_DURATION", 168*time.Hour),
		},
	}
	cfg.clamp()
	return cfg
}

func (c *Config) clamp() {
	if c.Cache.RefreshInterval <= 0 {
		c.Cache.RefreshInterval = 5 * time.Second
	}
	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = time.Minute
	}
	if c.Sweep.LeaseTTL < c.Sweep.Interval {
		c.Sweep.LeaseTTL = 2 * c.Sweep.Interval
	}
	if c.Realtime.HeartbeatInterval <= 0 {
		c.Realtime.HeartbeatInterval = 30 * time.Second
	}
	if c.Realtime.IdleTimeout <= c.Realtime.HeartbeatInterval {
		c.Realtime.IdleTimeout = 2 * c.Realtime.HeartbeatInterval
	}
	if c.SMS.Timeout <= 0 {
		c.SMS.Timeout = 10 * time.Second
	}
	if c.Notify.Workers < 1 {
		c.Notify.Workers = 1
	}
	if c.Notify.QueueSize < 1 {
		c.Notify.QueueSize = 1
	}
	if c.Auction.DefaultDuration <= 0 {
		c.Auction.DefaultDuration = 168 * time.Hour
	}
}

// Addr returns the HTTP listen address
func (c Config) Addr() string { return ":" + c.Port }

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
