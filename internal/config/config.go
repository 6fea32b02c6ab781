// Package config holds the coordination broker's immutable runtime
// configuration: datastore endpoint, key prefix, TTLs, and thresholds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the broker's immutable configuration. Built once at process
// start via FromEnv and passed explicitly to every component; there is
// no package-level singleton.
type Config struct {
	RedisHost string
	RedisPort int
	RedisDB   int

	KeyPrefix string

	MessageTTLDays          int
	PresenceTimeoutMinutes  int
	TimelineMaxSize         int
	NotificationFetchCap    int
	LogLevel                string
}

const (
	defaultRedisHost              = "localhost"
	defaultRedisPort              = 6379
	defaultRedisDB                = 0
	defaultKeyPrefix              = "coord"
	defaultMessageTTLDays         = 30
	defaultPresenceTimeoutMinutes = 5
	defaultTimelineMaxSize        = 1000
	defaultNotificationFetchCap   = 100
	maxNotificationFetchCap       = 1000
	defaultLogLevel               = "info"
)

// fileOverlay is the shape of an optional coord.toml on-disk overlay.
// Env vars always win over anything set here.
type fileOverlay struct {
	KeyPrefix              string `toml:"key_prefix"`
	MessageTTLDays         int    `toml:"message_ttl_days"`
	PresenceTimeoutMinutes int    `toml:"presence_timeout_minutes"`
	TimelineMaxSize        int    `toml:"timeline_max_size"`
	LogLevel               string `toml:"log_level"`
}

// FromEnv builds a Config from environment variables, optionally
// overlaid by a coord.toml file at overlayPath first. overlayPath may
// be empty or point to a nonexistent file; that is not an error.
func FromEnv(overlayPath string) Config {
	cfg := Config{
		RedisHost:              defaultRedisHost,
		RedisPort:              defaultRedisPort,
		RedisDB:                defaultRedisDB,
		KeyPrefix:              defaultKeyPrefix,
		MessageTTLDays:         defaultMessageTTLDays,
		PresenceTimeoutMinutes: defaultPresenceTimeoutMinutes,
		TimelineMaxSize:        defaultTimelineMaxSize,
		NotificationFetchCap:   defaultNotificationFetchCap,
		LogLevel:               defaultLogLevel,
	}

	if overlayPath != "" {
		var overlay fileOverlay
		if _, err := toml.DecodeFile(overlayPath, &overlay); err == nil {
			if overlay.KeyPrefix != "" {
				cfg.KeyPrefix = overlay.KeyPrefix
			}
			if overlay.MessageTTLDays != 0 {
				cfg.MessageTTLDays = overlay.MessageTTLDays
			}
			if overlay.PresenceTimeoutMinutes != 0 {
				cfg.PresenceTimeoutMinutes = overlay.PresenceTimeoutMinutes
			}
			if overlay.TimelineMaxSize != 0 {
				cfg.TimelineMaxSize = overlay.TimelineMaxSize
			}
			if overlay.LogLevel != "" {
				cfg.LogLevel = overlay.LogLevel
			}
		}
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.RedisHost = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisPort = n
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("COORD_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("COORD_MESSAGE_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MessageTTLDays = n
		}
	}
	if v := os.Getenv("COORD_PRESENCE_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PresenceTimeoutMinutes = n
		}
	}
	if v := os.Getenv("COORD_TIMELINE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TimelineMaxSize = n
		}
	}
	if v := os.Getenv("COORD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// MessageTTL is the envelope retention window.
func (c Config) MessageTTL() time.Duration {
	return time.Duration(c.MessageTTLDays) * 24 * time.Hour
}

// PresenceTimeout is the staleness threshold.
func (c Config) PresenceTimeout() time.Duration {
	return time.Duration(c.PresenceTimeoutMinutes) * time.Minute
}

// ClampNotificationLimit enforces the 1000 upper bound on
// pop_notifications. limit<=0 passes through unchanged: the broker
// layer treats a non-positive limit as "return [] without touching
// the list," and a caller-supplied 0 must reach it as a literal 0,
// not silently become the default fetch size.
func (c Config) ClampNotificationLimit(limit int) int {
	if limit > maxNotificationFetchCap {
		return maxNotificationFetchCap
	}
	return limit
}

// RedisAddr is the host:port form go-redis expects.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Key formatters — the sole place key/channel strings are assembled.

func (c Config) MessageKey(id string) string      { return fmt.Sprintf("%s:msg:%s", c.KeyPrefix, id) }
func (c Config) TimelineKey() string              { return fmt.Sprintf("%s:timeline", c.KeyPrefix) }
func (c Config) InboxKey(instance string) string  { return fmt.Sprintf("%s:inbox:%s", c.KeyPrefix, instance) }
func (c Config) PendingKey() string               { return fmt.Sprintf("%s:pending", c.KeyPrefix) }
func (c Config) PresenceKey() string              { return fmt.Sprintf("%s:presence", c.KeyPrefix) }
func (c Config) NotifyQueueKey(instance string) string {
	return fmt.Sprintf("%s:notify_queue:%s", c.KeyPrefix, instance)
}
func (c Config) InstanceChannel(instance string) string {
	return fmt.Sprintf("%s:notify:%s", c.KeyPrefix, instance)
}
func (c Config) BroadcastChannel() string { return fmt.Sprintf("%s:notify:all", c.KeyPrefix) }
