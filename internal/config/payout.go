package config

import (
	"os"
	"strconv"
	"time"
)

type PayoutConfig struct {
	BaseURL         string
	APIKey          string
	RequestTimeout  time.Duration
	ReferencePrefix string
}

func LoadPayoutConfig() *PayoutConfig {
	return &PayoutConfig{
		BaseURL:         getEnv("PAYOUT_BASE_URL", "https://rail.example.com/api"),
		APIKey:          getEnv("PAYOUT_API_KEY", ""),
		RequestTimeout:  getEnvAsDuration("PAYOUT_REQUEST_TIMEOUT", 15*time.Second),
		ReferencePrefix: getEnv("PAYOUT_REFERENCE_PREFIX", "PAYOUT"),
	}
}

type MatchingConfig struct {
	Schedule    string
	LockTTL     time.Duration
	EventQueue  string
	LockKey     string
	MaxPerCycle int
}

func LoadMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Schedule:    getEnv("MATCHING_SCHEDULE", "@every 1m"),
		LockTTL:     getEnvAsDuration("MATCHING_LOCK_TTL", 50*time.Second),
		EventQueue:  getEnv("MATCHING_EVENT_QUEUE", "match_events"),
		LockKey:     getEnv("MATCHING_LOCK_KEY", "matching:cycle_lock"),
		MaxPerCycle: getEnvAsInt("MATCHING_MAX_PER_CYCLE", 0), // 0 = unbounded
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
