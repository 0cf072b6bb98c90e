package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Remote session API.
	APIBaseURL string
	PublicKey  string

	// Devserver bind address.
	Addr string

	QuestionsPath string
	AllowMature   bool

	// TimeoutScale stretches or compresses every state timeout uniformly.
	TimeoutScale float64

	TickInterval time.Duration
	PingInterval time.Duration

	Debug bool
}

func Load() *Config {
	return &Config{
		APIBaseURL:    getEnv("JB_API_URL", "http://localhost:8080/api/sessions"),
		PublicKey:     getEnv("JB_PUBLIC_KEY", "dev-public-key"),
		Addr:          getEnv("JB_ADDR", ":8080"),
		QuestionsPath: getEnv("JB_QUESTIONS", "questions.json"),
		AllowMature:   getBool("JB_ALLOW_MATURE", false),
		TimeoutScale:  getFloat("JB_TIMEOUT_SCALE", 1.0),
		TickInterval:  getDuration("JB_TICK_INTERVAL", 250*time.Millisecond),
		PingInterval:  getDuration("JB_PING_INTERVAL", 10*time.Second),
		Debug:         getBool("JB_DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
